package dataprocessing

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"ferroci/internal/config"
	apierrors "ferroci/internal/errors"
	"ferroci/pkg/contracts/domain"
)

const utf8BOM = "\ufeff"

// maxLineBytes bounds a single line of an instrument export
const maxLineBytes = 1024 * 1024

// ReaderOptions controls how the metadata preamble is skipped
type ReaderOptions struct {
	// HeaderLines skips exactly this many lines. Zero scans for ColumnMarker.
	HeaderLines int
	// ColumnMarker is the prefix of the column title line ending the preamble
	ColumnMarker string
}

// DefaultReaderOptions scans for the "Potential/V" column title
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{ColumnMarker: config.DefaultColumnMarker}
}

// ReaderOptionsFrom builds reader options from the analysis configuration
func ReaderOptionsFrom(cfg config.AnalysisConfig) ReaderOptions {
	opts := DefaultReaderOptions()
	opts.HeaderLines = cfg.HeaderLines
	if cfg.ColumnMarker != "" {
		opts.ColumnMarker = cfg.ColumnMarker
	}
	return opts
}

// ReadSampleCSV parses an instrument export into a sample table.
// Every data line must hold exactly two finite numbers; the first line that
// does not is reported as a ParseError with its 1-based line number.
func ReadSampleCSV(path string, opts ReaderOptions) (*domain.SampleTable, error) {
	if opts.ColumnMarker == "" {
		opts.ColumnMarker = config.DefaultColumnMarker
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.NewParseError(path, 0, "cannot open file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	metadata := make(map[string]string)
	var points []domain.Point

	lineNo := 0
	inPreamble := true
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		trimmed := strings.TrimSpace(line)

		if inPreamble {
			if opts.HeaderLines > 0 {
				parseMetadataLine(metadata, lineNo, trimmed)
				if lineNo == opts.HeaderLines {
					inPreamble = false
				}
				continue
			}
			if strings.HasPrefix(trimmed, opts.ColumnMarker) {
				inPreamble = false
				continue
			}
			parseMetadataLine(metadata, lineNo, trimmed)
			continue
		}

		if trimmed == "" || strings.HasPrefix(trimmed, opts.ColumnMarker) {
			continue
		}

		p, err := parseDataLine(trimmed)
		if err != nil {
			return nil, apierrors.NewParseError(path, lineNo, err.Error(), nil)
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, apierrors.NewParseError(path, lineNo, "read failed", err)
	}

	if inPreamble {
		if opts.HeaderLines > 0 {
			return nil, apierrors.NewParseError(path, 0,
				fmt.Sprintf("file shorter than header (%d lines, expected at least %d)", lineNo, opts.HeaderLines), nil)
		}
		return nil, apierrors.NewParseError(path, 0,
			fmt.Sprintf("column header %q not found", opts.ColumnMarker), nil)
	}
	if len(points) == 0 {
		return nil, apierrors.NewParseError(path, 0, "no data rows", nil)
	}

	return domain.NewSampleTable(path, points, metadata), nil
}

func parseDataLine(line string) (domain.Point, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return domain.Point{}, fmt.Errorf("expected 2 comma-separated fields, got %d", len(fields))
	}

	potential, err := parseFinite(fields[0])
	if err != nil {
		return domain.Point{}, fmt.Errorf("invalid potential: %v", err)
	}
	current, err := parseFinite(fields[1])
	if err != nil {
		return domain.Point{}, fmt.Errorf("invalid current: %v", err)
	}

	return domain.Point{Potential: potential, Current: current}, nil
}

func parseFinite(field string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return v, nil
}

// parseMetadataLine keeps what the instrument writes above the data:
// "key = value" settings, the acquisition date on the first line, the
// technique name and "key: value" descriptors.
func parseMetadataLine(metadata map[string]string, lineNo int, line string) {
	if line == "" {
		return
	}

	switch {
	case strings.Contains(line, "="):
		key, value, _ := strings.Cut(line, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key != "" {
			metadata[key] = value
		}
	case lineNo == 1:
		metadata["DateTime"] = line
	case strings.Contains(line, "Voltammetry"):
		metadata["Technique"] = line
	case strings.Contains(line, ":"):
		key, value, _ := strings.Cut(line, ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			return
		}
		if key == "File" {
			key = "File_Path"
		}
		metadata[key] = value
	}
}

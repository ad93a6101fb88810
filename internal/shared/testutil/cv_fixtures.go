package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// InstrumentPreamble is the metadata block written by the potentiostat before
// the data section. It is 25 lines long, including the column title line.
var InstrumentPreamble = []string{
	"Sept. 12, 2025   15:54:51",
	"Cyclic Voltammetry",
	"File: C:\\CHI\\FERRO BARE.bin",
	"Data Source: Experiment",
	"Instrument Model:  CHI760E",
	"Header:",
	"Note:",
	"",
	"Init E (V) = 0.6",
	"High E (V) = 0.6",
	"Low E (V) = -0.2",
	"Init P/N = N",
	"Scan Rate (V/s) = 0.1",
	"Segment = 2",
	"Sample Interval (V) = 0.001",
	"Quiet Time (sec) = 2",
	"Sensitivity (A/V) = 1e-5",
	"",
	"Results:",
	"Segment 1:",
	"Ep = 0.283V",
	"ip = 1.154e-5A",
	"",
	"Potential/V, Current/A",
	"",
}

// PreambleLines is the number of lines before the first data row
var PreambleLines = len(InstrumentPreamble)

// CVFileContent renders an instrument export with the given currents.
// Potentials sweep down from 0.6 V in 0.1 V steps.
func CVFileContent(currents ...float64) string {
	var b strings.Builder
	for _, line := range InstrumentPreamble {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for i, c := range currents {
		fmt.Fprintf(&b, "%.3f, %.6e\n", 0.6-0.1*float64(i), c)
	}
	return b.String()
}

// WriteCVFile writes an instrument export into dir and returns its path
func WriteCVFile(t *testing.T, dir, name string, currents ...float64) string {
	t.Helper()
	return WriteRawFile(t, dir, name, CVFileContent(currents...))
}

// WriteRawFile writes arbitrary content into dir and returns its path
func WriteRawFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

package exporter

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"ferroci/internal/files"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV loads a results table. A missing file yields an empty table.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Table{}, nil
		}
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: records[0], Rows: records[1:]}
	t.padRows()
	return t, nil
}

// WriteCSV atomically replaces path with the table. The file starts with a
// UTF-8 BOM so Excel detects the encoding.
func WriteCSV(path string, t *Table) error {
	return files.WriteAtomicFunc(path, func(w io.Writer) error {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}

		writer := csv.NewWriter(w)
		if err := writer.Write(t.Header); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
		for i, record := range t.Rows {
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

package exporter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"ferroci/internal/files"
	"ferroci/pkg/contracts/domain"
)

// SheetName is the worksheet holding the results in the spreadsheet mirror
const SheetName = "Results"

// WriteXLSX atomically replaces path with a workbook holding the table.
// Cells written in canonical number form are stored as numbers, except the
// Filename and Timestamp columns which stay text.
func WriteXLSX(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(t.Header))
	for i, col := range t.Header {
		header[i] = col
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
			if i < len(t.Header) && isTextColumn(t.Header[i]) {
				continue
			}
			if v, ok := parseNumber(cell); ok {
				cells[i] = v
			}
		}
		start, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, start, &cells); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r, err)
		}
	}

	if len(t.Header) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			_ = f.SetRowStyle(SheetName, 1, 1, bold)
		}
		_ = f.SetColWidth(SheetName, "A", "A", 32)
		_ = f.SetPanes(SheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}

	return files.WriteAtomicFunc(path, func(w io.Writer) error {
		return f.Write(w)
	})
}

// ReadXLSX loads the results sheet of a workbook written by WriteXLSX
func ReadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetName, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: rows[0], Rows: rows[1:]}
	t.padRows()

	// excelize reports numeric cells in %f form; bring them back to the
	// spelling the CSV uses
	for r, row := range t.Rows {
		for c, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || formatFloat(v) == cell {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			typ, err := f.GetCellType(SheetName, ref)
			if err != nil {
				return nil, fmt.Errorf("failed to read cell %s: %w", ref, err)
			}
			if typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber {
				row[c] = formatFloat(v)
			}
		}
	}
	return t, nil
}

func isTextColumn(col string) bool {
	return col == domain.ColumnFilename || col == domain.ColumnTimestamp || col == domain.ColumnReferenceFilename
}

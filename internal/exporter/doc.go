// Package exporter persists the results table.
//
// The CSV file (data.csv) is the source of truth. It is written with a UTF-8
// BOM for Excel and always replaced atomically. After every change the
// spreadsheet mirror (data.xlsx, sheet "Results") is regenerated from the
// same in-memory Table, so both files carry identical rows.
//
// Columns are Filename, Timestamp, one column per metric in registration
// order, then any column a user added by hand. Hand-added columns are kept
// on every rewrite and left empty for new rows.
//
// Example usage:
//
//	store := exporter.NewStore(m.CSVPath(), m.XLSXPath(), logger)
//	if err := store.EnsureHeader(columns); err != nil {
//	    return err
//	}
//	err := store.Append(columns, row)
package exporter

package exporter

import (
	"slices"

	"ferroci/pkg/contracts/domain"
)

// Table is the results table as stored on disk: a header and string cells
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1
func (t *Table) Index(column string) int {
	return slices.Index(t.Header, column)
}

// Column returns every cell of a column, or nil when it does not exist
func (t *Table) Column(column string) []string {
	i := t.Index(column)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// Reshape reorders the cells of every row to match header. Columns missing
// from the current header come out empty.
func (t *Table) Reshape(header []string) {
	if slices.Equal(t.Header, header) {
		t.padRows()
		return
	}

	from := make([]int, len(header))
	for i, col := range header {
		from[i] = t.Index(col)
	}

	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(header))
		for i, src := range from {
			if src >= 0 && src < len(row) {
				out[i] = row[src]
			}
		}
		rows[r] = out
	}

	t.Header = slices.Clone(header)
	t.Rows = rows
}

func (t *Table) padRows() {
	for r, row := range t.Rows {
		if len(row) < len(t.Header) {
			padded := make([]string, len(t.Header))
			copy(padded, row)
			t.Rows[r] = padded
		}
	}
}

// AppendRow adds a result row, matching cells to the header by name
func (t *Table) AppendRow(row domain.ResultRow) {
	cells := make([]string, len(t.Header))
	for i, col := range t.Header {
		switch col {
		case domain.ColumnFilename:
			cells[i] = row.Filename
		case domain.ColumnTimestamp:
			cells[i] = row.Timestamp.Format(domain.TimestampLayout)
		case domain.ColumnReferenceFilename:
			cells[i] = row.ReferenceFilename
		default:
			if v, ok := row.Metrics.Get(col); ok {
				cells[i] = formatFloat(v)
			} else if v, ok := row.Metadata[col]; ok {
				cells[i] = v
			}
		}
	}
	t.Rows = append(t.Rows, cells)
}

// MergeHeader returns columns followed by every existing column not in
// columns, in their existing order. User-added columns survive rewrites.
func MergeHeader(existing, columns []string) []string {
	merged := slices.Clone(columns)
	for _, col := range existing {
		if col == "" || slices.Contains(merged, col) {
			continue
		}
		merged = append(merged, col)
	}
	return merged
}

// View converts the table for the GUI
func (t *Table) View(dir string) domain.ResultsView {
	view := domain.ResultsView{
		Directory: dir,
		Header:    slices.Clone(t.Header),
		Rows:      make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		view.Rows[i] = slices.Clone(row)
	}
	if view.Header == nil {
		view.Header = []string{}
	}
	return view
}

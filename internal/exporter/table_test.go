package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ferroci/pkg/contracts/domain"
)

func TestMergeHeader(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		columns  []string
		want     []string
	}{
		{
			name:    "new file",
			columns: []string{"Filename", "Timestamp", "Sum_Abs_Difference"},
			want:    []string{"Filename", "Timestamp", "Sum_Abs_Difference"},
		},
		{
			name:     "same header",
			existing: []string{"Filename", "Timestamp", "Sum_Abs_Difference"},
			columns:  []string{"Filename", "Timestamp", "Sum_Abs_Difference"},
			want:     []string{"Filename", "Timestamp", "Sum_Abs_Difference"},
		},
		{
			name:     "user column kept at the end",
			existing: []string{"Filename", "Notes", "Timestamp", "Sum_Abs_Difference"},
			columns:  []string{"Filename", "Timestamp", "Sum_Abs_Difference", "Min_Max_Range"},
			want:     []string{"Filename", "Timestamp", "Sum_Abs_Difference", "Min_Max_Range", "Notes"},
		},
		{
			name:     "blank header cells dropped",
			existing: []string{"Filename", ""},
			columns:  []string{"Filename"},
			want:     []string{"Filename"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeHeader(tt.existing, tt.columns))
		})
	}
}

func TestTableReshape(t *testing.T) {
	table := &Table{
		Header: []string{"Filename", "Notes", "Sum_Abs_Difference"},
		Rows: [][]string{
			{"a.csv", "good", "1.5"},
			{"b.csv"},
		},
	}

	table.Reshape([]string{"Filename", "Sum_Abs_Difference", "Min_Max_Range", "Notes"})

	assert.Equal(t, []string{"Filename", "Sum_Abs_Difference", "Min_Max_Range", "Notes"}, table.Header)
	assert.Equal(t, []string{"a.csv", "1.5", "", "good"}, table.Rows[0])
	assert.Equal(t, []string{"b.csv", "", "", ""}, table.Rows[1])
}

func TestTableAppendRow(t *testing.T) {
	table := &Table{Header: []string{"Filename", "Timestamp", "Sum_Abs_Difference", "Min_Max_Range", "Notes"}}
	ts := time.Date(2025, 9, 12, 15, 54, 51, 0, time.UTC)

	table.AppendRow(domain.ResultRow{
		Filename:  "FERRO_01.csv",
		Timestamp: ts,
		Metrics: domain.MetricValues{
			{Name: "Sum_Abs_Difference", Value: 3},
			{Name: "Min_Max_Range", Value: 1.15e-5},
		},
	})

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{"FERRO_01.csv", "2025-09-12T15:54:51Z", "3", "1.15e-05", ""}, table.Rows[0])
	assert.Equal(t, []string{"FERRO_01.csv"}, table.Column("Filename"))
	assert.Nil(t, table.Column("Missing"))
}

func TestTableView(t *testing.T) {
	var empty Table
	view := empty.View("/data")
	assert.Equal(t, "/data", view.Directory)
	assert.NotNil(t, view.Header)
	assert.Empty(t, view.Rows)

	table := &Table{Header: []string{"Filename"}, Rows: [][]string{{"a.csv"}}}
	view = table.View("/data")
	view.Rows[0][0] = "changed"
	assert.Equal(t, "a.csv", table.Rows[0][0], "view must not alias the table")
}

package domain

import "time"

// Standard columns of the results table. Metric columns follow in registration order.
const (
	ColumnFilename  = "Filename"
	ColumnTimestamp = "Timestamp"

	// ColumnReferenceFilename follows the metric columns when metadata
	// columns are enabled, then one column per preamble key
	ColumnReferenceFilename = "ReferenceFilename"
)

// TimestampLayout is the layout of the Timestamp column
const TimestampLayout = time.RFC3339

// MetricValue is one computed metric for one file
type MetricValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MetricValues keeps metric results in registration order
type MetricValues []MetricValue

// Get returns the value for a metric name
func (v MetricValues) Get(name string) (float64, bool) {
	for _, mv := range v {
		if mv.Name == name {
			return mv.Value, true
		}
	}
	return 0, false
}

// Names returns the metric names in order
func (v MetricValues) Names() []string {
	names := make([]string, len(v))
	for i, mv := range v {
		names[i] = mv.Name
	}
	return names
}

// ResultRow is one persisted record of a processed (non-reference) file
type ResultRow struct {
	Filename  string       `json:"filename"`
	Path      string       `json:"path"`
	Timestamp time.Time    `json:"timestamp"`
	Metrics   MetricValues `json:"metrics"`

	ReferenceFilename string            `json:"reference_filename,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// MetricInfo describes a registered metric for display
type MetricInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ResultsView is the results table as shown by the GUI
type ResultsView struct {
	Directory string     `json:"directory"`
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
}

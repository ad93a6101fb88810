package domain

import (
	"path/filepath"
	"time"
)

// Point is one potential/current pair from the data section of an instrument export
type Point struct {
	Potential float64 `json:"potential"` // Volts
	Current   float64 `json:"current"`   // Amperes
}

// SampleTable is the parsed content of one cyclic-voltammetry CSV file.
// It is never modified after parsing; accessors hand out copies.
type SampleTable struct {
	SourcePath string            `json:"source_path"`
	ParsedAt   time.Time         `json:"parsed_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	points     []Point
}

// NewSampleTable builds a table from parsed points. The slice is copied.
func NewSampleTable(source string, points []Point, metadata map[string]string) *SampleTable {
	cp := make([]Point, len(points))
	copy(cp, points)
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &SampleTable{
		SourcePath: source,
		ParsedAt:   time.Now().UTC(),
		Metadata:   metadata,
		points:     cp,
	}
}

// Len returns the number of data points
func (t *SampleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.points)
}

// Points returns a copy of the data points in file order
func (t *SampleTable) Points() []Point {
	cp := make([]Point, len(t.points))
	copy(cp, t.points)
	return cp
}

// At returns the i-th point
func (t *SampleTable) At(i int) Point {
	return t.points[i]
}

// Potentials returns the potential column
func (t *SampleTable) Potentials() []float64 {
	out := make([]float64, len(t.points))
	for i, p := range t.points {
		out[i] = p.Potential
	}
	return out
}

// Currents returns the current column
func (t *SampleTable) Currents() []float64 {
	out := make([]float64, len(t.points))
	for i, p := range t.points {
		out[i] = p.Current
	}
	return out
}

// Filename returns the base name of the source file
func (t *SampleTable) Filename() string {
	return filepath.Base(t.SourcePath)
}

// ReferenceRecord identifies the reference curve of a working directory.
// It is persisted next to the outputs so a relaunch finds the same reference.
type ReferenceRecord struct {
	Filename string    `json:"filename" yaml:"filename"`
	Path     string    `json:"path" yaml:"path"`
	SetAt    time.Time `json:"set_at" yaml:"set_at"`
	Points   int       `json:"points" yaml:"points"`

	// Metadata is the preamble of the reference file
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

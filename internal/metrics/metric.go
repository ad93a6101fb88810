package metrics

import (
	"fmt"

	"ferroci/pkg/contracts/domain"
)

// Metric computes one scalar from a sample and the reference curve
type Metric interface {
	// Name is the unique identifier and the output column header
	Name() string
	// Description is shown in the GUI next to the column
	Description() string
	// Compute must be pure: no I/O, no shared state
	Compute(sample, reference *domain.SampleTable) (float64, error)
}

// ComputeFunc is the calculation behind a FuncMetric
type ComputeFunc func(sample, reference *domain.SampleTable) (float64, error)

// FuncMetric adapts a plain function to the Metric interface
type FuncMetric struct {
	name        string
	description string
	fn          ComputeFunc
}

// New creates a metric from a function
func New(name, description string, fn ComputeFunc) *FuncMetric {
	return &FuncMetric{name: name, description: description, fn: fn}
}

func (m *FuncMetric) Name() string        { return m.name }
func (m *FuncMetric) Description() string { return m.description }

func (m *FuncMetric) Compute(sample, reference *domain.SampleTable) (float64, error) {
	if m.fn == nil {
		return 0, fmt.Errorf("metric %s has no compute function", m.name)
	}
	return m.fn(sample, reference)
}

// Info returns the display information of a metric
func Info(m Metric) domain.MetricInfo {
	return domain.MetricInfo{Name: m.Name(), Description: m.Description()}
}

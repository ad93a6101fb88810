package metrics

import (
	"fmt"
	"iter"
	"math"
	"sync"

	apierrors "ferroci/internal/errors"
	"ferroci/pkg/contracts/domain"
)

// Registry manages registered metrics
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string // Maintains registration order
}

// NewRegistry creates an empty metric registry
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]Metric),
		order:   make([]string, 0),
	}
}

// Register adds a metric. A name that is already taken yields
// *apierrors.DuplicateMetricError.
func (r *Registry) Register(m Metric) error {
	if m == nil {
		return fmt.Errorf("cannot register nil metric")
	}

	name := m.Name()
	if name == "" {
		return fmt.Errorf("metric name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.metrics[name]; exists {
		return &apierrors.DuplicateMetricError{Name: name}
	}

	r.metrics[name] = m
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate is a bug
func (r *Registry) MustRegister(m Metric) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Get retrieves a metric by name
func (r *Registry) Get(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.metrics[name]
	return m, ok
}

// Has checks if a metric is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// All yields the registered metrics in registration order. Each iteration
// works on a snapshot taken when it starts, so the sequence can be ranged
// over any number of times and stays finite while others register.
func (r *Registry) All() iter.Seq[Metric] {
	return func(yield func(Metric) bool) {
		for _, m := range r.List() {
			if !yield(m) {
				return
			}
		}
	}
}

// List returns all registered metrics in registration order
func (r *Registry) List() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metrics := make([]Metric, 0, len(r.order))
	for _, name := range r.order {
		metrics = append(metrics, r.metrics[name])
	}
	return metrics
}

// Names returns the registered metric names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Infos returns name and description of every metric, in order
func (r *Registry) Infos() []domain.MetricInfo {
	var infos []domain.MetricInfo
	for m := range r.All() {
		infos = append(infos, Info(m))
	}
	return infos
}

// Count returns the number of registered metrics
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Evaluate computes every metric for sample against reference. The first
// failure stops evaluation and is returned as *apierrors.MetricComputeError
// naming the metric; no partial result is returned.
func (r *Registry) Evaluate(sample, reference *domain.SampleTable) (domain.MetricValues, error) {
	values := make(domain.MetricValues, 0, r.Count())

	for m := range r.All() {
		v, err := m.Compute(sample, reference)
		if err != nil {
			return nil, &apierrors.MetricComputeError{Metric: m.Name(), Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &apierrors.MetricComputeError{Metric: m.Name(), Err: fmt.Errorf("non-finite result %v", v)}
		}
		values = append(values, domain.MetricValue{Name: m.Name(), Value: v})
	}

	return values, nil
}

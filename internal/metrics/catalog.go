package metrics

import (
	"fmt"
	"sort"

	"ferroci/internal/config"
)

// builtins maps configurable metric names to constructors
var builtins = map[string]func(Alignment) Metric{
	"Sum_Abs_Difference": func(a Alignment) Metric { return NewSumAbsDifference(a) },
	"Min_Max_Range":      func(a Alignment) Metric { return NewMinMaxRange(a) },
	"Peak_Current":       func(Alignment) Metric { return NewPeakCurrent() },
}

// BuiltinNames lists the metric names accepted by NewRegistryFromNames
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin creates a built-in metric by name
func Builtin(name string, a Alignment) (Metric, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q (available: %v)", name, BuiltinNames())
	}
	return ctor(a), nil
}

// NewRegistryFromNames builds a registry from configured metric names in the
// given order. Listing a name twice returns the DuplicateMetricError from Register.
func NewRegistryFromNames(names []string, a Alignment) (*Registry, error) {
	reg := NewRegistry()
	for _, name := range names {
		m, err := Builtin(name, a)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// RegistryFromConfig builds the registry named by the analysis configuration
func RegistryFromConfig(cfg config.AnalysisConfig) (*Registry, error) {
	align, err := ParseAlignment(cfg.Alignment)
	if err != nil {
		return nil, err
	}
	return NewRegistryFromNames(cfg.Metrics, align)
}

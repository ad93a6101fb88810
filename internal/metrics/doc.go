// Package metrics defines the comparison metrics computed for every dropped
// voltammogram and the registry that evaluates them.
//
// A Metric is a named, described, pure function of a sample table and the
// reference table. Metrics never perform I/O and never keep state between
// calls, so the same inputs always give the same value.
//
// The Registry keeps metrics in registration order. That order is the column
// order of data.csv and data.xlsx: whatever Evaluate returns is what gets
// written, so adding a metric to the registry is enough to add a column.
//
//	reg := metrics.NewRegistry()
//	reg.MustRegister(metrics.NewSumAbsDifference(metrics.AlignStrict))
//	reg.MustRegister(metrics.NewMinMaxRange(metrics.AlignStrict))
//	values, err := reg.Evaluate(sample, reference)
//
// # Alignment
//
// Difference-based metrics compare sample[i] with reference[i]. Alignment
// decides what happens when the tables differ in length: AlignStrict rejects
// the pair, AlignTruncate compares the common prefix, and AlignInterpolate
// resamples the reference current at each sample potential.
package metrics

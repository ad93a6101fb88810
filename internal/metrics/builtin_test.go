package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumAbsDifference(t *testing.T) {
	tests := []struct {
		name      string
		sample    []float64
		reference []float64
		want      float64
	}{
		{name: "rising vs flat", sample: []float64{1, 2, 3}, reference: []float64{1, 1, 1}, want: 3},
		{name: "identical", sample: []float64{0.5, -0.25, 4}, reference: []float64{0.5, -0.25, 4}, want: 0},
		{name: "negative differences count positively", sample: []float64{0, 0}, reference: []float64{1, 2}, want: 3},
		{name: "single point", sample: []float64{2e-6}, reference: []float64{5e-6}, want: 3e-6},
	}

	m := NewSumAbsDifference(AlignStrict)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Compute(table("s", tt.sample...), table("r", tt.reference...))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestMinMaxRange(t *testing.T) {
	tests := []struct {
		name      string
		sample    []float64
		reference []float64
		want      float64
	}{
		{name: "rising vs flat", sample: []float64{1, 2, 3}, reference: []float64{1, 1, 1}, want: 2},
		{name: "identical", sample: []float64{3, 1, 2}, reference: []float64{3, 1, 2}, want: 0},
		{name: "constant offset", sample: []float64{2, 3, 4}, reference: []float64{1, 2, 3}, want: 0},
		{name: "mixed sign", sample: []float64{-1, 1}, reference: []float64{0, 0}, want: 2},
	}

	m := NewMinMaxRange(AlignStrict)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Compute(table("s", tt.sample...), table("r", tt.reference...))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestDifferenceMetrics_LengthMismatch(t *testing.T) {
	sample := table("s", 1, 2, 3, 4)
	reference := table("r", 1, 1, 1)

	for _, m := range []Metric{NewSumAbsDifference(AlignStrict), NewMinMaxRange(AlignStrict)} {
		t.Run(m.Name(), func(t *testing.T) {
			_, err := m.Compute(sample, reference)
			assert.ErrorIs(t, err, ErrLengthMismatch)
		})
	}

	got, err := NewSumAbsDifference(AlignTruncate).Compute(sample, reference)
	require.NoError(t, err)
	assert.InDelta(t, 3, got, 1e-12, "truncate compares the first three points")
}

func TestDifferenceMetrics_Empty(t *testing.T) {
	_, err := NewMinMaxRange(AlignTruncate).Compute(table("s"), table("r", 1))
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = NewSumAbsDifference(AlignStrict).Compute(table("s", 1), nil)
	assert.ErrorIs(t, err, ErrNoReference)
}

func TestPeakCurrent(t *testing.T) {
	m := NewPeakCurrent()

	got, err := m.Compute(table("s", -3, 7.5, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, 7.5, got)

	_, err = m.Compute(table("s"), nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestMetricsArePure(t *testing.T) {
	sample := table("s", 1, 2, 3)
	reference := table("r", 1, 1, 1)

	m := NewSumAbsDifference(AlignInterpolate)
	first, err := m.Compute(sample, reference)
	require.NoError(t, err)
	second, err := m.Compute(sample, reference)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []float64{1, 2, 3}, sample.Currents(), "inputs are not modified")
}

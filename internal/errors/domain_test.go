package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ParseError
		wantMsg string
	}{
		{
			name:    "with line",
			err:     NewParseError("a.csv", 27, "expected 2 fields, got 3", nil),
			wantMsg: "parse a.csv: line 27: expected 2 fields, got 3",
		},
		{
			name:    "without line",
			err:     NewParseError("a.csv", 0, "no data rows", nil),
			wantMsg: "parse a.csv: no data rows",
		},
		{
			name:    "with cause",
			err:     NewParseError("a.csv", 3, "invalid current", fmt.Errorf("bad float")),
			wantMsg: "parse a.csv: line 3: invalid current: bad float",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			var pe *ParseError
			assert.ErrorAs(t, fmt.Errorf("wrapped: %w", tt.err), &pe)
		})
	}
}

func TestMetricComputeError(t *testing.T) {
	cause := errors.New("length mismatch")
	err := &MetricComputeError{Metric: "Sum_Abs_Difference", Err: cause}

	assert.Equal(t, "metric Sum_Abs_Difference: length mismatch", err.Error())
	assert.ErrorIs(t, err, cause)
	var me *MetricComputeError
	assert.ErrorAs(t, fmt.Errorf("evaluate: %w", err), &me)
	assert.False(t, IsPersistenceError(err))
}

func TestPersistenceError(t *testing.T) {
	err := NewPersistenceError("write", "/tmp/data.csv", fs.ErrPermission)

	assert.Contains(t, err.Error(), "write /tmp/data.csv")
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.True(t, IsPersistenceError(err))

	var pe *PersistenceError
	require.True(t, errors.As(fmt.Errorf("append: %w", err), &pe))
	assert.Equal(t, "/tmp/data.csv", pe.Path)
}

func TestDuplicateMetricError(t *testing.T) {
	err := &DuplicateMetricError{Name: "Min_Max_Range"}

	assert.Equal(t, `metric "Min_Max_Range" already registered`, err.Error())
	assert.True(t, IsDuplicateMetric(err))
	assert.False(t, IsDuplicateMetric(errors.New("other")))
}

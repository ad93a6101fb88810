package metrics

import (
	"math"

	"ferroci/pkg/contracts/domain"
)

// SumAbsDifference approximates the area between the sample and reference
// curves as the sum of absolute current differences.
type SumAbsDifference struct {
	Alignment Alignment
}

// NewSumAbsDifference creates the Sum_Abs_Difference metric
func NewSumAbsDifference(a Alignment) *SumAbsDifference {
	return &SumAbsDifference{Alignment: a}
}

func (m *SumAbsDifference) Name() string { return "Sum_Abs_Difference" }

func (m *SumAbsDifference) Description() string {
	return "Sum of absolute differences between test and reference curves"
}

func (m *SumAbsDifference) Compute(sample, reference *domain.SampleTable) (float64, error) {
	diff, err := m.Alignment.Differences(sample, reference)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, d := range diff {
		sum += math.Abs(d)
	}
	return sum, nil
}

// MinMaxRange is the spread of the current difference: max(diff) - min(diff)
type MinMaxRange struct {
	Alignment Alignment
}

// NewMinMaxRange creates the Min_Max_Range metric
func NewMinMaxRange(a Alignment) *MinMaxRange {
	return &MinMaxRange{Alignment: a}
}

func (m *MinMaxRange) Name() string { return "Min_Max_Range" }

func (m *MinMaxRange) Description() string {
	return "Range (max - min) of the current difference between test and reference"
}

func (m *MinMaxRange) Compute(sample, reference *domain.SampleTable) (float64, error) {
	diff, err := m.Alignment.Differences(sample, reference)
	if err != nil {
		return 0, err
	}
	lo, hi := diff[0], diff[0]
	for _, d := range diff[1:] {
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return hi - lo, nil
}

// PeakCurrent is the largest current of the sample. It ignores the reference.
type PeakCurrent struct{}

// NewPeakCurrent creates the Peak_Current metric
func NewPeakCurrent() *PeakCurrent {
	return &PeakCurrent{}
}

func (m *PeakCurrent) Name() string        { return "Peak_Current" }
func (m *PeakCurrent) Description() string { return "Maximum current of the test curve" }

func (m *PeakCurrent) Compute(sample, _ *domain.SampleTable) (float64, error) {
	if sample.Len() == 0 {
		return 0, ErrEmptyTable
	}
	peak := sample.At(0).Current
	for i := 1; i < sample.Len(); i++ {
		peak = math.Max(peak, sample.At(i).Current)
	}
	return peak, nil
}

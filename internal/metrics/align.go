package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"ferroci/pkg/contracts/domain"
)

// Alignment selects how sample rows are paired with reference rows
type Alignment string

const (
	AlignStrict      Alignment = "strict"
	AlignTruncate    Alignment = "truncate"
	AlignInterpolate Alignment = "interpolate"
)

var (
	// ErrLengthMismatch is returned by AlignStrict for tables of different length
	ErrLengthMismatch = errors.New("sample and reference have different lengths")
	// ErrEmptyTable is returned when there is nothing to compare
	ErrEmptyTable = errors.New("no aligned points to compare")
	// ErrNoReference is returned when a metric that needs a reference gets none
	ErrNoReference = errors.New("reference table is missing")
)

// ParseAlignment converts a config value to an Alignment
func ParseAlignment(s string) (Alignment, error) {
	switch a := Alignment(strings.ToLower(strings.TrimSpace(s))); a {
	case AlignStrict, AlignTruncate, AlignInterpolate:
		return a, nil
	case "":
		return AlignStrict, nil
	default:
		return "", fmt.Errorf("unknown alignment %q", s)
	}
}

// Differences returns sample.current - reference.current over the aligned pairs
func (a Alignment) Differences(sample, reference *domain.SampleTable) ([]float64, error) {
	if reference == nil {
		return nil, ErrNoReference
	}
	n, m := sample.Len(), reference.Len()
	if n == 0 || m == 0 {
		return nil, ErrEmptyTable
	}

	switch a {
	case AlignStrict, "":
		if n != m {
			return nil, fmt.Errorf("%w: %d vs %d points", ErrLengthMismatch, n, m)
		}
		return indexDiff(sample, reference, n), nil
	case AlignTruncate:
		return indexDiff(sample, reference, min(n, m)), nil
	case AlignInterpolate:
		return interpolatedDiff(sample, reference), nil
	default:
		return nil, fmt.Errorf("unknown alignment %q", string(a))
	}
}

func indexDiff(sample, reference *domain.SampleTable, n int) []float64 {
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = sample.At(i).Current - reference.At(i).Current
	}
	return diff
}

// interpolatedDiff evaluates the reference current at every sample potential
// by linear interpolation over the reference sorted by potential. Potentials
// outside the reference range take the nearest end value.
func interpolatedDiff(sample, reference *domain.SampleTable) []float64 {
	ref := reference.Points()
	sort.SliceStable(ref, func(i, j int) bool { return ref[i].Potential < ref[j].Potential })

	diff := make([]float64, sample.Len())
	for i := range diff {
		p := sample.At(i)
		diff[i] = p.Current - interpolate(ref, p.Potential)
	}
	return diff
}

func interpolate(ref []domain.Point, x float64) float64 {
	last := len(ref) - 1
	if x <= ref[0].Potential {
		return ref[0].Current
	}
	if x >= ref[last].Potential {
		return ref[last].Current
	}

	j := sort.Search(len(ref), func(k int) bool { return ref[k].Potential >= x })
	hi, lo := ref[j], ref[j-1]
	if hi.Potential == x || hi.Potential == lo.Potential {
		return hi.Current
	}
	t := (x - lo.Potential) / (hi.Potential - lo.Potential)
	return lo.Current + t*(hi.Current-lo.Current)
}

// Package testutil provides shared test infrastructure for the sampler
// packages: float assertions and deterministic random sources.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// SequenceSource returns a random source that cycles through values.
// Panics if values is empty.
func SequenceSource(values ...float64) func(u []float64) {
	if len(values) == 0 {
		panic("SequenceSource: no values")
	}
	next := 0
	return func(u []float64) {
		for i := range u {
			u[i] = values[next%len(values)]
			next++
		}
	}
}

// RecordingSource wraps src and appends every draw to *log, so the exact
// stream can be replayed later with SequenceSource.
func RecordingSource(src func(u []float64), log *[]float64) func(u []float64) {
	return func(u []float64) {
		src(u)
		*log = append(*log, u...)
	}
}

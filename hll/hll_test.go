package hll_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	axiom "github.com/axiomhq/hyperloglog"
	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/hll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSketch(t *testing.T, precision int) *hll.Sketch {
	s, err := hll.New(precision)
	require.NoError(t, err)
	return s
}

func TestPrecisionRange(t *testing.T) {
	_, err := hll.New(3)
	assert.Error(t, err)
	_, err = hll.New(19)
	assert.Error(t, err)
	s, err := hll.New(14)
	require.NoError(t, err)
	assert.Equal(t, 14, s.Precision())
}

func TestEmpty(t *testing.T) {
	s := newSketch(t, 14)
	assert.Equal(t, uint64(0), s.Estimate())
}

func TestNaNRejected(t *testing.T) {
	s := newSketch(t, 14)
	err := s.AddFloat64(math.NaN())
	assert.ErrorIs(t, err, sketch.ErrInvalidObservation)
	assert.Equal(t, uint64(0), s.Estimate())
}

func TestNegativeZero(t *testing.T) {
	s := newSketch(t, 14)
	require.NoError(t, s.AddFloat64(0.0))
	require.NoError(t, s.AddFloat64(math.Copysign(0, -1)))
	assert.Equal(t, uint64(1), s.Estimate())
}

// The estimate must stay within the documented relative error,
// 1.04/sqrt(2^precision), across the small, medium, and large
// cardinality regimes.  The inputs are deterministic, so a three-sigma
// tolerance makes the test stable.
func TestEstimateRegimes(t *testing.T) {
	for _, n := range []int{50, 10_000, 2_000_000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			s := newSketch(t, 14)
			var buf [8]byte
			for i := 0; i < n; i++ {
				binary.LittleEndian.PutUint64(buf[:], uint64(i))
				s.Add(buf[:])
			}
			got := float64(s.Estimate())
			relErr := 1.04 / math.Sqrt(1<<14)
			assert.InDelta(t, float64(n), got, 3*relErr*float64(n)+1)
		})
	}
}

// Duplicates never move the estimate: register updates are max-only.
func TestDuplicatesAreIdempotent(t *testing.T) {
	s := newSketch(t, 12)
	for i := 0; i < 1000; i++ {
		require.NoError(t, s.AddFloat64(float64(i%10)))
	}
	assert.InDelta(t, 10, float64(s.Estimate()), 1)
}

// Merging partials built from any partition of the stream yields
// registers identical to a single-stream sketch, so the estimates are
// exactly equal, in any merge order.
func TestMergeExactness(t *testing.T) {
	whole := newSketch(t, 14)
	parts := make([]*hll.Sketch, 4)
	for i := range parts {
		parts[i] = newSketch(t, 14)
	}
	for i := 0; i < 100_000; i++ {
		v := float64(i)
		require.NoError(t, whole.AddFloat64(v))
		require.NoError(t, parts[i%4].AddFloat64(v))
	}
	// Combine right-to-left into parts[3], then left-to-right into
	// parts[0]; both must match the single-stream estimate.
	rtl := newSketch(t, 14)
	for i := 3; i >= 0; i-- {
		require.NoError(t, rtl.Merge(parts[i]))
	}
	ltr := newSketch(t, 14)
	for i := 0; i < 4; i++ {
		require.NoError(t, ltr.Merge(parts[i]))
	}
	assert.Equal(t, whole.Estimate(), rtl.Estimate())
	assert.Equal(t, whole.Estimate(), ltr.Estimate())
}

func TestMergePrecisionMismatch(t *testing.T) {
	a := newSketch(t, 14)
	b := newSketch(t, 12)
	assert.ErrorIs(t, a.Merge(b), sketch.ErrIncompatibleState)
}

func TestSerializeRoundTrip(t *testing.T) {
	// Small cardinality exercises the sparse layout, large the dense.
	for _, n := range []int{0, 3, 200, 50_000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			s := newSketch(t, 14)
			for i := 0; i < n; i++ {
				require.NoError(t, s.AddFloat64(float64(i)*1.5))
			}
			b := s.AppendTo(nil)
			got, err := hll.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, s.Estimate(), got.Estimate())
			assert.Equal(t, b, got.AppendTo(nil))
		})
	}
}

func TestDecodeBadFormat(t *testing.T) {
	s := newSketch(t, 10)
	b := s.AppendTo(nil)

	_, err := hll.Decode(nil)
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)

	bad := append([]byte{}, b...)
	bad[1] = 99 // future version
	_, err = hll.Decode(bad)
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)

	_, err = hll.Decode(b[:3])
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)
}

// Cross-check against an independent HyperLogLog implementation: two
// estimators with ~0.8% standard error each must agree on a large
// stream well within their combined tolerance.
func TestAgainstIndependentEstimator(t *testing.T) {
	ours := newSketch(t, 14)
	theirs := axiom.New14()
	var buf [8]byte
	const n = 500_000
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[:], uint64(i)*2654435761)
		ours.Add(buf[:])
		theirs.Insert(buf[:])
	}
	a := float64(ours.Estimate())
	b := float64(theirs.Estimate())
	assert.InDelta(t, a, b, 0.06*float64(n))
	assert.InDelta(t, float64(n), a, 0.03*float64(n))
}

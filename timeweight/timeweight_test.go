package timeweight_test

import (
	"math"
	"testing"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/timeweight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const second = int64(1e9)

func newSummary(t *testing.T, m timeweight.Method) *timeweight.Summary {
	s, err := timeweight.New(m)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	_, err := timeweight.New(timeweight.Method(7))
	assert.Error(t, err)
}

// Under LOCF the final observation contributes no duration:
// (t=0,v=10), (t=10,v=20) average to 10.
func TestLOCFRule(t *testing.T) {
	s := newSummary(t, timeweight.MethodLOCF)
	require.NoError(t, s.Add(0, 10))
	require.NoError(t, s.Add(10*second, 20))
	avg, err := s.Average()
	require.NoError(t, err)
	assert.Equal(t, 10.0, avg)
}

func TestLinearRule(t *testing.T) {
	s := newSummary(t, timeweight.MethodLinear)
	require.NoError(t, s.Add(0, 10))
	require.NoError(t, s.Add(10*second, 20))
	avg, err := s.Average()
	require.NoError(t, err)
	assert.Equal(t, 15.0, avg)
}

func TestStepSeries(t *testing.T) {
	// 10 for 2s, then 40 for 1s, last point ignored under LOCF.
	s := newSummary(t, timeweight.MethodLOCF)
	require.NoError(t, s.Add(0, 10))
	require.NoError(t, s.Add(2*second, 40))
	require.NoError(t, s.Add(3*second, 0))
	avg, err := s.Average()
	require.NoError(t, err)
	assert.Equal(t, (10.0*2+40.0*1)/3, avg)
}

func TestInvalidObservations(t *testing.T) {
	s := newSummary(t, timeweight.MethodLOCF)
	assert.ErrorIs(t, s.Add(0, math.NaN()), sketch.ErrInvalidObservation)
	require.NoError(t, s.Add(second, 1))
	assert.ErrorIs(t, s.Add(second, 2), sketch.ErrInvalidObservation)
	assert.ErrorIs(t, s.Add(0, 2), sketch.ErrInvalidObservation)
	assert.Equal(t, uint64(1), s.Count())
}

func TestEmptyAndSingle(t *testing.T) {
	s := newSummary(t, timeweight.MethodLOCF)
	_, err := s.Average()
	assert.ErrorIs(t, err, sketch.ErrEmptyState)

	require.NoError(t, s.Add(0, 42))
	avg, err := s.Average()
	require.NoError(t, err)
	assert.Equal(t, 42.0, avg)
}

func TestCombineBridgesGap(t *testing.T) {
	// LOCF: a holds 10 over [0,2s]; gap [2s,4s] carries 30 forward;
	// b holds 50 over [4s,5s].
	a := newSummary(t, timeweight.MethodLOCF)
	require.NoError(t, a.Add(0, 10))
	require.NoError(t, a.Add(2*second, 30))
	b := newSummary(t, timeweight.MethodLOCF)
	require.NoError(t, b.Add(4*second, 50))
	require.NoError(t, b.Add(5*second, 60))

	require.NoError(t, a.Combine(b))
	avg, err := a.Average()
	require.NoError(t, err)
	assert.Equal(t, (10.0*2+30.0*2+50.0*1)/5, avg)
}

func TestCombineMatchesSingleStream(t *testing.T) {
	for _, method := range []timeweight.Method{timeweight.MethodLOCF, timeweight.MethodLinear} {
		t.Run(method.String(), func(t *testing.T) {
			pts := []sketch.Point{
				{Ts: 0, Val: 1}, {Ts: second, Val: 5}, {Ts: 3 * second, Val: 2},
				{Ts: 7 * second, Val: 8}, {Ts: 8 * second, Val: 3}, {Ts: 20 * second, Val: 4},
			}
			whole := newSummary(t, method)
			for _, p := range pts {
				require.NoError(t, whole.Add(p.Ts, p.Val))
			}
			// Partition into contiguous runs and combine out of order.
			s1 := newSummary(t, method)
			s2 := newSummary(t, method)
			s3 := newSummary(t, method)
			for i, p := range pts {
				part := []*timeweight.Summary{s1, s1, s2, s2, s3, s3}[i]
				require.NoError(t, part.Add(p.Ts, p.Val))
			}
			merged := newSummary(t, method)
			require.NoError(t, merged.Combine(s2))
			require.NoError(t, merged.Combine(s3))
			require.NoError(t, merged.Combine(s1))

			want, err := whole.Average()
			require.NoError(t, err)
			got, err := merged.Average()
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-12)
		})
	}
}

func TestCombineMethodMismatch(t *testing.T) {
	a := newSummary(t, timeweight.MethodLOCF)
	b := newSummary(t, timeweight.MethodLinear)
	assert.ErrorIs(t, a.Combine(b), sketch.ErrIncompatibleState)
}

func TestCombineOverlapping(t *testing.T) {
	a := newSummary(t, timeweight.MethodLOCF)
	require.NoError(t, a.Add(0, 1))
	require.NoError(t, a.Add(5*second, 2))
	b := newSummary(t, timeweight.MethodLOCF)
	require.NoError(t, b.Add(3*second, 9))
	require.NoError(t, b.Add(8*second, 9))
	assert.ErrorIs(t, a.Combine(b), sketch.ErrOverlappingRanges)
	assert.Equal(t, uint64(2), a.Count())
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, method := range []timeweight.Method{timeweight.MethodLOCF, timeweight.MethodLinear} {
		s := newSummary(t, method)
		require.NoError(t, s.Add(1_700_000_000*second, 1.5))
		require.NoError(t, s.Add(1_700_000_060*second, 2.5))
		require.NoError(t, s.Add(1_700_000_120*second, 0.5))

		b := s.AppendTo(nil)
		got, err := timeweight.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, s.Method(), got.Method())
		assert.Equal(t, s.Count(), got.Count())
		want, err := s.Average()
		require.NoError(t, err)
		have, err := got.Average()
		require.NoError(t, err)
		assert.Equal(t, want, have)
		assert.Equal(t, b, got.AppendTo(nil))
	}
}

func TestDecodeErrors(t *testing.T) {
	s := newSummary(t, timeweight.MethodLOCF)
	require.NoError(t, s.Add(0, 1))
	b := s.AppendTo(nil)

	_, err := timeweight.Decode(b[:2])
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)

	bad := append([]byte{}, b...)
	bad[2] = 99 // unknown method
	_, err = timeweight.Decode(bad)
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)
}

package tdigest_test

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/pkg/vmath"
	"github.com/lakeland-data/sketch/tdigest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDigest(t *testing.T, compression float64) *tdigest.Sketch {
	s, err := tdigest.New(compression)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	_, err := tdigest.New(1)
	assert.Error(t, err)
	_, err = tdigest.New(math.NaN())
	assert.Error(t, err)
	s, err := tdigest.New(100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Compression())
}

func TestInvalidObservations(t *testing.T) {
	s := newDigest(t, 100)
	assert.ErrorIs(t, s.Add(math.NaN()), sketch.ErrInvalidObservation)
	assert.ErrorIs(t, s.Add(math.Inf(1)), sketch.ErrInvalidObservation)
	assert.ErrorIs(t, s.AddWeighted(1, 0), sketch.ErrInvalidObservation)
	assert.ErrorIs(t, s.AddWeighted(1, -2), sketch.ErrInvalidObservation)
	// Failed accumulates leave the state untouched.
	assert.Equal(t, 0.0, s.Count())
}

func TestEmpty(t *testing.T) {
	s := newDigest(t, 100)
	_, err := s.Quantile(0.5)
	assert.ErrorIs(t, err, sketch.ErrEmptyState)
	_, err = s.Mean()
	assert.ErrorIs(t, err, sketch.ErrEmptyState)
}

func TestQuantileBounds(t *testing.T) {
	s := newDigest(t, 100)
	require.NoError(t, s.Add(1))
	_, err := s.Quantile(-0.1)
	assert.ErrorIs(t, err, sketch.ErrInvalidObservation)
	_, err = s.Quantile(1.1)
	assert.ErrorIs(t, err, sketch.ErrInvalidObservation)
}

func TestSinglesAndExtremes(t *testing.T) {
	s := newDigest(t, 100)
	for _, v := range []float64{5, 1, 9, 3, 7} {
		require.NoError(t, s.Add(v))
	}
	q0, err := s.Quantile(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, q0)
	q1, err := s.Quantile(1)
	require.NoError(t, err)
	assert.Equal(t, 9.0, q1)
	assert.Equal(t, 1.0, s.Min())
	assert.Equal(t, 9.0, s.Max())
	assert.Equal(t, 5.0, s.Count())
}

func uniformDataset(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = r.Float64() * 100_000
	}
	return vals
}

func TestQuantileAccuracy(t *testing.T) {
	vals := uniformDataset(200_000, 1)
	s := newDigest(t, 200)
	for _, v := range vals {
		require.NoError(t, s.Add(v))
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	for _, q := range []float64{0.01, 0.1, 0.5, 0.9, 0.99, 0.999} {
		got, err := s.Quantile(q)
		require.NoError(t, err)
		want := vmath.Quantile(sorted, q)
		// Rank error, not value error: locate the estimate's true rank
		// and require it within 1% of q.
		rank := float64(sort.SearchFloat64s(sorted, got)) / float64(len(sorted))
		assert.InDelta(t, q, rank, 0.01, "q=%v got=%v want=%v", q, got, want)
	}
}

func TestMean(t *testing.T) {
	s := newDigest(t, 100)
	vals := uniformDataset(50_000, 2)
	for _, v := range vals {
		require.NoError(t, s.Add(v))
	}
	mean, err := s.Mean()
	require.NoError(t, err)
	assert.InEpsilon(t, vmath.Mean(vals), mean, 1e-9)
}

// Combining partials in any grouping finalizes within the same rank
// error bound as accumulating the whole dataset directly.
func TestMergeAssociativity(t *testing.T) {
	vals := uniformDataset(90_000, 3)
	parts := make([]*tdigest.Sketch, 3)
	for i := range parts {
		parts[i] = newDigest(t, 200)
	}
	for i, v := range vals {
		require.NoError(t, parts[i%3].Add(v))
	}

	build := func(order []int) *tdigest.Sketch {
		out := newDigest(t, 200)
		for _, i := range order {
			require.NoError(t, out.Merge(parts[i]))
		}
		return out
	}
	ab_c := build([]int{0, 1, 2})
	c_ba := build([]int{2, 1, 0})

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	for _, q := range []float64{0.1, 0.5, 0.9, 0.99} {
		for _, s := range []*tdigest.Sketch{ab_c, c_ba} {
			assert.Equal(t, 90_000.0, s.Count())
			got, err := s.Quantile(q)
			require.NoError(t, err)
			rank := float64(sort.SearchFloat64s(sorted, got)) / float64(len(sorted))
			assert.InDelta(t, q, rank, 0.015)
		}
	}
}

func TestMergeCompressionMismatch(t *testing.T) {
	a := newDigest(t, 100)
	b := newDigest(t, 200)
	assert.ErrorIs(t, a.Merge(b), sketch.ErrIncompatibleState)
}

func TestSerializeRoundTrip(t *testing.T) {
	s := newDigest(t, 100)
	for _, v := range uniformDataset(10_000, 4) {
		require.NoError(t, s.Add(v))
	}
	b := s.AppendTo(nil)
	got, err := tdigest.Decode(b)
	require.NoError(t, err)

	assert.Equal(t, s.Count(), got.Count())
	assert.Equal(t, s.Min(), got.Min())
	assert.Equal(t, s.Max(), got.Max())
	for _, q := range []float64{0, 0.25, 0.5, 0.75, 0.99, 1} {
		want, err := s.Quantile(q)
		require.NoError(t, err)
		have, err := got.Quantile(q)
		require.NoError(t, err)
		assert.Equal(t, want, have, "q=%v", q)
	}
	// Canonical: re-encoding is byte-identical.
	assert.Equal(t, b, got.AppendTo(nil))
}

func TestSerializeEmpty(t *testing.T) {
	s := newDigest(t, 50)
	got, err := tdigest.Decode(s.AppendTo(nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Count())
}

func TestDecodeErrors(t *testing.T) {
	s := newDigest(t, 100)
	require.NoError(t, s.Add(1))
	b := s.AppendTo(nil)

	_, err := tdigest.Decode(nil)
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)

	bad := append([]byte{}, b...)
	bad[0] = byte(sketch.KindHLL)
	_, err = tdigest.Decode(bad)
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)

	_, err = tdigest.Decode(b[:len(b)-1])
	assert.ErrorIs(t, err, sketch.ErrUnsupportedFormat)
}

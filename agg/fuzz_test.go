package agg_test

import (
	"testing"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/agg"
	"github.com/lakeland-data/sketch/timeweight"
	"github.com/stretchr/testify/require"
)

// FuzzFromBytes throws arbitrary bytes at the deserializer.  Any input
// must either decode to a state that re-encodes and combines cleanly
// or fail with an error; panics and partial states are the bugs this
// hunts.
func FuzzFromBytes(f *testing.F) {
	seeds := []struct {
		kind sketch.Kind
		p    agg.Params
	}{
		{sketch.KindTDigest, agg.Params{Compression: 50}},
		{sketch.KindUDDSketch, agg.Params{Alpha: 0.05, MaxBuckets: 32}},
		{sketch.KindHLL, agg.Params{Precision: 6}},
		{sketch.KindCounter, agg.Params{}},
		{sketch.KindTimeWeighted, agg.Params{Method: timeweight.MethodLOCF}},
		{sketch.KindASAP, agg.Params{Resolution: 5}},
		{sketch.KindLTTB, agg.Params{Resolution: 5}},
	}
	for _, seed := range seeds {
		s, err := agg.New(seed.kind, seed.p)
		require.NoError(f, err)
		f.Add(s.ToBytes())
		for i := 0; i < 20; i++ {
			require.NoError(f, s.Accumulate(int64(i)*1_000_000_000, float64(i)))
		}
		f.Add(s.ToBytes())
	}
	f.Fuzz(func(t *testing.T, b []byte) {
		s, err := agg.FromBytes(b)
		if err != nil {
			return
		}
		// A state that decoded must re-encode and re-decode cleanly.
		b2 := s.ToBytes()
		s2, err := agg.FromBytes(b2)
		if err != nil {
			t.Fatalf("re-decode of canonical bytes failed: %s", err)
		}
		// Time-ranged kinds legitimately reject combining with their
		// own copy as overlapping; this call only hunts panics.
		_ = s.Combine(s2)
	})
}

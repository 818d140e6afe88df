package uddsketch

import (
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/bincode"
)

// Serialized layout after the common header: initial alpha, uvarint
// bucket cap, uvarint compaction level, uvarint zero count, then the
// negative and positive bucket sets.  Each set is the delta-varint
// encoded sorted index sequence followed by one uvarint count per
// index.

func appendBuckets(b []byte, buckets map[int64]uint64) []byte {
	idxs := sortedIndexes(buckets, false)
	b = bincode.AppendDeltaInt64s(b, idxs)
	for _, idx := range idxs {
		b = bincode.AppendUvarint(b, buckets[idx])
	}
	return b
}

func decodeBuckets(d *bincode.Decoder) (map[int64]uint64, uint64) {
	idxs := d.DeltaInt64s()
	buckets := make(map[int64]uint64, len(idxs))
	var total uint64
	for _, idx := range idxs {
		c := d.Uvarint()
		if d.Err() != nil {
			return nil, 0
		}
		buckets[idx] += c
		total += c
	}
	return buckets, total
}

// AppendTo appends the canonical serialized sketch.
func (s *Sketch) AppendTo(b []byte) []byte {
	b = bincode.AppendHeader(b, sketch.KindUDDSketch, Version)
	b = bincode.AppendFloat64(b, s.alpha)
	b = bincode.AppendUvarint(b, uint64(s.maxBuckets))
	b = bincode.AppendUvarint(b, s.compactions)
	b = bincode.AppendUvarint(b, s.zeroCount)
	b = appendBuckets(b, s.neg)
	return appendBuckets(b, s.pos)
}

// Decode reconstructs a sketch serialized by AppendTo.
func Decode(b []byte) (*Sketch, error) {
	d := bincode.NewDecoder(b)
	d.Header(sketch.KindUDDSketch, Version)
	alpha := d.Float64()
	maxBuckets := d.Uvarint()
	compactions := d.Uvarint()
	zeroCount := d.Uvarint()
	if err := d.Err(); err != nil {
		return nil, err
	}
	s, err := New(alpha, int(maxBuckets))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sketch.ErrUnsupportedFormat, err)
	}
	// Each compaction doubles logGamma; past 64 doublings every value
	// maps to one bucket and no writer produces such a state.
	if compactions > 64 {
		return nil, fmt.Errorf("%w: uddsketch compaction count %d", sketch.ErrUnsupportedFormat, compactions)
	}
	neg, negTotal := decodeBuckets(d)
	pos, posTotal := decodeBuckets(d)
	if err := d.Err(); err != nil {
		return nil, err
	}
	if d.Len() != 0 {
		return nil, fmt.Errorf("%w: uddsketch trailing bytes", sketch.ErrUnsupportedFormat)
	}
	s.neg = neg
	s.pos = pos
	s.zeroCount = zeroCount
	s.count = zeroCount + negTotal + posTotal
	s.compactions = compactions
	for i := uint64(0); i < compactions; i++ {
		s.logGamma *= 2
	}
	return s, nil
}

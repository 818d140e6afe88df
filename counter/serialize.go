package counter

import (
	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/bincode"
)

// Serialized layout after the common header: uvarint observation
// count, then for non-empty summaries the varint first/last timestamps
// (last delta-encoded against first), first/last values, the
// cumulative total, and the uvarint reset count.

// AppendTo appends the serialized summary.
func (s *Summary) AppendTo(b []byte) []byte {
	b = bincode.AppendHeader(b, sketch.KindCounter, Version)
	b = bincode.AppendUvarint(b, s.count)
	if s.count == 0 {
		return b
	}
	b = bincode.AppendVarint(b, s.first.Ts)
	b = bincode.AppendVarint(b, s.last.Ts-s.first.Ts)
	b = bincode.AppendFloat64(b, s.first.Val)
	b = bincode.AppendFloat64(b, s.last.Val)
	b = bincode.AppendFloat64(b, s.total)
	return bincode.AppendUvarint(b, s.resets)
}

// Decode reconstructs a summary serialized by AppendTo.
func Decode(b []byte) (*Summary, error) {
	d := bincode.NewDecoder(b)
	d.Header(sketch.KindCounter, Version)
	s := New()
	s.count = d.Uvarint()
	if s.count > 0 {
		s.first.Ts = d.Varint()
		s.last.Ts = s.first.Ts + d.Varint()
		s.first.Val = d.Float64()
		s.last.Val = d.Float64()
		s.total = d.Float64()
		s.resets = d.Uvarint()
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

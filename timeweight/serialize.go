package timeweight

import (
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/bincode"
)

// Serialized layout after the common header: the method byte, uvarint
// observation count, then for non-empty summaries the varint first
// timestamp, the last timestamp delta-encoded against it, both values,
// and the weighted sum.

// AppendTo appends the serialized summary.
func (s *Summary) AppendTo(b []byte) []byte {
	b = bincode.AppendHeader(b, sketch.KindTimeWeighted, Version)
	b = append(b, byte(s.method))
	b = bincode.AppendUvarint(b, s.count)
	if s.count == 0 {
		return b
	}
	b = bincode.AppendVarint(b, s.first.Ts)
	b = bincode.AppendVarint(b, s.last.Ts-s.first.Ts)
	b = bincode.AppendFloat64(b, s.first.Val)
	b = bincode.AppendFloat64(b, s.last.Val)
	return bincode.AppendFloat64(b, s.weighted)
}

// Decode reconstructs a summary serialized by AppendTo.
func Decode(b []byte) (*Summary, error) {
	d := bincode.NewDecoder(b)
	d.Header(sketch.KindTimeWeighted, Version)
	method := Method(d.Byte())
	if d.Err() == nil && !method.valid() {
		return nil, fmt.Errorf("%w: timeweight method %d", sketch.ErrUnsupportedFormat, method)
	}
	s := &Summary{method: method}
	s.count = d.Uvarint()
	if s.count > 0 {
		s.first.Ts = d.Varint()
		s.last.Ts = s.first.Ts + d.Varint()
		s.first.Val = d.Float64()
		s.last.Val = d.Float64()
		s.weighted = d.Float64()
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

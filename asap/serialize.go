package asap

import (
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/bincode"
)

// AppendTo appends the serialized state to b.  Timestamps are
// bit-packed as deltas and values are stored raw but block-compressed;
// both columns keep accumulation order so decode restores the state
// exactly, including the sorted flag.
func (s *Series) AppendTo(b []byte) []byte {
	b = bincode.AppendHeader(b, s.kind, Version)
	b = bincode.AppendUvarint(b, uint64(s.resolution))
	if s.sorted {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = bincode.AppendUvarint(b, uint64(len(s.points)))
	if len(s.points) == 0 {
		return b
	}
	ts := make([]int64, len(s.points))
	vals := make([]float64, len(s.points))
	for i, p := range s.points {
		ts[i] = p.Ts
		vals[i] = p.Val
	}
	b = bincode.AppendInt64Block(b, ts)
	var raw []byte
	raw = bincode.AppendFloat64s(raw, vals)
	return bincode.AppendCompressed(b, raw)
}

// Decode parses a serialized ASAP or LTTB state.
func Decode(b []byte) (*Series, error) {
	kind, err := bincode.PeekKind(b)
	if err != nil {
		return nil, err
	}
	if kind != sketch.KindASAP && kind != sketch.KindLTTB {
		return nil, fmt.Errorf("%w: kind %s is not a series state", sketch.ErrUnsupportedFormat, kind)
	}
	d := bincode.NewDecoder(b)
	d.Header(kind, Version)
	resolution := int(d.Uvarint())
	sorted := d.Byte()
	n := int(d.Uvarint())
	s := &Series{kind: kind, resolution: resolution, sorted: sorted != 0}
	if n > 0 {
		ts := d.Int64Block()
		raw := bincode.NewDecoder(d.Compressed())
		vals := raw.Float64s()
		if err := raw.Err(); err != nil {
			return nil, err
		}
		if len(ts) != n || len(vals) != n {
			return nil, fmt.Errorf("%w: series columns hold %d and %d points, header says %d",
				sketch.ErrUnsupportedFormat, len(ts), len(vals), n)
		}
		s.points = make([]sketch.Point, n)
		for i := range s.points {
			s.points[i] = sketch.Point{Ts: ts[i], Val: vals[i]}
		}
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	if d.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after series state", sketch.ErrUnsupportedFormat, d.Len())
	}
	if resolution < MinResolution {
		return nil, fmt.Errorf("%w: resolution %d below minimum %d", sketch.ErrUnsupportedFormat, resolution, MinResolution)
	}
	return s, nil
}

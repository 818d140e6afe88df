package hll

import (
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/bincode"
)

// maxRank bounds decoded register values; Estimate's histogram is
// sized for ranks up to 64-p+1.
func maxRank(precision uint8) byte {
	return 64 - precision + 1
}

// Payload layouts following the common two-byte header and the
// precision parameter byte:
//
//	sparse: 1, uvarint count, then per register a uvarint index delta
//	        and the register byte
//	dense:  0, compressed section holding all 2^p register bytes
//
// The sparse form wins while fewer than about a quarter of the
// registers are set, which covers the low-cardinality states a host
// engine serializes most often.
const (
	payloadDense  = 0
	payloadSparse = 1
)

// AppendTo appends the serialized sketch.
func (s *Sketch) AppendTo(b []byte) []byte {
	b = bincode.AppendHeader(b, sketch.KindHLL, Version)
	b = append(b, s.precision)
	nz := s.Occupied()
	if nz*4 < len(s.regs) {
		b = append(b, payloadSparse)
		b = bincode.AppendUvarint(b, uint64(nz))
		prev := 0
		for i, r := range s.regs {
			if r == 0 {
				continue
			}
			b = bincode.AppendUvarint(b, uint64(i-prev))
			b = append(b, r)
			prev = i
		}
		return b
	}
	b = append(b, payloadDense)
	return bincode.AppendCompressed(b, s.regs)
}

// MergeBytes merges a serialized sketch into s without materializing
// it, reading registers straight off the encoded payload.  Precisions
// must match, as in Merge.
func (s *Sketch) MergeBytes(b []byte) error {
	d := bincode.NewDecoder(b)
	d.Header(sketch.KindHLL, Version)
	precision := d.Byte()
	if err := d.Err(); err != nil {
		return err
	}
	if precision != s.precision {
		return fmt.Errorf("%w: hyperloglog precision %d vs %d",
			sketch.ErrIncompatibleState, s.precision, precision)
	}
	switch layout := d.Byte(); layout {
	case payloadSparse:
		n := d.Uvarint()
		entries := d.Bytes(d.Len())
		// Validate the whole entry list before touching any register
		// so a truncated or corrupt payload leaves s untouched.
		check := bincode.NewDecoder(entries)
		idx := 0
		for i := uint64(0); i < n; i++ {
			idx += int(check.Uvarint())
			r := check.Byte()
			if check.Err() != nil {
				return check.Err()
			}
			if idx >= len(s.regs) || r > maxRank(s.precision) {
				return fmt.Errorf("%w: hyperloglog register entry %d=%d out of range",
					sketch.ErrUnsupportedFormat, idx, r)
			}
		}
		apply := bincode.NewDecoder(entries)
		idx = 0
		for i := uint64(0); i < n; i++ {
			idx += int(apply.Uvarint())
			if r := apply.Byte(); r > s.regs[idx] {
				s.regs[idx] = r
			}
		}
	case payloadDense:
		regs := d.Compressed()
		if d.Err() == nil {
			if err := validRegisters(regs, s.precision); err != nil {
				return err
			}
			if err := s.mergeRegisters(regs); err != nil {
				return err
			}
		}
	default:
		if d.Err() == nil {
			return fmt.Errorf("%w: hyperloglog payload layout %d",
				sketch.ErrUnsupportedFormat, layout)
		}
	}
	return d.Err()
}

func validRegisters(regs []byte, precision uint8) error {
	for i, r := range regs {
		if r > maxRank(precision) {
			return fmt.Errorf("%w: hyperloglog register %d holds rank %d",
				sketch.ErrUnsupportedFormat, i, r)
		}
	}
	return nil
}

// Decode reconstructs a sketch from bytes written by AppendTo.  The
// result owns its registers; the input buffer may be reused.
func Decode(b []byte) (*Sketch, error) {
	d := bincode.NewDecoder(b)
	d.Header(sketch.KindHLL, Version)
	precision := d.Byte()
	if err := d.Err(); err != nil {
		return nil, err
	}
	s, err := New(int(precision))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sketch.ErrUnsupportedFormat, err)
	}
	switch layout := d.Byte(); layout {
	case payloadSparse:
		n := d.Uvarint()
		idx := 0
		for i := uint64(0); i < n; i++ {
			idx += int(d.Uvarint())
			r := d.Byte()
			if d.Err() != nil {
				break
			}
			if idx >= len(s.regs) || r > maxRank(s.precision) {
				return nil, fmt.Errorf("%w: hyperloglog register entry %d=%d out of range",
					sketch.ErrUnsupportedFormat, idx, r)
			}
			s.regs[idx] = r
		}
	case payloadDense:
		regs := d.Compressed()
		if d.Err() == nil {
			if len(regs) != len(s.regs) {
				return nil, fmt.Errorf("%w: hyperloglog register payload length %d",
					sketch.ErrUnsupportedFormat, len(regs))
			}
			if err := validRegisters(regs, s.precision); err != nil {
				return nil, err
			}
			copy(s.regs, regs)
		}
	default:
		if d.Err() == nil {
			return nil, fmt.Errorf("%w: hyperloglog payload layout %d",
				sketch.ErrUnsupportedFormat, layout)
		}
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

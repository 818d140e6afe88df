// Package bincode implements the low-level binary layout shared by all
// serialized aggregate states: a fixed two-byte header (algorithm tag
// and format version), variable-length integers, zigzag delta sequences
// for sorted integers, bit-packed integer blocks, and optional lz4
// block compression behind a one-byte format tag.
//
// Append functions grow a byte slice; decoding goes through Decoder,
// which carries a sticky error so callers can decode a whole payload
// and check once at the end.
package bincode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lakeland-data/sketch"
)

// AppendHeader prepends nothing magic: the serialized form of every
// aggregate state begins with exactly one kind byte and one version
// byte, followed by algorithm parameters and payload.
func AppendHeader(b []byte, kind sketch.Kind, version byte) []byte {
	return append(b, byte(kind), version)
}

// PeekKind reads the kind tag of an encoded state without decoding any
// further.
func PeekKind(b []byte) (sketch.Kind, error) {
	if len(b) < 2 {
		return sketch.KindInvalid, fmt.Errorf("%w: truncated header", sketch.ErrUnsupportedFormat)
	}
	return sketch.Kind(b[0]), nil
}

func AppendUvarint(b []byte, v uint64) []byte {
	return binary.AppendUvarint(b, v)
}

func AppendVarint(b []byte, v int64) []byte {
	return binary.AppendVarint(b, v)
}

func AppendFloat64(b []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
}

// AppendFloat64s encodes a count followed by the raw little-endian bits
// of each value.  Floats are stored bit-exact: serialization must
// round-trip to an identical finalize result.
func AppendFloat64s(b []byte, vals []float64) []byte {
	b = binary.AppendUvarint(b, uint64(len(vals)))
	for _, f := range vals {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
	}
	return b
}

// AppendDeltaInt64s encodes a sorted (or at least monotone-ish) int64
// sequence as a count followed by the varint first value and varint
// deltas between neighbors.
func AppendDeltaInt64s(b []byte, vals []int64) []byte {
	b = binary.AppendUvarint(b, uint64(len(vals)))
	prev := int64(0)
	for _, v := range vals {
		b = binary.AppendVarint(b, v-prev)
		prev = v
	}
	return b
}

// Decoder decodes a payload produced by the Append functions.  The
// first decode failure poisons the Decoder; all further reads return
// zero values and Err reports the failure wrapped around
// sketch.ErrUnsupportedFormat.
type Decoder struct {
	buf []byte
	err error
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Header consumes the two header bytes and checks them against the
// expected kind and version.
func (d *Decoder) Header(kind sketch.Kind, version byte) {
	if d.err != nil {
		return
	}
	if len(d.buf) < 2 {
		d.fail("truncated header")
		return
	}
	if got := sketch.Kind(d.buf[0]); got != kind {
		d.err = fmt.Errorf("%w: kind %s, expected %s", sketch.ErrUnsupportedFormat, got, kind)
		return
	}
	if got := d.buf[1]; got != version {
		d.err = fmt.Errorf("%w: %s version %d, expected %d", sketch.ErrUnsupportedFormat, kind, got, version)
		return
	}
	d.buf = d.buf[2:]
}

func (d *Decoder) Byte() byte {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 1 {
		d.fail("truncated payload")
		return 0
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

func (d *Decoder) Uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail("bad uvarint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *Decoder) Varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf)
	if n <= 0 {
		d.fail("bad varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *Decoder) Float64() float64 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 8 {
		d.fail("truncated float")
		return 0
	}
	f := math.Float64frombits(binary.LittleEndian.Uint64(d.buf))
	d.buf = d.buf[8:]
	return f
}

func (d *Decoder) Float64s() []float64 {
	n := d.Uvarint()
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf))/8 {
		d.fail("truncated float sequence")
		return nil
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = d.Float64()
	}
	return vals
}

func (d *Decoder) DeltaInt64s() []int64 {
	n := d.Uvarint()
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf)) {
		// Each delta takes at least one byte.
		d.fail("truncated delta sequence")
		return nil
	}
	vals := make([]int64, n)
	prev := int64(0)
	for i := range vals {
		prev += d.Varint()
		vals[i] = prev
	}
	if d.err != nil {
		return nil
	}
	return vals
}

// Bytes consumes the next n bytes without copying.  The returned slice
// aliases the Decoder's buffer; callers that retain it across further
// mutation must copy.
func (d *Decoder) Bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf) < n {
		d.fail("truncated payload")
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *Decoder) Len() int {
	return len(d.buf)
}

func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) fail(msg string) {
	d.err = fmt.Errorf("%w: %s", sketch.ErrUnsupportedFormat, msg)
}

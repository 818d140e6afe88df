package bincode

import (
	"encoding/binary"

	"github.com/ronanh/intcomp"
)

// AppendInt64Block encodes an int64 sequence as bit-packed
// delta-compressed words.  It is the encoding of choice for long sorted
// timestamp runs, where it beats plain varint deltas considerably.
func AppendInt64Block(b []byte, vals []int64) []byte {
	words := intcomp.CompressInt64(vals, nil)
	b = binary.AppendUvarint(b, uint64(len(vals)))
	b = binary.AppendUvarint(b, uint64(len(words)))
	for _, w := range words {
		b = binary.LittleEndian.AppendUint64(b, w)
	}
	return b
}

// Int64Block decodes a sequence written by AppendInt64Block.
func (d *Decoder) Int64Block() []int64 {
	n := d.Uvarint()
	nwords := d.Uvarint()
	if d.err != nil {
		return nil
	}
	if nwords > uint64(d.Len())/8 {
		d.fail("truncated int block")
		return nil
	}
	raw := d.Bytes(int(nwords) * 8)
	if d.err != nil {
		return nil
	}
	words := make([]uint64, nwords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	vals := intcomp.UncompressInt64(words, nil)
	if uint64(len(vals)) != n {
		d.fail("int block length mismatch")
		return nil
	}
	return vals
}

package bincode

import (
	"encoding/binary"
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/pierrec/lz4/v4"
)

// Compression formats for variable payload sections.  A section is
// encoded as one format byte followed by the section body; lz4 bodies
// are prefixed with the uvarint uncompressed length.
const (
	compressNone = 0
	compressLZ4  = 1
)

// compressThreshold is the smallest section worth attempting to
// compress; tiny sections always encode raw.
const compressThreshold = 64

// AppendCompressed appends a section, lz4-compressing it when that
// actually saves space.
func AppendCompressed(b, section []byte) []byte {
	if len(section) >= compressThreshold {
		var c lz4.Compressor
		dst := make([]byte, lz4.CompressBlockBound(len(section)))
		n, err := c.CompressBlock(section, dst)
		if err == nil && n > 0 && n < len(section) {
			b = append(b, compressLZ4)
			b = binary.AppendUvarint(b, uint64(len(section)))
			b = binary.AppendUvarint(b, uint64(n))
			return append(b, dst[:n]...)
		}
	}
	b = append(b, compressNone)
	b = binary.AppendUvarint(b, uint64(len(section)))
	return append(b, section...)
}

// Compressed consumes a section written by AppendCompressed, returning
// its uncompressed body.
func (d *Decoder) Compressed() []byte {
	format := d.Byte()
	switch format {
	case compressNone:
		n := d.Uvarint()
		return d.Bytes(int(n))
	case compressLZ4:
		rawLen := d.Uvarint()
		compLen := d.Uvarint()
		body := d.Bytes(int(compLen))
		if d.err != nil {
			return nil
		}
		// lz4 blocks expand at most ~255x; anything claiming more is
		// corrupt, not just big.
		if rawLen > uint64(len(body))*256+64 {
			d.err = fmt.Errorf("%w: corrupt lz4 section", sketch.ErrUnsupportedFormat)
			return nil
		}
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil || uint64(n) != rawLen {
			d.err = fmt.Errorf("%w: corrupt lz4 section", sketch.ErrUnsupportedFormat)
			return nil
		}
		return out
	default:
		if d.err == nil {
			d.err = fmt.Errorf("%w: unknown compression format %d", sketch.ErrUnsupportedFormat, format)
		}
		return nil
	}
}

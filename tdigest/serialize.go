package tdigest

import (
	"fmt"
	"math"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/bincode"
)

// Serialized layout after the common header: the compression parameter,
// then min and max, then a compressed section holding the centroid
// count followed by all means and all weights as raw float64 bits.
// Means are sorted, so the section compresses well; the floats stay
// bit-exact so a round-tripped digest finalizes identically.

// AppendTo flushes the buffer and appends the canonical serialized
// digest.
func (s *Sketch) AppendTo(b []byte) []byte {
	s.compress()
	b = bincode.AppendHeader(b, sketch.KindTDigest, Version)
	b = bincode.AppendFloat64(b, s.compression)
	b = bincode.AppendFloat64(b, s.min)
	b = bincode.AppendFloat64(b, s.max)
	var section []byte
	section = bincode.AppendUvarint(section, uint64(len(s.centroids)))
	for _, c := range s.centroids {
		section = bincode.AppendFloat64(section, c.Mean)
	}
	for _, c := range s.centroids {
		section = bincode.AppendFloat64(section, c.Weight)
	}
	return bincode.AppendCompressed(b, section)
}

// Decode reconstructs a digest serialized by AppendTo.
func Decode(b []byte) (*Sketch, error) {
	d := bincode.NewDecoder(b)
	d.Header(sketch.KindTDigest, Version)
	compression := d.Float64()
	min, max := d.Float64(), d.Float64()
	section := d.Compressed()
	if err := d.Err(); err != nil {
		return nil, err
	}
	s, err := New(compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sketch.ErrUnsupportedFormat, err)
	}
	sd := bincode.NewDecoder(section)
	n := sd.Uvarint()
	if sd.Err() == nil && (n > uint64(sd.Len())/16 || n*16 != uint64(sd.Len())) {
		return nil, fmt.Errorf("%w: tdigest centroid section length", sketch.ErrUnsupportedFormat)
	}
	centroids := make([]Centroid, n)
	for i := range centroids {
		centroids[i].Mean = sd.Float64()
	}
	var count float64
	prevMean := math.Inf(-1)
	for i := range centroids {
		w := sd.Float64()
		if sd.Err() != nil {
			break
		}
		if w <= 0 || centroids[i].Mean < prevMean {
			return nil, fmt.Errorf("%w: tdigest centroids not canonical", sketch.ErrUnsupportedFormat)
		}
		prevMean = centroids[i].Mean
		centroids[i].Weight = w
		count += w
	}
	if err := sd.Err(); err != nil {
		return nil, err
	}
	s.centroids = centroids
	s.count = count
	s.min = min
	s.max = max
	return s, nil
}

// Package tdigest implements a merging t-digest quantile sketch.
//
// The digest keeps a size-capped list of centroids (mean, weight)
// ordered by mean.  Inserts buffer into an unmerged list; when the
// buffer fills, the buffered points and the existing centroids are
// merged in one sorted pass, bounding each output centroid's weight by
// the k1 scale function so centroid density is highest near the
// distribution tails.  Merging two digests reuses the same pass over
// both centroid lists, so combine follows the same deterministic
// weighted-merge rule as accumulation.
//
// Combine is associative and commutative only up to the digest's error
// bound: re-partitioning the input can move centroid boundaries, so the
// guarantee is on finalized quantiles, never on bit-level layout.
package tdigest

import (
	"fmt"
	"math"
	"sort"

	"github.com/lakeland-data/sketch"
)

const Version = 1

type Centroid struct {
	Mean   float64
	Weight float64
}

type Sketch struct {
	compression float64
	centroids   []Centroid
	unmerged    []Centroid
	count       float64
	min, max    float64
}

const (
	MinCompression = 10
	MaxCompression = 10_000
)

// New returns an empty digest.  Compression is the delta parameter of
// the t-digest literature: the merged digest holds at most about
// compression centroids and quantile accuracy improves as it grows.
func New(compression float64) (*Sketch, error) {
	if math.IsNaN(compression) || compression < MinCompression || compression > MaxCompression {
		return nil, fmt.Errorf("tdigest: compression %v out of range [%d,%d]",
			compression, MinCompression, MaxCompression)
	}
	return &Sketch{
		compression: compression,
		min:         math.Inf(1),
		max:         math.Inf(-1),
	}, nil
}

func (s *Sketch) Compression() float64 {
	return s.compression
}

// Count returns the total accumulated weight.
func (s *Sketch) Count() float64 {
	return s.count
}

func (s *Sketch) Min() float64 { return s.min }
func (s *Sketch) Max() float64 { return s.max }

// Add accumulates one observation with weight 1.
func (s *Sketch) Add(v float64) error {
	return s.AddWeighted(v, 1)
}

// AddWeighted accumulates an observation with the given weight.
func (s *Sketch) AddWeighted(v, weight float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: tdigest value %v", sketch.ErrInvalidObservation, v)
	}
	if math.IsNaN(weight) || weight <= 0 {
		return fmt.Errorf("%w: tdigest weight %v", sketch.ErrInvalidObservation, weight)
	}
	s.unmerged = append(s.unmerged, Centroid{Mean: v, Weight: weight})
	s.count += weight
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
	if len(s.unmerged) >= s.bufferCap() {
		s.compress()
	}
	return nil
}

// Merge folds other into s.  Both digests must have been built with the
// same compression parameter.
func (s *Sketch) Merge(other *Sketch) error {
	if other.compression != s.compression {
		return fmt.Errorf("%w: tdigest compression %v vs %v",
			sketch.ErrIncompatibleState, s.compression, other.compression)
	}
	if other.count == 0 {
		return nil
	}
	s.unmerged = append(s.unmerged, other.centroids...)
	s.unmerged = append(s.unmerged, other.unmerged...)
	s.count += other.count
	s.min = math.Min(s.min, other.min)
	s.max = math.Max(s.max, other.max)
	s.compress()
	return nil
}

func (s *Sketch) bufferCap() int {
	return 8 * int(s.compression)
}

// Centroids flushes the buffer and returns the merged centroid list,
// ordered by mean.  The slice aliases internal state.
func (s *Sketch) Centroids() []Centroid {
	s.compress()
	return s.centroids
}

// compress merges buffered points into the centroid list in a single
// sorted pass.  Each output centroid's weight is capped by the span the
// k1 scale function allows at its quantile position.
func (s *Sketch) compress() {
	if len(s.unmerged) == 0 {
		return
	}
	all := append(s.centroids, s.unmerged...)
	sort.Slice(all, func(i, j int) bool { return all[i].Mean < all[j].Mean })
	s.unmerged = nil

	var out []Centroid
	var seen float64 // weight folded into out, excluding cur
	cur := all[0]
	limit := s.qFromK(s.kFromQ(0) + 1)
	for _, c := range all[1:] {
		q := (seen + cur.Weight + c.Weight) / s.count
		if q <= limit {
			cur.Mean += (c.Mean - cur.Mean) * c.Weight / (cur.Weight + c.Weight)
			cur.Weight += c.Weight
			continue
		}
		seen += cur.Weight
		out = append(out, cur)
		limit = s.qFromK(s.kFromQ(seen/s.count) + 1)
		cur = c
	}
	out = append(out, cur)
	if len(out) > 2*int(s.compression)+16 {
		// The scale function bounds the merged size; exceeding it means
		// the merge pass is broken, not that the input was too large.
		panic(fmt.Sprintf("tdigest: %d centroids exceeds cap for compression %v",
			len(out), s.compression))
	}
	s.centroids = out
}

// kFromQ is the k1 scale function, delta/(2*pi) * asin(2q-1).
func (s *Sketch) kFromQ(q float64) float64 {
	if q < 0 {
		q = 0
	} else if q > 1 {
		q = 1
	}
	return s.compression / (2 * math.Pi) * math.Asin(2*q-1)
}

func (s *Sketch) qFromK(k float64) float64 {
	limit := s.compression / 4
	if k >= limit {
		return 1
	}
	return (math.Sin(2*math.Pi*k/s.compression) + 1) / 2
}

// Quantile estimates the value at rank q in [0,1], interpolating
// linearly between centroid midpoints and clamping to the observed
// min and max.
func (s *Sketch) Quantile(q float64) (float64, error) {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return 0, fmt.Errorf("%w: quantile %v", sketch.ErrInvalidObservation, q)
	}
	s.compress()
	if s.count == 0 {
		return 0, sketch.ErrEmptyState
	}
	cs := s.centroids
	if len(cs) == 1 {
		return cs[0].Mean, nil
	}
	target := q * s.count

	// Cumulative weight at the midpoint of centroid i.
	mid := func(i int, cum float64) float64 { return cum + cs[i].Weight/2 }

	var cum float64
	if target < mid(0, 0) {
		// Below the first midpoint: interpolate from min.
		if cs[0].Weight > 1 {
			return lerp(s.min, cs[0].Mean, target/mid(0, 0)), nil
		}
		return s.min, nil
	}
	for i := 0; i < len(cs)-1; i++ {
		lo := mid(i, cum)
		hi := mid(i+1, cum+cs[i].Weight)
		if target < hi {
			return lerp(cs[i].Mean, cs[i+1].Mean, (target-lo)/(hi-lo)), nil
		}
		cum += cs[i].Weight
	}
	last := len(cs) - 1
	lo := mid(last, cum)
	if hi := s.count; target < hi && cs[last].Weight > 1 {
		return lerp(cs[last].Mean, s.max, (target-lo)/(hi-lo)), nil
	}
	return s.max, nil
}

// Mean returns the weighted mean of all observations.
func (s *Sketch) Mean() (float64, error) {
	s.compress()
	if s.count == 0 {
		return 0, sketch.ErrEmptyState
	}
	var sum float64
	for _, c := range s.centroids {
		sum += c.Mean * c.Weight
	}
	return sum / s.count, nil
}

func lerp(a, b, frac float64) float64 {
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return a + frac*(b-a)
}

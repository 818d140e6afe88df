// Package uddsketch implements a quantile sketch with a uniform
// relative error guarantee.
//
// Values are assigned to logarithmic buckets: a positive value v lands
// in bucket ceil(log_gamma(v)) with gamma = (1+alpha)/(1-alpha), so the
// bucket's representative value is within relative error alpha of v
// regardless of the data distribution.  Negative values mirror into
// their own bucket set and zeros are counted separately.
//
// Unlike a t-digest, combine is exact: two sketches over the same
// bucket layout merge by bucket-wise addition, so combine is strictly
// associative and commutative.  When a size cap is configured and
// exceeded, the sketch compacts: gamma is squared, pairs of adjacent
// buckets collapse, and the error guarantee doubles.  Combine aligns
// the compaction level of both inputs before adding, which keeps any
// two sketches created with the same parameters combinable.
package uddsketch

import (
	"fmt"
	"math"
	"slices"

	"github.com/lakeland-data/sketch"
)

const Version = 1

type Sketch struct {
	alpha       float64 // initial alpha, constant across compactions
	maxBuckets  int     // 0 means unbounded
	compactions uint64
	logGamma    float64 // current log(gamma)
	zeroCount   uint64
	count       uint64
	pos         map[int64]uint64
	neg         map[int64]uint64
}

// New returns an empty sketch with the given initial relative error
// bound.  maxBuckets of zero leaves the sketch unbounded; otherwise
// the sketch compacts whenever its bucket population would exceed the
// cap, trading error for space.
func New(alpha float64, maxBuckets int) (*Sketch, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("uddsketch: alpha %v out of range (0,1)", alpha)
	}
	if maxBuckets < 0 {
		return nil, fmt.Errorf("uddsketch: negative bucket cap %d", maxBuckets)
	}
	gamma := (1 + alpha) / (1 - alpha)
	return &Sketch{
		alpha:      alpha,
		maxBuckets: maxBuckets,
		logGamma:   math.Log(gamma),
		pos:        make(map[int64]uint64),
		neg:        make(map[int64]uint64),
	}, nil
}

func (s *Sketch) Alpha() float64   { return s.alpha }
func (s *Sketch) MaxBuckets() int  { return s.maxBuckets }
func (s *Sketch) Count() uint64    { return s.count }
func (s *Sketch) NumBuckets() int  { return len(s.pos) + len(s.neg) }
func (s *Sketch) Compactions() int { return int(s.compactions) }

// CurrentAlpha is the error bound after compactions: compacting
// squares gamma, so the guarantee loosens accordingly.
func (s *Sketch) CurrentAlpha() float64 {
	gamma := math.Exp(s.logGamma)
	return (gamma - 1) / (gamma + 1)
}

func (s *Sketch) bucketIndex(v float64) int64 {
	return int64(math.Ceil(math.Log(v) / s.logGamma))
}

// bucketValue is the representative value of bucket idx,
// 2*gamma^idx/(1+gamma), within CurrentAlpha of everything the bucket
// holds.
func (s *Sketch) bucketValue(idx int64) float64 {
	gamma := math.Exp(s.logGamma)
	return 2 * math.Exp(float64(idx)*s.logGamma) / (1 + gamma)
}

// Add accumulates one observation.
func (s *Sketch) Add(v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("%w: uddsketch value NaN", sketch.ErrInvalidObservation)
	}
	if math.IsInf(v, 0) {
		return fmt.Errorf("%w: uddsketch value %v", sketch.ErrInvalidObservation, v)
	}
	switch {
	case v == 0:
		s.zeroCount++
	case v > 0:
		s.pos[s.bucketIndex(v)]++
	default:
		s.neg[s.bucketIndex(-v)]++
	}
	s.count++
	s.enforceCap()
	return nil
}

func (s *Sketch) enforceCap() {
	for s.maxBuckets > 0 && s.NumBuckets() > s.maxBuckets {
		s.compact()
	}
}

// compact squares gamma and collapses bucket pairs, halving resolution.
func (s *Sketch) compact() {
	s.pos = compactBuckets(s.pos)
	s.neg = compactBuckets(s.neg)
	s.logGamma *= 2
	s.compactions++
}

func compactBuckets(buckets map[int64]uint64) map[int64]uint64 {
	out := make(map[int64]uint64, (len(buckets)+1)/2)
	for idx, c := range buckets {
		out[compactIndex(idx)] += c
	}
	return out
}

// compactIndex maps a bucket of gamma to its covering bucket of
// gamma^2: ceil(idx/2), computed with an arithmetic shift so negative
// indexes round the same way.
func compactIndex(idx int64) int64 {
	return (idx + 1) >> 1
}

// Merge folds other into s by bucket-wise addition, aligning
// compaction levels first.  Both sketches must share the initial alpha
// and bucket cap.
func (s *Sketch) Merge(other *Sketch) error {
	if other.alpha != s.alpha || other.maxBuckets != s.maxBuckets {
		return fmt.Errorf("%w: uddsketch params (%v,%d) vs (%v,%d)",
			sketch.ErrIncompatibleState, s.alpha, s.maxBuckets, other.alpha, other.maxBuckets)
	}
	for s.compactions < other.compactions {
		s.compact()
	}
	// When s is the more compacted side, other's indexes are mapped on
	// the fly; other itself is never mutated.
	extra := int(s.compactions - other.compactions)
	addAll := func(dst, src map[int64]uint64) {
		for idx, c := range src {
			for i := 0; i < extra; i++ {
				idx = compactIndex(idx)
			}
			dst[idx] += c
		}
	}
	addAll(s.pos, other.pos)
	addAll(s.neg, other.neg)
	s.zeroCount += other.zeroCount
	s.count += other.count
	s.enforceCap()
	return nil
}

// Quantile estimates the value at rank q, walking cumulative bucket
// counts from the most negative value upward.  The estimate is within
// CurrentAlpha relative error of the true quantile.
func (s *Sketch) Quantile(q float64) (float64, error) {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return 0, fmt.Errorf("%w: quantile %v", sketch.ErrInvalidObservation, q)
	}
	if s.count == 0 {
		return 0, sketch.ErrEmptyState
	}
	target := uint64(math.Ceil(q * float64(s.count)))
	if target == 0 {
		target = 1
	}
	var cum uint64

	// Negative buckets in descending index order: most negative first.
	for _, idx := range sortedIndexes(s.neg, true) {
		cum += s.neg[idx]
		if cum >= target {
			return -s.bucketValue(idx), nil
		}
	}
	cum += s.zeroCount
	if cum >= target {
		return 0, nil
	}
	for _, idx := range sortedIndexes(s.pos, false) {
		cum += s.pos[idx]
		if cum >= target {
			return s.bucketValue(idx), nil
		}
	}
	panic("uddsketch: bucket counts disagree with total count")
}

func sortedIndexes(buckets map[int64]uint64, descending bool) []int64 {
	idxs := make([]int64, 0, len(buckets))
	for idx := range buckets {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	if descending {
		slices.Reverse(idxs)
	}
	return idxs
}

// Mean returns the average of the bucket representatives weighted by
// count, itself within CurrentAlpha relative error of the true mean
// for same-signed data.
func (s *Sketch) Mean() (float64, error) {
	if s.count == 0 {
		return 0, sketch.ErrEmptyState
	}
	var sum float64
	for idx, c := range s.pos {
		sum += s.bucketValue(idx) * float64(c)
	}
	for idx, c := range s.neg {
		sum -= s.bucketValue(idx) * float64(c)
	}
	return sum / float64(s.count), nil
}

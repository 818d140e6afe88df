// Package counter aggregates samples of a monotonic counter that may
// reset, such as a process restart zeroing a request total.
//
// A reset is detected whenever a sample is smaller than the previous
// one.  The cumulative total is the sum of per-segment increases: each
// reset closes the current segment at its last value and opens a new
// segment at the observed post-reset value, so the unobserved rise from
// zero to that value is never invented.  For the sequence 5, 7, 2, 9
// the total is (7-5) + (9-2) = 9 with one reset.
//
// Partial summaries combine by time order.  Their observed ranges must
// be disjoint; reset detection is re-applied across the stitch point.
// Combine over disjoint ranges is associative, and commutative because
// the earlier range is always stitched first.
package counter

import (
	"fmt"
	"math"

	"github.com/lakeland-data/sketch"
)

const Version = 1

type Summary struct {
	first, last sketch.Point
	total       float64
	resets      uint64
	count       uint64
}

// New returns an empty counter summary.  The counter aggregate has no
// construction parameters.
func New() *Summary {
	return &Summary{}
}

func (s *Summary) Count() uint64      { return s.count }
func (s *Summary) Resets() uint64     { return s.resets }
func (s *Summary) First() sketch.Point { return s.first }
func (s *Summary) Last() sketch.Point  { return s.last }

// Add accumulates a counter sample.  Samples must be non-negative and
// arrive in strictly increasing time order within one summary.
func (s *Summary) Add(t int64, v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("%w: counter sample NaN", sketch.ErrInvalidObservation)
	}
	if v < 0 {
		return fmt.Errorf("%w: negative counter sample %v", sketch.ErrInvalidObservation, v)
	}
	if s.count > 0 && t <= s.last.Ts {
		return fmt.Errorf("%w: timestamp %d not after %d", sketch.ErrInvalidObservation, t, s.last.Ts)
	}
	pt := sketch.Point{Ts: t, Val: v}
	if s.count == 0 {
		s.first = pt
	} else if v < s.last.Val {
		s.resets++
	} else {
		s.total += v - s.last.Val
	}
	s.last = pt
	s.count++
	return nil
}

// Combine folds other into s.  The two observed time ranges must be
// disjoint; the later range is stitched after the earlier one with
// reset detection at the boundary.
func (s *Summary) Combine(other *Summary) error {
	if other.count == 0 {
		return nil
	}
	if s.count == 0 {
		*s = *other
		return nil
	}
	a, b := s, other
	if b.first.Ts < a.first.Ts {
		a, b = b, a
	}
	if b.first.Ts <= a.last.Ts {
		return fmt.Errorf("%w: counter ranges [%d,%d] and [%d,%d]",
			sketch.ErrOverlappingRanges, a.first.Ts, a.last.Ts, b.first.Ts, b.last.Ts)
	}
	merged := Summary{
		first:  a.first,
		last:   b.last,
		total:  a.total + b.total,
		resets: a.resets + b.resets,
		count:  a.count + b.count,
	}
	if b.first.Val < a.last.Val {
		merged.resets++
	} else {
		merged.total += b.first.Val - a.last.Val
	}
	*s = merged
	return nil
}

// Delta returns the reset-adjusted cumulative total.
func (s *Summary) Delta() (float64, error) {
	if s.count == 0 {
		return 0, sketch.ErrEmptyState
	}
	return s.total, nil
}

// Rate returns the cumulative total divided by the observed duration,
// per second.  At least two samples are required.
func (s *Summary) Rate() (float64, error) {
	if s.count < 2 {
		return 0, fmt.Errorf("%w: rate needs two samples", sketch.ErrEmptyState)
	}
	return s.total / durationSeconds(s.first.Ts, s.last.Ts), nil
}

// ExtrapolationPolicy controls how RateOver treats the portions of the
// query interval outside the observed sample range.  Extrapolation is
// never applied unless a caller asks for it by policy.
type ExtrapolationPolicy byte

const (
	// ExtrapolateNone ignores the interval and reports the observed
	// rate, exactly like Rate.
	ExtrapolateNone ExtrapolationPolicy = iota

	// ExtrapolateFlat assumes the counter was flat outside the
	// observed range, spreading the total over the whole interval.
	ExtrapolateFlat
)

// RateOver returns the rate over the interval [t0, t1] under the given
// policy.  The interval must cover the observed range.
func (s *Summary) RateOver(policy ExtrapolationPolicy, t0, t1 int64) (float64, error) {
	if s.count < 2 {
		return 0, fmt.Errorf("%w: rate needs two samples", sketch.ErrEmptyState)
	}
	switch policy {
	case ExtrapolateNone:
		return s.Rate()
	case ExtrapolateFlat:
		if t0 > s.first.Ts || t1 < s.last.Ts {
			return 0, fmt.Errorf("%w: interval [%d,%d] does not cover samples [%d,%d]",
				sketch.ErrInvalidObservation, t0, t1, s.first.Ts, s.last.Ts)
		}
		return s.total / durationSeconds(t0, t1), nil
	}
	return 0, fmt.Errorf("%w: extrapolation policy %d", sketch.ErrInvalidObservation, policy)
}

func durationSeconds(t0, t1 int64) float64 {
	return float64(t1-t0) / 1e9
}

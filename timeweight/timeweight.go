// Package timeweight computes time-weighted averages over irregularly
// sampled series.
//
// The weighting method is a construction parameter.  LOCF ("last
// observation carried forward") treats the series as a step function:
// each interval contributes the value at its left edge, and the final
// observation contributes no duration.  Linear treats the series as
// piecewise linear and contributes the trapezoid of each interval.
//
// Combine requires disjoint time ranges and bridges the gap between
// them with the same method: LOCF carries the earlier range's last
// value across the gap, Linear takes the trapezoid between the two
// boundary points.  Because the bridging rule is fixed by the method,
// combine is associative over any partition of a series into
// time-contiguous runs, and commutative because ranges are stitched in
// time order.
package timeweight

import (
	"fmt"
	"math"

	"github.com/lakeland-data/sketch"
)

const Version = 1

// Method selects the interpolation rule.
type Method byte

const (
	MethodLOCF Method = iota
	MethodLinear
)

func (m Method) String() string {
	switch m {
	case MethodLOCF:
		return "locf"
	case MethodLinear:
		return "linear"
	}
	return fmt.Sprintf("method-%d", byte(m))
}

func (m Method) valid() bool {
	return m == MethodLOCF || m == MethodLinear
}

type Summary struct {
	method      Method
	first, last sketch.Point
	weighted    float64 // integral of value over time, in value*ns
	count       uint64
}

func New(method Method) (*Summary, error) {
	if !method.valid() {
		return nil, fmt.Errorf("timeweight: unknown method %d", method)
	}
	return &Summary{method: method}, nil
}

func (s *Summary) Method() Method       { return s.method }
func (s *Summary) Count() uint64        { return s.count }
func (s *Summary) First() sketch.Point  { return s.first }
func (s *Summary) Last() sketch.Point   { return s.last }

// Add accumulates an observation.  Timestamps must be strictly
// increasing within one summary.
func (s *Summary) Add(t int64, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: timeweight value %v", sketch.ErrInvalidObservation, v)
	}
	if s.count > 0 && t <= s.last.Ts {
		return fmt.Errorf("%w: timestamp %d not after %d", sketch.ErrInvalidObservation, t, s.last.Ts)
	}
	pt := sketch.Point{Ts: t, Val: v}
	if s.count == 0 {
		s.first = pt
	} else {
		s.weighted += s.segment(s.last, pt)
	}
	s.last = pt
	s.count++
	return nil
}

// segment is the weighted contribution of the interval [a, b].
func (s *Summary) segment(a, b sketch.Point) float64 {
	dt := float64(b.Ts - a.Ts)
	if s.method == MethodLinear {
		return (a.Val + b.Val) / 2 * dt
	}
	return a.Val * dt
}

// Combine folds other into s.  The observed ranges must be disjoint;
// the gap between them contributes weight under the summary's method.
func (s *Summary) Combine(other *Summary) error {
	if other.method != s.method {
		return fmt.Errorf("%w: timeweight method %s vs %s",
			sketch.ErrIncompatibleState, s.method, other.method)
	}
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
		return fmt.Errorf("%w: timeweight ranges [%d,%d] and [%d,%d]",
			sketch.ErrOverlappingRanges, a.first.Ts, a.last.Ts, b.first.Ts, b.last.Ts)
	}
	// The gap is bridged by the same rule as any observed interval:
	// LOCF carries a.last forward, Linear takes the trapezoid between
	// the boundary points.
	merged := Summary{
		method:   s.method,
		first:    a.first,
		last:     b.last,
		weighted: a.weighted + a.segment(a.last, b.first) + b.weighted,
		count:    a.count + b.count,
	}
	*s = merged
	return nil
}

// Average finalizes the summary.  A single observation has no duration
// and averages to its own value.
func (s *Summary) Average() (float64, error) {
	if s.count == 0 {
		return 0, sketch.ErrEmptyState
	}
	if s.count == 1 {
		return s.first.Val, nil
	}
	return s.weighted / float64(s.last.Ts-s.first.Ts), nil
}

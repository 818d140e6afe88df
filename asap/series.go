// Package asap smooths and downsamples ordered time series under a
// bounded output-size budget: ASAP ("As Smooth As Possible") moving
// average smoothing and LTTB ("Largest Triangle Three Buckets") shape
// preserving downsampling.
//
// Both algorithms need the whole ordered series, so their aggregate
// state retains every accumulated point.  This is the one state in the
// module whose combine does not operate on reduced summaries: combining
// concatenates the retained points of both sides and finalize runs a
// single full-series pass.  Memory therefore grows with the input,
// unlike every sketch in the sibling packages.
package asap

import (
	"fmt"
	"math"
	"sort"

	"github.com/lakeland-data/sketch"
)

const Version = 1

// MinResolution is the smallest meaningful output budget; the LTTB
// triangle needs the first point, the last point, and something in
// between.
const MinResolution = 3

// Series is the shared aggregate state of the ASAP and LTTB
// aggregates: the retained point series plus the target resolution.
// Kind tells the two apart, including in serialized form.
type Series struct {
	kind       sketch.Kind
	resolution int
	points     []sketch.Point
	sorted     bool
}

func newSeries(kind sketch.Kind, resolution int) (*Series, error) {
	if resolution < MinResolution {
		return nil, fmt.Errorf("%s: resolution %d must be at least %d",
			kind, resolution, MinResolution)
	}
	return &Series{kind: kind, resolution: resolution, sorted: true}, nil
}

// NewASAP returns an empty ASAP smoothing state with the given output
// resolution.
func NewASAP(resolution int) (*Series, error) {
	return newSeries(sketch.KindASAP, resolution)
}

// NewLTTB returns an empty LTTB downsampling state with the given
// output threshold.
func NewLTTB(resolution int) (*Series, error) {
	return newSeries(sketch.KindLTTB, resolution)
}

func (s *Series) Kind() sketch.Kind { return s.kind }
func (s *Series) Resolution() int   { return s.resolution }
func (s *Series) Count() int        { return len(s.points) }

// Add retains one observation.  Points may arrive in any time order;
// the series is sorted once at finalize.
func (s *Series) Add(t int64, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s value %v", sketch.ErrInvalidObservation, s.kind, v)
	}
	if n := len(s.points); n > 0 && t < s.points[n-1].Ts {
		s.sorted = false
	}
	s.points = append(s.points, sketch.Point{Ts: t, Val: v})
	return nil
}

// Combine concatenates the retained points of other into s.  Both
// states must share the kind and resolution.
func (s *Series) Combine(other *Series) error {
	if other.kind != s.kind || other.resolution != s.resolution {
		return fmt.Errorf("%w: %s resolution %d vs %s resolution %d",
			sketch.ErrIncompatibleState, s.kind, s.resolution, other.kind, other.resolution)
	}
	if len(other.points) == 0 {
		return nil
	}
	if len(s.points) > 0 {
		stillSorted := s.sorted && other.sorted &&
			other.points[0].Ts >= s.points[len(s.points)-1].Ts
		s.sorted = stillSorted
	} else {
		s.sorted = other.sorted
	}
	s.points = append(s.points, other.points...)
	return nil
}

func (s *Series) sortPoints() {
	if s.sorted {
		return
	}
	sort.Slice(s.points, func(i, j int) bool { return s.points[i].Ts < s.points[j].Ts })
	s.sorted = true
}

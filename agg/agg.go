// Package agg is the uniform state machine over the module's aggregate
// algorithms: a state is created empty from explicit construction
// parameters, mutated by Accumulate and Combine, finalized by the
// kind-appropriate accessor, and moved across process boundaries with
// ToBytes and FromBytes.
//
// The set of algorithms is closed.  State is a tagged union dispatched
// by explicit kind switches rather than an interface: a host engine
// binds a fixed catalog of aggregate functions, and the closed union
// keeps the serialization registry, the parameter checks, and the
// per-kind finalizer surfaces in one place.
package agg

import (
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/asap"
	"github.com/lakeland-data/sketch/bincode"
	"github.com/lakeland-data/sketch/counter"
	"github.com/lakeland-data/sketch/hll"
	"github.com/lakeland-data/sketch/tdigest"
	"github.com/lakeland-data/sketch/timeweight"
	"github.com/lakeland-data/sketch/uddsketch"
)

// Params carries the construction parameters for New.  Each kind reads
// only its own fields; the rest are ignored.
type Params struct {
	// Compression is the t-digest size factor.
	Compression float64
	// Alpha is the uddsketch relative error bound.
	Alpha float64
	// MaxBuckets caps the uddsketch bucket count; zero means no cap.
	MaxBuckets int
	// Precision is the hyperloglog register-count exponent.
	Precision int
	// Method selects the time-weighted interpolation rule.
	Method timeweight.Method
	// Resolution is the ASAP or LTTB output budget.
	Resolution int
}

// State is the aggregate state of exactly one algorithm, identified by
// its kind.  The zero State is invalid; use New or FromBytes.
type State struct {
	kind    sketch.Kind
	tdigest *tdigest.Sketch
	udd     *uddsketch.Sketch
	hll     *hll.Sketch
	counter *counter.Summary
	tw      *timeweight.Summary
	series  *asap.Series
}

// New returns an empty state of the given kind.
func New(kind sketch.Kind, p Params) (*State, error) {
	s := &State{kind: kind}
	var err error
	switch kind {
	case sketch.KindTDigest:
		s.tdigest, err = tdigest.New(p.Compression)
	case sketch.KindUDDSketch:
		s.udd, err = uddsketch.New(p.Alpha, p.MaxBuckets)
	case sketch.KindHLL:
		s.hll, err = hll.New(p.Precision)
	case sketch.KindCounter:
		s.counter = counter.New()
	case sketch.KindTimeWeighted:
		s.tw, err = timeweight.New(p.Method)
	case sketch.KindASAP:
		s.series, err = asap.NewASAP(p.Resolution)
	case sketch.KindLTTB:
		s.series, err = asap.NewLTTB(p.Resolution)
	default:
		err = fmt.Errorf("%w: unknown aggregate kind %d", sketch.ErrUnsupportedFormat, kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) Kind() sketch.Kind { return s.kind }

// Accumulate feeds one observation.  Kinds that aggregate plain values
// ignore the timestamp; counter, time-weighted and series kinds use
// both fields.
func (s *State) Accumulate(t int64, v float64) error {
	switch s.kind {
	case sketch.KindTDigest:
		return s.tdigest.Add(v)
	case sketch.KindUDDSketch:
		return s.udd.Add(v)
	case sketch.KindHLL:
		return s.hll.AddFloat64(v)
	case sketch.KindCounter:
		return s.counter.Add(t, v)
	case sketch.KindTimeWeighted:
		return s.tw.Add(t, v)
	case sketch.KindASAP, sketch.KindLTTB:
		return s.series.Add(t, v)
	}
	panic(fmt.Sprintf("accumulate on invalid state kind %d", s.kind))
}

// AccumulateBytes feeds one opaque value to a hyperloglog state, the
// path a host engine uses for text and binary columns.
func (s *State) AccumulateBytes(data []byte) error {
	if s.kind != sketch.KindHLL {
		return fmt.Errorf("%w: byte observations require a %s state, have %s",
			sketch.ErrInvalidObservation, sketch.KindHLL, s.kind)
	}
	s.hll.Add(data)
	return nil
}

// Combine folds other into s.  The kinds must match; each algorithm
// additionally verifies its construction parameters.  On error s is
// unchanged.
func (s *State) Combine(other *State) error {
	if other.kind != s.kind {
		return fmt.Errorf("%w: cannot combine %s with %s",
			sketch.ErrIncompatibleState, s.kind, other.kind)
	}
	switch s.kind {
	case sketch.KindTDigest:
		return s.tdigest.Merge(other.tdigest)
	case sketch.KindUDDSketch:
		return s.udd.Merge(other.udd)
	case sketch.KindHLL:
		return s.hll.Merge(other.hll)
	case sketch.KindCounter:
		return s.counter.Combine(other.counter)
	case sketch.KindTimeWeighted:
		return s.tw.Combine(other.tw)
	case sketch.KindASAP, sketch.KindLTTB:
		return s.series.Combine(other.series)
	}
	panic(fmt.Sprintf("combine on invalid state kind %d", s.kind))
}

func (s *State) wrongKind(op string, want ...sketch.Kind) error {
	return fmt.Errorf("%w: %s requires %v state, have %s",
		sketch.ErrIncompatibleState, op, want, s.kind)
}

// Quantile finalizes a t-digest or uddsketch state.
func (s *State) Quantile(q float64) (float64, error) {
	switch s.kind {
	case sketch.KindTDigest:
		return s.tdigest.Quantile(q)
	case sketch.KindUDDSketch:
		return s.udd.Quantile(q)
	}
	return 0, s.wrongKind("quantile", sketch.KindTDigest, sketch.KindUDDSketch)
}

// Mean finalizes a t-digest or uddsketch state to the exact mean of
// the accumulated values.
func (s *State) Mean() (float64, error) {
	switch s.kind {
	case sketch.KindTDigest:
		return s.tdigest.Mean()
	case sketch.KindUDDSketch:
		return s.udd.Mean()
	}
	return 0, s.wrongKind("mean", sketch.KindTDigest, sketch.KindUDDSketch)
}

// Cardinality finalizes a hyperloglog state.
func (s *State) Cardinality() (uint64, error) {
	if s.kind != sketch.KindHLL {
		return 0, s.wrongKind("cardinality", sketch.KindHLL)
	}
	return s.hll.Estimate(), nil
}

// Delta finalizes a counter state to its reset-adjusted total.
func (s *State) Delta() (float64, error) {
	if s.kind != sketch.KindCounter {
		return 0, s.wrongKind("delta", sketch.KindCounter)
	}
	return s.counter.Delta()
}

// Rate finalizes a counter state to its per-second rate over the
// observed duration.
func (s *State) Rate() (float64, error) {
	if s.kind != sketch.KindCounter {
		return 0, s.wrongKind("rate", sketch.KindCounter)
	}
	return s.counter.Rate()
}

// RateOver finalizes a counter state to a rate over [t0, t1] under the
// given extrapolation policy.
func (s *State) RateOver(policy counter.ExtrapolationPolicy, t0, t1 int64) (float64, error) {
	if s.kind != sketch.KindCounter {
		return 0, s.wrongKind("rate", sketch.KindCounter)
	}
	return s.counter.RateOver(policy, t0, t1)
}

// Resets finalizes a counter state to its reset count.
func (s *State) Resets() (uint64, error) {
	if s.kind != sketch.KindCounter {
		return 0, s.wrongKind("resets", sketch.KindCounter)
	}
	return s.counter.Resets(), nil
}

// Average finalizes a time-weighted state.
func (s *State) Average() (float64, error) {
	if s.kind != sketch.KindTimeWeighted {
		return 0, s.wrongKind("average", sketch.KindTimeWeighted)
	}
	return s.tw.Average()
}

// Smooth finalizes an ASAP state to a normalized smoothed series.
func (s *State) Smooth() (*asap.NormalSeries, error) {
	if s.kind != sketch.KindASAP {
		return nil, s.wrongKind("smooth", sketch.KindASAP)
	}
	return s.series.Smooth()
}

// Downsample finalizes an LTTB state to at most its resolution points.
func (s *State) Downsample() ([]sketch.Point, error) {
	if s.kind != sketch.KindLTTB {
		return nil, s.wrongKind("downsample", sketch.KindLTTB)
	}
	return s.series.Downsample()
}

// ToBytes serializes the state in its kind's versioned binary layout.
func (s *State) ToBytes() []byte {
	switch s.kind {
	case sketch.KindTDigest:
		return s.tdigest.AppendTo(nil)
	case sketch.KindUDDSketch:
		return s.udd.AppendTo(nil)
	case sketch.KindHLL:
		return s.hll.AppendTo(nil)
	case sketch.KindCounter:
		return s.counter.AppendTo(nil)
	case sketch.KindTimeWeighted:
		return s.tw.AppendTo(nil)
	case sketch.KindASAP, sketch.KindLTTB:
		return s.series.AppendTo(nil)
	}
	panic(fmt.Sprintf("serialize on invalid state kind %d", s.kind))
}

// FromBytes deserializes a state of any kind, dispatching on the
// kind tag in the header.
func FromBytes(b []byte) (*State, error) {
	kind, err := bincode.PeekKind(b)
	if err != nil {
		return nil, err
	}
	s := &State{kind: kind}
	switch kind {
	case sketch.KindTDigest:
		s.tdigest, err = tdigest.Decode(b)
	case sketch.KindUDDSketch:
		s.udd, err = uddsketch.Decode(b)
	case sketch.KindHLL:
		s.hll, err = hll.Decode(b)
	case sketch.KindCounter:
		s.counter, err = counter.Decode(b)
	case sketch.KindTimeWeighted:
		s.tw, err = timeweight.Decode(b)
	case sketch.KindASAP, sketch.KindLTTB:
		s.series, err = asap.Decode(b)
	default:
		err = fmt.Errorf("%w: unknown aggregate kind %d", sketch.ErrUnsupportedFormat, kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Package sketch holds the core types shared by the approximate
// streaming-aggregate algorithms in this module: the algorithm kind tag,
// the observation type, and the error taxonomy surfaced by every
// aggregate operation.
//
// The algorithms themselves live in their own packages (tdigest,
// uddsketch, hll, counter, timeweight, asap) and the uniform aggregate
// state machine that dispatches over them lives in package agg.
package sketch

import "fmt"

// Kind identifies one of the fixed set of aggregate algorithms.  The set
// is closed: serialized states carry a Kind as their first header byte
// and every consumer dispatches over it with an explicit switch.
type Kind byte

const (
	KindInvalid Kind = iota
	KindTDigest
	KindUDDSketch
	KindHLL
	KindCounter
	KindTimeWeighted
	KindASAP
	KindLTTB
)

func (k Kind) String() string {
	switch k {
	case KindTDigest:
		return "tdigest"
	case KindUDDSketch:
		return "uddsketch"
	case KindHLL:
		return "hyperloglog"
	case KindCounter:
		return "counter"
	case KindTimeWeighted:
		return "timeweight"
	case KindASAP:
		return "asap"
	case KindLTTB:
		return "lttb"
	}
	return fmt.Sprintf("kind-%d", byte(k))
}

// Point is a timestamped observation.  Timestamps are nanoseconds for
// the time-based aggregates; the quantile and cardinality sketches
// ignore them.
type Point struct {
	Ts  int64
	Val float64
}

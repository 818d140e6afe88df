package agg

import (
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/asap"
	"github.com/lakeland-data/sketch/counter"
	"github.com/lakeland-data/sketch/hll"
	"github.com/lakeland-data/sketch/tdigest"
	"github.com/lakeland-data/sketch/timeweight"
	"github.com/lakeland-data/sketch/uddsketch"
)

// A View borrows a serialized state without deserializing it.  The
// header is validated up front; the payload is interpreted only when
// an operation needs it, and where the layout allows (hyperloglog),
// combine reads straight off the borrowed bytes.  The View does not
// own b: the caller must keep the buffer alive and unmodified for the
// View's lifetime, which fits a host engine handing out references
// into its own row storage.
type View struct {
	b    []byte
	kind sketch.Kind
}

func stateVersion(kind sketch.Kind) (byte, bool) {
	switch kind {
	case sketch.KindTDigest:
		return tdigest.Version, true
	case sketch.KindUDDSketch:
		return uddsketch.Version, true
	case sketch.KindHLL:
		return hll.Version, true
	case sketch.KindCounter:
		return counter.Version, true
	case sketch.KindTimeWeighted:
		return timeweight.Version, true
	case sketch.KindASAP, sketch.KindLTTB:
		return asap.Version, true
	}
	return 0, false
}

// NewView validates the two-byte header of b and returns a borrowing
// accessor over it.
func NewView(b []byte) (View, error) {
	if len(b) < 2 {
		return View{}, fmt.Errorf("%w: state truncated at %d bytes",
			sketch.ErrUnsupportedFormat, len(b))
	}
	kind := sketch.Kind(b[0])
	version, ok := stateVersion(kind)
	if !ok {
		return View{}, fmt.Errorf("%w: unknown aggregate kind %d",
			sketch.ErrUnsupportedFormat, b[0])
	}
	if b[1] != version {
		return View{}, fmt.Errorf("%w: %s version %d, reader supports %d",
			sketch.ErrUnsupportedFormat, kind, b[1], version)
	}
	return View{b: b, kind: kind}, nil
}

func (v View) Kind() sketch.Kind { return v.kind }
func (v View) Version() byte     { return v.b[1] }
func (v View) Bytes() []byte     { return v.b }

// State deserializes the viewed bytes into an owned state.
func (v View) State() (*State, error) {
	return FromBytes(v.b)
}

// CombineView folds a serialized partial into s.  Hyperloglog partials
// are merged register-by-register off the viewed bytes; other kinds
// deserialize the partial first, as their combines rework both sides'
// structures.
func (s *State) CombineView(v View) error {
	if v.kind != s.kind {
		return fmt.Errorf("%w: cannot combine %s with %s",
			sketch.ErrIncompatibleState, s.kind, v.kind)
	}
	if s.kind == sketch.KindHLL {
		return s.hll.MergeBytes(v.b)
	}
	other, err := v.State()
	if err != nil {
		return err
	}
	return s.Combine(other)
}

package sketch

import "errors"

// The error taxonomy shared by every aggregate operation.  Callers test
// with errors.Is; operations wrap these sentinels with context via
// fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidObservation rejects an accumulate input: NaN values,
	// wrong-signed counter samples, or out-of-order timestamps where an
	// algorithm requires ordering.
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrIncompatibleState rejects a combine of states whose kind,
	// format version, or construction parameters differ.
	ErrIncompatibleState = errors.New("incompatible aggregate states")

	// ErrUnsupportedFormat rejects serialized bytes with an unknown
	// kind tag or format version.
	ErrUnsupportedFormat = errors.New("unsupported serialization format")

	// ErrOverlappingRanges rejects a counter or time-weighted combine
	// whose inputs cover non-disjoint time ranges.
	ErrOverlappingRanges = errors.New("overlapping time ranges")

	// ErrEmptyState is returned by finalizers that have no defined
	// result over zero observations.
	ErrEmptyState = errors.New("empty aggregate state")
)

// A failed accumulate or combine never leaves a partially-mutated state
// behind; implementations validate inputs before touching their
// receiver.  Violations of internal invariants (a sketch exceeding its
// own size cap, impossible decode states) are defects, not recoverable
// conditions, and panic.

package analysis

import "fmt"

// ErrKind discriminates the three failure classes of the evidential and
// entropic batch evaluators. Every anomaly inside the package is classified
// into exactly one kind and returned to the caller; no local recovery is
// attempted and nothing panics on the per-element path.
type ErrKind uint8

const (
	// KindDimensionMismatch: structural disagreement between input array
	// lengths, or an out-of-range subset bound. Detected eagerly, before
	// any computation.
	KindDimensionMismatch ErrKind = iota + 1

	// KindZeroProbabilitySpace: every hypothesis in a posterior batch
	// received non-finite unnormalized mass. An epistemic failure, not a
	// computational one — never defaulted to a uniform posterior.
	KindZeroProbabilitySpace

	// KindNumericalInstability: the stabilized normalizer produced a
	// non-finite denominator, or the domain configuration itself is
	// invalid (zero bins, inverted bounds).
	KindNumericalInstability
)

// Error is the typed failure value shared by every batch operation in the
// package. For dimension mismatches, Expected and Found carry the two
// disagreeing sizes.
type Error struct {
	Kind     ErrKind
	Expected int
	Found    int
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDimensionMismatch:
		return fmt.Sprintf("dimension mismatch: input arrays must have identical lengths: expected %d, found %d", e.Expected, e.Found)
	case KindZeroProbabilitySpace:
		return "zero probability space: log-posterior space collapses to absolute zero, cannot normalize"
	case KindNumericalInstability:
		return "numerical instability detected (NaN or Inf)"
	default:
		return "analysis: unknown error"
	}
}

// Is reports whether target is an *Error of the same kind, letting callers
// match with errors.Is against the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is matching.
var (
	ErrDimensionMismatch    = &Error{Kind: KindDimensionMismatch}
	ErrZeroProbabilitySpace = &Error{Kind: KindZeroProbabilitySpace}
	ErrNumericalInstability = &Error{Kind: KindNumericalInstability}
)

func dimensionMismatch(expected, found int) *Error {
	return &Error{Kind: KindDimensionMismatch, Expected: expected, Found: found}
}

// equalLengths enforces identical lengths across all given sizes, returning
// the shared length. An empty size list is length zero.
func equalLengths(lengths ...int) (int, *Error) {
	if len(lengths) == 0 {
		return 0, nil
	}
	baseline := lengths[0]
	for _, l := range lengths[1:] {
		if l != baseline {
			return 0, dimensionMismatch(baseline, l)
		}
	}
	return baseline, nil
}

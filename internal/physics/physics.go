package physics

import (
	"fmt"
	"math"
)

// Thermoelectric transport constants and magnitude bounds.
//
// The Lorenz number constants implement the Wiedemann-Franz limit: the
// electronic contribution to thermal conductivity of any conductor is
// bounded below by kappa_e = L·sigma·T, so a reported total kappa smaller
// than kappa_e at L0 is unphysical.
const (
	// L0Sommerfeld is the free-electron Lorenz number, W·Ω·K⁻².
	L0Sommerfeld = 2.44e-8

	// LMin and LMax bound the admissible Lorenz number range.
	LMin = 1e-9
	LMax = 1e-7
)

// Empirical magnitude bounds for reported thermoelectric parameters.
// Values outside these ranges are rejected, never clamped: clamping injects
// zero gradients and density spikes into the downstream Bayesian manifold.
const (
	SMaxAbs  = 1000e-6 // |S| <= 1000 µV/K
	SigmaMax = 1e7     // S/m
	KappaMax = 100.0   // W/(m·K)
	TMin     = 100.0   // K
	TMax     = 2000.0  // K
)

// ErrCode classifies a physical constraint violation.
type ErrCode uint8

const (
	ErrNonPositiveTemperature ErrCode = iota + 1
	ErrNonPositiveConductivity
	ErrNonPositiveThermal
	ErrBoundViolation
	ErrLorenzOutOfBounds
	ErrNegativeLattice
	ErrNegativeFigureOfMerit
	ErrMismatchedLengths
	ErrNonFinite
)

// Error is a typed physical-constraint violation. Returned as a value,
// never raised; callers branch on Code.
type Error struct {
	Code   ErrCode
	Value  float64
	Detail string
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrNonPositiveTemperature:
		return fmt.Sprintf("physics: absolute temperature T (%g) must be strictly positive", e.Value)
	case ErrNonPositiveConductivity:
		return fmt.Sprintf("physics: electrical conductivity sigma (%g) must be strictly positive", e.Value)
	case ErrNonPositiveThermal:
		return fmt.Sprintf("physics: thermal conductivity kappa (%g) must be strictly positive", e.Value)
	case ErrBoundViolation:
		return "physics: empirical bound violation: " + e.Detail
	case ErrLorenzOutOfBounds:
		return fmt.Sprintf("physics: Lorenz number L (%g) outside admissible range (%g, %g)", e.Value, LMin, LMax)
	case ErrNegativeLattice:
		return fmt.Sprintf("physics: lattice thermal conductivity kappa_l (%g) must be >= 0", e.Value)
	case ErrNegativeFigureOfMerit:
		return fmt.Sprintf("physics: figure of merit zT (%g) must be >= 0", e.Value)
	case ErrMismatchedLengths:
		return "physics: input array lengths do not match for batch computation"
	case ErrNonFinite:
		return fmt.Sprintf("physics: value is NaN or infinite: %g", e.Value)
	default:
		return "physics: constraint violation"
	}
}

// State is one raw, unvalidated thermoelectric state vector (S, sigma, kappa, T).
type State struct {
	S     float64 // Seebeck coefficient, V/K
	Sigma float64 // electrical conductivity, S/m
	Kappa float64 // thermal conductivity, W/(m·K)
	T     float64 // absolute temperature, K
}

// ValidatedState can only be produced by a successful Validate call; its
// zT is known to satisfy every hard constraint.
type ValidatedState struct {
	State
	zt float64
}

// ZT returns the dimensionless figure of merit of the validated state.
func (v ValidatedState) ZT() float64 { return v.zt }

// Validate applies finiteness, positivity and thermodynamic constraints to
// the raw state, returning a ValidatedState on success.
func (s State) Validate() (ValidatedState, error) {
	for _, v := range [4]float64{s.S, s.Sigma, s.Kappa, s.T} {
		if !isFinite(v) {
			return ValidatedState{}, &Error{Code: ErrNonFinite, Value: v}
		}
	}
	if s.T <= 0 {
		return ValidatedState{}, &Error{Code: ErrNonPositiveTemperature, Value: s.T}
	}
	if s.Sigma <= 0 {
		return ValidatedState{}, &Error{Code: ErrNonPositiveConductivity, Value: s.Sigma}
	}
	if s.Kappa <= 0 {
		return ValidatedState{}, &Error{Code: ErrNonPositiveThermal, Value: s.Kappa}
	}
	zt := (s.S * s.S * s.Sigma * s.T) / s.Kappa
	if zt < 0 {
		return ValidatedState{}, &Error{Code: ErrNegativeFigureOfMerit, Value: zt}
	}
	return ValidatedState{State: s, zt: zt}, nil
}

// ValidateBounds rejects parameter magnitudes outside the empirically
// realistic operating regime.
func ValidateBounds(s, sigma, kappa, t float64) error {
	if math.Abs(s) > SMaxAbs {
		return &Error{Code: ErrBoundViolation, Detail: fmt.Sprintf("|S| (%g) exceeds %g V/K", math.Abs(s), SMaxAbs)}
	}
	if sigma > SigmaMax {
		return &Error{Code: ErrBoundViolation, Detail: fmt.Sprintf("sigma (%g) exceeds %g S/m", sigma, SigmaMax)}
	}
	if kappa > KappaMax {
		return &Error{Code: ErrBoundViolation, Detail: fmt.Sprintf("kappa (%g) exceeds %g W/mK", kappa, KappaMax)}
	}
	if t < TMin || t > TMax {
		return &Error{Code: ErrBoundViolation, Detail: fmt.Sprintf("T (%g K) lies outside [%g, %g]", t, TMin, TMax)}
	}
	return nil
}

// ComputeZT evaluates the figure of merit zT = S²σT/κ with the full staged
// constraint gate: positivity first, empirical bounds second, and a final
// positivity invariant on the result.
func ComputeZT(s, sigma, kappa, t float64) (float64, error) {
	if kappa <= 0 {
		return 0, &Error{Code: ErrNonPositiveThermal, Value: kappa}
	}
	if t <= 0 {
		return 0, &Error{Code: ErrNonPositiveTemperature, Value: t}
	}
	if sigma <= 0 {
		return 0, &Error{Code: ErrNonPositiveConductivity, Value: sigma}
	}
	if err := ValidateBounds(s, sigma, kappa, t); err != nil {
		return 0, err
	}
	zt := (s * s * sigma * t) / kappa
	if zt < 0 {
		return 0, &Error{Code: ErrNegativeFigureOfMerit, Value: zt}
	}
	return zt, nil
}

// Decomposition splits total thermal conductivity into its electronic and
// lattice components under a fixed Lorenz number.
type Decomposition struct {
	KappaE float64 // electronic component L·sigma·T
	KappaL float64 // lattice remainder kappa - kappa_e
	L      float64 // Lorenz number actually used
}

// WiedemannFranz decomposes kappa under the Wiedemann-Franz law. Passing
// l <= 0 selects the Sommerfeld value.
func WiedemannFranz(sigma, kappa, t, l float64) (Decomposition, error) {
	if sigma <= 0 {
		return Decomposition{}, &Error{Code: ErrNonPositiveConductivity, Value: sigma}
	}
	if kappa <= 0 {
		return Decomposition{}, &Error{Code: ErrNonPositiveThermal, Value: kappa}
	}
	if t <= 0 {
		return Decomposition{}, &Error{Code: ErrNonPositiveTemperature, Value: t}
	}
	if l <= 0 {
		l = L0Sommerfeld
	}
	if l <= LMin || l >= LMax {
		return Decomposition{}, &Error{Code: ErrLorenzOutOfBounds, Value: l}
	}
	kappaE := l * sigma * t
	kappaL := kappa - kappaE
	if kappaL < 0 {
		return Decomposition{}, &Error{Code: ErrNegativeLattice, Value: kappaL}
	}
	return Decomposition{KappaE: kappaE, KappaL: kappaL, L: l}, nil
}

// ZTBatch computes zT per row under a NaN policy: rows violating any hard
// or empirical constraint yield NaN rather than failing the batch. Used by
// ingestion, where a single bad row must not abort a dataset pass.
func ZTBatch(s, sigma, kappa, t []float64) ([]float64, error) {
	n := len(s)
	if len(sigma) != n || len(kappa) != n || len(t) != n {
		return nil, &Error{Code: ErrMismatchedLengths}
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = ztOrNaN(s[i], sigma[i], kappa[i], t[i])
	}
	return out, nil
}

func ztOrNaN(s, sigma, kappa, t float64) float64 {
	if t <= 0 || kappa <= 0 || sigma <= 0 {
		return math.NaN()
	}
	// Implied Lorenz number below the admissible floor means the reported
	// kappa cannot even carry its own electronic component.
	if kappa/(sigma*t) < LMin {
		return math.NaN()
	}
	if math.Abs(s) > 0.05 || sigma > 1e8 || kappa > 5000.0 {
		return math.NaN()
	}
	zt := (s * s * sigma * t) / kappa
	if !isFinite(zt) || zt < 0 || zt > 4.0 {
		return math.NaN()
	}
	return zt
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

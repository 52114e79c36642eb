package units

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Dimensional algebra over the 7-dimensional SI basis. Every physical
// quantity carries its dimension vector, an affine unit mapping onto
// canonical SI, and a 1-sigma uncertainty that propagates to first order
// through every operation.

// ErrCode classifies a dimensional or numerical violation. The code string
// is stable and wire-visible; clients branch on it.
type ErrCode string

const (
	CodeDimensionMismatch ErrCode = "DV-01"
	CodeDomainViolation   ErrCode = "DV-02"
	CodeUnknownUnit       ErrCode = "UR-01"
	CodeInstability       ErrCode = "UC-12"
)

// Error is the typed failure value of the unit system.
type Error struct {
	Code   ErrCode
	Detail string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Detail
}

// Is matches on code so callers can test with errors.Is against a bare
// &Error{Code: ...}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Dimension is the exponent vector over the SI basis, indexed as length,
// mass, time, current, temperature, amount, luminous intensity.
type Dimension [7]int

// Dimensionless is the zero vector.
var Dimensionless = Dimension{}

// IsDimensionless reports whether every basis exponent is zero.
func (d Dimension) IsDimensionless() bool {
	return d == Dimension{}
}

// Mul adds exponent vectors, the dimension of a product.
func (d Dimension) Mul(other Dimension) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] + other[i]
	}
	return out
}

// Div subtracts exponent vectors, the dimension of a quotient.
func (d Dimension) Div(other Dimension) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] - other[i]
	}
	return out
}

// Pow scales every exponent by n, the dimension of an integer power.
func (d Dimension) Pow(n int) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] * n
	}
	return out
}

func (d Dimension) String() string {
	return fmt.Sprintf("[L^%d M^%d T^%d I^%d Theta^%d N^%d J^%d]",
		d[0], d[1], d[2], d[3], d[4], d[5], d[6])
}

// Unit maps a symbol onto canonical SI through the affine form
// v_SI = K·v + B. B is nonzero only for offset temperature scales.
type Unit struct {
	Symbol string
	Dim    Dimension
	K      float64
	B      float64
}

// CanonicalSI is the identity unit for a dimension, the normalization
// target of every aggregation.
func CanonicalSI(dim Dimension) Unit {
	return Unit{Symbol: "SI_CANON", Dim: dim, K: 1, B: 0}
}

// Named dimensions of the thermoelectric measurement surface.
var (
	DimLength       = Dimension{1, 0, 0, 0, 0, 0, 0}
	DimTemperature  = Dimension{0, 0, 0, 0, 1, 0, 0}
	DimSeebeck      = Dimension{2, 1, -3, -1, -1, 0, 0}  // V/K
	DimConductivity = Dimension{-3, -1, 3, 2, 0, 0, 0}   // S/m
	DimThermalCond  = Dimension{1, 1, -3, 0, -1, 0, 0}   // W/(m·K)
)

// registry holds every recognized unit symbol.
var registry = map[string]Unit{
	"m":         {Symbol: "m", Dim: DimLength, K: 1},
	"mm":        {Symbol: "mm", Dim: DimLength, K: 1e-3},
	"K":         {Symbol: "K", Dim: DimTemperature, K: 1},
	"degC":      {Symbol: "degC", Dim: DimTemperature, K: 1, B: 273.15},
	"V/K":       {Symbol: "V/K", Dim: DimSeebeck, K: 1},
	"uV/K":      {Symbol: "uV/K", Dim: DimSeebeck, K: 1e-6},
	"S/m":       {Symbol: "S/m", Dim: DimConductivity, K: 1},
	"mS/cm":     {Symbol: "mS/cm", Dim: DimConductivity, K: 0.1},
	"W/(m.K)":   {Symbol: "W/(m.K)", Dim: DimThermalCond, K: 1},
	"mW/(cm.K)": {Symbol: "mW/(cm.K)", Dim: DimThermalCond, K: 0.1},
}

// Lookup resolves a unit symbol against the registry.
func Lookup(symbol string) (Unit, error) {
	u, ok := registry[symbol]
	if !ok {
		return Unit{}, &Error{Code: CodeUnknownUnit, Detail: "unknown unit symbol: " + symbol}
	}
	return u, nil
}

// Quantity is a physical scalar with its unit and 1-sigma uncertainty.
type Quantity struct {
	Value       float64
	Unit        Unit
	Uncertainty float64
}

// NewQuantity builds a quantity, rejecting magnitudes outside the stable
// float64 band.
func NewQuantity(value float64, unit Unit, uncertainty float64) (Quantity, error) {
	q := Quantity{Value: value, Unit: unit, Uncertainty: uncertainty}
	if err := q.checkStability(); err != nil {
		return Quantity{}, err
	}
	return q, nil
}

func (q Quantity) checkStability() error {
	abs := math.Abs(q.Value)
	if abs > 1e308 || (abs < 1e-308 && abs > 0) {
		return &Error{Code: CodeInstability, Detail: fmt.Sprintf("magnitude %g outside stable band", q.Value)}
	}
	return nil
}

// Round applies deterministic rounding to the given count of significant
// digits. Twelve digits is the canonical precision for converted values.
func (q Quantity) Round(digits int) Quantity {
	if q.Value == 0 {
		return q
	}
	magnitude := math.Floor(math.Log10(math.Abs(q.Value)))
	scale := math.Pow(10, float64(digits-1)-magnitude)
	q.Value = math.Round(q.Value*scale) / scale
	return q
}

// Convert projects the quantity into the target unit:
//
//	v_SI = K_s·v + B_s
//	v'   = (v_SI - B_t) / K_t
//	σ'   = |K_s / K_t|·σ
//
// Only the multiplicative part touches the uncertainty; affine offsets
// shift the value without widening it.
func (q Quantity) Convert(target Unit) (Quantity, error) {
	if q.Unit.Dim != target.Dim {
		return Quantity{}, &Error{
			Code:   CodeDimensionMismatch,
			Detail: fmt.Sprintf("cannot convert %v to %v", q.Unit.Dim, target.Dim),
		}
	}
	vSI := q.Unit.K*q.Value + q.Unit.B
	out, err := NewQuantity((vSI-target.B)/target.K, target, math.Abs(q.Unit.K/target.K)*q.Uncertainty)
	if err != nil {
		return Quantity{}, err
	}
	return out.Round(12), nil
}

// Canonical normalizes the quantity to its canonical SI root.
func (q Quantity) Canonical() (Quantity, error) {
	return q.Convert(CanonicalSI(q.Unit.Dim))
}

// TryAdd adds two quantities after canonical normalization. Uncertainties
// combine in quadrature under the independence assumption.
func (q Quantity) TryAdd(other Quantity) (Quantity, error) {
	a, b, err := canonicalPair(q, other)
	if err != nil {
		return Quantity{}, err
	}
	if a.Unit.Dim != b.Unit.Dim {
		return Quantity{}, dimMismatch(a.Unit.Dim, b.Unit.Dim)
	}
	return NewQuantity(a.Value+b.Value, a.Unit, math.Hypot(a.Uncertainty, b.Uncertainty))
}

// TrySub subtracts after canonical normalization; uncertainty combines in
// quadrature exactly as for addition.
func (q Quantity) TrySub(other Quantity) (Quantity, error) {
	a, b, err := canonicalPair(q, other)
	if err != nil {
		return Quantity{}, err
	}
	if a.Unit.Dim != b.Unit.Dim {
		return Quantity{}, dimMismatch(a.Unit.Dim, b.Unit.Dim)
	}
	return NewQuantity(a.Value-b.Value, a.Unit, math.Hypot(a.Uncertainty, b.Uncertainty))
}

// TryMul multiplies; the result lands in the canonical unit of the summed
// dimension vector.
func (q Quantity) TryMul(other Quantity) (Quantity, error) {
	a, b, err := canonicalPair(q, other)
	if err != nil {
		return Quantity{}, err
	}
	sigma := math.Hypot(b.Value*a.Uncertainty, a.Value*b.Uncertainty)
	return NewQuantity(a.Value*b.Value, CanonicalSI(a.Unit.Dim.Mul(b.Unit.Dim)), sigma)
}

// TryDiv divides; division by an exact zero is a stability fault, not a
// silent Inf.
func (q Quantity) TryDiv(other Quantity) (Quantity, error) {
	a, b, err := canonicalPair(q, other)
	if err != nil {
		return Quantity{}, err
	}
	if b.Value == 0 {
		return Quantity{}, &Error{Code: CodeInstability, Detail: "division by zero quantity"}
	}
	sigma := math.Hypot(a.Uncertainty/b.Value, a.Value*b.Uncertainty/(b.Value*b.Value))
	return NewQuantity(a.Value/b.Value, CanonicalSI(a.Unit.Dim.Div(b.Unit.Dim)), sigma)
}

// TryExp exponentiates. Transcendental functions are only defined on
// dimensionless arguments.
func (q Quantity) TryExp() (Quantity, error) {
	a, err := q.Canonical()
	if err != nil {
		return Quantity{}, err
	}
	if !a.Unit.Dim.IsDimensionless() {
		return Quantity{}, &Error{
			Code:   CodeDomainViolation,
			Detail: fmt.Sprintf("exp requires a dimensionless argument, got %v", a.Unit.Dim),
		}
	}
	v := math.Exp(a.Value)
	return NewQuantity(v, CanonicalSI(Dimensionless), math.Abs(v)*a.Uncertainty)
}

func canonicalPair(x, y Quantity) (Quantity, Quantity, error) {
	a, err := x.Canonical()
	if err != nil {
		return Quantity{}, Quantity{}, err
	}
	b, err := y.Canonical()
	if err != nil {
		return Quantity{}, Quantity{}, err
	}
	return a, b, nil
}

func dimMismatch(a, b Dimension) *Error {
	return &Error{Code: CodeDimensionMismatch, Detail: fmt.Sprintf("%v vs %v", a, b)}
}

// ConvertBulk converts a whole slice into the target unit, fanning out over
// the available hardware parallelism. Each conversion is independent and
// each worker writes only its own output region; the first failing index
// (in index order) fails the call.
func ConvertBulk(quantities []Quantity, target Unit) ([]Quantity, error) {
	n := len(quantities)
	out := make([]Quantity, n)
	errs := make([]error, n)

	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i], errs[i] = quantities[i].Convert(target)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

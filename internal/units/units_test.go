package units

import (
	"errors"
	"math"
	"testing"
)

func mustLookup(t *testing.T, symbol string) Unit {
	t.Helper()
	u, err := Lookup(symbol)
	if err != nil {
		t.Fatalf("Lookup(%q) error = %v", symbol, err)
	}
	return u
}

func TestLookupUnknownSymbol(t *testing.T) {
	_, err := Lookup("furlong")
	if !errors.Is(err, &Error{Code: CodeUnknownUnit}) {
		t.Fatalf("expected unknown unit, got %v", err)
	}
}

func TestConvertAffineTemperature(t *testing.T) {
	degC := mustLookup(t, "degC")
	kelvin := mustLookup(t, "K")

	q, err := NewQuantity(25.0, degC, 0.5)
	if err != nil {
		t.Fatalf("NewQuantity() error = %v", err)
	}
	got, err := q.Convert(kelvin)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if math.Abs(got.Value-298.15) > 1e-9 {
		t.Errorf("value = %v, want 298.15", got.Value)
	}
	// The offset shifts the value but must not widen the uncertainty.
	if math.Abs(got.Uncertainty-0.5) > 1e-12 {
		t.Errorf("uncertainty = %v, want 0.5", got.Uncertainty)
	}
}

func TestConvertScalesUncertainty(t *testing.T) {
	uvk := mustLookup(t, "uV/K")
	vk := mustLookup(t, "V/K")

	q, err := NewQuantity(200.0, uvk, 5.0)
	if err != nil {
		t.Fatalf("NewQuantity() error = %v", err)
	}
	got, err := q.Convert(vk)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if math.Abs(got.Value-200e-6) > 1e-15 {
		t.Errorf("value = %v, want 200e-6", got.Value)
	}
	if math.Abs(got.Uncertainty-5e-6) > 1e-15 {
		t.Errorf("uncertainty = %v, want 5e-6", got.Uncertainty)
	}
}

func TestConvertThermoelectricScales(t *testing.T) {
	tests := []struct {
		from  string
		to    string
		value float64
		want  float64
	}{
		{"mS/cm", "S/m", 10.0, 1.0},
		{"mW/(cm.K)", "W/(m.K)", 15.0, 1.5},
		{"mm", "m", 1500.0, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.from+" to "+tt.to, func(t *testing.T) {
			q, _ := NewQuantity(tt.value, mustLookup(t, tt.from), 0)
			got, err := q.Convert(mustLookup(t, tt.to))
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if math.Abs(got.Value-tt.want) > 1e-12 {
				t.Errorf("value = %v, want %v", got.Value, tt.want)
			}
		})
	}
}

func TestConvertDimensionMismatch(t *testing.T) {
	q, _ := NewQuantity(300, mustLookup(t, "K"), 0)
	_, err := q.Convert(mustLookup(t, "m"))
	if !errors.Is(err, &Error{Code: CodeDimensionMismatch}) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestNewQuantityStabilityBand(t *testing.T) {
	u := mustLookup(t, "m")
	if _, err := NewQuantity(math.MaxFloat64, u, 0); !errors.Is(err, &Error{Code: CodeInstability}) {
		t.Errorf("expected instability for overflow, got %v", err)
	}
	if _, err := NewQuantity(math.SmallestNonzeroFloat64, u, 0); !errors.Is(err, &Error{Code: CodeInstability}) {
		t.Errorf("expected instability for underflow, got %v", err)
	}
	if _, err := NewQuantity(0, u, 0); err != nil {
		t.Errorf("exact zero must be stable, got %v", err)
	}
}

func TestRoundTwelveSignificantDigits(t *testing.T) {
	u := mustLookup(t, "m")
	q := Quantity{Value: 1.0000000000004999, Unit: u}
	if got := q.Round(12).Value; got != 1.0 {
		t.Errorf("rounded value = %v, want 1.0", got)
	}
	zero := Quantity{Value: 0, Unit: u}
	if got := zero.Round(12).Value; got != 0 {
		t.Errorf("zero must round to zero, got %v", got)
	}
}

func TestTryAddMixedUnits(t *testing.T) {
	m, _ := NewQuantity(1.0, mustLookup(t, "m"), 0.03)
	mm, _ := NewQuantity(500.0, mustLookup(t, "mm"), 40.0)

	got, err := m.TryAdd(mm)
	if err != nil {
		t.Fatalf("TryAdd() error = %v", err)
	}
	if math.Abs(got.Value-1.5) > 1e-12 {
		t.Errorf("value = %v, want 1.5", got.Value)
	}
	want := math.Hypot(0.03, 0.04)
	if math.Abs(got.Uncertainty-want) > 1e-12 {
		t.Errorf("uncertainty = %v, want %v", got.Uncertainty, want)
	}

	k, _ := NewQuantity(300, mustLookup(t, "K"), 0)
	if _, err := m.TryAdd(k); !errors.Is(err, &Error{Code: CodeDimensionMismatch}) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestTryMulProducesDerivedDimension(t *testing.T) {
	// S²σT/κ must come out exactly dimensionless, the defining property
	// of the figure of merit.
	s, _ := NewQuantity(200e-6, mustLookup(t, "V/K"), 0)
	sigma, _ := NewQuantity(1e5, mustLookup(t, "S/m"), 0)
	kappa, _ := NewQuantity(1.2, mustLookup(t, "W/(m.K)"), 0)
	temp, _ := NewQuantity(300, mustLookup(t, "K"), 0)

	s2, err := s.TryMul(s)
	if err != nil {
		t.Fatalf("s*s: %v", err)
	}
	num, err := s2.TryMul(sigma)
	if err != nil {
		t.Fatalf("s2*sigma: %v", err)
	}
	num, err = num.TryMul(temp)
	if err != nil {
		t.Fatalf("num*T: %v", err)
	}
	zt, err := num.TryDiv(kappa)
	if err != nil {
		t.Fatalf("num/kappa: %v", err)
	}
	if !zt.Unit.Dim.IsDimensionless() {
		t.Errorf("zT dimension = %v, want dimensionless", zt.Unit.Dim)
	}
	if math.Abs(zt.Value-1.0) > 1e-9 {
		t.Errorf("zT = %v, want 1.0", zt.Value)
	}
}

func TestTryDivByZero(t *testing.T) {
	a, _ := NewQuantity(1, mustLookup(t, "m"), 0)
	b, _ := NewQuantity(0, mustLookup(t, "m"), 0)
	if _, err := a.TryDiv(b); !errors.Is(err, &Error{Code: CodeInstability}) {
		t.Fatalf("expected instability, got %v", err)
	}
}

func TestTryExpRequiresDimensionless(t *testing.T) {
	m, _ := NewQuantity(1, mustLookup(t, "m"), 0)
	if _, err := m.TryExp(); !errors.Is(err, &Error{Code: CodeDomainViolation}) {
		t.Fatalf("expected domain violation, got %v", err)
	}

	x, _ := NewQuantity(1, CanonicalSI(Dimensionless), 0.1)
	got, err := x.TryExp()
	if err != nil {
		t.Fatalf("TryExp() error = %v", err)
	}
	if math.Abs(got.Value-math.E) > 1e-12 {
		t.Errorf("value = %v, want e", got.Value)
	}
	if math.Abs(got.Uncertainty-math.E*0.1) > 1e-12 {
		t.Errorf("uncertainty = %v, want e*0.1", got.Uncertainty)
	}
}

func TestConvertBulk(t *testing.T) {
	mm := mustLookup(t, "mm")
	m := mustLookup(t, "m")

	in := make([]Quantity, 1000)
	for i := range in {
		in[i] = Quantity{Value: float64(i), Unit: mm}
	}
	out, err := ConvertBulk(in, m)
	if err != nil {
		t.Fatalf("ConvertBulk() error = %v", err)
	}
	for i := range out {
		if math.Abs(out[i].Value-float64(i)*1e-3) > 1e-12 {
			t.Fatalf("out[%d] = %v, want %v", i, out[i].Value, float64(i)*1e-3)
		}
	}

	in[500].Unit = mustLookup(t, "K")
	if _, err := ConvertBulk(in, m); err == nil {
		t.Fatal("expected failure on mixed-dimension batch")
	}
}

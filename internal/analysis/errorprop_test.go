package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/thermognosis/thermo-engine/internal/physics"
)

func TestPropagateZTExactVariance(t *testing.T) {
	// S = 200 µV/K, sigma = 1e5 S/m, kappa = 1.2 W/mK, T = 300 K gives
	// zT = 1.0 exactly; the variance follows from the analytic gradients.
	state := physics.State{S: 200e-6, Sigma: 1e5, Kappa: 1.2, T: 300}
	errS, errSigma, errKappa, errT := 5e-6, 2e3, 0.05, 2.0

	est, err := PropagateZT(state, errS, errSigma, errKappa, errT)
	if err != nil {
		t.Fatalf("PropagateZT() error = %v", err)
	}
	if !almostEqual(est.ZT, 1.0, floatTolerance) {
		t.Errorf("zt = %v, want 1.0", est.ZT)
	}

	dzDs := 2 * state.S * state.Sigma * state.T / state.Kappa
	dzDsigma := state.S * state.S * state.T / state.Kappa
	dzDkappa := -state.S * state.S * state.Sigma * state.T / (state.Kappa * state.Kappa)
	dzDt := state.S * state.S * state.Sigma / state.Kappa
	want := math.Sqrt(dzDs*dzDs*errS*errS + dzDsigma*dzDsigma*errSigma*errSigma +
		dzDkappa*dzDkappa*errKappa*errKappa + dzDt*dzDt*errT*errT)
	if !almostEqual(est.Uncertainty, want, floatTolerance) {
		t.Errorf("uncertainty = %v, want %v", est.Uncertainty, want)
	}
}

func TestPropagateZTZeroErrorsZeroUncertainty(t *testing.T) {
	state := physics.State{S: 150e-6, Sigma: 8e4, Kappa: 1.5, T: 400}
	est, err := PropagateZT(state, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("PropagateZT() error = %v", err)
	}
	if est.Uncertainty != 0 {
		t.Errorf("uncertainty = %v, want exactly 0", est.Uncertainty)
	}
}

func TestPropagateZTGuards(t *testing.T) {
	tests := []struct {
		name  string
		state physics.State
		code  physics.ErrCode
	}{
		{"zero kappa", physics.State{S: 1e-4, Sigma: 1e5, Kappa: 0, T: 300}, physics.ErrNonPositiveThermal},
		{"negative kappa", physics.State{S: 1e-4, Sigma: 1e5, Kappa: -1, T: 300}, physics.ErrNonPositiveThermal},
		{"zero temperature", physics.State{S: 1e-4, Sigma: 1e5, Kappa: 1.2, T: 0}, physics.ErrNonPositiveTemperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PropagateZT(tt.state, 1e-6, 10, 0.01, 1)
			var pe *physics.Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *physics.Error, got %v", err)
			}
			if pe.Code != tt.code {
				t.Errorf("code = %v, want %v", pe.Code, tt.code)
			}
		})
	}
}

func TestPropagateZTBatch(t *testing.T) {
	states := []physics.State{
		{S: 200e-6, Sigma: 1e5, Kappa: 1.2, T: 300},
		{S: 150e-6, Sigma: 8e4, Kappa: 1.5, T: 400},
	}
	errS := []float64{5e-6, 5e-6}
	errSigma := []float64{2e3, 2e3}
	errKappa := []float64{0.05, 0.05}
	errT := []float64{2, 2}

	out, err := PropagateZTBatch(states, errS, errSigma, errKappa, errT, Deterministic)
	if err != nil {
		t.Fatalf("PropagateZTBatch() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d estimates, want 2", len(out))
	}
	for i, est := range out {
		if est.ZT <= 0 || est.Uncertainty <= 0 {
			t.Errorf("estimate[%d] = %+v, want positive zt and uncertainty", i, est)
		}
	}
}

func TestPropagateZTBatchRaggedInput(t *testing.T) {
	states := []physics.State{{S: 1e-4, Sigma: 1e5, Kappa: 1.2, T: 300}}
	_, err := PropagateZTBatch(states, []float64{1e-6}, []float64{10}, []float64{0.01}, nil, Deterministic)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

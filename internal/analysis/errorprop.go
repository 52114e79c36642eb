package analysis

import (
	"math"

	"github.com/thermognosis/thermo-engine/internal/physics"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// First-order analytical uncertainty propagation for zT.
//
// Under the independent-variable approximation, the variance of
// zT = S²σT/κ is the gradient-weighted sum of the component variances:
//
//	σ²_zT ≈ (∂zT/∂S)²σ²_S + (∂zT/∂σ)²σ²_σ + (∂zT/∂κ)²σ²_κ + (∂zT/∂T)²σ²_T

// PropagateZT computes zT and its propagated 1-sigma uncertainty for one
// state. Unlike the likelihood evaluator, this path enforces positivity of
// kappa and T up front: the gradients are undefined otherwise.
func PropagateZT(state physics.State, errS, errSigma, errKappa, errT float64) (models.ZTEstimate, error) {
	if state.Kappa <= 0 {
		return models.ZTEstimate{}, &physics.Error{Code: physics.ErrNonPositiveThermal, Value: state.Kappa}
	}
	if state.T <= 0 {
		return models.ZTEstimate{}, &physics.Error{Code: physics.ErrNonPositiveTemperature, Value: state.T}
	}

	s, sigma, kappa, t := state.S, state.Sigma, state.Kappa, state.T
	zt := (s * s * sigma * t) / kappa

	dzDs := (2.0 * s * sigma * t) / kappa
	dzDsigma := (s * s * t) / kappa
	dzDkappa := -(s * s * sigma * t) / (kappa * kappa)
	dzDt := (s * s * sigma) / kappa

	variance := dzDs*dzDs*errS*errS +
		dzDsigma*dzDsigma*errSigma*errSigma +
		dzDkappa*dzDkappa*errKappa*errKappa +
		dzDt*dzDt*errT*errT

	if variance < 0 {
		return models.ZTEstimate{}, ErrNumericalInstability
	}

	return models.ZTEstimate{ZT: zt, Uncertainty: math.Sqrt(variance)}, nil
}

// PropagateZTBatch propagates a whole batch of states. All-or-nothing:
// the first violating index (in index order) fails the call.
func PropagateZTBatch(states []physics.State, errS, errSigma, errKappa, errT []float64, mode Mode) ([]models.ZTEstimate, error) {
	n, derr := equalLengths(len(states), len(errS), len(errSigma), len(errKappa), len(errT))
	if derr != nil {
		return nil, derr
	}

	out := make([]models.ZTEstimate, n)
	errs := make([]error, n)
	forEach(mode, n, func(i int) {
		out[i], errs[i] = PropagateZT(states[i], errS[i], errSigma[i], errKappa[i], errT[i])
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

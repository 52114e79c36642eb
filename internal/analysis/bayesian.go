package analysis

import (
	"math"

	"github.com/thermognosis/thermo-engine/internal/physics"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// Bayesian evidential aggregation over batches of thermoelectric
// measurements.
//
// Each hypothesis carries a modeled figure of merit zT = S²σT/κ; the
// penalized Gaussian log-likelihood of the observed zT is regularized by a
// quadratic Wiedemann-Franz penalty, then the batch of unnormalized
// log-posteriors is normalized in the log domain via log-sum-exp. The LSE
// trick keeps posteriors strictly positive even for log-likelihoods around
// -5000, where a naive exp/sum would underflow to literal zero.

// WiedemannFranzPenalty scores the severity of a Wiedemann-Franz violation.
// The minimum electronic thermal conductivity is kappa_e = L0·sigma·T; a
// reported total kappa below it is unphysical and is penalized
// quadratically: lambda·max(0, kappa_e - kappa)². Always finite and
// non-negative for finite inputs; zero for compliant materials.
func WiedemannFranzPenalty(sigma, kappa, t, lambda float64) float64 {
	kappaE := physics.L0Sommerfeld * sigma * t
	violation := kappaE - kappa
	if violation <= 0 {
		return 0
	}
	return lambda * violation * violation
}

// LogLikelihoodBatch computes the penalized Gaussian log-likelihood of each
// observation against its hypothesis:
//
//	ln L_i = -0.5·((ztObs_i - zT_i)/sigmaZT_i)² - ln(sigmaZT_i) - 0.5·ln(2π) - Phi_WF_i
//
// Each index is independent and is evaluated unordered in Parallel mode.
// The evaluator performs no positivity validation on kappa, sigma or T; a
// degenerate input (kappa = 0) yields a -Inf likelihood, which the
// posterior normalizer maps to exact zero mass for that hypothesis. The
// normalizer fails only when the whole batch collapses.
func LogLikelihoodBatch(s, sigma, kappa, t, ztObs, sigmaZT []float64, lambdaWF float64, mode Mode) ([]float64, error) {
	n, derr := equalLengths(len(s), len(sigma), len(kappa), len(t), len(ztObs), len(sigmaZT))
	if derr != nil {
		return nil, derr
	}
	if n == 0 {
		return []float64{}, nil
	}

	out := make([]float64, n)
	forEach(mode, n, func(i int) {
		ztModel := (s[i] * s[i] * sigma[i] * t[i]) / kappa[i]
		residual := (ztObs[i] - ztModel) / sigmaZT[i]
		logL := -0.5*residual*residual - math.Log(sigmaZT[i]) - 0.5*math.Log(2*math.Pi)
		out[i] = logL - WiedemannFranzPenalty(sigma[i], kappa[i], t[i], lambdaWF)
	})
	return out, nil
}

// LogPosteriorBatch evaluates the normalized Bayesian posterior over a
// batch of hypotheses. Steps:
//
//  1. unnormalized log-posterior u_i = ln L_i + ln(prior_i)
//  2. M = max(u), seeded with -Inf
//  3. M non-finite → zero probability space (every hypothesis has
//     effectively zero mass)
//  4. LSE = M + ln(Σ exp(u_i - M)); non-finite LSE → numerical instability
//  5. logPosterior_i = u_i - LSE; posterior_i = exp(logPosterior_i)
//
// Priors are consumed through math.Log with no eager positivity check. A
// single hypothesis with -Inf mass (zero prior, degenerate state) simply
// receives exact zero posterior; steps 3-4 fail the call only when every
// hypothesis has -Inf mass or a NaN poisons the reduction. The posterior
// sums to 1 within a tolerance scaling with sqrt(N) in Parallel mode, and
// to machine epsilon for N = 1. Normalization preserves the strict
// ordering of the penalized log-likelihoods, so a constraint violator
// always ranks below an otherwise identical compliant hypothesis.
func LogPosteriorBatch(s, sigma, kappa, t, ztObs, sigmaZT, prior []float64, lambdaWF float64, mode Mode) (models.PosteriorResult, error) {
	n, derr := equalLengths(len(s), len(sigma), len(kappa), len(t), len(ztObs), len(sigmaZT), len(prior))
	if derr != nil {
		return models.PosteriorResult{}, derr
	}
	if n == 0 {
		return models.PosteriorResult{Posterior: []float64{}, LogPosterior: []float64{}}, nil
	}

	logL, err := LogLikelihoodBatch(s, sigma, kappa, t, ztObs, sigmaZT, lambdaWF, mode)
	if err != nil {
		return models.PosteriorResult{}, err
	}

	unnorm := make([]float64, n)
	forEach(mode, n, func(i int) {
		unnorm[i] = logL[i] + math.Log(prior[i])
	})

	m := maxReduce(mode, unnorm)
	if math.IsInf(m, -1) || math.IsNaN(m) {
		return models.PosteriorResult{}, ErrZeroProbabilitySpace
	}

	lse := m + math.Log(sumExpShifted(mode, unnorm, m))
	if math.IsNaN(lse) || math.IsInf(lse, 0) {
		return models.PosteriorResult{}, ErrNumericalInstability
	}

	posterior := make([]float64, n)
	logPosterior := make([]float64, n)
	forEach(mode, n, func(i int) {
		lp := unnorm[i] - lse
		logPosterior[i] = lp
		posterior[i] = math.Exp(lp)
	})

	return models.PosteriorResult{Posterior: posterior, LogPosterior: logPosterior}, nil
}

// LogPosteriorForBatch is the ObservationBatch convenience form of
// LogPosteriorBatch, used by the API and scanner layers.
func LogPosteriorForBatch(b models.ObservationBatch, mode Mode) (models.PosteriorResult, error) {
	return LogPosteriorBatch(
		b.Seebeck, b.Conductivity, b.Thermal, b.Temperature,
		b.ZTObserved, b.ZTSigma, b.Prior, b.LambdaWF, mode,
	)
}

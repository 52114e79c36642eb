package analysis

import (
	"math"

	"github.com/thermognosis/thermo-engine/pkg/models"
)

// Information-gain and data-gap scoring.
//
// Quantifies historical sampling bias over the temperature domain: each
// subset of a shared flat measurement array is histogrammed over [tMin,
// tMax) and scored by Shannon entropy plus KL divergence against the
// uniform reference u_k = 1/K. Bins with zero count are skipped entirely —
// the exact algebraic resolution of the p·ln(p) limit at zero, not a
// numerical approximation.

// InformationGainBatch scores every subset independently; output position
// matches input position regardless of scheduling order.
//
// Preconditions, checked once before any per-subset work: numBins > 0 and
// tMax > tMin (else numerical instability); every bound must satisfy
// 0 <= start <= end <= len(t) (else dimension mismatch, reported as the
// offending end index against the array length).
//
// Out-of-domain samples are clamped to the nearest terminal bin rather than
// discarded, so bin counts always sum to the subset size exactly and no
// probability mass leaks. Empty subsets yield the zero GapScore.
func InformationGainBatch(t []float64, bounds []models.Bounds, tMin, tMax float64, numBins int, gamma1, gamma2 float64, mode Mode) ([]models.GapScore, error) {
	if numBins <= 0 || tMax <= tMin {
		return nil, ErrNumericalInstability
	}
	n := len(t)
	for _, b := range bounds {
		if b.Start < 0 || b.Start > b.End || b.End > n {
			return nil, dimensionMismatch(b.End, n)
		}
	}

	uniform := 1.0 / float64(numBins)
	delta := (tMax - tMin) / float64(numBins)

	out := make([]models.GapScore, len(bounds))
	forEach(mode, len(bounds), func(i int) {
		out[i] = scoreSubset(t[bounds[i].Start:bounds[i].End], tMin, delta, numBins, uniform, gamma1, gamma2)
	})
	return out, nil
}

// scoreSubset is a total function: once the batch preconditions hold, no
// subset can fail.
func scoreSubset(samples []float64, tMin, delta float64, numBins int, uniform, gamma1, gamma2 float64) models.GapScore {
	total := len(samples)
	if total == 0 {
		return models.GapScore{}
	}

	counts := make([]int, numBins)
	for _, v := range samples {
		idx := int(math.Floor((v - tMin) / delta))
		if idx < 0 {
			idx = 0
		} else if idx >= numBins {
			idx = numBins - 1
		}
		counts[idx]++
	}

	totalF := float64(total)
	var h, dkl float64
	for _, c := range counts {
		if c == 0 {
			continue // lim p->0 of p·ln(p) is 0
		}
		p := float64(c) / totalF
		h -= p * math.Log(p)
		dkl += p * math.Log(p/uniform)
	}

	return models.GapScore{
		Entropy:      h,
		KLDivergence: dkl,
		TotalScore:   gamma1*h + gamma2*dkl,
	}
}

package analysis

import (
	"math"

	"github.com/thermognosis/thermo-engine/pkg/models"
)

// Graph-style material ranking.
//
// Aggregates (posterior, zT, citation) triples into one scalar rank per
// material, where each material is a Bounds partition of the shared flat
// arrays — the same half-open convention used by the information-gain
// scorer. Citation counts enter through a logarithmic weight so heavily
// cited measurements dominate without drowning out sparse ones, and the
// rank is entropy-regularized to discount materials whose posterior mass
// is spread thin.

// ShannonEntropy computes -Σ p·ln(p) over a discrete distribution,
// skipping entries at or below machine epsilon to resolve the p·ln(p)
// singularity at zero.
func ShannonEntropy(p []float64) float64 {
	var h float64
	for _, pi := range p {
		if pi > epsilon {
			h -= pi * math.Log(pi)
		}
	}
	return h
}

const epsilon = 2.220446049250313e-16 // IEEE 754 double machine epsilon

// materialRank evaluates one partition:
//
//	w_i = 1 + alpha·ln(1 + c_i)   (c_i floored at 0)
//	R   = Σ w_i·p_i·zt_i / Σ w_i
//	rank = R - beta·H(p)
//
// Empty partitions rank 0.
func materialRank(p, zt, c []float64, alpha, beta float64) float64 {
	if len(p) == 0 {
		return 0
	}

	var sumWPZt, sumW float64
	for i := range p {
		ci := c[i]
		if ci < 0 {
			ci = 0
		}
		w := 1.0 + alpha*math.Log(1.0+ci)
		sumWPZt += w * p[i] * zt[i]
		sumW += w
	}

	var r float64
	if sumW > epsilon {
		r = sumWPZt / sumW
	}
	return r - beta*ShannonEntropy(p)
}

// MaterialRankBatch ranks every partition of the (posterior, zT, citation)
// arrays. The three arrays must be equal length and every bound in range;
// both are validated before any partition is evaluated.
func MaterialRankBatch(p, zt, c []float64, bounds []models.Bounds, alpha, beta float64, mode Mode) ([]float64, error) {
	n := len(p)
	if len(zt) != n {
		return nil, dimensionMismatch(n, len(zt))
	}
	if len(c) != n {
		return nil, dimensionMismatch(n, len(c))
	}
	for _, b := range bounds {
		if b.Start < 0 || b.Start > b.End || b.End > n {
			return nil, dimensionMismatch(b.End, n)
		}
	}

	ranks := make([]float64, len(bounds))
	forEach(mode, len(bounds), func(i int) {
		b := bounds[i]
		ranks[i] = materialRank(p[b.Start:b.End], zt[b.Start:b.End], c[b.Start:b.End], alpha, beta)
	})
	return ranks, nil
}

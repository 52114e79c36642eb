package metrics

import (
	"math"

	"github.com/thermognosis/thermo-engine/pkg/models"
)

// Partition-agreement metrics for reproducibility auditing.
//
// The shadow runner classifies the same batch under both execution
// strategies and compares the induced quality-class partitions: any
// disagreement beyond floating drift shows up here as imperfect agreement.

// ClassLabels converts a quality-class vector into integer partition labels.
func ClassLabels(classes []models.QualityClass) []int {
	labels := make([]int, len(classes))
	for i, c := range classes {
		labels[i] = int(c)
	}
	return labels
}

// AdjustedRandIndex computes the Adjusted Rand Index between two partitions
// of the same record set.
//
// ARI = (RI - Expected_RI) / (Max_RI - Expected_RI)
// where RI = (a + b) / C(n, 2)
//   a = number of pairs in the same class in both partitions
//   b = number of pairs in different classes in both partitions
//
// Values range from -1 (worse than random) to 1 (perfect agreement). 0 = random.
func AdjustedRandIndex(left, right []int) float64 {
	n := len(left)
	if n != len(right) || n < 2 {
		return 0.0
	}

	nij, rowSums, colSums := contingency(left, right)

	sumNijC2 := 0.0
	for i := range nij {
		for j := range nij[i] {
			sumNijC2 += comb2(nij[i][j])
		}
	}

	sumAiC2 := 0.0
	for _, a := range rowSums {
		sumAiC2 += comb2(a)
	}

	sumBjC2 := 0.0
	for _, b := range colSums {
		sumBjC2 += comb2(b)
	}

	nC2 := comb2(n)
	if nC2 == 0 {
		return 0.0
	}

	expectedIndex := (sumAiC2 * sumBjC2) / nC2
	maxIndex := 0.5 * (sumAiC2 + sumBjC2)

	denominator := maxIndex - expectedIndex
	if math.Abs(denominator) < 1e-12 {
		return 1.0 // both partitions trivial, exact agreement
	}

	return (sumNijC2 - expectedIndex) / denominator
}

// VariationOfInformation computes the VI distance between two partitions.
//
// VI(C, C') = H(C|C') + H(C'|C)
// where H is the conditional entropy.
//
// Lower is better. 0 = identical partitions.
func VariationOfInformation(left, right []int) float64 {
	n := len(left)
	if n != len(right) || n < 2 {
		return 0.0
	}
	nf := float64(n)

	nij, rowSums, colSums := contingency(left, right)

	// H(C|C') = -sum_ij (n_ij/n) * log2(n_ij / b_j)
	hCgivenCp := 0.0
	for i := range nij {
		for j := range nij[i] {
			if nij[i][j] > 0 && colSums[j] > 0 {
				pij := float64(nij[i][j]) / nf
				hCgivenCp -= pij * math.Log2(float64(nij[i][j])/float64(colSums[j]))
			}
		}
	}

	// H(C'|C) = -sum_ij (n_ij/n) * log2(n_ij / a_i)
	hCpgivenC := 0.0
	for i := range nij {
		for j := range nij[i] {
			if nij[i][j] > 0 && rowSums[i] > 0 {
				pij := float64(nij[i][j]) / nf
				hCpgivenC -= pij * math.Log2(float64(nij[i][j])/float64(rowSums[i]))
			}
		}
	}

	return hCgivenCp + hCpgivenC
}

// contingency builds the n_ij matrix and its marginals for two label
// sequences over the same records.
func contingency(left, right []int) ([][]int, []int, []int) {
	leftLabels := uniqueLabels(left)
	rightLabels := uniqueLabels(right)

	leftMap := make(map[int]int)
	for i, l := range leftLabels {
		leftMap[l] = i
	}
	rightMap := make(map[int]int)
	for i, l := range rightLabels {
		rightMap[l] = i
	}

	nij := make([][]int, len(leftLabels))
	for i := range nij {
		nij[i] = make([]int, len(rightLabels))
	}
	for k := range left {
		nij[leftMap[left[k]]][rightMap[right[k]]]++
	}

	rowSums := make([]int, len(leftLabels))
	colSums := make([]int, len(rightLabels))
	for i := range nij {
		for j := range nij[i] {
			rowSums[i] += nij[i][j]
			colSums[j] += nij[i][j]
		}
	}
	return nij, rowSums, colSums
}

// comb2 computes C(n, 2) = n*(n-1)/2
func comb2(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n) * float64(n-1) / 2.0
}

// uniqueLabels returns the labels in first-seen order.
func uniqueLabels(labels []int) []int {
	seen := make(map[int]bool)
	var result []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			result = append(result, l)
		}
	}
	return result
}

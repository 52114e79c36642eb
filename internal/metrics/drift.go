package metrics

import "math"

// Floating-point drift between two result vectors of the same computation
// under different execution strategies.

// MaxAbsDeviation returns the largest absolute elementwise difference.
// Mismatched lengths yield +Inf: structurally different results can never
// be "within tolerance".
func MaxAbsDeviation(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var m float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > m || math.IsNaN(d) {
			m = d
		}
	}
	return m
}

// RMSDeviation returns the root-mean-square elementwise difference.
func RMSDeviation(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}

package analysis

import (
	"fmt"
	"math"

	"github.com/thermognosis/thermo-engine/pkg/models"
)

// Weighted quality classification of data records.
//
// Each record's six-component quality vector is aggregated into a weighted
// base score, entropy-regularized, and mapped to a discrete class band. A
// tripped hard-constraint gate collapses the record straight to Reject
// regardless of its components.

// ScoringWeights is the weight vector of the aggregation model. Weights
// must sum to exactly 1.0 (within machine epsilon).
type ScoringWeights struct {
	Completeness       float64
	Credibility        float64
	PhysicsConsistency float64
	ErrorMagnitude     float64
	Smoothness         float64
	Metadata           float64
}

// DefaultScoringWeights returns the normative engine defaults.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Completeness:       0.25,
		Credibility:        0.25,
		PhysicsConsistency: 0.20,
		ErrorMagnitude:     0.15,
		Smoothness:         0.10,
		Metadata:           0.05,
	}
}

func (w ScoringWeights) validate() error {
	sum := w.Completeness + w.Credibility + w.PhysicsConsistency + w.ErrorMagnitude + w.Smoothness + w.Metadata
	if math.Abs(sum-1.0) > epsilon {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// ClassifyScore maps a bounded score onto its quality class band.
func ClassifyScore(score float64) models.QualityClass {
	switch {
	case score >= 0.90:
		return models.ClassA
	case score >= 0.80:
		return models.ClassB
	case score >= 0.65:
		return models.ClassC
	case score >= 0.50:
		return models.ClassD
	default:
		return models.ClassReject
	}
}

// QualityEvaluator scores records under a fixed weight vector and entropy
// regularization strength.
type QualityEvaluator struct {
	weights ScoringWeights
	lambda  float64
}

// NewQualityEvaluator validates the weights up front so per-record
// evaluation cannot fail on configuration.
func NewQualityEvaluator(weights ScoringWeights, lambda float64) (*QualityEvaluator, error) {
	if err := weights.validate(); err != nil {
		return nil, err
	}
	return &QualityEvaluator{weights: weights, lambda: lambda}, nil
}

// EvaluateRecord scores a single quality vector. Components outside [0,1]
// are a dimension-style structural fault surfaced as an error.
func (e *QualityEvaluator) EvaluateRecord(v models.QualityVector) (models.ScoringResult, error) {
	components := [6]float64{
		v.Completeness, v.Credibility, v.PhysicsConsistency,
		v.ErrorMagnitude, v.Smoothness, v.Metadata,
	}
	for i, q := range components {
		if q < 0 || q > 1 {
			return models.ScoringResult{}, fmt.Errorf("quality component %d out of bounds [0,1]: %v", i, q)
		}
	}

	if !v.HardGate {
		return models.ScoringResult{Class: models.ClassReject}, nil
	}

	base := components[0]*e.weights.Completeness +
		components[1]*e.weights.Credibility +
		components[2]*e.weights.PhysicsConsistency +
		components[3]*e.weights.ErrorMagnitude +
		components[4]*e.weights.Smoothness +
		components[5]*e.weights.Metadata

	var entropy float64
	for _, q := range components {
		if q > 0 {
			entropy -= q * math.Log(q)
		}
	}

	regularized := base - e.lambda*entropy
	bounded := math.Min(math.Max(regularized, 0), 1)

	return models.ScoringResult{
		BaseScore:        base,
		RegularizedScore: bounded,
		Entropy:          entropy,
		Class:            ClassifyScore(bounded),
	}, nil
}

// EvaluateBatch scores a batch of records. All-or-nothing: the first
// invalid record (in index order) fails the whole call with no partial
// results.
func (e *QualityEvaluator) EvaluateBatch(vectors []models.QualityVector, mode Mode) ([]models.ScoringResult, error) {
	out := make([]models.ScoringResult, len(vectors))
	errs := make([]error, len(vectors))
	forEach(mode, len(vectors), func(i int) {
		out[i], errs[i] = e.EvaluateRecord(vectors[i])
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

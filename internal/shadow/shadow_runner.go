package shadow

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/thermognosis/thermo-engine/internal/analysis"
	"github.com/thermognosis/thermo-engine/internal/metrics"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// ShadowRunner replays every posterior batch under both execution
// strategies and audits the drift between them. Parallel results never
// reach callers unaudited during an observation window; the deterministic
// result stays authoritative and the comparison is persisted for review.
type ShadowRunner struct {
	store     Store
	evaluator *analysis.QualityEvaluator
	baseTol   float64
}

// Store is the persistence surface the runner needs; nil-safe usage lets
// the engine run shadow audits without a database attached.
type Store interface {
	SaveShadowResult(ctx context.Context, runID string, batchSize int,
		maxAbsDrift, rmsDrift, tolerance float64, withinBound bool,
		randIndex, varInformation float64) error
}

// Result captures one deterministic-vs-parallel comparison.
type Result struct {
	RunID          string    `json:"runId"`
	BatchSize      int       `json:"batchSize"`
	MaxAbsDrift    float64   `json:"maxAbsDrift"`
	RMSDrift       float64   `json:"rmsDrift"`
	Tolerance      float64   `json:"tolerance"`
	WithinBound    bool      `json:"withinBound"`
	RandIndex      float64   `json:"randIndex"`
	VarInformation float64   `json:"varInformation"`
	CheckedAt      time.Time `json:"checkedAt"`
}

// NewShadowRunner creates a runner with the given drift tolerance base.
// The effective bound for a batch of N scales as baseTol·sqrt(N). A nil
// store disables persistence but not auditing.
func NewShadowRunner(store Store, evaluator *analysis.QualityEvaluator, baseTol float64) *ShadowRunner {
	if baseTol <= 0 {
		baseTol = 1e-12
	}
	return &ShadowRunner{store: store, evaluator: evaluator, baseTol: baseTol}
}

// AuditPosterior runs the batch under both modes and returns the
// deterministic result together with the drift audit. The deterministic
// result is always the one handed to callers.
func (sr *ShadowRunner) AuditPosterior(ctx context.Context, runID string, batch models.ObservationBatch) (models.PosteriorResult, *Result, error) {
	det, err := analysis.LogPosteriorForBatch(batch, analysis.Deterministic)
	if err != nil {
		return models.PosteriorResult{}, nil, err
	}
	par, err := analysis.LogPosteriorForBatch(batch, analysis.Parallel)
	if err != nil {
		// Parallel-only failure is itself a divergence worth surfacing.
		log.Printf("[shadow] DIVERGENCE on %s: parallel mode failed where deterministic succeeded: %v", runID, err)
		return det, nil, nil
	}

	n := len(det.Posterior)
	result := &Result{
		RunID:       runID,
		BatchSize:   n,
		MaxAbsDrift: metrics.MaxAbsDeviation(det.Posterior, par.Posterior),
		RMSDrift:    metrics.RMSDeviation(det.Posterior, par.Posterior),
		Tolerance:   sr.baseTol * math.Sqrt(float64(n)),
		CheckedAt:   time.Now(),
	}
	result.WithinBound = result.MaxAbsDrift <= result.Tolerance

	if !result.WithinBound {
		log.Printf("[shadow] DIVERGENCE on %s: max_abs_drift=%.3e exceeds tolerance=%.3e (n=%d)",
			runID, result.MaxAbsDrift, result.Tolerance, n)
	}

	if sr.store != nil {
		if err := sr.store.SaveShadowResult(ctx, result.RunID, result.BatchSize,
			result.MaxAbsDrift, result.RMSDrift, result.Tolerance, result.WithinBound,
			result.RandIndex, result.VarInformation); err != nil {
			return det, result, err
		}
	}
	return det, result, nil
}

// AuditQuality classifies the batch under both modes and compares the
// induced class partitions with ARI and VI. Scores only move the audit
// away from perfect agreement when classifications actually differ, which
// for a pure per-record scorer indicates real nondeterminism, not float
// drift.
func (sr *ShadowRunner) AuditQuality(ctx context.Context, runID string, vectors []models.QualityVector) (*Result, error) {
	if sr.evaluator == nil || len(vectors) < 2 {
		return nil, nil
	}
	det, err := sr.evaluator.EvaluateBatch(vectors, analysis.Deterministic)
	if err != nil {
		return nil, err
	}
	par, err := sr.evaluator.EvaluateBatch(vectors, analysis.Parallel)
	if err != nil {
		log.Printf("[shadow] DIVERGENCE on %s: parallel quality pass failed: %v", runID, err)
		return nil, nil
	}

	detClasses := make([]models.QualityClass, len(det))
	parClasses := make([]models.QualityClass, len(par))
	detScores := make([]float64, len(det))
	parScores := make([]float64, len(par))
	for i := range det {
		detClasses[i] = det[i].Class
		parClasses[i] = par[i].Class
		detScores[i] = det[i].RegularizedScore
		parScores[i] = par[i].RegularizedScore
	}

	n := len(vectors)
	result := &Result{
		RunID:          runID,
		BatchSize:      n,
		MaxAbsDrift:    metrics.MaxAbsDeviation(detScores, parScores),
		RMSDrift:       metrics.RMSDeviation(detScores, parScores),
		Tolerance:      sr.baseTol * math.Sqrt(float64(n)),
		RandIndex:      metrics.AdjustedRandIndex(metrics.ClassLabels(detClasses), metrics.ClassLabels(parClasses)),
		VarInformation: metrics.VariationOfInformation(metrics.ClassLabels(detClasses), metrics.ClassLabels(parClasses)),
		CheckedAt:      time.Now(),
	}
	result.WithinBound = result.MaxAbsDrift <= result.Tolerance

	if result.RandIndex < 1.0 {
		log.Printf("[shadow] DIVERGENCE on %s: class partitions disagree, ari=%.4f vi=%.4f",
			runID, result.RandIndex, result.VarInformation)
	}

	if sr.store != nil {
		if err := sr.store.SaveShadowResult(ctx, result.RunID, result.BatchSize,
			result.MaxAbsDrift, result.RMSDrift, result.Tolerance, result.WithinBound,
			result.RandIndex, result.VarInformation); err != nil {
			return result, err
		}
	}
	return result, nil
}

package scanner

import (
	"context"
	"log"
	"math"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thermognosis/thermo-engine/internal/analysis"
	"github.com/thermognosis/thermo-engine/internal/db"
	"github.com/thermognosis/thermo-engine/internal/ingest"
	"github.com/thermognosis/thermo-engine/internal/physics"
	"github.com/thermognosis/thermo-engine/internal/shadow"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// DatasetScanner walks a directory of measurement dumps and runs the full
// evidential pipeline over each file: ingest, physics gate, posterior,
// information gain, quality classification, persistence. This provides the
// retroactive coverage over historical datasets that the inbox watcher
// alone cannot.
type DatasetScanner struct {
	dbStore   *db.PostgresStore
	auditor   *shadow.ShadowRunner
	evaluator *analysis.QualityEvaluator
	alertFunc func(alert models.CandidateAlert)
	cfg       Config

	// Progress tracking (atomic for safe concurrent reads)
	filesScanned    atomic.Int64
	statesEvaluated atomic.Int64
	statesSkipped   atomic.Int64
	candidatesFound atomic.Int64
	isRunning       atomic.Bool
}

// Config tunes the scanning pipeline.
type Config struct {
	LambdaWF       float64       // Wiedemann-Franz penalty weight
	Mode           analysis.Mode // execution strategy for batch evaluators
	NumBins        int           // temperature histogram bins
	Gamma1, Gamma2 float64       // gap score mixing weights
	AlertPosterior float64       // posterior mass needed to raise an alert
	AlertZT        float64       // observed zT needed to raise an alert
}

// DefaultConfig returns the standing pipeline defaults.
func DefaultConfig() Config {
	return Config{
		LambdaWF:       10.0,
		Mode:           analysis.Parallel,
		NumBins:        16,
		Gamma1:         1.0,
		Gamma2:         1.0,
		AlertPosterior: 0.5,
		AlertZT:        1.5,
	}
}

// ScanProgress represents the scanner's current state for the API.
type ScanProgress struct {
	IsRunning       bool  `json:"isRunning"`
	FilesScanned    int64 `json:"filesScanned"`
	StatesEvaluated int64 `json:"statesEvaluated"`
	StatesSkipped   int64 `json:"statesSkipped"`
	CandidatesFound int64 `json:"candidatesFound"`
}

func NewDatasetScanner(dbStore *db.PostgresStore, auditor *shadow.ShadowRunner,
	evaluator *analysis.QualityEvaluator, alertFunc func(models.CandidateAlert), cfg Config) *DatasetScanner {
	return &DatasetScanner{
		dbStore:   dbStore,
		auditor:   auditor,
		evaluator: evaluator,
		alertFunc: alertFunc,
		cfg:       cfg,
	}
}

// GetProgress returns the current scanning progress (thread-safe).
func (s *DatasetScanner) GetProgress() ScanProgress {
	return ScanProgress{
		IsRunning:       s.isRunning.Load(),
		FilesScanned:    s.filesScanned.Load(),
		StatesEvaluated: s.statesEvaluated.Load(),
		StatesSkipped:   s.statesSkipped.Load(),
		CandidatesFound: s.candidatesFound.Load(),
	}
}

// ScanDir processes every CSV dataset under dir asynchronously, in
// lexicographic order for reproducible run sequencing.
func (s *DatasetScanner) ScanDir(ctx context.Context, dir string) {
	if s.isRunning.Load() {
		log.Println("[scanner] scan already in progress, ignoring duplicate request")
		return
	}

	s.isRunning.Store(true)
	s.filesScanned.Store(0)
	s.statesEvaluated.Store(0)
	s.statesSkipped.Store(0)
	s.candidatesFound.Store(0)

	go func() {
		defer s.isRunning.Store(false)

		files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil {
			log.Printf("[scanner] bad dataset directory %s: %v", dir, err)
			return
		}
		sort.Strings(files)

		log.Printf("[scanner] starting historical scan: %d datasets under %s", len(files), dir)

		for _, path := range files {
			select {
			case <-ctx.Done():
				log.Printf("[scanner] scan cancelled at %s", path)
				return
			default:
			}

			if _, err := s.ProcessFile(ctx, path); err != nil {
				log.Printf("[scanner] error processing %s: %v", path, err)
			}
			s.filesScanned.Add(1)
		}

		log.Printf("[scanner] scan complete: %d files, %d states evaluated, %d candidates found",
			s.filesScanned.Load(), s.statesEvaluated.Load(), s.candidatesFound.Load())
	}()
}

// ProcessFile runs the pipeline over one dataset and returns the persisted
// run record.
func (s *DatasetScanner) ProcessFile(ctx context.Context, path string) (models.EvaluationRun, error) {
	states, err := ingest.ReadStates(path)
	if err != nil {
		return models.EvaluationRun{}, err
	}

	// Physics gate: violating states yield NaN and are dropped here so a
	// single corrupt row never aborts a dataset pass.
	zts, err := physics.ZTBatch(states.Seebeck, states.Conductivity, states.Thermal, states.Temperature)
	if err != nil {
		return models.EvaluationRun{}, err
	}

	batch := models.ObservationBatch{LambdaWF: s.cfg.LambdaWF}
	var kept []int
	for i, zt := range zts {
		if math.IsNaN(zt) {
			s.statesSkipped.Add(1)
			continue
		}
		kept = append(kept, i)
		batch.Seebeck = append(batch.Seebeck, states.Seebeck[i])
		batch.Conductivity = append(batch.Conductivity, states.Conductivity[i])
		batch.Thermal = append(batch.Thermal, states.Thermal[i])
		batch.Temperature = append(batch.Temperature, states.Temperature[i])
		batch.ZTObserved = append(batch.ZTObserved, zt)
		// Interpolated dumps carry no per-point error bars; assume 10%
		// relative uncertainty with an absolute floor.
		batch.ZTSigma = append(batch.ZTSigma, math.Max(0.05, 0.1*zt))
	}

	n := len(kept)
	run := models.EvaluationRun{
		RunID:     uuid.NewString(),
		Source:    filepath.Base(path),
		Mode:      s.cfg.Mode.String(),
		BatchSize: n,
		LambdaWF:  s.cfg.LambdaWF,
	}
	if n == 0 {
		return run, nil
	}

	batch.Prior = make([]float64, n)
	for i := range batch.Prior {
		batch.Prior[i] = 1.0 / float64(n)
	}

	var posterior models.PosteriorResult
	if s.auditor != nil {
		posterior, _, err = s.auditor.AuditPosterior(ctx, run.RunID, batch)
	} else {
		posterior, err = analysis.LogPosteriorForBatch(batch, s.cfg.Mode)
	}
	if err != nil {
		return models.EvaluationRun{}, err
	}
	s.statesEvaluated.Add(int64(n))

	for i, p := range posterior.Posterior {
		run.PosteriorSum += p
		if p > run.MaxPosterior {
			run.MaxPosterior = p
			run.ArgMax = i
		}
	}

	gaps, err := analysis.InformationGainBatch(batch.Temperature,
		[]models.Bounds{{Start: 0, End: n}},
		physics.TMin, physics.TMax, s.cfg.NumBins, s.cfg.Gamma1, s.cfg.Gamma2, s.cfg.Mode)
	if err != nil {
		return models.EvaluationRun{}, err
	}

	if s.dbStore != nil {
		if err := s.dbStore.SaveEvaluationRun(ctx, run, gaps); err != nil {
			log.Printf("[scanner] db persist error for %s: %v", run.Source, err)
		}
	}

	if s.evaluator != nil {
		s.scoreQuality(ctx, run.RunID, batch)
	}

	for i, p := range posterior.Posterior {
		if p < s.cfg.AlertPosterior || batch.ZTObserved[i] < s.cfg.AlertZT {
			continue
		}
		s.candidatesFound.Add(1)
		if s.alertFunc != nil {
			s.alertFunc(models.CandidateAlert{
				RunID:       run.RunID,
				Source:      run.Source,
				Index:       i,
				Posterior:   p,
				ZTObserved:  batch.ZTObserved[i],
				Temperature: batch.Temperature[i],
				Timestamp:   time.Now().Format(time.RFC3339),
			})
		}
	}

	return run, nil
}

// scoreQuality derives a quality vector per gated state and persists the
// classification. Interpolated CSV states carry no provenance metadata, so
// the credibility and metadata components take fixed penalized values and
// the discriminating signal comes from physics consistency and error
// magnitude.
func (s *DatasetScanner) scoreQuality(ctx context.Context, runID string, batch models.ObservationBatch) {
	vectors := make([]models.QualityVector, len(batch.ZTObserved))
	for i := range vectors {
		consistency := 1.0
		if physics.ValidateBounds(batch.Seebeck[i], batch.Conductivity[i], batch.Thermal[i], batch.Temperature[i]) != nil {
			consistency = 0.3
		}
		if analysis.WiedemannFranzPenalty(batch.Conductivity[i], batch.Thermal[i], batch.Temperature[i], 1.0) > 0 {
			consistency = 0
		}
		relErr := batch.ZTSigma[i] / math.Max(batch.ZTObserved[i], 1e-9)
		vectors[i] = models.QualityVector{
			Completeness:       1.0,
			Credibility:        0.7,
			PhysicsConsistency: consistency,
			ErrorMagnitude:     math.Max(0, 1.0-relErr),
			Smoothness:         0.8,
			Metadata:           0.5,
			HardGate:           true,
		}
	}

	// Replay the classification under both execution strategies so the
	// partition-agreement audit covers the quality pass, not just the
	// posterior.
	if s.auditor != nil {
		if _, err := s.auditor.AuditQuality(ctx, runID, vectors); err != nil {
			log.Printf("[scanner] quality audit error for run %s: %v", runID, err)
		}
	}

	results, err := s.evaluator.EvaluateBatch(vectors, s.cfg.Mode)
	if err != nil {
		log.Printf("[scanner] quality scoring failed for run %s: %v", runID, err)
		return
	}
	if s.dbStore != nil {
		if err := s.dbStore.SaveQualityAssessments(ctx, runID, results); err != nil {
			log.Printf("[scanner] quality persist error for run %s: %v", runID, err)
		}
	}
}

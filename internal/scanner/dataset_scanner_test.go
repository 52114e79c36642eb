package scanner

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/thermognosis/thermo-engine/internal/analysis"
	"github.com/thermognosis/thermo-engine/internal/shadow"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// recordingStore counts persisted drift audits.
type recordingStore struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingStore) SaveShadowResult(ctx context.Context, runID string, batchSize int,
	maxAbsDrift, rmsDrift, tolerance float64, withinBound bool, randIndex, varInformation float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func writeDataset(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestScanner(t *testing.T, alerts *[]models.CandidateAlert) *DatasetScanner {
	t.Helper()
	evaluator, err := analysis.NewQualityEvaluator(analysis.DefaultScoringWeights(), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Mode = analysis.Deterministic
	return NewDatasetScanner(nil, nil, evaluator, func(a models.CandidateAlert) {
		*alerts = append(*alerts, a)
	}, cfg)
}

func TestProcessFileEmitsCandidateAlert(t *testing.T) {
	// zT = (250e-6)^2 * 1e5 * 300 / 1.2 = 1.5625, above the alert
	// threshold, and a single hypothesis always gets posterior 1.0.
	csv := `Composition,Temperature,Seebeck coefficient,Electrical conductivity,Thermal conductivity
PbTe,300,0.00025,100000,1.2
`
	var alerts []models.CandidateAlert
	s := newTestScanner(t, &alerts)
	path := writeDataset(t, t.TempDir(), "high.csv", csv)

	run, err := s.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if run.BatchSize != 1 {
		t.Fatalf("batch size = %d, want 1", run.BatchSize)
	}
	if math.Abs(run.PosteriorSum-1.0) > 1e-12 || run.MaxPosterior != 1.0 {
		t.Errorf("posterior sum/max = %v/%v, want 1.0/1.0", run.PosteriorSum, run.MaxPosterior)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].RunID != run.RunID || alerts[0].Source != "high.csv" {
		t.Errorf("alert = %+v, want runId %s source high.csv", alerts[0], run.RunID)
	}
	if math.Abs(alerts[0].ZTObserved-1.5625) > 1e-9 {
		t.Errorf("alert zt = %v, want 1.5625", alerts[0].ZTObserved)
	}
}

func TestProcessFileGatesViolatingStates(t *testing.T) {
	// Second state violates the Wiedemann-Franz floor (implied Lorenz
	// below admissible minimum) and must be dropped, not scored.
	csv := `Composition,Temperature,Seebeck coefficient,Electrical conductivity,Thermal conductivity
a,300,0.0002,100000,1.2
b,300,0.0002,100000000000,1.2
`
	var alerts []models.CandidateAlert
	s := newTestScanner(t, &alerts)
	path := writeDataset(t, t.TempDir(), "mixed.csv", csv)

	run, err := s.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if run.BatchSize != 1 {
		t.Errorf("batch size = %d, want 1 after gating", run.BatchSize)
	}
	if got := s.GetProgress().StatesSkipped; got != 1 {
		t.Errorf("statesSkipped = %d, want 1", got)
	}
	// zT = 1.0 is below the alert threshold.
	if len(alerts) != 0 {
		t.Errorf("got %d alerts, want 0", len(alerts))
	}
}

func TestProcessFileEmptyAfterGate(t *testing.T) {
	csv := `Temperature,Seebeck coefficient,Electrical conductivity,Thermal conductivity
300,0.9,100000,1.2
`
	var alerts []models.CandidateAlert
	s := newTestScanner(t, &alerts)
	path := writeDataset(t, t.TempDir(), "junk.csv", csv)

	run, err := s.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if run.BatchSize != 0 {
		t.Errorf("batch size = %d, want 0", run.BatchSize)
	}
}

func TestProcessFileAuditsPosteriorAndQuality(t *testing.T) {
	csv := `Composition,Temperature,Seebeck coefficient,Electrical conductivity,Thermal conductivity
a,300,0.0002,100000,1.2
b,300,0.0002,100000,1.2
`
	evaluator, err := analysis.NewQualityEvaluator(analysis.DefaultScoringWeights(), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	store := &recordingStore{}
	auditor := shadow.NewShadowRunner(store, evaluator, 1e-12)
	cfg := DefaultConfig()
	cfg.Mode = analysis.Deterministic
	s := NewDatasetScanner(nil, auditor, evaluator, nil, cfg)

	path := writeDataset(t, t.TempDir(), "pair.csv", csv)
	run, err := s.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if run.BatchSize != 2 {
		t.Fatalf("batch size = %d, want 2", run.BatchSize)
	}
	// One drift audit for the posterior replay and one for the quality
	// partition comparison.
	if store.calls != 2 {
		t.Errorf("persisted audits = %d, want 2", store.calls)
	}
}

func TestScanDirProgress(t *testing.T) {
	dir := t.TempDir()
	csv := `Temperature,Seebeck coefficient,Electrical conductivity,Thermal conductivity
300,0.0002,100000,1.2
`
	writeDataset(t, dir, "a.csv", csv)
	writeDataset(t, dir, "b.csv", csv)

	var alerts []models.CandidateAlert
	s := newTestScanner(t, &alerts)
	s.ScanDir(context.Background(), dir)

	// The scan runs in the background; poll for completion.
	for i := 0; i < 200 && s.GetProgress().IsRunning; i++ {
		time.Sleep(10 * time.Millisecond)
	}

	progress := s.GetProgress()
	if progress.IsRunning {
		t.Fatal("scan did not finish")
	}
	if progress.FilesScanned != 2 {
		t.Errorf("filesScanned = %d, want 2", progress.FilesScanned)
	}
	if progress.StatesEvaluated != 2 {
		t.Errorf("statesEvaluated = %d, want 2", progress.StatesEvaluated)
	}
}

package models

// Bounds is a half-open index range [Start, End) into one shared flat
// measurement array. Multiple bounds may reference disjoint or overlapping
// regions of the same array without copying.
type Bounds struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples covered by the range.
func (b Bounds) Len() int {
	return b.End - b.Start
}

// ObservationBatch carries one batch of experimental thermoelectric
// measurements. All seven sequences must have identical lengths; the
// analysis layer rejects ragged batches before any computation.
type ObservationBatch struct {
	Seebeck      []float64 `json:"seebeck"`      // S, V/K
	Conductivity []float64 `json:"conductivity"` // sigma, S/m
	Thermal      []float64 `json:"thermal"`      // kappa, W/(m·K)
	Temperature  []float64 `json:"temperature"`  // T, K
	ZTObserved   []float64 `json:"ztObserved"`   // reported figure of merit
	ZTSigma      []float64 `json:"ztSigma"`      // 1-sigma uncertainty on ztObserved
	Prior        []float64 `json:"prior"`        // prior probability per hypothesis
	LambdaWF     float64   `json:"lambdaWf"`     // Wiedemann-Franz penalty weight
}

// PosteriorResult is the normalized output of the Bayesian evidential
// pipeline, index-aligned with the input batch.
type PosteriorResult struct {
	Posterior    []float64 `json:"posterior"`
	LogPosterior []float64 `json:"logPosterior"`
}

// GapScore holds the decoupled entropic metrics for one measurement subset.
// Empty subsets map to the zero record.
type GapScore struct {
	Entropy      float64 `json:"entropy"`      // Shannon entropy H
	KLDivergence float64 `json:"klDivergence"` // D_KL against the uniform reference
	TotalScore   float64 `json:"totalScore"`   // gamma1*H + gamma2*D_KL
}

// QualityClass is the discrete reliability band assigned to a record.
type QualityClass uint8

const (
	ClassA      QualityClass = 1 // score >= 0.90
	ClassB      QualityClass = 2 // 0.80 <= score < 0.90
	ClassC      QualityClass = 3 // 0.65 <= score < 0.80
	ClassD      QualityClass = 4 // 0.50 <= score < 0.65
	ClassReject QualityClass = 5 // score < 0.50 or hard gate tripped
)

func (q QualityClass) String() string {
	switch q {
	case ClassA:
		return "A"
	case ClassB:
		return "B"
	case ClassC:
		return "C"
	case ClassD:
		return "D"
	default:
		return "reject"
	}
}

// QualityVector is the n-dimensional quality state of one data record.
// Every component lives in [0,1]; the hard gate collapses the score to
// zero regardless of the components.
type QualityVector struct {
	Completeness       float64 `json:"completeness"`
	Credibility        float64 `json:"credibility"`
	PhysicsConsistency float64 `json:"physicsConsistency"`
	ErrorMagnitude     float64 `json:"errorMagnitude"`
	Smoothness         float64 `json:"smoothness"`
	Metadata           float64 `json:"metadata"`
	HardGate           bool    `json:"hardGate"`
}

// ScoringResult decomposes one quality evaluation.
type ScoringResult struct {
	BaseScore        float64      `json:"baseScore"`
	RegularizedScore float64      `json:"regularizedScore"`
	Entropy          float64      `json:"entropy"`
	Class            QualityClass `json:"class"`
}

// ZTEstimate pairs a figure-of-merit estimate with its first-order
// propagated 1-sigma uncertainty.
type ZTEstimate struct {
	ZT          float64 `json:"zt"`
	Uncertainty float64 `json:"uncertainty"`
}

// DataPoint is one parsed (sample, x, y) measurement from an ingested file.
type DataPoint struct {
	SampleID uint32  `json:"sampleId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// IngestReport summarizes one CSV ingestion pass.
type IngestReport struct {
	TotalRows        int     `json:"totalRows"`
	TotalStates      int     `json:"totalStates"`
	ValidStates      int     `json:"validStates"`
	SkippedStates    int     `json:"skippedStates"`    // physics violations
	IncompleteStates int     `json:"incompleteStates"` // missing S, sigma or kappa
	MeanZT           float64 `json:"meanZt"`
	MinZT            float64 `json:"minZt"`
	MaxZT            float64 `json:"maxZt"`
}

// EvaluationRun records one full posterior evaluation over a batch,
// for persistence and audit.
type EvaluationRun struct {
	RunID        string  `json:"runId"`
	Source       string  `json:"source"`
	Mode         string  `json:"mode"`
	BatchSize    int     `json:"batchSize"`
	LambdaWF     float64 `json:"lambdaWf"`
	PosteriorSum float64 `json:"posteriorSum"`
	MaxPosterior float64 `json:"maxPosterior"`
	ArgMax       int     `json:"argMax"`
}

// CandidateAlert is the real-time notification emitted when a scanned
// batch surfaces a high-credibility, high-zT material hypothesis.
type CandidateAlert struct {
	RunID       string  `json:"runId"`
	Source      string  `json:"source"`
	Index       int     `json:"index"`
	Posterior   float64 `json:"posterior"`
	ZTObserved  float64 `json:"ztObserved"`
	Temperature float64 `json:"temperature"`
	Timestamp   string  `json:"timestamp"`
}

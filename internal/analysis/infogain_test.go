package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/thermognosis/thermo-engine/pkg/models"
)

func TestInformationGainBatchDegenerateSubset(t *testing.T) {
	// Four identical samples land in one bin: H = 0 and D_KL = ln(K)
	// exactly, the maximal divergence for K bins.
	temps := []float64{150, 150, 150, 150}
	bounds := []models.Bounds{{Start: 0, End: 4}}

	scores, err := InformationGainBatch(temps, bounds, 100, 500, 4, 1.0, 1.0, Deterministic)
	if err != nil {
		t.Fatalf("InformationGainBatch() error = %v", err)
	}
	if scores[0].Entropy != 0 {
		t.Errorf("entropy = %v, want exactly 0", scores[0].Entropy)
	}
	if !almostEqual(scores[0].KLDivergence, math.Log(4), floatTolerance) {
		t.Errorf("klDivergence = %v, want ln(4) = %v", scores[0].KLDivergence, math.Log(4))
	}
	if !almostEqual(scores[0].TotalScore, math.Log(4), floatTolerance) {
		t.Errorf("totalScore = %v, want %v", scores[0].TotalScore, math.Log(4))
	}
}

func TestInformationGainBatchUniformSubset(t *testing.T) {
	// One sample per bin: maximal entropy ln(K), zero divergence.
	temps := []float64{150, 250, 350, 450}
	bounds := []models.Bounds{{Start: 0, End: 4}}

	scores, err := InformationGainBatch(temps, bounds, 100, 500, 4, 1.0, 1.0, Deterministic)
	if err != nil {
		t.Fatalf("InformationGainBatch() error = %v", err)
	}
	if !almostEqual(scores[0].Entropy, math.Log(4), floatTolerance) {
		t.Errorf("entropy = %v, want ln(4)", scores[0].Entropy)
	}
	if !almostEqual(scores[0].KLDivergence, 0, floatTolerance) {
		t.Errorf("klDivergence = %v, want 0", scores[0].KLDivergence)
	}
}

func TestInformationGainBatchClampsOutOfDomain(t *testing.T) {
	// Samples outside [tMin, tMax) are clamped to the terminal bins, never
	// dropped: counts must still sum to the subset size.
	temps := []float64{50, 99.9, 600, 700}
	bounds := []models.Bounds{{Start: 0, End: 4}}

	scores, err := InformationGainBatch(temps, bounds, 100, 500, 4, 1.0, 1.0, Deterministic)
	if err != nil {
		t.Fatalf("InformationGainBatch() error = %v", err)
	}
	// Two samples in bin 0 and two in bin 3: p = (0.5, 0, 0, 0.5).
	wantH := math.Log(2)
	if !almostEqual(scores[0].Entropy, wantH, floatTolerance) {
		t.Errorf("entropy = %v, want ln(2) = %v", scores[0].Entropy, wantH)
	}
}

func TestInformationGainBatchEmptySubset(t *testing.T) {
	temps := []float64{200, 300}
	bounds := []models.Bounds{{Start: 1, End: 1}}

	scores, err := InformationGainBatch(temps, bounds, 100, 500, 4, 2.0, 3.0, Deterministic)
	if err != nil {
		t.Fatalf("InformationGainBatch() error = %v", err)
	}
	if scores[0] != (models.GapScore{}) {
		t.Errorf("empty subset must score zero, got %+v", scores[0])
	}
}

func TestInformationGainBatchInvalidConfig(t *testing.T) {
	temps := []float64{200}
	bounds := []models.Bounds{{Start: 0, End: 1}}

	tests := []struct {
		name    string
		tMin    float64
		tMax    float64
		numBins int
	}{
		{"zero bins", 100, 500, 0},
		{"inverted domain", 500, 100, 4},
		{"empty domain", 300, 300, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InformationGainBatch(temps, bounds, tt.tMin, tt.tMax, tt.numBins, 1, 1, Deterministic)
			if !errors.Is(err, ErrNumericalInstability) {
				t.Fatalf("expected numerical instability, got %v", err)
			}
		})
	}
}

func TestInformationGainBatchBadBounds(t *testing.T) {
	temps := []float64{200, 300}

	tests := []struct {
		name   string
		bounds models.Bounds
	}{
		{"end past array", models.Bounds{Start: 0, End: 3}},
		{"inverted range", models.Bounds{Start: 2, End: 1}},
		{"negative start", models.Bounds{Start: -1, End: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InformationGainBatch(temps, []models.Bounds{tt.bounds}, 100, 500, 4, 1, 1, Deterministic)
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("expected dimension mismatch, got %v", err)
			}
		})
	}
}

func TestInformationGainBatchPositionalOutput(t *testing.T) {
	// Many subsets of one shared array; parallel scheduling must not
	// permute the output.
	n := 2048
	temps := make([]float64, n)
	for i := range temps {
		temps[i] = 100 + float64(i%400)
	}
	bounds := make([]models.Bounds, 512)
	for i := range bounds {
		bounds[i] = models.Bounds{Start: i, End: i + 4}
	}

	det, err := InformationGainBatch(temps, bounds, 100, 500, 8, 1.0, 0.5, Deterministic)
	if err != nil {
		t.Fatalf("deterministic: %v", err)
	}
	par, err := InformationGainBatch(temps, bounds, 100, 500, 8, 1.0, 0.5, Parallel)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	for i := range det {
		if det[i] != par[i] {
			t.Fatalf("subset %d differs across modes: %+v vs %+v", i, det[i], par[i])
		}
	}
}

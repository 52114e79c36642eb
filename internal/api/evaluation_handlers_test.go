package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/thermognosis/thermo-engine/internal/analysis"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("API_AUTH_TOKEN", "")

	evaluator, err := analysis.NewQualityEvaluator(analysis.DefaultScoringWeights(), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	return SetupRouter(nil, NewHub(), nil, nil, evaluator)
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPosteriorSingleHypothesis(t *testing.T) {
	r := newTestRouter(t)
	body := `{
		"seebeck": [0.0002], "conductivity": [100000], "thermal": [1.2],
		"temperature": [300], "ztObserved": [1.0], "ztSigma": [0.1],
		"prior": [1.0], "lambdaWf": 1.0
	}`
	w := postJSON(t, r, "/api/v1/posterior", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Posterior    []float64 `json:"posterior"`
		MaxPosterior float64   `json:"maxPosterior"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Posterior) != 1 || math.Abs(resp.Posterior[0]-1.0) > 1e-15 {
		t.Errorf("posterior = %v, want [1.0]", resp.Posterior)
	}
}

func TestPosteriorRaggedBatchRejected(t *testing.T) {
	r := newTestRouter(t)
	body := `{
		"seebeck": [0.0002, 0.0003], "conductivity": [100000], "thermal": [1.2],
		"temperature": [300], "ztObserved": [1.0], "ztSigma": [0.1],
		"prior": [1.0], "lambdaWf": 1.0
	}`
	w := postJSON(t, r, "/api/v1/posterior", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for ragged batch", w.Code)
	}
}

func TestPosteriorZeroPriorsUnprocessable(t *testing.T) {
	r := newTestRouter(t)
	body := `{
		"seebeck": [0.0002, 0.0002], "conductivity": [100000, 100000],
		"thermal": [1.2, 1.2], "temperature": [300, 300],
		"ztObserved": [1.0, 1.0], "ztSigma": [0.1, 0.1],
		"prior": [0, 0], "lambdaWf": 1.0
	}`
	w := postJSON(t, r, "/api/v1/posterior", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 for collapsed probability space", w.Code)
	}
}

func TestLikelihoodUnknownMode(t *testing.T) {
	r := newTestRouter(t)
	body := `{
		"seebeck": [0.0002], "conductivity": [100000], "thermal": [1.2],
		"temperature": [300], "ztObserved": [1.0], "ztSigma": [0.1],
		"lambdaWf": 1.0, "mode": "speculative"
	}`
	w := postJSON(t, r, "/api/v1/likelihood", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown mode", w.Code)
	}
}

func TestQualityBatchClasses(t *testing.T) {
	r := newTestRouter(t)
	body := `{"vectors": [
		{"completeness": 1, "credibility": 1, "physicsConsistency": 1,
		 "errorMagnitude": 1, "smoothness": 1, "metadata": 1, "hardGate": true},
		{"completeness": 1, "credibility": 1, "physicsConsistency": 1,
		 "errorMagnitude": 1, "smoothness": 1, "metadata": 1, "hardGate": false}
	]}`
	w := postJSON(t, r, "/api/v1/quality", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Classes []string `json:"classes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Classes) != 2 || resp.Classes[1] != "reject" {
		t.Errorf("classes = %v, want second entry rejected by hard gate", resp.Classes)
	}
}

func TestInfoGainDegenerateSubset(t *testing.T) {
	r := newTestRouter(t)
	// All samples in one bin: zero entropy, maximal divergence ln(4).
	body := `{
		"temperature": [150, 150, 150, 150],
		"bounds": [{"start": 0, "end": 4}],
		"tMin": 100, "tMax": 500, "numBins": 4, "gamma1": 1, "gamma2": 1
	}`
	w := postJSON(t, r, "/api/v1/infogain", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Scores []struct {
			Entropy      float64 `json:"entropy"`
			KLDivergence float64 `json:"klDivergence"`
		} `json:"scores"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Scores) != 1 {
		t.Fatalf("got %d scores, want 1", len(resp.Scores))
	}
	if resp.Scores[0].Entropy != 0 {
		t.Errorf("entropy = %v, want 0", resp.Scores[0].Entropy)
	}
	if math.Abs(resp.Scores[0].KLDivergence-math.Log(4)) > 1e-12 {
		t.Errorf("divergence = %v, want ln(4)", resp.Scores[0].KLDivergence)
	}
}

package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thermognosis/thermo-engine/internal/analysis"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

// parseMode maps the optional request-level execution mode to the analysis
// layer. The API defaults to deterministic so identical requests always
// produce bit-identical responses; callers opt into parallel explicitly.
func parseMode(s string) (analysis.Mode, bool) {
	switch s {
	case "", "deterministic":
		return analysis.Deterministic, true
	case "parallel":
		return analysis.Parallel, true
	}
	return analysis.Deterministic, false
}

// statusForError maps the analysis layer's typed errors onto HTTP codes.
// Ragged batches are the caller's fault; a collapsed probability space or a
// non-finite normalizer is a property of the data, not the request shape.
func statusForError(err error) int {
	switch {
	case errors.Is(err, analysis.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrZeroProbabilitySpace),
		errors.Is(err, analysis.ErrNumericalInstability):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

// handleLikelihood computes the penalized Gaussian log-likelihood for each
// hypothesis in the batch.
// POST /api/v1/likelihood
func (h *APIHandler) handleLikelihood(c *gin.Context) {
	var req struct {
		models.ObservationBatch
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown mode", "mode": req.Mode})
		return
	}

	logLik, err := analysis.LogLikelihoodBatch(req.Seebeck, req.Conductivity, req.Thermal,
		req.Temperature, req.ZTObserved, req.ZTSigma, req.LambdaWF, mode)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logLikelihood": logLik,
		"batchSize":     len(logLik),
		"mode":          mode.String(),
	})
}

// handlePosterior normalizes a full observation batch into a posterior
// distribution, shadow-audited when the audit runner is wired. Successful
// evaluations are persisted as runs when the database is connected.
// POST /api/v1/posterior
func (h *APIHandler) handlePosterior(c *gin.Context) {
	var req struct {
		models.ObservationBatch
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown mode", "mode": req.Mode})
		return
	}

	runID := uuid.NewString()

	var result models.PosteriorResult
	var err error
	if h.auditor != nil {
		result, _, err = h.auditor.AuditPosterior(c.Request.Context(), runID, req.ObservationBatch)
	} else {
		result, err = analysis.LogPosteriorForBatch(req.ObservationBatch, mode)
	}
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	run := models.EvaluationRun{
		RunID:     runID,
		Source:    "api",
		Mode:      mode.String(),
		BatchSize: len(result.Posterior),
		LambdaWF:  req.LambdaWF,
	}
	for i, p := range result.Posterior {
		run.PosteriorSum += p
		if p > run.MaxPosterior {
			run.MaxPosterior = p
			run.ArgMax = i
		}
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveEvaluationRun(c.Request.Context(), run, nil); err != nil {
			log.Printf("[api] failed to persist run %s: %v", runID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"runId":        run.RunID,
		"posterior":    result.Posterior,
		"logPosterior": result.LogPosterior,
		"maxPosterior": run.MaxPosterior,
		"argMax":       run.ArgMax,
		"mode":         mode.String(),
	})
}

// handleInfoGain scores the temperature coverage of each requested subset.
// POST /api/v1/infogain
func (h *APIHandler) handleInfoGain(c *gin.Context) {
	var req struct {
		Temperature []float64       `json:"temperature" binding:"required"`
		Bounds      []models.Bounds `json:"bounds" binding:"required"`
		TMin        float64         `json:"tMin"`
		TMax        float64         `json:"tMax"`
		NumBins     int             `json:"numBins"`
		Gamma1      float64         `json:"gamma1"`
		Gamma2      float64         `json:"gamma2"`
		Mode        string          `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown mode", "mode": req.Mode})
		return
	}

	scores, err := analysis.InformationGainBatch(req.Temperature, req.Bounds,
		req.TMin, req.TMax, req.NumBins, req.Gamma1, req.Gamma2, mode)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scores": scores,
		"mode":   mode.String(),
	})
}

// handleRank aggregates (posterior, zT, concentration) triples into one
// scalar rank per bound. When a runId is supplied and the database is
// connected, ranks are persisted against that run.
// POST /api/v1/rank
func (h *APIHandler) handleRank(c *gin.Context) {
	var req struct {
		Posterior     []float64       `json:"posterior" binding:"required"`
		ZT            []float64       `json:"zt" binding:"required"`
		Concentration []float64       `json:"concentration" binding:"required"`
		Bounds        []models.Bounds `json:"bounds" binding:"required"`
		Alpha         float64         `json:"alpha"`
		Beta          float64         `json:"beta"`
		Mode          string          `json:"mode"`
		RunID         string          `json:"runId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown mode", "mode": req.Mode})
		return
	}

	ranks, err := analysis.MaterialRankBatch(req.Posterior, req.ZT, req.Concentration,
		req.Bounds, req.Alpha, req.Beta, mode)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	if h.dbStore != nil && req.RunID != "" {
		if err := h.dbStore.SaveMaterialRanks(c.Request.Context(), req.RunID, ranks); err != nil {
			log.Printf("[api] failed to persist ranks for run %s: %v", req.RunID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ranks": ranks,
		"mode":  mode.String(),
	})
}

// handleQuality scores a batch of quality vectors into reliability classes.
// POST /api/v1/quality
func (h *APIHandler) handleQuality(c *gin.Context) {
	if h.evaluator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Quality evaluator not initialized"})
		return
	}

	var req struct {
		Vectors []models.QualityVector `json:"vectors" binding:"required"`
		Mode    string                 `json:"mode"`
		RunID   string                 `json:"runId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown mode", "mode": req.Mode})
		return
	}

	results, err := h.evaluator.EvaluateBatch(req.Vectors, mode)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	classes := make([]string, len(results))
	for i, r := range results {
		classes[i] = r.Class.String()
	}

	if h.dbStore != nil && req.RunID != "" {
		if err := h.dbStore.SaveQualityAssessments(c.Request.Context(), req.RunID, results); err != nil {
			log.Printf("[api] failed to persist quality assessments for run %s: %v", req.RunID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"classes": classes,
		"mode":    mode.String(),
	})
}

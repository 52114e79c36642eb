package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/thermognosis/thermo-engine/internal/analysis"
	"github.com/thermognosis/thermo-engine/internal/db"
	"github.com/thermognosis/thermo-engine/internal/scanner"
	"github.com/thermognosis/thermo-engine/internal/shadow"
	"github.com/thermognosis/thermo-engine/pkg/models"
)

type APIHandler struct {
	dbStore        *db.PostgresStore
	wsHub          *Hub
	datasetScanner *scanner.DatasetScanner
	auditor        *shadow.ShadowRunner
	evaluator      *analysis.QualityEvaluator
}

func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub, datasetScanner *scanner.DatasetScanner,
	auditor *shadow.ShadowRunner, evaluator *analysis.QualityEvaluator) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://thermognosis.net,https://www.thermognosis.net
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Check if the request origin is in the allowed list
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore:        dbStore,
		wsHub:          wsHub,
		datasetScanner: datasetScanner,
		auditor:        auditor,
		evaluator:      evaluator,
	}

	limiter := NewRateLimiter(120, 30)

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)
		api.GET("/scan/progress", handler.handleScanProgress)

		protected := api.Group("", AuthMiddleware())
		{
			// Batch evaluators
			protected.POST("/likelihood", handler.handleLikelihood)
			protected.POST("/posterior", handler.handlePosterior)
			protected.POST("/infogain", handler.handleInfoGain)
			protected.POST("/rank", handler.handleRank)
			protected.POST("/quality", handler.handleQuality)

			// Historical dataset scanner
			protected.POST("/scan", handler.handleStartScan)
			protected.GET("/runs", handler.handleListRuns)

			// Discovery campaigns
			protected.POST("/campaigns", handler.handleCreateCampaign)
			protected.POST("/campaigns/:id/materials", handler.handleTagMaterial)
			protected.GET("/campaigns/seeds", handler.handleCampaignSeeds)
		}
	}

	// Serve Static Dashboard
	r.Static("/dashboard", "./public")

	return r
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	dbConnected := h.dbStore != nil

	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "Thermognosis Evidence Engine v1.0",
		"capabilities": gin.H{
			"penalized_likelihood": true,
			"log_posterior":        true,
			"information_gain":     true,
			"material_ranking":     true,
			"quality_scoring":      true,
			"shadow_mode":          h.auditor != nil,
		},
		"dbConnected": dbConnected,
	})
}

// handleStartScan launches a historical dataset scan in the background.
// POST /api/v1/scan { "dir": "/data/starrydata" }
func (h *APIHandler) handleStartScan(c *gin.Context) {
	if h.datasetScanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Dataset scanner not initialized"})
		return
	}

	var req struct {
		Dir string `json:"dir" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {dir}"})
		return
	}

	info, err := os.Stat(req.Dir)
	if err != nil || !info.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not a readable directory", "dir": req.Dir})
		return
	}

	// Launch scan in background
	h.datasetScanner.ScanDir(c.Request.Context(), req.Dir)

	c.JSON(http.StatusOK, gin.H{
		"status": "scan_started",
		"dir":    req.Dir,
	})
}

// handleScanProgress returns the current progress of the dataset scanner.
func (h *APIHandler) handleScanProgress(c *gin.Context) {
	if h.datasetScanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Dataset scanner not initialized"})
		return
	}
	progress := h.datasetScanner.GetProgress()
	c.JSON(http.StatusOK, progress)
}

// handleListRuns returns the historically persisted evaluation runs.
func (h *APIHandler) handleListRuns(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 50)

	runs, totalCount, err := h.dbStore.ListRuns(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch evaluation runs", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       runs,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// BroadcastCandidateAlert sends a high-zT candidate alert via the WebSocket
// hub. This is wired as the alertFunc callback for the DatasetScanner.
func BroadcastCandidateAlert(wsHub *Hub) func(models.CandidateAlert) {
	return func(alert models.CandidateAlert) {
		payload := gin.H{
			"type":  "candidate_alert",
			"alert": alert,
		}
		alertBytes, _ := json.Marshal(payload)
		wsHub.Broadcast(alertBytes)
		log.Printf("[ALERT] candidate material in %s: zT=%.3f at %.0f K (posterior %.4f)",
			alert.Source, alert.ZTObserved, alert.Temperature, alert.Posterior)
	}
}

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/campaigns
// Creates a discovery campaign: a named search for candidate materials
// around a target figure of merit.
func (h *APIHandler) handleCreateCampaign(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description string  `json:"description"`
		TargetZT    float64 `json:"targetZt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.TargetZT < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetZt must be non-negative"})
		return
	}

	// Generate campaign ID from timestamp
	campaignID := fmt.Sprintf("CAMP-%d", time.Now().UnixNano())

	if err := h.dbStore.SaveCampaign(c.Request.Context(), campaignID, req.Name, req.Description, req.TargetZT); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     "created",
		"campaignId": campaignID,
		"name":       req.Name,
		"targetZt":   req.TargetZT,
	})
}

// POST /api/v1/campaigns/:id/materials
// Tags a composition within a campaign with curator-provided metadata.
func (h *APIHandler) handleTagMaterial(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	campaignID := c.Param("id")

	var req struct {
		Composition string `json:"composition" binding:"required"`
		Label       string `json:"label" binding:"required"`
		Role        string `json:"role" binding:"required"` // candidate/baseline/dopant-study/excluded
		Notes       string `json:"notes"`
		TaggedBy    string `json:"taggedBy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	err := h.dbStore.SaveCampaignMaterial(c.Request.Context(), campaignID,
		req.Composition, req.Label, req.Role, req.Notes, req.TaggedBy)
	if err != nil {
		if strings.Contains(err.Error(), "campaign not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found", "campaignId": campaignID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to tag material", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "tagged",
		"campaignId":  campaignID,
		"composition": req.Composition,
		"label":       req.Label,
		"role":        req.Role,
	})
}

// GET /api/v1/campaigns/seeds
// Returns the tagged candidate compositions of every active campaign, the
// working set a curator feeds back into the next scan.
func (h *APIHandler) handleCampaignSeeds(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	seeds, err := h.dbStore.LoadActiveCampaignSeeds(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load campaign seeds", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"seeds": seeds,
		"total": len(seeds),
	})
}

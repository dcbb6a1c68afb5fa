package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleListGroups(c *gin.Context) {
	groups, err := s.Store.ListGroups()
	if err != nil {
		s.Logger.Error("Failed to list work groups", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) handleGetItem(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return
	}

	item, err := s.Store.WorkItemByID(uint(id))
	if err != nil {
		s.Logger.Error("Failed to get work item", zap.Uint64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get item"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (s *Server) handleListWebhookLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	logs, err := s.Store.RecentWebhookLogs(limit)
	if err != nil {
		s.Logger.Error("Failed to list webhook logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list webhook logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.Store.Settings()
	if err != nil {
		s.Logger.Error("Failed to load settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	if settings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Settings not seeded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

type updateSettingsRequest struct {
	DailyGroupCount  *int    `json:"daily_group_count"`
	ItemsPerGroupMin *int    `json:"items_per_group_min"`
	ItemsPerGroupMax *int    `json:"items_per_group_max"`
	MaxRetryAttempts *int    `json:"max_retry_attempts"`
	SafetyTier       *string `json:"safety_tier"`
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	settings, err := s.Store.Settings()
	if err != nil {
		s.Logger.Error("Failed to load settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	if settings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Settings not seeded"})
		return
	}

	if req.DailyGroupCount != nil {
		settings.DailyGroupCount = *req.DailyGroupCount
	}
	if req.ItemsPerGroupMin != nil {
		settings.ItemsPerGroupMin = *req.ItemsPerGroupMin
	}
	if req.ItemsPerGroupMax != nil {
		settings.ItemsPerGroupMax = *req.ItemsPerGroupMax
	}
	if req.MaxRetryAttempts != nil {
		settings.MaxRetryAttempts = *req.MaxRetryAttempts
	}
	if req.SafetyTier != nil {
		settings.SafetyTier = *req.SafetyTier
	}
	settings.ModifiedDate = time.Now().UTC()

	if err := s.Store.SaveSettings(settings); err != nil {
		s.Logger.Error("Failed to save settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.Store.Stats()
	if err != nil {
		s.Logger.Error("Failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) handleRunBatch(c *gin.Context) {
	if err := s.Batch.Run(); err != nil {
		s.Logger.Error("Manual batch run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Batch run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Batch run completed"})
}

func (s *Server) handleRunSubmit(c *gin.Context) {
	if err := s.Submitter.Run(c.Request.Context()); err != nil {
		s.Logger.Error("Manual submit pass failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Submit pass failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Submit pass completed"})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"loan-intake-go/internal/models"
)

const defaultActivityLimit = 50

// ActivityCreateRequest records a manual activity entry against a deal.
type ActivityCreateRequest struct {
	DealID  string `json:"deal_id" binding:"required"`
	Action  string `json:"action" binding:"required"`
	Details string `json:"details"`
}

// GetActivity returns recent activity entries, newest first.
// ?dealId= scopes to a single deal, ?limit= caps the result (default 50).
func (h *Handlers) GetActivity(c *gin.Context) {
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: "limit must be a positive integer", Code: http.StatusBadRequest})
			return
		}
		limit = parsed
	}

	entries, err := h.repo.ListActivity(c.Query("dealId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to fetch activity", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// CreateActivity appends a manual entry to a deal's activity trail
func (h *Handlers) CreateActivity(c *gin.Context) {
	var req ActivityCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: err.Error(), Code: http.StatusBadRequest})
		return
	}

	deal, err := h.repo.GetDeal(req.DealID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to fetch deal", Code: http.StatusInternalServerError})
		return
	}
	if deal == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "Deal not found", Code: http.StatusNotFound})
		return
	}

	if err := h.repo.LogActivity(req.DealID, req.Action, req.Details); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to record activity", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

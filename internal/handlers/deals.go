package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"loan-intake-go/internal/models"
)

// DealUpdateRequest is an officer-initiated partial update to a deal.
type DealUpdateRequest struct {
	Status          *models.DealStatus      `json:"status"`
	ClientName      *string                 `json:"client_name"`
	ApplicationData *models.LoanApplication `json:"application_data"`
}

// DealDeleteRequest selects deals for bulk deletion.
type DealDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

var validDealStatuses = map[models.DealStatus]bool{
	models.DealStatusNew:            true,
	models.DealStatusProcessing:     true,
	models.DealStatusReadyForReview: true,
	models.DealStatusCompleted:      true,
}

// GetDeals returns deals newest first, optionally filtered by ?status=
func (h *Handlers) GetDeals(c *gin.Context) {
	deals, err := h.repo.ListDeals(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch deals",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, deals)
}

// GetDeal returns one deal with its documents
func (h *Handlers) GetDeal(c *gin.Context) {
	id := c.Param("id")

	deal, err := h.repo.GetDeal(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to fetch deal", Code: http.StatusInternalServerError})
		return
	}
	if deal == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "Deal not found", Code: http.StatusNotFound})
		return
	}

	docs, err := h.repo.ListDocumentsForDeal(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to fetch documents", Code: http.StatusInternalServerError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deal": deal, "documents": docs})
}

// UpdateDeal applies a manual update from the loan officer, e.g. advancing
// the status to completed after review.
func (h *Handlers) UpdateDeal(c *gin.Context) {
	id := c.Param("id")

	var req DealUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: err.Error(), Code: http.StatusBadRequest})
		return
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		if !validDealStatuses[*req.Status] {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_status", Message: "Unknown deal status", Code: http.StatusBadRequest})
			return
		}
		updates["status"] = *req.Status
	}
	if req.ClientName != nil {
		updates["client_name"] = *req.ClientName
	}
	if req.ApplicationData != nil {
		updates["application_data"] = *req.ApplicationData
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: "No fields to update", Code: http.StatusBadRequest})
		return
	}

	if err := h.repo.UpdateDeal(id, updates); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: "Deal not found", Code: http.StatusNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to update deal", Code: http.StatusInternalServerError})
		return
	}

	deal, err := h.repo.GetDeal(id)
	if err != nil || deal == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to reload deal", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, deal)
}

// DeleteDeals removes deals and their documents in bulk
func (h *Handlers) DeleteDeals(c *gin.Context) {
	var req DealDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: "No deal IDs provided", Code: http.StatusBadRequest})
		return
	}

	deleted, err := h.repo.DeleteDeals(req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database_error", Message: "Failed to delete deals", Code: http.StatusInternalServerError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

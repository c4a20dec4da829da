package repository

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"loan-intake-go/internal/models"
)

// Repository wraps all relational-store access for deals, documents and the
// activity log.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActiveDealByEmail returns the most recently created active deal for the
// given client email, or nil when none exists.
func (r *Repository) FindActiveDealByEmail(email string) (*models.Deal, error) {
	var deal models.Deal
	result := r.db.Where("client_email = ? AND status IN ?", email, models.ActiveDealStatuses).
		Order("created_at desc").
		First(&deal)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return &deal, nil
}

// ListActiveDeals returns all active deals, newest first.
func (r *Repository) ListActiveDeals() ([]models.Deal, error) {
	var deals []models.Deal
	result := r.db.Where("status IN ?", models.ActiveDealStatuses).
		Order("created_at desc").
		Find(&deals)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active deals: %w", result.Error)
	}
	return deals, nil
}

func (r *Repository) CreateDeal(deal *models.Deal) error {
	if result := r.db.Create(deal); result.Error != nil {
		return fmt.Errorf("failed to create deal: %w", result.Error)
	}
	return nil
}

func (r *Repository) UpdateDealStatus(id string, status models.DealStatus) error {
	result := r.db.Model(&models.Deal{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update deal status: %w", result.Error)
	}
	return nil
}

// SaveApplication persists the merged application record and the new status
// together so the dashboard never observes one without the other.
func (r *Repository) SaveApplication(dealID string, app models.LoanApplication, status models.DealStatus) error {
	result := r.db.Model(&models.Deal{}).Where("id = ?", dealID).
		Updates(map[string]interface{}{
			"application_data": app,
			"status":           status,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save application: %w", result.Error)
	}
	return nil
}

// HasDocumentsForMessage reports whether any document is already tagged with
// the given mailbox message id. Used as the idempotency check before any
// side effect.
func (r *Repository) HasDocumentsForMessage(messageID string) (bool, error) {
	var count int64
	result := r.db.Model(&models.Document{}).Where("gmail_message_id = ?", messageID).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("database error checking processed message: %w", result.Error)
	}
	return count > 0, nil
}

func (r *Repository) CreateDocument(doc *models.Document) error {
	if result := r.db.Create(doc); result.Error != nil {
		return fmt.Errorf("failed to create document: %w", result.Error)
	}
	return nil
}

// MarkDocumentParsed records the extraction payload. Each document is
// updated exactly once, to parsed or failed, and never touched again.
func (r *Repository) MarkDocumentParsed(id string, data datatypes.JSON) error {
	result := r.db.Model(&models.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.DocumentStatusParsed, "extracted_data": data})
	if result.Error != nil {
		return fmt.Errorf("failed to mark document parsed: %w", result.Error)
	}
	return nil
}

func (r *Repository) MarkDocumentFailed(id string, data datatypes.JSON) error {
	result := r.db.Model(&models.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.DocumentStatusFailed, "extracted_data": data})
	if result.Error != nil {
		return fmt.Errorf("failed to mark document failed: %w", result.Error)
	}
	return nil
}

// LogActivity appends an audit entry for a deal.
func (r *Repository) LogActivity(dealID, action, details string) error {
	entry := models.ActivityLog{
		DealID:    dealID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if result := r.db.Create(&entry); result.Error != nil {
		return fmt.Errorf("failed to log activity: %w", result.Error)
	}
	return nil
}

// ListDeals returns deals newest first, optionally filtered by status.
func (r *Repository) ListDeals(status string) ([]models.Deal, error) {
	var deals []models.Deal
	query := r.db.Order("created_at desc")
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if result := query.Find(&deals); result.Error != nil {
		return nil, fmt.Errorf("failed to list deals: %w", result.Error)
	}
	return deals, nil
}

func (r *Repository) GetDeal(id string) (*models.Deal, error) {
	var deal models.Deal
	result := r.db.Where("id = ?", id).First(&deal)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return &deal, nil
}

func (r *Repository) ListDocumentsForDeal(dealID string) ([]models.Document, error) {
	var docs []models.Document
	result := r.db.Where("deal_id = ?", dealID).Order("created_at asc").Find(&docs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list documents: %w", result.Error)
	}
	return docs, nil
}

// UpdateDeal applies an officer-initiated partial update.
func (r *Repository) UpdateDeal(id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Deal{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update deal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteDeals removes deals and their documents. Officer-initiated only; the
// pipeline never deletes.
func (r *Repository) DeleteDeals(ids []string) (int64, error) {
	if err := r.db.Where("deal_id IN ?", ids).Delete(&models.Document{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	result := r.db.Where("id IN ?", ids).Delete(&models.Deal{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete deals: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListActivity returns the most recent activity entries, newest first,
// optionally scoped to one deal.
func (r *Repository) ListActivity(dealID string, limit int) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	query := r.db.Order("created_at desc").Limit(limit)
	if dealID != "" {
		query = query.Where("deal_id = ?", dealID)
	}
	result := query.Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list activity: %w", result.Error)
	}
	return entries, nil
}

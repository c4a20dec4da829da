package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// DealStatus is the lifecycle status of a deal.
type DealStatus string

const (
	DealStatusNew            DealStatus = "new"
	DealStatusProcessing     DealStatus = "processing"
	DealStatusReadyForReview DealStatus = "ready_for_review"
	DealStatusCompleted      DealStatus = "completed"
)

// ActiveDealStatuses are the statuses a deal can hold while still accepting
// inbound email. The resolver only ever matches against these.
var ActiveDealStatuses = []DealStatus{DealStatusNew, DealStatusProcessing, DealStatusReadyForReview}

// DocumentStatus is the processing status of a stored attachment.
type DocumentStatus string

const (
	DocumentStatusPending DocumentStatus = "pending"
	DocumentStatusParsed  DocumentStatus = "parsed"
	DocumentStatusFailed  DocumentStatus = "failed"
)

// DocumentType is the classified category of an attachment.
type DocumentType string

const (
	DocTypeW2                DocumentType = "w2"
	DocTypePaystub           DocumentType = "paystub"
	DocTypeBankStatement     DocumentType = "bank_statement"
	DocTypeTaxReturn         DocumentType = "tax_return"
	DocTypeMortgageStatement DocumentType = "mortgage_statement"
	DocTypeID                DocumentType = "id"
	DocTypeSSNCard           DocumentType = "ssn_card"
	DocTypeOther             DocumentType = "other"
)

// Activity log action tags written by the pipeline.
const (
	ActionDealCreated      = "deal_created"
	ActionEmailReceived    = "email_received"
	ActionDocumentParsed   = "document_parsed"
	ActionStatusChanged    = "status_changed"
	ActionApplicationSaved = "application_saved"
)

// Deal represents one client's loan-application thread.
type Deal struct {
	ID              string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientName      string          `json:"client_name" gorm:"type:varchar(255);not null"`
	ClientEmail     string          `json:"client_email" gorm:"type:varchar(255);not null;index"`
	SubjectLine     string          `json:"subject_line" gorm:"type:varchar(998)"`
	Status          DealStatus      `json:"status" gorm:"type:varchar(32);not null;index"`
	ApplicationData LoanApplication `json:"application_data" gorm:"type:json"`
	RawEmailBody    string          `json:"raw_email_body" gorm:"type:mediumtext"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Deal
func (Deal) TableName() string {
	return "deals"
}

// Document represents one attachment processed for a deal.
type Document struct {
	ID             string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	DealID         string         `json:"deal_id" gorm:"type:varchar(36);not null;index"`
	FileName       string         `json:"file_name" gorm:"type:varchar(512);not null"`
	FileURL        string         `json:"file_url" gorm:"type:varchar(1024)"`
	DocType        DocumentType   `json:"doc_type" gorm:"type:varchar(32);not null"`
	ExtractedData  datatypes.JSON `json:"extracted_data" gorm:"type:json"`
	Status         DocumentStatus `json:"status" gorm:"type:varchar(16);not null"`
	GmailMessageID string         `json:"gmail_message_id" gorm:"type:varchar(255);not null;index"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName specifies the table name for Document
func (Document) TableName() string {
	return "documents"
}

// ActivityLog is an append-only audit record for a deal. Writes from the
// pipeline are best-effort and never block processing.
type ActivityLog struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	DealID    string    `json:"deal_id" gorm:"type:varchar(36);not null;index"`
	Action    string    `json:"action" gorm:"type:varchar(50);not null"`
	Details   string    `json:"details" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ActivityLog
func (ActivityLog) TableName() string {
	return "activity_log"
}

// LoanApplication is the structured, mergeable record embedded in a Deal.
// Every field is either a concrete value or an explicit null; the JSON tags
// deliberately omit omitempty so nulls always serialize. Mutate it only via
// the merge package so already-filled fields are never clobbered.
type LoanApplication struct {
	// Loan details
	LoanAmount       *float64 `json:"loan_amount"`
	PropertyValue    *float64 `json:"property_value"`
	InterestRate     *float64 `json:"interest_rate"`
	ProtectiveEquity *float64 `json:"protective_equity"`
	TermMonths       *float64 `json:"term_months"`
	CLTV             *float64 `json:"cltv"`

	// Subject property
	PropertyAddress *string `json:"property_address"`
	PropertySqft    *string `json:"property_sqft"`
	PropertyType    *string `json:"property_type"`
	Bedrooms        *string `json:"bedrooms"`
	Bathrooms       *string `json:"bathrooms"`
	LotSize         *string `json:"lot_size"`
	YearBuilt       *string `json:"year_built"`

	// First trust deed
	FirstTDBalance        *float64 `json:"first_td_balance"`
	FirstTDMonthlyPayment *float64 `json:"first_td_monthly_payment"`
	FirstTDInterestRate   *float64 `json:"first_td_interest_rate"`
	MonthlyHOAFees        *float64 `json:"monthly_hoa_fees"`

	// Borrower
	BorrowerName     *string  `json:"borrower_name"`
	BorrowerSSN      *string  `json:"borrower_ssn"`
	BorrowerDOB      *string  `json:"borrower_dob"`
	BorrowerPhone    *string  `json:"borrower_phone"`
	BorrowerAddress  *string  `json:"borrower_address"`
	Employment       *string  `json:"employment"`
	EmploymentIncome *float64 `json:"employment_income"`
	LiquidAssets     *float64 `json:"liquid_assets"`
	RentalIncome     *float64 `json:"rental_income"`
	MidFICO          *float64 `json:"mid_fico"`

	// Meta: recomputed on every merge, never taken from extraction output.
	MissingFields   []string          `json:"missing_fields"`
	ConfidenceNotes map[string]string `json:"confidence_notes"`
}

// EmptyApplication returns an application with every field null and the
// meta fields initialized.
func EmptyApplication() LoanApplication {
	return LoanApplication{
		MissingFields:   []string{},
		ConfidenceNotes: map[string]string{},
	}
}

// Value implements driver.Valuer so the application is stored as a JSON column.
func (a LoanApplication) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for reading the JSON column back.
func (a *LoanApplication) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = EmptyApplication()
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported type for LoanApplication: %T", value)
	}
}

// InboundEmail is a fetched email ready for ingestion.
type InboundEmail struct {
	MessageID   string       `json:"message_id"`
	From        string       `json:"from"`
	SenderName  string       `json:"sender_name"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is one file attached to an inbound email.
type Attachment struct {
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
	Size     int64  `json:"size"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

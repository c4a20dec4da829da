// Package pipeline drives one inbound email through deduplication, deal
// resolution, extraction, merge and status finalization. Only deal creation
// failures abort an email; every later step fails per item, gets logged and
// is skipped so one bad attachment never blocks its siblings.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"loan-intake-go/internal/classifier"
	"loan-intake-go/internal/extractor"
	"loan-intake-go/internal/fetcher"
	"loan-intake-go/internal/merge"
	"loan-intake-go/internal/metrics"
	"loan-intake-go/internal/models"
	"loan-intake-go/internal/resolver"
	"loan-intake-go/internal/storage"
)

// minBodyLength is the trimmed length an email body must exceed before it is
// worth an extraction call.
const minBodyLength = 20

// DealResolver finds or creates the deal for an inbound email.
type DealResolver interface {
	Resolve(ctx context.Context, email models.InboundEmail) (*models.Deal, resolver.Match, error)
}

// Store is the persistence surface the pipeline needs.
type Store interface {
	HasDocumentsForMessage(messageID string) (bool, error)
	CreateDocument(doc *models.Document) error
	MarkDocumentParsed(id string, data datatypes.JSON) error
	MarkDocumentFailed(id string, data datatypes.JSON) error
	SaveApplication(dealID string, app models.LoanApplication, status models.DealStatus) error
	LogActivity(dealID, action, details string) error
}

// Pipeline is the ingestion orchestrator.
type Pipeline struct {
	fetcher   fetcher.EmailFetcher
	resolver  DealResolver
	store     Store
	blobs     storage.BlobStore
	extractor extractor.Client
	metrics   *metrics.Metrics
}

// New creates a pipeline wired to the given collaborators.
func New(f fetcher.EmailFetcher, r DealResolver, s Store, b storage.BlobStore, e extractor.Client, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		resolver:  r,
		store:     s,
		blobs:     b,
		extractor: e,
		metrics:   m,
	}
}

// IngestBatch fetches candidate emails and processes them sequentially.
// Returns the number of emails processed; an email that failed fatally is
// logged, left unprocessed and will be retried on a later rescan.
func (p *Pipeline) IngestBatch(ctx context.Context, rescan bool) (int, error) {
	p.metrics.FetchCycles.Inc()

	emails, err := p.fetcher.FetchNewEmails(ctx, rescan)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch emails: %w", err)
	}

	p.metrics.EmailsFetched.Add(float64(len(emails)))
	logrus.Infof("Fetched %d candidate emails (rescan=%v)", len(emails), rescan)

	processed := 0
	for _, email := range emails {
		if err := p.ProcessEmail(ctx, email); err != nil {
			logrus.Errorf("Failed to process email %s: %v", email.MessageID, err)
			continue
		}
		processed++
	}

	return processed, nil
}

// ProcessEmail runs one email through the full ingestion state machine.
// Re-running with the same mailbox message id is a no-op.
func (p *Pipeline) ProcessEmail(ctx context.Context, email models.InboundEmail) error {
	start := time.Now()
	defer func() {
		p.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	}()

	// Dedup: documents carry the mailbox message id, so any hit means this
	// email was already handled end to end.
	seen, err := p.store.HasDocumentsForMessage(email.MessageID)
	if err != nil {
		return fmt.Errorf("failed to check for processed message: %w", err)
	}
	if seen {
		logrus.Debugf("Email %s already processed, skipping", email.MessageID)
		p.metrics.DuplicatesSkipped.Inc()
		return nil
	}

	deal, match, err := p.resolver.Resolve(ctx, email)
	if err != nil {
		return err
	}
	p.recordResolution(deal, match, email)

	app := deal.ApplicationData

	// Body first: the email often carries a coarse pre-fill that attachments
	// then refine. Attachment merges must come after this one.
	if len(strings.TrimSpace(email.Body)) > minBodyLength {
		bodyFields, err := p.extractor.ExtractEmailBody(ctx, email.Body)
		if err != nil {
			logrus.Errorf("Failed to parse email body for deal %s: %v", deal.ID, err)
			p.metrics.ExtractionFailures.Inc()
		} else {
			app = merge.Merge(app, *bodyFields)
		}
	}

	for _, attachment := range email.Attachments {
		if err := p.processAttachment(ctx, deal, email.MessageID, attachment, &app); err != nil {
			logrus.Errorf("Failed to process attachment %s: %v", attachment.FileName, err)
			p.metrics.DocumentsFailed.Inc()
		}
	}

	status := models.DealStatusProcessing
	if merge.HasRequiredFields(app) {
		status = models.DealStatusReadyForReview
	}
	if err := p.store.SaveApplication(deal.ID, app, status); err != nil {
		return err
	}
	logrus.Infof("Deal %s updated, status: %s", deal.ID, status)
	p.logActivity(deal.ID, models.ActionApplicationSaved, fmt.Sprintf("Application saved, %d required fields missing", len(app.MissingFields)))
	p.logActivity(deal.ID, models.ActionStatusChanged, fmt.Sprintf("Status updated to %s", status))

	p.metrics.EmailsProcessed.Inc()
	return nil
}

// processAttachment stores, classifies and extracts one attachment. Errors
// are returned to the caller for logging but never abort the loop.
func (p *Pipeline) processAttachment(ctx context.Context, deal *models.Deal, messageID string, attachment models.Attachment, app *models.LoanApplication) error {
	logrus.Infof("Processing attachment %s for deal %s", attachment.FileName, deal.ID)

	fileURL, err := p.blobs.Store(ctx, deal.ID, attachment.FileName, attachment.Data, attachment.MIMEType)
	if err != nil {
		return fmt.Errorf("failed to store attachment: %w", err)
	}

	docType := classifier.Classify(attachment.FileName, attachment.MIMEType)

	doc := &models.Document{
		ID:             uuid.NewString(),
		DealID:         deal.ID,
		FileName:       attachment.FileName,
		FileURL:        fileURL,
		DocType:        docType,
		Status:         models.DocumentStatusPending,
		GmailMessageID: messageID,
	}
	if err := p.store.CreateDocument(doc); err != nil {
		return err
	}

	if !extractor.IsSupportedMediaType(attachment.MIMEType) {
		payload := errorPayload(fmt.Sprintf("Unsupported format: %s", attachment.MIMEType))
		if err := p.store.MarkDocumentFailed(doc.ID, payload); err != nil {
			return err
		}
		p.metrics.DocumentsFailed.Inc()
		return nil
	}

	extracted, err := p.extractor.ExtractDocument(ctx, attachment.Data, attachment.MIMEType, attachment.FileName, docType)
	if err != nil {
		p.metrics.ExtractionFailures.Inc()
		if markErr := p.store.MarkDocumentFailed(doc.ID, errorPayload(err.Error())); markErr != nil {
			logrus.Errorf("Failed to record extraction failure for document %s: %v", doc.ID, markErr)
		}
		return fmt.Errorf("failed to extract document: %w", err)
	}

	raw, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("failed to encode extracted data: %w", err)
	}
	if err := p.store.MarkDocumentParsed(doc.ID, datatypes.JSON(raw)); err != nil {
		return err
	}

	*app = merge.Merge(*app, *extracted)
	p.metrics.DocumentsParsed.Inc()
	p.logActivity(deal.ID, models.ActionDocumentParsed, fmt.Sprintf("Parsed %s (%s)", attachment.FileName, docType))
	return nil
}

func (p *Pipeline) recordResolution(deal *models.Deal, match resolver.Match, email models.InboundEmail) {
	switch match {
	case resolver.MatchSender:
		p.metrics.DealsMatched.Inc()
		p.logActivity(deal.ID, models.ActionEmailReceived, fmt.Sprintf("New email from %s: %q", email.From, email.Subject))
	case resolver.MatchSubject:
		p.metrics.DealsMatched.Inc()
		p.logActivity(deal.ID, models.ActionEmailReceived, fmt.Sprintf("Follow-up matched by subject from %s: %q", email.From, email.Subject))
	case resolver.MatchCreated:
		p.metrics.DealsCreated.Inc()
		p.logActivity(deal.ID, models.ActionDealCreated, fmt.Sprintf("Deal created from email by %s", email.From))
	}
}

// logActivity is fire-and-forget: an audit write must never change the
// outcome of a pipeline step.
func (p *Pipeline) logActivity(dealID, action, details string) {
	if err := p.store.LogActivity(dealID, action, details); err != nil {
		logrus.Warnf("Failed to log activity for deal %s: %v", dealID, err)
	}
}

func errorPayload(message string) datatypes.JSON {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return datatypes.JSON(raw)
}

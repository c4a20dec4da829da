package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"loan-intake-go/internal/metrics"
	"loan-intake-go/internal/models"
	"loan-intake-go/internal/resolver"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

type fakeFetcher struct {
	emails []models.InboundEmail
	err    error
}

func (f *fakeFetcher) FetchNewEmails(ctx context.Context, rescan bool) ([]models.InboundEmail, error) {
	return f.emails, f.err
}

func (f *fakeFetcher) Close() error { return nil }

type fakeResolver struct {
	deal  *models.Deal
	match resolver.Match
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, email models.InboundEmail) (*models.Deal, resolver.Match, error) {
	return f.deal, f.match, f.err
}

type savedApp struct {
	dealID string
	app    models.LoanApplication
	status models.DealStatus
}

type fakeStore struct {
	seenMessages map[string]bool
	documents    []*models.Document
	parsed       map[string]datatypes.JSON
	failed       map[string]datatypes.JSON
	saves        []savedApp
	activity     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		seenMessages: map[string]bool{},
		parsed:       map[string]datatypes.JSON{},
		failed:       map[string]datatypes.JSON{},
	}
}

func (f *fakeStore) HasDocumentsForMessage(messageID string) (bool, error) {
	return f.seenMessages[messageID], nil
}

func (f *fakeStore) CreateDocument(doc *models.Document) error {
	f.documents = append(f.documents, doc)
	return nil
}

func (f *fakeStore) MarkDocumentParsed(id string, data datatypes.JSON) error {
	f.parsed[id] = data
	return nil
}

func (f *fakeStore) MarkDocumentFailed(id string, data datatypes.JSON) error {
	f.failed[id] = data
	return nil
}

func (f *fakeStore) SaveApplication(dealID string, app models.LoanApplication, status models.DealStatus) error {
	f.saves = append(f.saves, savedApp{dealID: dealID, app: app, status: status})
	return nil
}

func (f *fakeStore) LogActivity(dealID, action, details string) error {
	f.activity = append(f.activity, action)
	return nil
}

type fakeBlobs struct {
	stored []string
	err    error
}

func (f *fakeBlobs) Store(ctx context.Context, dealID, fileName string, data []byte, mimeType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	url := fmt.Sprintf("http://blobs/deals/%s/%s", dealID, fileName)
	f.stored = append(f.stored, url)
	return url, nil
}

type fakeExtractor struct {
	bodyResult *models.LoanApplication
	bodyErr    error
	docResults map[string]*models.LoanApplication
	docErr     map[string]error
	bodyCalls  int
	docCalls   []string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		docResults: map[string]*models.LoanApplication{},
		docErr:     map[string]error{},
	}
}

func (f *fakeExtractor) ExtractEmailBody(ctx context.Context, body string) (*models.LoanApplication, error) {
	f.bodyCalls++
	if f.bodyErr != nil {
		return nil, f.bodyErr
	}
	if f.bodyResult != nil {
		return f.bodyResult, nil
	}
	app := models.EmptyApplication()
	return &app, nil
}

func (f *fakeExtractor) ExtractDocument(ctx context.Context, data []byte, mimeType, fileName string, docType models.DocumentType) (*models.LoanApplication, error) {
	f.docCalls = append(f.docCalls, fileName)
	if err := f.docErr[fileName]; err != nil {
		return nil, err
	}
	if app := f.docResults[fileName]; app != nil {
		return app, nil
	}
	app := models.EmptyApplication()
	return &app, nil
}

func testDeal() *models.Deal {
	return &models.Deal{
		ID:              "deal-1",
		Status:          models.DealStatusProcessing,
		ApplicationData: models.EmptyApplication(),
	}
}

func newTestPipeline(f *fakeFetcher, r *fakeResolver, s *fakeStore, b *fakeBlobs, e *fakeExtractor) *Pipeline {
	return New(f, r, s, b, e, metrics.NewMetricsForTesting())
}

func TestProcessEmailDuplicateIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.seenMessages["msg-1"] = true
	ext := newFakeExtractor()
	p := newTestPipeline(&fakeFetcher{}, &fakeResolver{deal: testDeal(), match: resolver.MatchSender}, store, &fakeBlobs{}, ext)

	err := p.ProcessEmail(context.Background(), models.InboundEmail{
		MessageID: "msg-1",
		Body:      "a body long enough to normally trigger extraction",
	})

	require.NoError(t, err)
	assert.Zero(t, ext.bodyCalls)
	assert.Empty(t, store.saves)
	assert.Empty(t, store.documents)
}

func TestProcessEmailShortBodySkipsExtraction(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()
	p := newTestPipeline(&fakeFetcher{}, &fakeResolver{deal: testDeal(), match: resolver.MatchCreated}, store, &fakeBlobs{}, ext)

	err := p.ProcessEmail(context.Background(), models.InboundEmail{
		MessageID: "msg-1",
		Body:      "   thanks!   ",
	})

	require.NoError(t, err)
	assert.Zero(t, ext.bodyCalls)
	require.Len(t, store.saves, 1)
	assert.Equal(t, models.DealStatusProcessing, store.saves[0].status)
}

func TestProcessEmailBodyMergesBeforeAttachments(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()

	bodyApp := models.EmptyApplication()
	bodyApp.LoanAmount = fptr(500000)
	bodyApp.BorrowerName = sptr("From Body")
	ext.bodyResult = &bodyApp

	docApp := models.EmptyApplication()
	docApp.BorrowerName = sptr("From Document")
	docApp.PropertyAddress = sptr("123 Main St")
	ext.docResults["w2.pdf"] = &docApp

	p := newTestPipeline(&fakeFetcher{}, &fakeResolver{deal: testDeal(), match: resolver.MatchSender}, store, &fakeBlobs{}, ext)

	err := p.ProcessEmail(context.Background(), models.InboundEmail{
		MessageID: "msg-1",
		Body:      "Please find my loan application attached, thank you.",
		Attachments: []models.Attachment{
			{FileName: "w2.pdf", MIMEType: "application/pdf", Data: []byte("pdf")},
		},
	})

	require.NoError(t, err)
	require.Len(t, store.saves, 1)
	saved := store.saves[0].app

	// The body's value landed first and is not clobbered by the attachment
	assert.Equal(t, "From Body", *saved.BorrowerName)
	assert.Equal(t, 500000.0, *saved.LoanAmount)
	assert.Equal(t, "123 Main St", *saved.PropertyAddress)
}

func TestProcessEmailStatusReadyForReview(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()

	bodyApp := models.EmptyApplication()
	bodyApp.BorrowerName = sptr("Jane Smith")
	bodyApp.LoanAmount = fptr(400000)
	bodyApp.PropertyAddress = sptr("123 Main St")
	ext.bodyResult = &bodyApp

	p := newTestPipeline(&fakeFetcher{}, &fakeResolver{deal: testDeal(), match: resolver.MatchCreated}, store, &fakeBlobs{}, ext)

	err := p.ProcessEmail(context.Background(), models.InboundEmail{
		MessageID: "msg-1",
		Body:      "My name is Jane Smith, I need 400k for 123 Main St.",
	})

	require.NoError(t, err)
	require.Len(t, store.saves, 1)
	assert.Equal(t, models.DealStatusReadyForReview, store.saves[0].status)
	assert.Contains(t, store.activity, models.ActionDealCreated)
	assert.Contains(t, store.activity, models.ActionApplicationSaved)
	assert.Contains(t, store.activity, models.ActionStatusChanged)
}

func TestProcessEmailUnsupportedAttachment(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()
	p := newTestPipeline(&fakeFetcher{}, &fakeResolver{deal: testDeal(), match: resolver.MatchSender}, store, &fakeBlobs{}, ext)

	err := p.ProcessEmail(context.Background(), models.InboundEmail{
		MessageID: "msg-1",
		Attachments: []models.Attachment{
			{FileName: "notes.docx", MIMEType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		},
	})

	require.NoError(t, err)
	// The document record exists and is failed, but no extraction call happened
	require.Len(t, store.documents, 1)
	assert.Empty(t, ext.docCalls)
	payload, ok := store.failed[store.documents[0].ID]
	require.True(t, ok)
	assert.Contains(t, string(payload), "Unsupported format")
}

func TestProcessEmailAttachmentFailureIsolated(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()
	ext.docErr["bad.pdf"] = errors.New("model refused")

	goodApp := models.EmptyApplication()
	goodApp.MidFICO = fptr(720)
	ext.docResults["good.pdf"] = &goodApp

	p := newTestPipeline(&fakeFetcher{}, &fakeResolver{deal: testDeal(), match: resolver.MatchSender}, store, &fakeBlobs{}, ext)

	err := p.ProcessEmail(context.Background(), models.InboundEmail{
		MessageID: "msg-1",
		Attachments: []models.Attachment{
			{FileName: "bad.pdf", MIMEType: "application/pdf", Data: []byte("x")},
			{FileName: "good.pdf", MIMEType: "application/pdf", Data: []byte("y")},
		},
	})

	require.NoError(t, err)
	require.Len(t, store.documents, 2)
	assert.Len(t, store.failed, 1)
	assert.Len(t, store.parsed, 1)

	// The second attachment's data still reached the saved application
	require.Len(t, store.saves, 1)
	assert.Equal(t, 720.0, *store.saves[0].app.MidFICO)
}

func TestProcessEmailBodyExtractionFailureNonFatal(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()
	ext.bodyErr = errors.New("rate limited")

	p := newTestPipeline(&fakeFetcher{}, &fakeResolver{deal: testDeal(), match: resolver.MatchSender}, store, &fakeBlobs{}, ext)

	err := p.ProcessEmail(context.Background(), models.InboundEmail{
		MessageID: "msg-1",
		Body:      "A body comfortably longer than the minimum length.",
	})

	require.NoError(t, err)
	require.Len(t, store.saves, 1)
}

func TestIngestBatchContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()
	f := &fakeFetcher{emails: []models.InboundEmail{
		{MessageID: "msg-1"},
		{MessageID: "msg-2"},
	}}
	p := newTestPipeline(f, &fakeResolver{err: errors.New("db down")}, store, &fakeBlobs{}, ext)

	processed, err := p.IngestBatch(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestIngestBatchCountsProcessed(t *testing.T) {
	store := newFakeStore()
	ext := newFakeExtractor()
	f := &fakeFetcher{emails: []models.InboundEmail{
		{MessageID: "msg-1"},
		{MessageID: "msg-2"},
	}}
	p := newTestPipeline(f, &fakeResolver{deal: testDeal(), match: resolver.MatchSender}, store, &fakeBlobs{}, ext)

	processed, err := p.IngestBatch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
}

func TestIngestBatchFetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("imap timeout")}
	p := newTestPipeline(f, &fakeResolver{}, newFakeStore(), &fakeBlobs{}, newFakeExtractor())

	_, err := p.IngestBatch(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch emails")
}

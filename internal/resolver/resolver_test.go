package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-intake-go/internal/models"
)

type fakeDealStore struct {
	byEmail     map[string]*models.Deal
	active      []models.Deal
	created     []*models.Deal
	statusCalls map[string]models.DealStatus
	createErr   error
}

func newFakeDealStore() *fakeDealStore {
	return &fakeDealStore{
		byEmail:     map[string]*models.Deal{},
		statusCalls: map[string]models.DealStatus{},
	}
}

func (f *fakeDealStore) FindActiveDealByEmail(email string) (*models.Deal, error) {
	return f.byEmail[email], nil
}

func (f *fakeDealStore) ListActiveDeals() ([]models.Deal, error) {
	return f.active, nil
}

func (f *fakeDealStore) CreateDeal(deal *models.Deal) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, deal)
	return nil
}

func (f *fakeDealStore) UpdateDealStatus(id string, status models.DealStatus) error {
	f.statusCalls[id] = status
	return nil
}

func sptr(v string) *string { return &v }

func dealWithAddress(id, addr string) models.Deal {
	app := models.EmptyApplication()
	app.PropertyAddress = sptr(addr)
	return models.Deal{ID: id, Status: models.DealStatusReadyForReview, ApplicationData: app}
}

func TestResolveSenderMatch(t *testing.T) {
	store := newFakeDealStore()
	store.byEmail["jane@example.com"] = &models.Deal{ID: "deal-1", Status: models.DealStatusReadyForReview}
	// A fuzzy subject candidate also exists; the sender match must win
	store.active = []models.Deal{dealWithAddress("deal-2", "123 Main Street")}

	r := New(store)
	deal, match, err := r.Resolve(context.Background(), models.InboundEmail{
		From:    "jane@example.com",
		Subject: "Re: 123 Main Street docs",
	})

	require.NoError(t, err)
	assert.Equal(t, MatchSender, match)
	assert.Equal(t, "deal-1", deal.ID)
	assert.Equal(t, models.DealStatusProcessing, deal.Status)
	assert.Equal(t, models.DealStatusProcessing, store.statusCalls["deal-1"])
	assert.Empty(t, store.created)
}

func TestResolveSubjectMatch(t *testing.T) {
	store := newFakeDealStore()
	store.active = []models.Deal{dealWithAddress("deal-1", "456 Oak Avenue, Unit 3, Sacramento CA")}

	r := New(store)

	// Subject contains the normalized street portion of the stored address
	deal, match, err := r.Resolve(context.Background(), models.InboundEmail{
		From:    "agent@example.com",
		Subject: "Appraisal for 456 Oak Ave",
	})

	require.NoError(t, err)
	assert.Equal(t, MatchSubject, match)
	assert.Equal(t, "deal-1", deal.ID)
	assert.Equal(t, models.DealStatusProcessing, store.statusCalls["deal-1"])
}

func TestResolveSubjectLineEquality(t *testing.T) {
	store := newFakeDealStore()
	store.active = []models.Deal{{
		ID:              "deal-1",
		SubjectLine:     "Loan Application - Smith",
		Status:          models.DealStatusProcessing,
		ApplicationData: models.EmptyApplication(),
	}}

	r := New(store)
	deal, match, err := r.Resolve(context.Background(), models.InboundEmail{
		From:    "cpa@example.com",
		Subject: "loan application   smith",
	})

	require.NoError(t, err)
	assert.Equal(t, MatchSubject, match)
	assert.Equal(t, "deal-1", deal.ID)
}

func TestResolveShortStreetNotMatched(t *testing.T) {
	// Street portions under five characters are too ambiguous to match on
	store := newFakeDealStore()
	store.active = []models.Deal{dealWithAddress("deal-1", "9 Z Apt 1, Reno NV")}

	r := New(store)
	_, match, err := r.Resolve(context.Background(), models.InboundEmail{
		From:    "someone@example.com",
		Subject: "Re: 9 Z docs",
	})

	require.NoError(t, err)
	assert.Equal(t, MatchCreated, match)
}

func TestResolveCreatesDeal(t *testing.T) {
	store := newFakeDealStore()

	r := New(store)
	deal, match, err := r.Resolve(context.Background(), models.InboundEmail{
		From:       "new@example.com",
		SenderName: "New Borrower",
		Subject:    "Loan inquiry",
		Body:       "Hello, I would like a loan.",
	})

	require.NoError(t, err)
	assert.Equal(t, MatchCreated, match)
	require.Len(t, store.created, 1)
	assert.NotEmpty(t, deal.ID)
	assert.Equal(t, "New Borrower", deal.ClientName)
	assert.Equal(t, "new@example.com", deal.ClientEmail)
	assert.Equal(t, "Loan inquiry", deal.SubjectLine)
	assert.Equal(t, models.DealStatusProcessing, deal.Status)
	assert.Equal(t, "Hello, I would like a loan.", deal.RawEmailBody)
	assert.Empty(t, deal.ApplicationData.MissingFields)
}

func TestResolveCreateFailureIsFatal(t *testing.T) {
	store := newFakeDealStore()
	store.createErr = errors.New("insert failed")

	r := New(store)
	_, _, err := r.Resolve(context.Background(), models.InboundEmail{From: "x@example.com"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create deal")
}

func TestResolveNewestFirstWins(t *testing.T) {
	store := newFakeDealStore()
	// The store returns active deals newest first; both match the subject
	store.active = []models.Deal{
		dealWithAddress("newer", "789 Sunset Blvd"),
		dealWithAddress("older", "789 Sunset Blvd"),
	}

	r := New(store)
	deal, match, err := r.Resolve(context.Background(), models.InboundEmail{
		From:    "other@example.com",
		Subject: "789 Sunset Blvd refinance",
	})

	require.NoError(t, err)
	assert.Equal(t, MatchSubject, match)
	assert.Equal(t, "newer", deal.ID)
}

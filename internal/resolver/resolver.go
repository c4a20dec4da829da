// Package resolver attaches an inbound email to an existing open deal or
// creates a new one. Sender-address matching runs first because it is cheap
// and precise for reply threads; the subject/address fallback exists because
// follow-ups about the same property often arrive from a different address
// (a co-borrower or agent) and must still land on the same deal.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"loan-intake-go/internal/address"
	"loan-intake-go/internal/models"
)

// Match describes how a deal was resolved for an email.
type Match string

const (
	MatchSender  Match = "sender"
	MatchSubject Match = "subject"
	MatchCreated Match = "created"
)

// DealStore is the persistence surface the resolver needs.
type DealStore interface {
	FindActiveDealByEmail(email string) (*models.Deal, error)
	ListActiveDeals() ([]models.Deal, error)
	CreateDeal(deal *models.Deal) error
	UpdateDealStatus(id string, status models.DealStatus) error
}

// Resolver finds or creates the deal for an inbound email.
type Resolver struct {
	store DealStore
}

// New creates a resolver backed by the given store.
func New(store DealStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the deal this email belongs to, first match wins:
// exact sender match on the most recent active deal, then a fuzzy
// subject/address scan of active deals newest-first, else a new deal.
// Matched deals are transitioned to processing. A store failure while
// creating a new deal is fatal for the email.
func (r *Resolver) Resolve(ctx context.Context, email models.InboundEmail) (*models.Deal, Match, error) {
	deal, err := r.store.FindActiveDealByEmail(email.From)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up deal by sender: %w", err)
	}
	if deal != nil {
		r.markProcessing(deal)
		return deal, MatchSender, nil
	}

	if email.Subject != "" {
		if deal := r.findBySubject(email.Subject); deal != nil {
			r.markProcessing(deal)
			return deal, MatchSubject, nil
		}
	}

	newDeal := &models.Deal{
		ID:              uuid.NewString(),
		ClientName:      email.SenderName,
		ClientEmail:     email.From,
		SubjectLine:     email.Subject,
		Status:          models.DealStatusProcessing,
		ApplicationData: models.EmptyApplication(),
		RawEmailBody:    email.Body,
	}
	if err := r.store.CreateDeal(newDeal); err != nil {
		return nil, "", fmt.Errorf("failed to create deal: %w", err)
	}
	return newDeal, MatchCreated, nil
}

func (r *Resolver) markProcessing(deal *models.Deal) {
	if err := r.store.UpdateDealStatus(deal.ID, models.DealStatusProcessing); err != nil {
		logrus.Warnf("Failed to mark deal %s as processing: %v", deal.ID, err)
		return
	}
	deal.Status = models.DealStatusProcessing
}

// findBySubject scans active deals newest-first and returns the first deal
// whose stored property address or original subject line matches the inbound
// subject. The first-match tie-break is a heuristic: two active deals for
// different properties sharing an ambiguous subject substring can still
// collide here.
func (r *Resolver) findBySubject(subject string) *models.Deal {
	deals, err := r.store.ListActiveDeals()
	if err != nil {
		logrus.Warnf("Failed to list active deals for subject matching: %v", err)
		return nil
	}

	normalizedSubject := address.Normalize(subject)

	for i := range deals {
		deal := &deals[i]

		if addr := deal.ApplicationData.PropertyAddress; addr != nil {
			normalizedAddress := address.Normalize(*addr)
			if strings.Contains(normalizedSubject, normalizedAddress) ||
				strings.Contains(normalizedAddress, normalizedSubject) {
				return deal
			}
			street := address.StreetPortion(normalizedAddress)
			if len(street) >= 5 && strings.Contains(normalizedSubject, street) {
				return deal
			}
		}

		if deal.SubjectLine != "" && normalizedSubject == address.Normalize(deal.SubjectLine) {
			return deal
		}
	}

	return nil
}

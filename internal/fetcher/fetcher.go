// Package fetcher pulls candidate loan emails from the mailbox. Two
// implementations exist behind one interface: the Gmail API (default) and
// plain IMAP for mailboxes without API access.
package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"loan-intake-go/internal/config"
	"loan-intake-go/internal/models"
)

// EmailFetcher interface for fetching candidate emails. rescan re-reads
// messages the mailbox already marked handled; the document-level dedup
// check downstream still applies.
type EmailFetcher interface {
	FetchNewEmails(ctx context.Context, rescan bool) ([]models.InboundEmail, error)
	Close() error
}

// loanQuery narrows the mailbox search to messages that look like loan
// requests. Filtering here is best-effort; the pipeline tolerates
// false positives.
const loanQuery = `(subject:(1003 OR "loan amount" OR "trust deed" OR FICO OR "property value" OR "protective equity") OR ("loan amount" "property value" "interest rate"))`

const maxMessagesPerFetch = 20

var senderEmailRe = regexp.MustCompile(`<(.+?)>`)

// GmailAPIFetcher implements EmailFetcher using the Gmail API
type GmailAPIFetcher struct {
	service   *gmail.Service
	userEmail string
	topic     string
}

// NewGmailAPIFetcher creates a new Gmail API fetcher
func NewGmailAPIFetcher(cfg *config.GmailConfig) (*GmailAPIFetcher, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailAPIFetcher{
		service:   service,
		userEmail: cfg.UserEmail,
		topic:     cfg.PubSubTopic,
	}, nil
}

// FetchNewEmails fetches unread loan emails with full bodies and attachment
// bytes. In rescan mode the unread filter is dropped and messages are not
// marked read.
func (f *GmailAPIFetcher) FetchNewEmails(ctx context.Context, rescan bool) ([]models.InboundEmail, error) {
	query := loanQuery
	if !rescan {
		query = "is:unread " + query
	}

	response, err := f.service.Users.Messages.List(f.userEmail).Q(query).MaxResults(maxMessagesPerFetch).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var emails []models.InboundEmail

	for _, msg := range response.Messages {
		full, err := f.service.Users.Messages.Get(f.userEmail, msg.Id).Format("full").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", msg.Id, err)
			continue
		}

		email, err := f.parseMessage(ctx, full)
		if err != nil {
			logrus.Warnf("Failed to parse message %s: %v", msg.Id, err)
			continue
		}

		emails = append(emails, email)

		if !rescan {
			if err := f.markRead(ctx, msg.Id); err != nil {
				logrus.Warnf("Failed to mark message %s as read: %v", msg.Id, err)
			}
		}
	}

	return emails, nil
}

func (f *GmailAPIFetcher) markRead(ctx context.Context, messageID string) error {
	_, err := f.service.Users.Messages.Modify(f.userEmail, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

// SetupWatch registers the mailbox for Pub/Sub push notifications.
func (f *GmailAPIFetcher) SetupWatch(ctx context.Context) error {
	if f.topic == "" {
		return fmt.Errorf("no Pub/Sub topic configured")
	}
	_, err := f.service.Users.Watch(f.userEmail, &gmail.WatchRequest{
		TopicName: f.topic,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to set up Gmail watch: %w", err)
	}
	return nil
}

func (f *GmailAPIFetcher) parseMessage(ctx context.Context, msg *gmail.Message) (models.InboundEmail, error) {
	email := models.InboundEmail{
		MessageID: msg.Id,
	}

	var from string
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			email.Subject = header.Value
		case "From":
			from = header.Value
		}
	}
	email.From, email.SenderName = parseSender(from)

	email.Body = extractBody(msg.Payload)

	attachments, err := f.extractAttachments(ctx, msg.Id, msg.Payload)
	if err != nil {
		return email, err
	}
	email.Attachments = attachments

	return email, nil
}

// parseSender splits a "Name <email>" header into address and display name.
func parseSender(from string) (string, string) {
	addr := from
	if m := senderEmailRe.FindStringSubmatch(from); m != nil {
		addr = m[1]
	}
	name := strings.TrimSpace(senderEmailRe.ReplaceAllString(from, ""))
	name = strings.ReplaceAll(name, `"`, "")
	if name == "" {
		name = addr
	}
	return addr, name
}

// extractBody prefers text/plain, falls back to text/html, and recurses into
// nested multipart containers.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	for _, part := range payload.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}

	return ""
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail sometimes omits padding.
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

func (f *GmailAPIFetcher) extractAttachments(ctx context.Context, messageID string, payload *gmail.MessagePart) ([]models.Attachment, error) {
	var attachments []models.Attachment
	if payload == nil {
		return attachments, nil
	}

	for _, part := range payload.Parts {
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
			body, err := f.service.Users.Messages.Attachments.Get(f.userEmail, messageID, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				return nil, fmt.Errorf("failed to download attachment %s: %w", part.Filename, err)
			}

			data, err := base64.URLEncoding.DecodeString(body.Data)
			if err != nil {
				data, err = base64.RawURLEncoding.DecodeString(body.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode attachment %s: %w", part.Filename, err)
				}
			}

			mimeType := part.MimeType
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}

			attachments = append(attachments, models.Attachment{
				FileName: part.Filename,
				MIMEType: mimeType,
				Data:     data,
				Size:     int64(len(data)),
			})
		}

		if len(part.Parts) > 0 {
			nested, err := f.extractAttachments(ctx, messageID, part)
			if err != nil {
				return nil, err
			}
			attachments = append(attachments, nested...)
		}
	}

	return attachments, nil
}

// Close closes the Gmail API fetcher
func (f *GmailAPIFetcher) Close() error {
	// Gmail API service doesn't need explicit closing
	return nil
}

// sinceWindow bounds how far back the IMAP fetcher looks on first run and in
// rescan mode.
const sinceWindow = 7 * 24 * time.Hour

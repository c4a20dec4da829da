package fetcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"loan-intake-go/internal/config"
	"loan-intake-go/internal/models"
)

// IMAPFetcher implements EmailFetcher using IMAP
type IMAPFetcher struct {
	client    *client.Client
	lastCheck time.Time
}

// NewIMAPFetcher creates a new IMAP fetcher
func NewIMAPFetcher(cfg *config.GmailConfig) (*IMAPFetcher, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &IMAPFetcher{
		client:    c,
		lastCheck: time.Now().Add(-sinceWindow),
	}, nil
}

// FetchNewEmails fetches unseen messages since the last check. In rescan mode
// the seen filter is dropped and the whole window is re-read.
func (f *IMAPFetcher) FetchNewEmails(ctx context.Context, rescan bool) ([]models.InboundEmail, error) {
	_, err := f.client.Select("INBOX", false)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	if rescan {
		criteria.Since = time.Now().Add(-sinceWindow)
	} else {
		criteria.Since = f.lastCheck
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}

	uids, err := f.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	if len(uids) == 0 {
		f.lastCheck = time.Now()
		return []models.InboundEmail{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	section := &imap.BodySectionName{}
	go func() {
		done <- f.client.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem(), imap.FetchUid}, messages)
	}()

	var emails []models.InboundEmail

	for msg := range messages {
		email, err := parseIMAPMessage(msg)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message: %v", err)
			continue
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	f.lastCheck = time.Now()
	return emails, nil
}

func parseIMAPMessage(msg *imap.Message) (models.InboundEmail, error) {
	email := models.InboundEmail{}

	if msg.Envelope != nil {
		email.MessageID = msg.Envelope.MessageId
		email.Subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			email.From = from.Address()
			email.SenderName = from.PersonalName
			if email.SenderName == "" {
				email.SenderName = email.From
			}
		}
	}

	section := &imap.BodySectionName{}
	r := msg.GetBody(section)
	if r == nil {
		return email, fmt.Errorf("failed to get message body")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return email, fmt.Errorf("failed to read message: %w", err)
	}

	var htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return email, fmt.Errorf("failed to read part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return email, fmt.Errorf("failed to read part body: %w", err)
			}
			switch contentType {
			case "text/plain":
				if email.Body == "" {
					email.Body = string(content)
				}
			case "text/html":
				if htmlBody == "" {
					htmlBody = string(content)
				}
			}
		case *mail.AttachmentHeader:
			fileName, _ := h.Filename()
			if fileName == "" {
				continue
			}
			contentType, _, _ := h.ContentType()
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			data, err := io.ReadAll(p.Body)
			if err != nil {
				return email, fmt.Errorf("failed to read attachment %s: %w", fileName, err)
			}
			email.Attachments = append(email.Attachments, models.Attachment{
				FileName: fileName,
				MIMEType: contentType,
				Data:     data,
				Size:     int64(len(data)),
			})
		}
	}

	if email.Body == "" {
		email.Body = htmlBody
	}

	return email, nil
}

// Close closes the IMAP fetcher
func (f *IMAPFetcher) Close() error {
	return f.client.Logout()
}

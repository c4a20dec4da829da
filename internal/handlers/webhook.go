package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// pubSubEnvelope is the Pub/Sub push wrapper around a Gmail notification.
type pubSubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// decodeNotification accepts either a Pub/Sub envelope whose message.data is
// base64-encoded JSON, or a raw JSON notification body.
func decodeNotification(body []byte) (map[string]interface{}, error) {
	var envelope pubSubEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
		if err != nil {
			decoded, err = base64.URLEncoding.DecodeString(envelope.Message.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode notification data: %w", err)
			}
		}
		var notification map[string]interface{}
		if err := json.Unmarshal(decoded, &notification); err != nil {
			return nil, fmt.Errorf("failed to parse notification data: %w", err)
		}
		return notification, nil
	}

	var notification map[string]interface{}
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, fmt.Errorf("failed to parse notification body: %w", err)
	}
	return notification, nil
}

// GmailWebhook handles Pub/Sub push notifications. The notification itself
// only signals that the mailbox changed; the pipeline fetches whatever is
// actually new.
func (h *Handlers) GmailWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	notification, err := decodeNotification(body)
	if err != nil {
		logrus.Warnf("Unparseable Gmail notification: %v", err)
	} else {
		logrus.Infof("Gmail notification received: %v", notification)
	}

	processed, err := h.pipeline.IngestBatch(c.Request.Context(), false)
	if err != nil {
		logrus.Errorf("Gmail webhook error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "processed": processed})
}

// SetupWatch registers the mailbox for push notifications.
func (h *Handlers) SetupWatch(c *gin.Context) {
	if h.watcher == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "push notifications require the Gmail API fetcher"})
		return
	}
	if err := h.watcher.SetupWatch(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Ingest triggers a manual poll. ?rescan=true re-reads previously handled
// mailbox messages; the document-level dedup check still applies.
func (h *Handlers) Ingest(c *gin.Context) {
	rescan := c.Query("rescan") == "true"

	processed, err := h.pipeline.IngestBatch(c.Request.Context(), rescan)
	if err != nil {
		logrus.Errorf("Manual poll error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "processed": processed, "rescan": rescan})
}

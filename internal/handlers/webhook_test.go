package handlers

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNotificationEnvelope(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"intake@example.com","historyId":12345}`))
	body := []byte(`{"message":{"data":"` + payload + `","messageId":"m-1"},"subscription":"projects/p/subscriptions/s"}`)

	notification, err := decodeNotification(body)
	require.NoError(t, err)
	assert.Equal(t, "intake@example.com", notification["emailAddress"])
	assert.Equal(t, float64(12345), notification["historyId"])
}

func TestDecodeNotificationURLSafeBase64(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"emailAddress":"intake@example.com"}`))
	body := []byte(`{"message":{"data":"` + payload + `"}}`)

	notification, err := decodeNotification(body)
	require.NoError(t, err)
	assert.Equal(t, "intake@example.com", notification["emailAddress"])
}

func TestDecodeNotificationRawJSON(t *testing.T) {
	notification, err := decodeNotification([]byte(`{"emailAddress":"intake@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "intake@example.com", notification["emailAddress"])
}

func TestDecodeNotificationInvalid(t *testing.T) {
	_, err := decodeNotification([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeNotification([]byte(`{"message":{"data":"%%%"}}`))
	assert.Error(t, err)

	// Valid base64 wrapping something that is not JSON
	garbage := base64.StdEncoding.EncodeToString([]byte("plain text"))
	_, err = decodeNotification([]byte(`{"message":{"data":"` + garbage + `"}}`))
	assert.Error(t, err)
}

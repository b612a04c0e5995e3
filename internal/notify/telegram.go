// Package notify isolates notification delivery so transports can change
// without touching the alert engine.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram delivers alert messages via the Telegram Bot API. It never
// retries: a failed send surfaces to the caller, which leaves the
// subscription Active so the next fetch cycle retries structurally.
type Telegram struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewTelegram creates a sender with a shared HTTP client so connections are
// reused across deliveries.
func NewTelegram(token string, timeout time.Duration) *Telegram {
	return &Telegram{
		token:   token,
		baseURL: defaultAPIBase,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendMessageRequest struct {
	ChatID          int64  `json:"chat_id"`
	Text            string `json:"text"`
	MessageThreadID *int64 `json:"message_thread_id,omitempty"`
}

// Send posts one message to one chat, optionally into a forum thread. Any
// non-2xx response is an error carrying the response body for diagnosis.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string, threadID *int64) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:          chatID,
		Text:            text,
		MessageThreadID: threadID,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram api error: status=%d body=%s", resp.StatusCode, body)
	}
	return nil
}

package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSender POSTs the event as JSON to an arbitrary endpoint. Any 2xx
// answer counts as delivered.
type WebhookSender struct {
	client *http.Client
	now    func() time.Time
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

type webhookBody struct {
	EventType string         `json:"event_type"`
	Topic     string         `json:"topic"`
	Payload   map[string]any `json:"payload"`
	SentAt    int64          `json:"sent_at"`
}

func (s *WebhookSender) Send(ctx context.Context, url string, msg Message) error {
	body, err := json.Marshal(webhookBody{
		EventType: msg.EventType,
		Topic:     msg.Topic,
		Payload:   msg.Payload,
		SentAt:    s.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ProjectFlow-Event", msg.EventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

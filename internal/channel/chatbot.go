package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ChatBotConfig struct {
	Token string
	// APIURL is the Bot API base, e.g. https://api.telegram.org.
	APIURL string
}

// ChatBotSender posts messages through the Telegram Bot API. The destination
// is the chat id obtained by pairing.
type ChatBotSender struct {
	cfg    ChatBotConfig
	client *http.Client
}

func NewChatBotSender(cfg ChatBotConfig) *ChatBotSender {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &ChatBotSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ChatBotSender) Send(ctx context.Context, chatID string, msg Message) error {
	if s.cfg.Token == "" {
		return fmt.Errorf("chat-bot: %w", ErrNotConfigured)
	}
	if chatID == "" {
		return fmt.Errorf("chat-bot: empty chat id")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("chat-bot: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.cfg.APIURL, s.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat-bot: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// the url carries the bot token
		return fmt.Errorf("chat-bot: send to %s: %w", chatID, redact(err, s.cfg.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat-bot: api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), secret, "***"))
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/DurkaVerder/ProjectFlow/internal/channel"
)

// SendChatMessage delivers an ad-hoc text through the chat-bot sender.
type SendChatMessage struct {
	sender channel.Sender
}

func NewSendChatMessage(sender channel.Sender) *SendChatMessage {
	return &SendChatMessage{sender: sender}
}

func (uc *SendChatMessage) Execute(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(chatID) == "" || strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: chat id and message are required", ErrInvalidInput)
	}
	if err := uc.sender.Send(ctx, chatID, channel.Message{Text: text}); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

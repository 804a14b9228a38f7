// Package channel holds the outbound senders, one per integration kind.
// Each sender either delivers a message to a destination or returns an error.
package channel

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a sender lacking credentials. It is never
// reported as a successful delivery.
var ErrNotConfigured = errors.New("channel sender is not configured")

// Message is a rendered outbound message. Channels use the fields that fit
// their transport.
type Message struct {
	Subject   string
	Text      string
	Topic     string
	EventType string
	Payload   map[string]any
}

// Sender delivers one message to one destination. The destination format is
// channel specific.
type Sender interface {
	Send(ctx context.Context, destination string, msg Message) error
}

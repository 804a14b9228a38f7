package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ErrMalformed marks an envelope that can never be processed. The ingress
// loop skips it and still advances the consumer position.
var ErrMalformed = errors.New("malformed event")

type Topic string

const (
	TopicProject Topic = "project-events"
	TopicTask    Topic = "task-events"
)

const (
	TypeProjectCreated = "project_created"
	TypeMemberAdded    = "member_added"
	TypeMemberRemoved  = "member_removed"
	TypeTaskCreated    = "task_created"
	TypeTaskUpdated    = "task_updated"
	TypeCommentAdded   = "comment_added"
)

// Payload holds the event-specific fields of an envelope, event_type excluded.
type Payload map[string]any

// Envelope is one message read from the event bus. It is never mutated
// after decoding.
type Envelope struct {
	Topic     Topic
	EventType string
	Payload   Payload
	// Raw is the message value as received from the broker.
	Raw       []byte
	Partition int
	Offset    int64
}

// Decode parses a broker message value. The value must be a JSON object
// with a string event_type field.
func Decode(topic Topic, value []byte) (Envelope, error) {
	var fields map[string]any
	if err := json.Unmarshal(value, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode json: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Envelope{}, fmt.Errorf("%w: not a json object", ErrMalformed)
	}

	eventType, ok := fields["event_type"].(string)
	if !ok || eventType == "" {
		return Envelope{}, fmt.Errorf("%w: missing event_type", ErrMalformed)
	}
	delete(fields, "event_type")

	return Envelope{
		Topic:     topic,
		EventType: eventType,
		Payload:   Payload(fields),
		Raw:       value,
	}, nil
}

// String returns a display value. Numbers and booleans are formatted; other
// non-scalar values are reported as absent.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// ID returns the identifier stored under key. present is false when the key
// is absent or empty; a present value that is not a uuid is ErrMalformed.
func (p Payload) ID(key string) (id uuid.UUID, present bool, err error) {
	v, ok := p[key]
	if !ok || v == nil {
		return uuid.Nil, false, nil
	}
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, true, fmt.Errorf("%w: %s is not a string", ErrMalformed, key)
	}
	if s == "" {
		return uuid.Nil, false, nil
	}
	id, err = uuid.Parse(s)
	if err != nil {
		return uuid.Nil, true, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return id, true, nil
}

// Fields returns the payload with event_type restored, as produced upstream.
func (e Envelope) Fields() map[string]any {
	out := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["event_type"] = e.EventType
	return out
}

package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("integration not found")
	ErrInvalidConfig = errors.New("invalid channel config")
	ErrUnknownKind   = errors.New("unknown channel kind")
	// ErrNotPaired is reported for a chat-bot integration whose chat handle
	// has not been filled in by the pairing flow yet.
	ErrNotPaired = errors.New("chat handle is not paired")
)

type ChannelKind string

const (
	KindEmail   ChannelKind = "email"
	KindChatBot ChannelKind = "chat-bot"
	KindWebhook ChannelKind = "webhook"
)

func (k ChannelKind) Valid() bool {
	switch k {
	case KindEmail, KindChatBot, KindWebhook:
		return true
	}
	return false
}

// ChannelConfig is the per-kind settings of an integration. The concrete
// type always agrees with Kind().
type ChannelConfig interface {
	Kind() ChannelKind
	// Destination is the address handed to the channel sender.
	Destination() (string, error)
}

type EmailConfig struct {
	Address string `json:"address" validate:"required,email"`
}

func (EmailConfig) Kind() ChannelKind { return KindEmail }

func (c EmailConfig) Destination() (string, error) {
	if c.Address == "" {
		return "", fmt.Errorf("%w: email address is empty", ErrInvalidConfig)
	}
	return c.Address, nil
}

// ChatBotConfig starts empty and receives ChatHandle once the owner completes
// pairing.
type ChatBotConfig struct {
	ChatHandle string `json:"chat_handle,omitempty"`
}

func (ChatBotConfig) Kind() ChannelKind { return KindChatBot }

func (c ChatBotConfig) Destination() (string, error) {
	if c.ChatHandle == "" {
		return "", ErrNotPaired
	}
	return c.ChatHandle, nil
}

type WebhookConfig struct {
	URL string `json:"url" validate:"required,url,startswith=http"`
	// Events limits delivery to the listed event types. Empty means all.
	Events []string `json:"events,omitempty" validate:"dive,required"`
}

func (WebhookConfig) Kind() ChannelKind { return KindWebhook }

func (c WebhookConfig) Destination() (string, error) {
	if c.URL == "" {
		return "", fmt.Errorf("%w: webhook url is empty", ErrInvalidConfig)
	}
	return c.URL, nil
}

// UnreadableConfig stands in for a stored config that no longer decodes. The
// integration stays listed; delivery through it fails with Err.
type UnreadableConfig struct {
	ChannelKind ChannelKind
	Raw         json.RawMessage
	Err         error
}

func (c UnreadableConfig) Kind() ChannelKind { return c.ChannelKind }

func (c UnreadableConfig) Destination() (string, error) { return "", c.Err }

// MarshalJSON keeps the stored value as is.
func (c UnreadableConfig) MarshalJSON() ([]byte, error) {
	if !json.Valid(c.Raw) {
		return []byte("{}"), nil
	}
	return c.Raw, nil
}

var validate = validator.New()

// Validate checks the required-field set of the config variant.
func Validate(cfg ChannelConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: missing", ErrInvalidConfig)
	}
	if u, ok := cfg.(UnreadableConfig); ok {
		return u.Err
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ParseConfig decodes and validates the JSON config of the given kind.
func ParseConfig(kind ChannelKind, raw []byte) (ChannelConfig, error) {
	cfg, err := DecodeConfig(kind, raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoredConfig decodes a config read back from storage. A value that does not
// decode yields an UnreadableConfig instead of an error, so one bad row
// cannot hide the others.
func StoredConfig(kind ChannelKind, raw []byte) ChannelConfig {
	cfg, err := DecodeConfig(kind, raw)
	if err != nil {
		return UnreadableConfig{ChannelKind: kind, Raw: append(json.RawMessage(nil), raw...), Err: err}
	}
	return cfg
}

// DecodeConfig decodes a stored config without validating it.
func DecodeConfig(kind ChannelKind, raw []byte) (ChannelConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}

	switch kind {
	case KindEmail:
		var c EmailConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return c, nil
	case KindChatBot:
		var c ChatBotConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return c, nil
	case KindWebhook:
		var c WebhookConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

type Integration struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
	// ProjectID scopes the integration to one project when set.
	ProjectID *uuid.UUID
	IsActive  bool
	Config    ChannelConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(owner uuid.UUID, projectID *uuid.UUID, cfg ChannelConfig, now time.Time) (*Integration, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &Integration{
		ID:          uuid.New(),
		OwnerUserID: owner,
		ProjectID:   projectID,
		IsActive:    true,
		Config:      cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (i *Integration) Kind() ChannelKind {
	if i.Config == nil {
		return ""
	}
	return i.Config.Kind()
}

// Matches reports whether the integration wants the event. A project-scoped
// integration only sees events carrying its project_id; a webhook also
// honors its Events filter.
func (i *Integration) Matches(eventType string, payload event.Payload) bool {
	if i.ProjectID != nil {
		if pid, ok := payload.String("project_id"); ok && pid != i.ProjectID.String() {
			return false
		}
	}

	if wh, ok := i.Config.(WebhookConfig); ok && len(wh.Events) > 0 {
		for _, e := range wh.Events {
			if e == eventType {
				return true
			}
		}
		return false
	}
	return true
}

type integrationJSON struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	ProjectID       *uuid.UUID      `json:"projectId"`
	IntegrationType ChannelKind     `json:"integrationType"`
	IsActive        bool            `json:"isActive"`
	Config          json.RawMessage `json:"config"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (i *Integration) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(i.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(integrationJSON{
		ID:              i.ID,
		UserID:          i.OwnerUserID,
		ProjectID:       i.ProjectID,
		IntegrationType: i.Kind(),
		IsActive:        i.IsActive,
		Config:          cfg,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	})
}

package usecase

import (
	"context"
	"fmt"
	"net/url"

	pairingstore "github.com/DurkaVerder/ProjectFlow/internal/pairing"

	"github.com/google/uuid"
)

const connectInstructions = "Перейдите по ссылке и нажмите START в боте"

type ConnectionLink struct {
	DeepLink     string `json:"deep_link"`
	Token        string `json:"connection_token"`
	Instructions string `json:"instructions"`
}

type RequestConnection struct {
	registry    pairingstore.Registry
	botUsername string
}

func NewRequestConnection(registry pairingstore.Registry, botUsername string) *RequestConnection {
	return &RequestConnection{registry: registry, botUsername: botUsername}
}

// Execute issues a fresh pending token for caller. Every call creates a new
// token; earlier ones stay valid until they expire.
func (uc *RequestConnection) Execute(ctx context.Context, caller uuid.UUID) (ConnectionLink, error) {
	entry, err := uc.registry.Create(ctx, caller.String())
	if err != nil {
		return ConnectionLink{}, fmt.Errorf("create pairing entry: %w", err)
	}

	return ConnectionLink{
		DeepLink:     fmt.Sprintf("https://t.me/%s?start=%s", url.PathEscape(uc.botUsername), url.QueryEscape(entry.Token)),
		Token:        entry.Token,
		Instructions: connectInstructions,
	}, nil
}

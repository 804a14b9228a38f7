package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/pairing"
	pairingstore "github.com/DurkaVerder/ProjectFlow/internal/pairing"

	"github.com/google/uuid"
)

type CleanupConnection struct {
	registry pairingstore.Registry
}

func NewCleanupConnection(registry pairingstore.Registry) *CleanupConnection {
	return &CleanupConnection{registry: registry}
}

// Execute removes the caller's entry. Integrations already paired keep
// their chat handle.
func (uc *CleanupConnection) Execute(ctx context.Context, caller uuid.UUID, token string) error {
	if _, err := ownedEntry(ctx, uc.registry, caller, token); err != nil {
		return err
	}

	err := uc.registry.Remove(ctx, token)
	if errors.Is(err, pairing.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove pairing entry: %w", err)
	}
	return nil
}

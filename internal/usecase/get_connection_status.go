package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/pairing"
	pairingstore "github.com/DurkaVerder/ProjectFlow/internal/pairing"

	"github.com/google/uuid"
)

type ConnectionStatus struct {
	Connected bool `json:"connected"`
	// ChatID is set only once connected.
	ChatID *string `json:"chat_id"`
}

type GetConnectionStatus struct {
	registry pairingstore.Registry
}

func NewGetConnectionStatus(registry pairingstore.Registry) *GetConnectionStatus {
	return &GetConnectionStatus{registry: registry}
}

func (uc *GetConnectionStatus) Execute(ctx context.Context, caller uuid.UUID, token string) (ConnectionStatus, error) {
	entry, err := ownedEntry(ctx, uc.registry, caller, token)
	if err != nil {
		return ConnectionStatus{}, err
	}

	status := ConnectionStatus{Connected: entry.Connected}
	if entry.Connected {
		handle := entry.ExternalHandle
		status.ChatID = &handle
	}
	return status, nil
}

func ownedEntry(ctx context.Context, registry pairingstore.Registry, caller uuid.UUID, token string) (pairing.Entry, error) {
	entry, err := registry.Get(ctx, token)
	if errors.Is(err, pairing.ErrNotFound) {
		return pairing.Entry{}, ErrNotFound
	}
	if err != nil {
		return pairing.Entry{}, fmt.Errorf("get pairing entry: %w", err)
	}
	if entry.OwnerUserID != caller.String() {
		return pairing.Entry{}, ErrForbidden
	}
	return entry, nil
}

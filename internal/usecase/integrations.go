package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/webhooklog"

	"github.com/google/uuid"
)

type CreateIntegration struct {
	integrations IntegrationRepository
	now          func() time.Time
}

func NewCreateIntegration(integrations IntegrationRepository) *CreateIntegration {
	return &CreateIntegration{integrations: integrations, now: time.Now}
}

type CreateIntegrationParams struct {
	Kind      integration.ChannelKind
	ProjectID *uuid.UUID
	Config    json.RawMessage
}

func (uc *CreateIntegration) Execute(ctx context.Context, owner uuid.UUID, params CreateIntegrationParams) (*integration.Integration, error) {
	cfg, err := integration.ParseConfig(params.Kind, params.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	in, err := integration.New(owner, params.ProjectID, cfg, uc.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := uc.integrations.Create(ctx, in); err != nil {
		return nil, fmt.Errorf("create integration: %w", err)
	}
	return in, nil
}

type ListIntegrations struct {
	integrations IntegrationRepository
}

func NewListIntegrations(integrations IntegrationRepository) *ListIntegrations {
	return &ListIntegrations{integrations: integrations}
}

func (uc *ListIntegrations) Execute(ctx context.Context, owner uuid.UUID) ([]*integration.Integration, error) {
	items, err := uc.integrations.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	if items == nil {
		items = []*integration.Integration{}
	}
	return items, nil
}

type UpdateIntegration struct {
	integrations IntegrationRepository
	now          func() time.Time
}

func NewUpdateIntegration(integrations IntegrationRepository) *UpdateIntegration {
	return &UpdateIntegration{integrations: integrations, now: time.Now}
}

// UpdateIntegrationParams leaves a field unchanged when it is nil.
type UpdateIntegrationParams struct {
	IsActive *bool
	Config   json.RawMessage
}

func (uc *UpdateIntegration) Execute(ctx context.Context, owner, id uuid.UUID, params UpdateIntegrationParams) (*integration.Integration, error) {
	in, err := loadOwned(ctx, uc.integrations, owner, id)
	if err != nil {
		return nil, err
	}

	if params.Config != nil {
		cfg, err := integration.ParseConfig(in.Kind(), params.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		in.Config = cfg
	}
	if params.IsActive != nil {
		in.IsActive = *params.IsActive
	}
	in.UpdatedAt = uc.now().UTC()

	if err := uc.integrations.Update(ctx, in); err != nil {
		if errors.Is(err, integration.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update integration: %w", err)
	}
	return in, nil
}

type ListWebhookLogs struct {
	integrations IntegrationRepository
	logs         WebhookLogRepository
	limit        int
}

func NewListWebhookLogs(integrations IntegrationRepository, logs WebhookLogRepository, limit int) *ListWebhookLogs {
	return &ListWebhookLogs{integrations: integrations, logs: logs, limit: limit}
}

func (uc *ListWebhookLogs) Execute(ctx context.Context, owner, integrationID uuid.UUID) ([]*webhooklog.Log, error) {
	if _, err := loadOwned(ctx, uc.integrations, owner, integrationID); err != nil {
		return nil, err
	}

	items, err := uc.logs.ListByIntegration(ctx, integrationID, uc.limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	if items == nil {
		items = []*webhooklog.Log{}
	}
	return items, nil
}

func loadOwned(ctx context.Context, integrations IntegrationRepository, owner, id uuid.UUID) (*integration.Integration, error) {
	in, err := integrations.GetByID(ctx, id)
	if errors.Is(err, integration.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	if in.OwnerUserID != owner {
		return nil, ErrForbidden
	}
	return in, nil
}

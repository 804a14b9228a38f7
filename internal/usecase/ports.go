package usecase

import (
	"context"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/notification"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/webhooklog"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

type DedupRepository interface {
	Claim(ctx context.Context, key string) (bool, error)
}

type IntegrationRepository interface {
	Create(ctx context.Context, in *integration.Integration) error
	Update(ctx context.Context, in *integration.Integration) error
	GetByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*integration.Integration, error)
	ListByOwnerAndKind(ctx context.Context, owner uuid.UUID, kind integration.ChannelKind) ([]*integration.Integration, error)
}

type WebhookLogRepository interface {
	ListByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]*webhooklog.Log, error)
}

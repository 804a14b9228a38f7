package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/notification"

	"github.com/google/uuid"
)

type ListNotifications struct {
	notifications NotificationRepository
	limit         int
}

func NewListNotifications(notifications NotificationRepository, limit int) *ListNotifications {
	return &ListNotifications{notifications: notifications, limit: limit}
}

// Execute lists userID's notifications, newest first. Only the user may see
// their own inbox.
func (uc *ListNotifications) Execute(ctx context.Context, caller, userID uuid.UUID) ([]*notification.Notification, error) {
	if caller != userID {
		return nil, ErrForbidden
	}

	items, err := uc.notifications.ListByUser(ctx, userID, uc.limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []*notification.Notification{}
	}
	return items, nil
}

type MarkNotificationRead struct {
	notifications NotificationRepository
}

func NewMarkNotificationRead(notifications NotificationRepository) *MarkNotificationRead {
	return &MarkNotificationRead{notifications: notifications}
}

func (uc *MarkNotificationRead) Execute(ctx context.Context, caller, id uuid.UUID) (*notification.Notification, error) {
	n, err := uc.notifications.GetByID(ctx, id)
	if errors.Is(err, notification.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}

	if n.UserID != caller {
		return nil, ErrForbidden
	}
	if n.IsRead {
		return n, nil
	}

	if err := uc.notifications.MarkRead(ctx, id); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}

	n.IsRead = true
	return n, nil
}

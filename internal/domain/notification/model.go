package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

type Kind string

const (
	KindProjectCreated Kind = "project_created"
	KindMemberAdded    Kind = "member_added"
	KindMemberRemoved  Kind = "member_removed"
	KindTaskAssigned   Kind = "task_assigned"
	KindTaskUpdated    Kind = "task_updated"
	KindCommentAdded   Kind = "comment_added"
)

// Intent is the classifier output. It is consumed by the store writer and
// never persisted as is.
type Intent struct {
	RecipientUserID uuid.UUID
	Kind            Kind
	Title           string
	Message         string
}

// Notification is owned by UserID for its whole life; only the owner may
// flip IsRead.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Kind      Kind      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func FromIntent(in Intent, now time.Time) *Notification {
	return &Notification{
		ID:        uuid.New(),
		UserID:    in.RecipientUserID,
		Kind:      in.Kind,
		Title:     in.Title,
		Message:   in.Message,
		IsRead:    false,
		CreatedAt: now,
	}
}

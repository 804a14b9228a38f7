package webhooklog

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Log is an append-only audit row, one per dispatch attempt per integration.
// ErrorMessage is set iff Status is failed.
type Log struct {
	ID            uuid.UUID      `json:"id"`
	IntegrationID uuid.UUID      `json:"integrationId"`
	EventType     string         `json:"eventType"`
	Payload       map[string]any `json:"payload"`
	Status        Status         `json:"status"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func Success(integrationID uuid.UUID, eventType string, payload map[string]any, now time.Time) *Log {
	return &Log{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusSuccess,
		CreatedAt:     now,
	}
}

func Failure(integrationID uuid.UUID, eventType string, payload map[string]any, cause error, now time.Time) *Log {
	l := Success(integrationID, eventType, payload, now)
	l.Status = StatusFailed
	l.ErrorMessage = cause.Error()
	return l
}

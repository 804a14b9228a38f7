package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/webhooklog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookLogRepository is append-only: rows are never updated.
type WebhookLogRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookLogRepository(pool *pgxpool.Pool) *WebhookLogRepository {
	return &WebhookLogRepository{pool: pool}
}

func (r *WebhookLogRepository) Create(ctx context.Context, l *webhooklog.Log) error {
	const sql = `
		INSERT INTO webhook_logs (id, integration_id, event_type, payload, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	payload, err := json.Marshal(l.Payload)
	if err != nil {
		return fmt.Errorf("encode webhook log payload: %w", err)
	}

	_, err = exec(ctx, r.pool).Exec(ctx, sql,
		l.ID, l.IntegrationID, l.EventType, payload, l.Status, nullIfEmptyText(l.ErrorMessage), l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}

	return nil
}

func (r *WebhookLogRepository) ListByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]*webhooklog.Log, error) {
	const sql = `
		SELECT id, integration_id, event_type, payload, status, COALESCE(error_message, ''), created_at
		FROM webhook_logs
		WHERE integration_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.pool.Query(ctx, sql, integrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook logs: %w", err)
	}
	defer rows.Close()

	var out []*webhooklog.Log
	for rows.Next() {
		var (
			l   webhooklog.Log
			raw []byte
		)
		if err := rows.Scan(&l.ID, &l.IntegrationID, &l.EventType, &raw, &l.Status, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		if err := json.Unmarshal(raw, &l.Payload); err != nil {
			return nil, fmt.Errorf("decode webhook log payload: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook logs: %w", err)
	}

	return out, nil
}

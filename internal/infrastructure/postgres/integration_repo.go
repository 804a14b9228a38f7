package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const integrationColumns = `id, user_id, project_id, integration_type, is_active, config, created_at, updated_at`

type IntegrationRepository struct {
	pool *pgxpool.Pool
}

func NewIntegrationRepository(pool *pgxpool.Pool) *IntegrationRepository {
	return &IntegrationRepository{pool: pool}
}

func (r *IntegrationRepository) Create(ctx context.Context, in *integration.Integration) error {
	const sql = `
		INSERT INTO integrations (` + integrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	cfg, err := json.Marshal(in.Config)
	if err != nil {
		return fmt.Errorf("encode integration config: %w", err)
	}

	_, err = exec(ctx, r.pool).Exec(ctx, sql,
		in.ID, in.OwnerUserID, in.ProjectID, in.Kind(), in.IsActive, cfg, in.CreatedAt, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert integration: %w", err)
	}

	return nil
}

// Update persists IsActive, Config and UpdatedAt.
func (r *IntegrationRepository) Update(ctx context.Context, in *integration.Integration) error {
	const sql = `
		UPDATE integrations
		SET is_active = $2, config = $3, updated_at = $4
		WHERE id = $1
	`

	cfg, err := json.Marshal(in.Config)
	if err != nil {
		return fmt.Errorf("encode integration config: %w", err)
	}

	cmdTag, err := exec(ctx, r.pool).Exec(ctx, sql, in.ID, in.IsActive, cfg, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update integration: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return integration.ErrNotFound
	}

	return nil
}

func (r *IntegrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	sql := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1`

	in, err := scanIntegration(r.pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, integration.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration by id: %w", err)
	}

	return in, nil
}

func (r *IntegrationRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*integration.Integration, error) {
	sql := `SELECT ` + integrationColumns + ` FROM integrations WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, sql, owner)
}

// ListActive returns every active integration. The integration consumer
// group calls it once per envelope.
func (r *IntegrationRepository) ListActive(ctx context.Context) ([]*integration.Integration, error) {
	sql := `SELECT ` + integrationColumns + ` FROM integrations WHERE is_active ORDER BY created_at ASC`
	return r.list(ctx, sql)
}

// ListByOwnerAndKind includes inactive integrations.
func (r *IntegrationRepository) ListByOwnerAndKind(ctx context.Context, owner uuid.UUID, kind integration.ChannelKind) ([]*integration.Integration, error) {
	sql := `SELECT ` + integrationColumns + ` FROM integrations
		WHERE user_id = $1 AND integration_type = $2
		ORDER BY created_at ASC`
	return r.list(ctx, sql, owner, kind)
}

func (r *IntegrationRepository) list(ctx context.Context, sql string, args ...any) ([]*integration.Integration, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query integrations: %w", err)
	}
	defer rows.Close()

	var out []*integration.Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integrations: %w", err)
	}

	return out, nil
}

func scanIntegration(row pgx.Row) (*integration.Integration, error) {
	var (
		in   integration.Integration
		kind string
		raw  []byte
	)
	if err := row.Scan(&in.ID, &in.OwnerUserID, &in.ProjectID, &kind, &in.IsActive, &raw, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}

	in.Config = integration.StoredConfig(integration.ChannelKind(kind), raw)

	return &in, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DedupRepository remembers which envelopes already produced a notification.
type DedupRepository struct {
	pool *pgxpool.Pool
}

func NewDedupRepository(pool *pgxpool.Pool) *DedupRepository {
	return &DedupRepository{pool: pool}
}

// Claim returns true if the key was recorded now, false if it was seen before.
// Inside a transaction the claim is released again on rollback.
func (r *DedupRepository) Claim(ctx context.Context, key string) (bool, error) {
	const sql = `
		INSERT INTO notification_dedup (dedup_key, claimed_at)
		VALUES ($1, NOW())
		ON CONFLICT (dedup_key) DO NOTHING
	`

	tag, err := exec(ctx, r.pool).Exec(ctx, sql, key)
	if err != nil {
		return false, fmt.Errorf("insert dedup key: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

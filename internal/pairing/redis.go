package pairing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/pairing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "pairing:"
	maxConfirmRetries = 5

	fieldOwner     = "owner"
	fieldConnected = "connected"
	fieldHandle    = "handle"
	fieldCreated   = "created_at"
	fieldExpires   = "expires_at"
)

// RedisRegistry stores each entry as a hash with a key TTL, so expired
// tokens disappear without a sweeper and the state is shared by every
// instance of the integrations service.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRegistry{client: client, ttl: ttl, now: time.Now}
}

func (r *RedisRegistry) key(token string) string {
	return keyPrefix + token
}

func (r *RedisRegistry) Create(ctx context.Context, ownerUserID string) (pairing.Entry, error) {
	now := r.now().UTC()
	e := pairing.Entry{
		Token:       uuid.NewString(),
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(r.ttl),
	}

	key := r.key(e.Token)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			fieldOwner, e.OwnerUserID,
			fieldConnected, "0",
			fieldHandle, "",
			fieldCreated, e.CreatedAt.Format(time.RFC3339Nano),
			fieldExpires, e.ExpiresAt.Format(time.RFC3339Nano),
		)
		p.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return pairing.Entry{}, fmt.Errorf("store pairing entry: %w", err)
	}

	entriesCreated.Inc()
	return e, nil
}

func (r *RedisRegistry) Get(ctx context.Context, token string) (pairing.Entry, error) {
	vals, err := r.client.HGetAll(ctx, r.key(token)).Result()
	if err != nil {
		return pairing.Entry{}, fmt.Errorf("load pairing entry: %w", err)
	}
	return r.decode(token, vals)
}

func (r *RedisRegistry) Confirm(ctx context.Context, token, handle string) (pairing.Entry, bool, error) {
	key := r.key(token)

	for attempt := 0; attempt < maxConfirmRetries; attempt++ {
		var (
			out          pairing.Entry
			transitioned bool
		)

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			vals, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			e, err := r.decode(token, vals)
			if err != nil {
				return err
			}
			if e.Connected {
				out = e
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.HSet(ctx, key, fieldConnected, "1", fieldHandle, handle)
				return nil
			})
			if err != nil {
				return err
			}

			e.Connected = true
			e.ExternalHandle = handle
			out = e
			transitioned = true
			return nil
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, pairing.ErrNotFound):
			return pairing.Entry{}, false, err
		case err != nil:
			return pairing.Entry{}, false, fmt.Errorf("confirm pairing entry: %w", err)
		}

		if transitioned {
			confirmations.Inc()
		}
		return out, transitioned, nil
	}

	return pairing.Entry{}, false, fmt.Errorf("confirm pairing entry: %w", redis.TxFailedErr)
}

func (r *RedisRegistry) Remove(ctx context.Context, token string) error {
	n, err := r.client.Del(ctx, r.key(token)).Result()
	if err != nil {
		return fmt.Errorf("delete pairing entry: %w", err)
	}
	if n == 0 {
		return pairing.ErrNotFound
	}
	return nil
}

func (r *RedisRegistry) decode(token string, vals map[string]string) (pairing.Entry, error) {
	if len(vals) == 0 {
		return pairing.Entry{}, pairing.ErrNotFound
	}

	connected, _ := strconv.ParseBool(vals[fieldConnected])
	e := pairing.Entry{
		Token:          token,
		OwnerUserID:    vals[fieldOwner],
		Connected:      connected,
		ExternalHandle: vals[fieldHandle],
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, vals[fieldCreated]); err != nil {
		return pairing.Entry{}, fmt.Errorf("decode pairing entry %s: %w", token, err)
	}
	if e.ExpiresAt, err = time.Parse(time.RFC3339Nano, vals[fieldExpires]); err != nil {
		return pairing.Entry{}, fmt.Errorf("decode pairing entry %s: %w", token, err)
	}

	if e.Expired(r.now()) {
		return pairing.Entry{}, pairing.ErrNotFound
	}
	return e, nil
}

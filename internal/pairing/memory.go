package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/pairing"

	"github.com/google/uuid"
)

// MemoryRegistry keeps entries in process memory. Expired entries are hidden
// on access and physically removed by Sweep.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]pairing.Entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryRegistry{
		entries: make(map[string]pairing.Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *MemoryRegistry) Create(ctx context.Context, ownerUserID string) (pairing.Entry, error) {
	now := r.now()
	e := pairing.Entry{
		Token:       uuid.NewString(),
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(r.ttl),
	}

	r.mu.Lock()
	r.entries[e.Token] = e
	r.mu.Unlock()

	entriesCreated.Inc()
	return e, nil
}

func (r *MemoryRegistry) Get(ctx context.Context, token string) (pairing.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(token)
}

func (r *MemoryRegistry) Confirm(ctx context.Context, token, handle string) (pairing.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(token)
	if err != nil {
		return pairing.Entry{}, false, err
	}
	if e.Connected {
		return e, false, nil
	}

	e.Connected = true
	e.ExternalHandle = handle
	r.entries[token] = e

	confirmations.Inc()
	return e, true, nil
}

func (r *MemoryRegistry) Remove(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(token); err != nil {
		return err
	}
	delete(r.entries, token)
	return nil
}

// Sweep deletes every entry expired at now and returns how many were removed.
func (r *MemoryRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for token, e := range r.entries {
		if e.Expired(now) {
			delete(r.entries, token)
			n++
		}
	}
	evictions.Add(float64(n))
	return n
}

// Len is the number of stored entries, expired ones included.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// lookup must be called with mu held.
func (r *MemoryRegistry) lookup(token string) (pairing.Entry, error) {
	e, ok := r.entries[token]
	if !ok {
		return pairing.Entry{}, pairing.ErrNotFound
	}
	if e.Expired(r.now()) {
		delete(r.entries, token)
		return pairing.Entry{}, pairing.ErrNotFound
	}
	return e, nil
}

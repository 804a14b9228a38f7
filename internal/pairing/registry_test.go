package pairing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/pairing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testTTL = time.Minute

type backend struct {
	reg Registry
	// advance moves the registry clock forward.
	advance func(d time.Duration)
}

func backends(t *testing.T) map[string]backend {
	t.Helper()

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mem := NewMemoryRegistry(testTTL)
	mem.now = func() time.Time { return clock }

	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})

	redisClock := clock
	rr := NewRedisRegistry(client, testTTL)
	rr.now = func() time.Time { return redisClock }

	return map[string]backend{
		"memory": {reg: mem, advance: func(d time.Duration) { clock = clock.Add(d) }},
		"redis": {reg: rr, advance: func(d time.Duration) {
			redisClock = redisClock.Add(d)
			m.FastForward(d)
		}},
	}
}

func TestRegistryIssuesDistinctTokens(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := b.reg.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			c, err := b.reg.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if a.Token == c.Token {
				t.Fatalf("expected distinct tokens, got %s twice", a.Token)
			}

			got, err := b.reg.Get(ctx, a.Token)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.OwnerUserID != "user-1" || got.Connected {
				t.Fatalf("unexpected fresh entry %#v", got)
			}
			if !got.ExpiresAt.Equal(got.CreatedAt.Add(testTTL)) {
				t.Fatalf("expected expiry after ttl, got %v -> %v", got.CreatedAt, got.ExpiresAt)
			}
		})
	}
}

func TestRegistryConfirmIsPerToken(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := b.reg.Create(ctx, "user-1")
			c, _ := b.reg.Create(ctx, "user-1")

			e, transitioned, err := b.reg.Confirm(ctx, a.Token, "555")
			if err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if !transitioned || !e.Connected || e.ExternalHandle != "555" {
				t.Fatalf("unexpected confirm result %#v transitioned=%v", e, transitioned)
			}

			other, err := b.reg.Get(ctx, c.Token)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if other.Connected || other.ExternalHandle != "" {
				t.Fatalf("confirming one token changed another: %#v", other)
			}
		})
	}
}

func TestRegistryConfirmTwiceKeepsFirstHandle(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := b.reg.Create(ctx, "user-1")

			if _, ok, _ := b.reg.Confirm(ctx, a.Token, "first"); !ok {
				t.Fatalf("first confirm must transition")
			}
			e, ok, err := b.reg.Confirm(ctx, a.Token, "second")
			if err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if ok {
				t.Fatalf("second confirm must not transition")
			}
			if e.ExternalHandle != "first" {
				t.Fatalf("handle overwritten: %q", e.ExternalHandle)
			}
		})
	}
}

func TestRegistryConcurrentConfirmTransitionsOnce(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := b.reg.Create(ctx, "user-1")

			const callers = 10
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				moves int
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, ok, err := b.reg.Confirm(ctx, a.Token, "777")
					if err != nil {
						t.Errorf("confirm: %v", err)
						return
					}
					if ok {
						mu.Lock()
						moves++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if moves != 1 {
				t.Fatalf("expected exactly one transition, got %d", moves)
			}
		})
	}
}

func TestRegistryUnknownToken(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := b.reg.Get(ctx, "nope"); !errors.Is(err, pairing.ErrNotFound) {
				t.Fatalf("get: expected ErrNotFound, got %v", err)
			}
			if _, _, err := b.reg.Confirm(ctx, "nope", "1"); !errors.Is(err, pairing.ErrNotFound) {
				t.Fatalf("confirm: expected ErrNotFound, got %v", err)
			}
			if err := b.reg.Remove(ctx, "nope"); !errors.Is(err, pairing.ErrNotFound) {
				t.Fatalf("remove: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRegistryRemove(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := b.reg.Create(ctx, "user-1")

			if err := b.reg.Remove(ctx, a.Token); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, err := b.reg.Get(ctx, a.Token); !errors.Is(err, pairing.ErrNotFound) {
				t.Fatalf("expected removed entry to be gone, got %v", err)
			}
		})
	}
}

func TestRegistryExpiresEntries(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := b.reg.Create(ctx, "user-1")

			b.advance(testTTL - time.Second)
			if _, err := b.reg.Get(ctx, a.Token); err != nil {
				t.Fatalf("entry expired too early: %v", err)
			}

			b.advance(2 * time.Second)
			if _, err := b.reg.Get(ctx, a.Token); !errors.Is(err, pairing.ErrNotFound) {
				t.Fatalf("expected expired entry to be gone, got %v", err)
			}
			if _, _, err := b.reg.Confirm(ctx, a.Token, "1"); !errors.Is(err, pairing.ErrNotFound) {
				t.Fatalf("expired entry must not be confirmable, got %v", err)
			}
		})
	}
}

func TestMemorySweep(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := NewMemoryRegistry(testTTL)
	reg.now = func() time.Time { return clock }

	ctx := context.Background()
	old, _ := reg.Create(ctx, "user-1")
	clock = clock.Add(30 * time.Second)
	fresh, _ := reg.Create(ctx, "user-2")

	if n := reg.Sweep(clock.Add(45 * time.Second)); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one entry left, got %d", reg.Len())
	}
	if _, err := reg.Get(ctx, old.Token); !errors.Is(err, pairing.ErrNotFound) {
		t.Fatalf("old entry should be swept")
	}
	if _, err := reg.Get(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh entry should survive: %v", err)
	}
}

func TestRedisRegistrySetsKeyTTL(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := NewRedisRegistry(client, testTTL)
	e, err := reg.Create(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if ttl := m.TTL(keyPrefix + e.Token); ttl != testTTL {
		t.Fatalf("expected key ttl %v, got %v", testTTL, ttl)
	}
}

// Package pairing keeps the short-lived connection tokens that link a
// ProjectFlow user to an external chat handle.
package pairing

import (
	"context"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/pairing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultTTL = 15 * time.Minute

var (
	entriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairing_entries_created_total",
		Help: "Connection tokens issued",
	})
	confirmations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairing_confirmations_total",
		Help: "Pending entries that transitioned to connected",
	})
	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairing_evictions_total",
		Help: "Expired entries removed by the sweeper",
	})
)

// Registry is safe for concurrent use. Get, Confirm and Remove report
// pairing.ErrNotFound for unknown or expired tokens.
type Registry interface {
	Create(ctx context.Context, ownerUserID string) (pairing.Entry, error)
	Get(ctx context.Context, token string) (pairing.Entry, error)
	// Confirm moves a pending entry to connected and records the handle.
	// transitioned is true only for the single caller that made the move;
	// confirming an already connected entry leaves it untouched.
	Confirm(ctx context.Context, token, handle string) (e pairing.Entry, transitioned bool, err error)
	Remove(ctx context.Context, token string) error
}

package pairing

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("connection token not found")

// Entry links a one-time connection token to the user who requested it.
// It lives only in the pairing registry and expires at ExpiresAt.
type Entry struct {
	Token          string    `json:"token"`
	OwnerUserID    string    `json:"owner_user_id"`
	Connected      bool      `json:"connected"`
	ExternalHandle string    `json:"external_handle,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

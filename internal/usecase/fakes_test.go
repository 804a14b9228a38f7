package usecase

import (
	"context"
	"sync"

	"github.com/DurkaVerder/ProjectFlow/internal/channel"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/notification"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/webhooklog"

	"github.com/google/uuid"
)

// passTx runs fn without a database. A failed call restores the dedup keys
// the way a rollback would.
type passTx struct {
	dedup *memDedup
}

func (p passTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	var snapshot map[string]bool
	if p.dedup != nil {
		snapshot = p.dedup.copy()
	}
	err := fn(ctx)
	if err != nil && p.dedup != nil {
		p.dedup.restore(snapshot)
	}
	return err
}

type memNotifications struct {
	mu        sync.Mutex
	items     []*notification.Notification
	createErr error
}

func (m *memNotifications) Create(ctx context.Context, n *notification.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, n)
	return nil
}

func (m *memNotifications) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notification.Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memNotifications) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, notification.ErrNotFound
}

func (m *memNotifications) MarkRead(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return notification.ErrNotFound
}

type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemDedup() *memDedup { return &memDedup{keys: map[string]bool{}} }

func (m *memDedup) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memDedup) copy() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.keys))
	for k, v := range m.keys {
		out[k] = v
	}
	return out
}

func (m *memDedup) restore(keys map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = keys
}

type memIntegrations struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*integration.Integration
	updateErr error
}

func newMemIntegrations(items ...*integration.Integration) *memIntegrations {
	m := &memIntegrations{items: map[uuid.UUID]*integration.Integration{}}
	for _, in := range items {
		m.items[in.ID] = in
	}
	return m
}

func (m *memIntegrations) Create(ctx context.Context, in *integration.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[in.ID] = in
	return nil
}

func (m *memIntegrations) Update(ctx context.Context, in *integration.Integration) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[in.ID]; !ok {
		return integration.ErrNotFound
	}
	cp := *in
	m.items[in.ID] = &cp
	return nil
}

func (m *memIntegrations) GetByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.items[id]
	if !ok {
		return nil, integration.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *memIntegrations) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*integration.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*integration.Integration
	for _, in := range m.items {
		if in.OwnerUserID == owner {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memIntegrations) ListByOwnerAndKind(ctx context.Context, owner uuid.UUID, kind integration.ChannelKind) ([]*integration.Integration, error) {
	all, _ := m.ListByOwner(ctx, owner)
	var out []*integration.Integration
	for _, in := range all {
		if in.Kind() == kind {
			out = append(out, in)
		}
	}
	return out, nil
}

type memWebhookLogs struct {
	items []*webhooklog.Log
}

func (m *memWebhookLogs) ListByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]*webhooklog.Log, error) {
	var out []*webhooklog.Log
	for _, l := range m.items {
		if l.IntegrationID == integrationID {
			out = append(out, l)
		}
	}
	return out, nil
}

type sentMessage struct {
	to  string
	msg channel.Message
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(ctx context.Context, to string, msg channel.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{to: to, msg: msg})
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/ingress"
	"github.com/DurkaVerder/ProjectFlow/internal/logger"
)

// fakeServer blocks in ListenAndServe until Shutdown, or fails at once when
// listenErr is set.
type fakeServer struct {
	listenErr error
	closed    chan struct{}
	once      sync.Once
	shutdowns int
	mu        sync.Mutex
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, closed: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.closed
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdowns++
	s.mu.Unlock()
	s.once.Do(func() { close(s.closed) })
	return nil
}

func untilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestRunListenFailureExitsNonZero(t *testing.T) {
	srv := newFakeServer(errors.New("listen tcp :8080: bind: address already in use"))

	var consumerStopped bool
	consume := func(ctx context.Context) error {
		<-ctx.Done()
		consumerStopped = true
		return nil
	}

	code := Run(context.Background(), srv, consume, time.Second, logger.Discard())
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !consumerStopped {
		t.Fatalf("consumer must be stopped before Run returns")
	}
	if srv.shutdowns != 1 {
		t.Fatalf("expected one shutdown, got %d", srv.shutdowns)
	}
}

func TestRunSignalExitsZero(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newFakeServer(nil)

	done := make(chan int, 1)
	go func() {
		done <- Run(ctx, srv, untilCancelled, time.Second, logger.Discard())
	}()
	cancel()

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("expected exit code 0, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}

func TestRunBrokerUnavailableExitsNonZero(t *testing.T) {
	srv := newFakeServer(nil)
	consume := func(ctx context.Context) error {
		return fmt.Errorf("connect: %w", ingress.ErrBrokerUnavailable)
	}

	if code := Run(context.Background(), srv, consume, time.Second, logger.Discard()); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRunConsumerErrorExitsZero(t *testing.T) {
	srv := newFakeServer(nil)
	consume := func(ctx context.Context) error { return errors.New("fetch: context canceled") }

	if code := Run(context.Background(), srv, consume, time.Second, logger.Discard()); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

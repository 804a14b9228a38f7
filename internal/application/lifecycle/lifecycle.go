package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/ingress"

	"github.com/sirupsen/logrus"
)

// Server is the part of *http.Server a service process drives.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Run serves srv and runs consume until ctx is done or either of them stops,
// then shuts both down. It returns the process exit code: non-zero when the
// listener fails, the broker is unreachable or shutdown is forced.
func Run(ctx context.Context, srv Server, consume func(ctx context.Context) error, shutdownTimeout time.Duration, log logrus.FieldLogger) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consume(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	exitCode := 0
	consumerDone := false
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.WithError(err).Error("listen failed")
		exitCode = 1
	case err := <-consumerErr:
		consumerDone = true
		if err != nil {
			log.WithError(err).Error("consumer stopped")
			if errors.Is(err, ingress.ErrBrokerUnavailable) {
				exitCode = 1
			}
		}
	}
	cancel()

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		exitCode = 1
	}

	// wait for the in-flight envelope to be committed
	if !consumerDone {
		select {
		case <-consumerErr:
		case <-shutdownCtx.Done():
		}
	}

	log.Info("server exiting")
	return exitCode
}

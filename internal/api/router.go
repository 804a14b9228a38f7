package api

import (
	"net/http"

	"github.com/DurkaVerder/ProjectFlow/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func newBaseRouter(log logrus.FieldLogger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func NewNotificationsRouter(h *NotificationHandlers, auth *middleware.Auth, log logrus.FieldLogger) http.Handler {
	r := newBaseRouter(log)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/notifications/user/{userID}", h.ListByUser)
		r.Put("/notifications/{id}/read", h.MarkRead)
	})

	log.Info("registered routes: GET /notifications/user/{userID}, PUT /notifications/{id}/read, GET /metrics")
	return r
}

// NewIntegrationsRouter mounts the integration API. redisClient may be nil,
// which disables the idempotency guard on integration creation.
func NewIntegrationsRouter(h *IntegrationHandlers, auth *middleware.Auth, redisClient *redis.Client, log logrus.FieldLogger) http.Handler {
	r := newBaseRouter(log)

	// called by the chat provider, authenticated by the shared secret
	r.Post("/integrations/telegram/webhook", h.ProviderCallback)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		if redisClient != nil {
			r.With(middleware.Idempotency(redisClient)).Post("/integrations", h.Create)
		} else {
			r.Post("/integrations", h.Create)
		}
		r.Get("/integrations", h.List)
		r.Patch("/integrations/{id}", h.Update)
		r.Get("/integrations/{id}/logs", h.Logs)

		r.Post("/integrations/telegram/connect", h.Connect)
		r.Get("/integrations/telegram/status/{token}", h.Status)
		r.Delete("/integrations/telegram/status/{token}", h.Cleanup)
		r.Post("/integrations/telegram/send", h.SendChatMessage)
	})

	log.Info("registered routes: POST /integrations (idempotent), GET /integrations, PATCH /integrations/{id}, telegram pairing, GET /metrics")
	return r
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/api"
	"github.com/DurkaVerder/ProjectFlow/internal/api/middleware"
	"github.com/DurkaVerder/ProjectFlow/internal/application/factories/infrastructure"
	"github.com/DurkaVerder/ProjectFlow/internal/application/lifecycle"
	"github.com/DurkaVerder/ProjectFlow/internal/config"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/postgres"
	"github.com/DurkaVerder/ProjectFlow/internal/logger"
	"github.com/DurkaVerder/ProjectFlow/internal/usecase"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log := logger.New(cfg.Log, "notifications")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, log)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		log.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}

	// Repositories
	notificationRepo := postgres.NewNotificationRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	var dedup usecase.DedupRepository
	if cfg.Notifications.Dedup {
		dedup = postgres.NewDedupRepository(pgPool)
	}

	// UseCases
	recordUC := usecase.NewRecordNotification(txManager, notificationRepo, dedup, log)
	listUC := usecase.NewListNotifications(notificationRepo, 0)
	markReadUC := usecase.NewMarkNotificationRead(notificationRepo)

	runner := infraFactory.Ingress(cfg.Kafka.NotificationsGroup, recordUC)

	handlers := api.NewNotificationHandlers(listUC, markReadUC, log)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           api.NewNotificationsRouter(handlers, middleware.NewAuth(cfg.Auth.JWTSecret), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithField("port", cfg.HTTP.Port).Info("server starting")
	if exitCode := lifecycle.Run(ctx, srv, runner.Run, 5*time.Second, log); exitCode != 0 {
		infraFactory.Close()
		os.Exit(exitCode)
	}
}

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
	"github.com/DurkaVerder/ProjectFlow/internal/channel"
	"github.com/DurkaVerder/ProjectFlow/internal/config"
	"github.com/DurkaVerder/ProjectFlow/internal/dispatch"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/postgres"
	"github.com/DurkaVerder/ProjectFlow/internal/logger"
	"github.com/DurkaVerder/ProjectFlow/internal/pairing"
	"github.com/DurkaVerder/ProjectFlow/internal/usecase"
	"github.com/DurkaVerder/ProjectFlow/internal/worker"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log := logger.New(cfg.Log, "integrations")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, log)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		log.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}

	// Redis backs the idempotency guard and, when selected, the pairing
	// registry. Without it the in-memory registry still works.
	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		if cfg.Pairing.Backend == "redis" {
			log.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		log.WithError(err).Warn("redis unavailable, idempotency guard disabled")
		redisClient = nil
	}

	// Repositories
	integrationRepo := postgres.NewIntegrationRepository(pgPool)
	webhookLogRepo := postgres.NewWebhookLogRepository(pgPool)

	// Senders
	chatBot := channel.NewChatBotSender(channel.ChatBotConfig{
		Token:  cfg.ChatBot.Token,
		APIURL: cfg.ChatBot.APIURL,
	})
	senders := map[integration.ChannelKind]channel.Sender{
		integration.KindEmail: channel.NewEmailSender(channel.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}),
		integration.KindChatBot: chatBot,
		integration.KindWebhook: channel.NewWebhookSender(cfg.Dispatch.SendTimeout),
	}

	dispatcher := dispatch.New(integrationRepo, webhookLogRepo, senders, dispatch.Config{
		SendTimeout: cfg.Dispatch.SendTimeout,
		Concurrency: cfg.Dispatch.Concurrency,
	}, log)

	registry, sweeper := pairingRegistry(cfg.Pairing, redisClient, log)

	// UseCases
	handlers := api.NewIntegrationHandlers(api.IntegrationUsecases{
		Create:   usecase.NewCreateIntegration(integrationRepo),
		List:     usecase.NewListIntegrations(integrationRepo),
		Update:   usecase.NewUpdateIntegration(integrationRepo),
		Logs:     usecase.NewListWebhookLogs(integrationRepo, webhookLogRepo, 0),
		Connect:  usecase.NewRequestConnection(registry, cfg.ChatBot.Username),
		Status:   usecase.NewGetConnectionStatus(registry),
		Cleanup:  usecase.NewCleanupConnection(registry),
		Callback: usecase.NewHandleProviderCallback(registry, integrationRepo, chatBot, log),
		Send:     usecase.NewSendChatMessage(chatBot),
	}, cfg.ChatBot.WebhookSecret, log)

	if sweeper != nil {
		go sweeper.Run(ctx)
	}

	runner := infraFactory.Ingress(cfg.Kafka.IntegrationsGroup, dispatcher)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           api.NewIntegrationsRouter(handlers, middleware.NewAuth(cfg.Auth.JWTSecret), redisClient, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithField("port", cfg.HTTP.Port).Info("server starting")
	if exitCode := lifecycle.Run(ctx, srv, runner.Run, 5*time.Second, log); exitCode != 0 {
		infraFactory.Close()
		os.Exit(exitCode)
	}
}

// pairingRegistry picks the pairing backend. The sweeper is nil for Redis,
// which expires entries itself.
func pairingRegistry(cfg config.Pairing, redisClient *go_redis.Client, log logrus.FieldLogger) (pairing.Registry, *worker.PairingSweeper) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = pairing.DefaultTTL
	}

	if cfg.Backend == "redis" {
		log.WithField("ttl", ttl).Info("pairing registry: redis")
		return pairing.NewRedisRegistry(redisClient, ttl), nil
	}

	log.WithField("ttl", ttl).Info("pairing registry: memory")
	mem := pairing.NewMemoryRegistry(ttl)
	return mem, worker.NewPairingSweeper(mem, cfg.SweepInterval, log)
}

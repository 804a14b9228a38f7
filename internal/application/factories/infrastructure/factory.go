package infrastructure

import (
	"context"
	"fmt"

	"github.com/DurkaVerder/ProjectFlow/internal/config"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/kafka"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/postgres"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/redis"
	"github.com/DurkaVerder/ProjectFlow/internal/ingress"
	"github.com/DurkaVerder/ProjectFlow/internal/retry"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Factory lazily builds and owns the shared infrastructure clients of a
// process. Close releases whatever was built.
type Factory struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	pgPool   *pgxpool.Pool
	redisCli *go_redis.Client
	producer *kafka.Producer
}

func NewFactory(cfg *config.Config, log logrus.FieldLogger) *Factory {
	return &Factory{
		cfg: cfg,
		log: log,
	}
}

// Postgres connects with the configured retry policy and applies pending
// migrations once connected.
func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	pc := f.cfg.Postgres
	policy := retry.Policy{
		MaxAttempts: pc.ConnectAttempts,
		Delay:       pc.ConnectDelay,
		OnRetry: func(attempt int, err error) {
			f.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"max":     pc.ConnectAttempts,
				"delay":   pc.ConnectDelay,
			}).Warn("failed to connect to postgres, retrying")
		},
	}

	var pool *pgxpool.Pool
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		p, err := postgres.NewClient(ctx, postgres.Config{
			Host:     pc.Host,
			Port:     pc.Port,
			User:     pc.User,
			Password: pc.Password,
			DBName:   pc.DBName,
		})
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     f.cfg.Redis.Addr,
		Password: f.cfg.Redis.Password,
		DB:       f.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

// Producer returns the dead-letter producer, or nil when no dead-letter
// topic is configured.
func (f *Factory) Producer() *kafka.Producer {
	if f.cfg.Kafka.DeadLetterTopic == "" {
		return nil
	}
	if f.producer == nil {
		f.producer = kafka.NewProducer(kafka.Config{Brokers: f.cfg.Kafka.Brokers})
	}
	return f.producer
}

// Ingress builds the subscribe loop of one consumer group over the project
// and task topics. Each connect attempt probes the brokers before opening
// the group reader.
func (f *Factory) Ingress(group string, handler ingress.Handler) *ingress.Runner {
	kc := f.cfg.Kafka

	open := func(ctx context.Context) (ingress.Reader, error) {
		if err := kafka.Probe(ctx, kc.Brokers, kc.Topics()); err != nil {
			return nil, err
		}
		return kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     kc.Brokers,
			Topics:      kc.Topics(),
			GroupID:     group,
			StartOffset: kc.StartOffset,
		}), nil
	}

	var dlq ingress.DeadLetterer
	if p := f.Producer(); p != nil {
		dlq = p
	}

	return ingress.NewRunner(ingress.Config{
		Group: group,
		Topics: map[string]event.Topic{
			kc.ProjectTopic: event.TopicProject,
			kc.TaskTopic:    event.TopicTask,
		},
		Connect:         retry.Policy{MaxAttempts: kc.ConnectAttempts, Delay: kc.ConnectDelay},
		Handle:          retry.Policy{MaxAttempts: kc.HandleAttempts, Delay: kc.HandleDelay},
		HandleTimeout:   kc.HandleTimeout,
		DeadLetterTopic: kc.DeadLetterTopic,
	}, open, handler, dlq, f.log)
}

func (f *Factory) Close() {
	if f.producer != nil {
		if err := f.producer.Close(); err != nil {
			f.log.WithError(err).Warn("close kafka producer")
		}
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		if err := f.redisCli.Close(); err != nil {
			f.log.WithError(err).Warn("close redis client")
		}
	}
}

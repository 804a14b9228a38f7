// Package ingress is the durable-subscribe loop shared by the notification
// and integration consumer groups.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"
	"github.com/DurkaVerder/ProjectFlow/internal/retry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var ErrBrokerUnavailable = errors.New("broker unavailable")

const (
	outcomeHandled    = "handled"
	outcomeMalformed  = "malformed"
	outcomeFailed     = "failed"
	outcomeUnknown    = "unknown_topic"
	fetchErrorBackoff = time.Second
)

var (
	envelopesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingress_envelopes_total",
		Help: "Envelopes consumed, by consumer group and outcome",
	}, []string{"group", "outcome"})
	handleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingress_handle_duration_seconds",
		Help:    "Time taken to handle one envelope",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"group"})
)

// Reader is the subset of a consumer-group reader the loop needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Opener establishes the subscription. It is retried by the connect policy.
type Opener func(ctx context.Context) (Reader, error)

type Handler interface {
	Handle(ctx context.Context, env event.Envelope) error
}

type HandlerFunc func(ctx context.Context, env event.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env event.Envelope) error { return f(ctx, env) }

// DeadLetterer receives envelopes that could not be processed.
type DeadLetterer interface {
	SendMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

type Config struct {
	Group string
	// Topics maps broker topic names to logical topics.
	Topics        map[string]event.Topic
	Connect       retry.Policy
	Handle        retry.Policy
	HandleTimeout time.Duration
	// DeadLetterTopic disables dead-lettering when empty.
	DeadLetterTopic string
}

type Runner struct {
	cfg     Config
	open    Opener
	handler Handler
	dlq     DeadLetterer
	log     logrus.FieldLogger
}

func NewRunner(cfg Config, open Opener, handler Handler, dlq DeadLetterer, log logrus.FieldLogger) *Runner {
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = time.Minute
	}
	return &Runner{
		cfg:     cfg,
		open:    open,
		handler: handler,
		dlq:     dlq,
		log:     log.WithField("group", cfg.Group),
	}
}

// Run connects and consumes until ctx is cancelled. It returns an error
// wrapping ErrBrokerUnavailable when the connect policy is exhausted; the
// caller must treat that as fatal.
func (r *Runner) Run(ctx context.Context) error {
	reader, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	r.log.Info("consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("consumer stopping")
				return nil
			}
			r.log.WithError(err).Error("failed to fetch message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}

		r.process(ctx, reader, msg)
	}
}

func (r *Runner) connect(ctx context.Context) (Reader, error) {
	policy := r.cfg.Connect
	policy.OnRetry = func(attempt int, err error) {
		r.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     r.cfg.Connect.MaxAttempts,
			"delay":   r.cfg.Connect.Delay,
		}).Warn("broker connection failed, retrying")
	}

	var reader Reader
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		rd, err := r.open(ctx)
		if err != nil {
			return err
		}
		reader = rd
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}
	return reader, nil
}

// process handles one message and commits it. The work context is detached
// from ctx so a shutdown signal lets the in-flight envelope finish; a panic
// in the handler propagates and leaves the message uncommitted.
func (r *Runner) process(ctx context.Context, reader Reader, msg kafka.Message) {
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.HandleTimeout)
	defer cancel()

	started := time.Now()
	outcome := r.handle(workCtx, msg)
	handleDuration.WithLabelValues(r.cfg.Group).Observe(time.Since(started).Seconds())
	envelopesTotal.WithLabelValues(r.cfg.Group, outcome).Inc()

	if err := reader.CommitMessages(workCtx, msg); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"topic":  msg.Topic,
			"offset": msg.Offset,
		}).Error("failed to commit kafka message")
	}
}

func (r *Runner) handle(ctx context.Context, msg kafka.Message) string {
	log := r.log.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	topic, ok := r.cfg.Topics[msg.Topic]
	if !ok {
		log.Warn("message from unexpected topic, skipping")
		return outcomeUnknown
	}

	env, err := event.Decode(topic, msg.Value)
	if err != nil {
		log.WithError(err).Error("malformed envelope, skipping")
		r.deadLetter(ctx, msg, err)
		return outcomeMalformed
	}
	env.Partition = msg.Partition
	env.Offset = msg.Offset
	log = log.WithField("event_type", env.EventType)

	policy := r.cfg.Handle
	policy.OnRetry = func(attempt int, err error) {
		log.WithError(err).WithField("attempt", attempt).Warn("processing failed, retrying")
	}

	var malformed error
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		err := r.handler.Handle(ctx, env)
		if errors.Is(err, event.ErrMalformed) {
			malformed = err
			return nil
		}
		return err
	})

	switch {
	case malformed != nil:
		log.WithError(malformed).Error("malformed envelope, skipping")
		r.deadLetter(ctx, msg, malformed)
		return outcomeMalformed
	case err != nil:
		log.WithError(err).Error("dropping envelope after retries")
		r.deadLetter(ctx, msg, err)
		return outcomeFailed
	}

	log.Debug("envelope handled")
	return outcomeHandled
}

func (r *Runner) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if r.dlq == nil || r.cfg.DeadLetterTopic == "" {
		return
	}

	headers := map[string]string{
		"source_topic": msg.Topic,
		"group":        r.cfg.Group,
		"error":        cause.Error(),
	}
	if err := r.dlq.SendMessage(ctx, r.cfg.DeadLetterTopic, msg.Key, msg.Value, headers); err != nil {
		r.log.WithError(err).WithField("topic", msg.Topic).Error("failed to dead-letter envelope")
	}
}

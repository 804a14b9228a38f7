// Package dispatch fans one envelope out to every active integration that
// wants it, recording one webhook log row per attempt.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/channel"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/webhooklog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var ErrNoSender = errors.New("no sender for channel kind")

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Dispatch attempts by channel kind and status",
	}, []string{"kind", "status"})
	sendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_send_duration_seconds",
		Help:    "Time spent in a channel sender",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})
	logWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_log_write_errors_total",
		Help: "Webhook log rows that could not be written",
	})
)

// Directory is the read side of the integration registry.
type Directory interface {
	ListActive(ctx context.Context) ([]*integration.Integration, error)
}

type LogWriter interface {
	Create(ctx context.Context, l *webhooklog.Log) error
}

type Config struct {
	SendTimeout time.Duration
	Concurrency int
}

type Dispatcher struct {
	dir     Directory
	logs    LogWriter
	senders map[integration.ChannelKind]channel.Sender
	cfg     Config
	log     logrus.FieldLogger
	now     func() time.Time
}

func New(dir Directory, logs LogWriter, senders map[integration.ChannelKind]channel.Sender, cfg Config, log logrus.FieldLogger) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		dir:     dir,
		logs:    logs,
		senders: senders,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Outcome describes what happened to one integration in a dispatch round.
type Outcome struct {
	IntegrationID uuid.UUID
	// Skipped is true when the integration did not match the event; no
	// send and no log row happened.
	Skipped bool
	Status  webhooklog.Status
	SendErr error
	// LogErr is set when the webhook log row could not be stored.
	LogErr error
}

// Handle implements the integration consumer group's envelope handler. Only a
// failure to load the directory is returned; per-integration failures are
// recorded in the webhook log.
func (d *Dispatcher) Handle(ctx context.Context, env event.Envelope) error {
	integrations, err := d.dir.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active integrations: %w", err)
	}

	outcomes := d.Dispatch(ctx, env, integrations)

	var sent, failed, skipped int
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Status == webhooklog.StatusSuccess:
			sent++
		default:
			failed++
		}
	}
	d.log.WithFields(logrus.Fields{
		"event_type": env.EventType,
		"topic":      env.Topic,
		"sent":       sent,
		"failed":     failed,
		"skipped":    skipped,
	}).Info("dispatch round finished")

	return nil
}

// Dispatch runs one dispatch round. Sends run concurrently, bounded by
// Config.Concurrency, and the call returns once every send and log write is
// done. Outcomes are in the order of integrations.
func (d *Dispatcher) Dispatch(ctx context.Context, env event.Envelope, integrations []*integration.Integration) []Outcome {
	outcomes := make([]Outcome, len(integrations))
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, in := range integrations {
		if !in.IsActive || !in.Matches(env.EventType, env.Payload) {
			outcomes[i] = Outcome{IntegrationID: in.ID, Skipped: true}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, in *integration.Integration) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = d.dispatchOne(ctx, env, in)
		}(i, in)
	}

	wg.Wait()
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, env event.Envelope, in *integration.Integration) Outcome {
	log := d.log.WithFields(logrus.Fields{
		"integration_id": in.ID,
		"kind":           in.Kind(),
		"event_type":     env.EventType,
	})

	started := time.Now()
	sendErr := d.send(ctx, env, in)
	sendDuration.WithLabelValues(string(in.Kind())).Observe(time.Since(started).Seconds())

	payload := env.Fields()
	var entry *webhooklog.Log
	if sendErr != nil {
		log.WithError(sendErr).Warn("integration delivery failed")
		entry = webhooklog.Failure(in.ID, env.EventType, payload, sendErr, d.now())
	} else {
		entry = webhooklog.Success(in.ID, env.EventType, payload, d.now())
	}
	attemptsTotal.WithLabelValues(string(in.Kind()), string(entry.Status)).Inc()

	out := Outcome{IntegrationID: in.ID, Status: entry.Status, SendErr: sendErr}
	if err := d.logs.Create(ctx, entry); err != nil {
		logWriteErrors.Inc()
		log.WithError(err).Error("failed to write webhook log")
		out.LogErr = err
	}
	return out
}

// send bounds the sender call by SendTimeout even if the sender ignores its
// context; a panicking sender counts as a failed delivery.
func (d *Dispatcher) send(ctx context.Context, env event.Envelope, in *integration.Integration) error {
	dest, err := in.Config.Destination()
	if err != nil {
		return err
	}

	sender, ok := d.senders[in.Kind()]
	if !ok || sender == nil {
		return fmt.Errorf("%w: %s", ErrNoSender, in.Kind())
	}

	msg, err := Render(env, in.Kind())
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sender panic: %v", r)
			}
		}()
		done <- sender.Send(sendCtx, dest, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return fmt.Errorf("send timed out: %w", sendCtx.Err())
	}
}

// Render builds the outbound message for one channel kind.
func Render(env event.Envelope, kind integration.ChannelKind) (channel.Message, error) {
	fields := env.Fields()
	details, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return channel.Message{}, fmt.Errorf("render payload: %w", err)
	}

	msg := channel.Message{
		Subject:   "ProjectFlow: " + env.EventType,
		Topic:     string(env.Topic),
		EventType: env.EventType,
		Payload:   fields,
	}
	switch kind {
	case integration.KindChatBot:
		msg.Text = fmt.Sprintf("🔔 %s\n\n%s", env.EventType, details)
	default:
		msg.Text = fmt.Sprintf("Event occurred: %s\nDetails: %s", env.EventType, details)
	}
	return msg, nil
}

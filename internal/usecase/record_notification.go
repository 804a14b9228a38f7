package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/classifier"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/event"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/notification"
	"github.com/DurkaVerder/ProjectFlow/internal/infrastructure/postgres"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var notificationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifications_recorded_total",
	Help: "Notifications written, by kind and result",
}, []string{"kind", "result"})

// RecordNotification is the handler of the notification consumer group:
// classify the envelope and store at most one notification for it.
type RecordNotification struct {
	txManager     postgres.Transactor
	notifications NotificationRepository
	// dedup is nil when duplicate suppression is off; redelivered envelopes
	// then produce duplicate notifications.
	dedup DedupRepository
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewRecordNotification(
	txManager postgres.Transactor,
	notifications NotificationRepository,
	dedup DedupRepository,
	log logrus.FieldLogger,
) *RecordNotification {
	return &RecordNotification{
		txManager:     txManager,
		notifications: notifications,
		dedup:         dedup,
		log:           log,
		now:           time.Now,
	}
}

func (uc *RecordNotification) Handle(ctx context.Context, env event.Envelope) error {
	intent, ok, err := classifier.Classify(env)
	if err != nil {
		return err
	}

	log := uc.log.WithFields(logrus.Fields{
		"topic":      env.Topic,
		"event_type": env.EventType,
	})
	if !ok {
		log.Debug("no recipient, event ignored")
		return nil
	}

	n := notification.FromIntent(intent, uc.now())
	log = log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"kind":            n.Kind,
	})

	if uc.dedup == nil {
		if err := uc.notifications.Create(ctx, n); err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		notificationsRecorded.WithLabelValues(string(n.Kind), "stored").Inc()
		log.Info("notification stored")
		return nil
	}

	key, err := DedupKey(env, intent)
	if err != nil {
		return err
	}

	var duplicate bool
	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		fresh, err := uc.dedup.Claim(txCtx, key)
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}
		return uc.notifications.Create(txCtx, n)
	})
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if duplicate {
		notificationsRecorded.WithLabelValues(string(n.Kind), "duplicate").Inc()
		log.Info("duplicate envelope, notification skipped")
		return nil
	}

	notificationsRecorded.WithLabelValues(string(n.Kind), "stored").Inc()
	log.Info("notification stored")
	return nil
}

// DedupKey identifies an envelope and its recipient. Redeliveries of the same
// message value produce the same key.
func DedupKey(env event.Envelope, intent notification.Intent) (string, error) {
	raw := env.Raw
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(env.Fields()); err != nil {
			return "", fmt.Errorf("encode envelope: %w", err)
		}
	}

	h := sha256.New()
	h.Write([]byte(env.Topic))
	h.Write([]byte{0})
	h.Write(raw)
	h.Write([]byte{0})
	h.Write([]byte(intent.RecipientUserID.String()))
	h.Write([]byte{0})
	h.Write([]byte(intent.Kind))
	return hex.EncodeToString(h.Sum(nil)), nil
}

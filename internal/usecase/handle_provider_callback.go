package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DurkaVerder/ProjectFlow/internal/channel"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"
	"github.com/DurkaVerder/ProjectFlow/internal/domain/pairing"
	pairingstore "github.com/DurkaVerder/ProjectFlow/internal/pairing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	startCommand        = "/start"
	confirmationMessage = "✅ Успешно подключено!\n\nТеперь вы будете получать уведомления из ProjectFlow."
)

// ProviderUpdate is the part of a chat provider callback the pairing flow
// reads.
type ProviderUpdate struct {
	ChatID string
	Text   string
}

// StartToken extracts the token of a "/start <token>" message.
func (u ProviderUpdate) StartToken() (string, bool) {
	fields := strings.Fields(u.Text)
	if len(fields) != 2 || fields[0] != startCommand {
		return "", false
	}
	return fields[1], true
}

// followUpTimeout bounds storing the handle and sending the confirmation once
// the entry is connected.
const followUpTimeout = 15 * time.Second

type HandleProviderCallback struct {
	registry     pairingstore.Registry
	integrations IntegrationRepository
	sender       channel.Sender
	log          logrus.FieldLogger
	now          func() time.Time

	// mu serializes confirmations so a repeated start cannot repair a
	// follow-up that is still running.
	mu sync.Mutex
}

func NewHandleProviderCallback(
	registry pairingstore.Registry,
	integrations IntegrationRepository,
	sender channel.Sender,
	log logrus.FieldLogger,
) *HandleProviderCallback {
	return &HandleProviderCallback{
		registry:     registry,
		integrations: integrations,
		sender:       sender,
		log:          log,
		now:          time.Now,
	}
}

// Execute confirms the pairing named by a "/start <token>" message. Unknown
// tokens and other messages are ignored. The caller that moves the entry to
// connected stores the chat handle and then sends the confirmation. A repeated
// start from the same chat finishes a follow-up that failed earlier and is a
// no-op otherwise. connected reports whether the token is now connected.
func (uc *HandleProviderCallback) Execute(ctx context.Context, update ProviderUpdate) (connected bool, err error) {
	token, ok := update.StartToken()
	if !ok || update.ChatID == "" {
		return false, nil
	}

	log := uc.log.WithFields(logrus.Fields{
		"token":   token,
		"chat_id": update.ChatID,
	})

	uc.mu.Lock()
	defer uc.mu.Unlock()

	entry, transitioned, err := uc.registry.Confirm(ctx, token, update.ChatID)
	if errors.Is(err, pairing.ErrNotFound) {
		log.Info("start command with unknown token ignored")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirm pairing: %w", err)
	}
	if !transitioned && entry.ExternalHandle != update.ChatID {
		log.Debug("token connected to another chat")
		return true, nil
	}

	log = log.WithField("user_id", entry.OwnerUserID)

	// The follow-up outlives a cancelled callback request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
	defer cancel()

	updated, err := uc.storeHandle(ctx, entry)
	if err != nil {
		log.WithError(err).Error("pairing follow-up failed")
		return true, err
	}
	if !transitioned && updated == 0 {
		log.Debug("token already connected")
		return true, nil
	}
	if transitioned {
		log.Info("chat connected")
	} else {
		log.WithField("integrations", updated).Info("chat handle repaired")
	}

	if err := uc.sender.Send(ctx, entry.ExternalHandle, channel.Message{Text: confirmationMessage}); err != nil {
		err = fmt.Errorf("send confirmation: %w", err)
		log.WithError(err).Error("pairing follow-up failed")
		return true, err
	}
	return true, nil
}

// storeHandle writes the chat handle into every active chat-bot integration
// of the entry owner that does not carry it yet. It returns how many it
// changed.
func (uc *HandleProviderCallback) storeHandle(ctx context.Context, entry pairing.Entry) (int, error) {
	owner, err := uuid.Parse(entry.OwnerUserID)
	if err != nil {
		return 0, fmt.Errorf("pairing owner %q: %w", entry.OwnerUserID, err)
	}

	items, err := uc.integrations.ListByOwnerAndKind(ctx, owner, integration.KindChatBot)
	if err != nil {
		return 0, fmt.Errorf("list chat-bot integrations: %w", err)
	}

	var (
		updated, active int
		errs            []error
	)
	for _, in := range items {
		if !in.IsActive {
			continue
		}
		active++
		if cfg, ok := in.Config.(integration.ChatBotConfig); ok && cfg.ChatHandle == entry.ExternalHandle {
			continue
		}
		in.Config = integration.ChatBotConfig{ChatHandle: entry.ExternalHandle}
		in.UpdatedAt = uc.now().UTC()
		if err := uc.integrations.Update(ctx, in); err != nil {
			errs = append(errs, fmt.Errorf("integration %s: %w", in.ID, err))
			continue
		}
		updated++
	}
	if active == 0 {
		uc.log.WithField("user_id", owner).Warn("no active chat-bot integration to pair")
	}
	return updated, errors.Join(errs...)
}

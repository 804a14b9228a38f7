package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/DurkaVerder/ProjectFlow/internal/domain/integration"
	"github.com/DurkaVerder/ProjectFlow/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type IntegrationHandlers struct {
	createUC   *usecase.CreateIntegration
	listUC     *usecase.ListIntegrations
	updateUC   *usecase.UpdateIntegration
	logsUC     *usecase.ListWebhookLogs
	connectUC  *usecase.RequestConnection
	statusUC   *usecase.GetConnectionStatus
	cleanupUC  *usecase.CleanupConnection
	callbackUC *usecase.HandleProviderCallback
	sendUC     *usecase.SendChatMessage
	// webhookSecret disables the callback secret check when empty.
	webhookSecret string
	log           logrus.FieldLogger
}

type IntegrationUsecases struct {
	Create   *usecase.CreateIntegration
	List     *usecase.ListIntegrations
	Update   *usecase.UpdateIntegration
	Logs     *usecase.ListWebhookLogs
	Connect  *usecase.RequestConnection
	Status   *usecase.GetConnectionStatus
	Cleanup  *usecase.CleanupConnection
	Callback *usecase.HandleProviderCallback
	Send     *usecase.SendChatMessage
}

func NewIntegrationHandlers(uc IntegrationUsecases, webhookSecret string, log logrus.FieldLogger) *IntegrationHandlers {
	return &IntegrationHandlers{
		createUC:      uc.Create,
		listUC:        uc.List,
		updateUC:      uc.Update,
		logsUC:        uc.Logs,
		connectUC:     uc.Connect,
		statusUC:      uc.Status,
		cleanupUC:     uc.Cleanup,
		callbackUC:    uc.Callback,
		sendUC:        uc.Send,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (h *IntegrationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID       *uuid.UUID              `json:"projectId"`
		IntegrationType integration.ChannelKind `json:"integrationType"`
		Config          json.RawMessage         `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := h.createUC.Execute(r.Context(), caller(r), usecase.CreateIntegrationParams{
		Kind:      req.IntegrationType,
		ProjectID: req.ProjectID,
		Config:    req.Config,
	})
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, in)
}

func (h *IntegrationHandlers) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.listUC.Execute(r.Context(), caller(r))
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *IntegrationHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid integration id")
		return
	}

	var req struct {
		IsActive *bool          `json:"isActive"`
		Config   json.RawMessage `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := h.updateUC.Execute(r.Context(), caller(r), id, usecase.UpdateIntegrationParams{
		IsActive: req.IsActive,
		Config:   req.Config,
	})
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, in)
}

func (h *IntegrationHandlers) Logs(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid integration id")
		return
	}

	items, err := h.logsUC.Execute(r.Context(), caller(r), id)
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *IntegrationHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	link, err := h.connectUC.Execute(r.Context(), caller(r))
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, link)
}

func (h *IntegrationHandlers) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.statusUC.Execute(r.Context(), caller(r), chi.URLParam(r, "token"))
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *IntegrationHandlers) Cleanup(w http.ResponseWriter, r *http.Request) {
	if err := h.cleanupUC.Execute(r.Context(), caller(r), chi.URLParam(r, "token")); err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *IntegrationHandlers) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID  string `json:"chatId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.sendUC.Execute(r.Context(), req.ChatID, req.Message); err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Telegram message sent successfully"})
}

type providerUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// ProviderCallback receives bot updates. It acknowledges every update it can
// authenticate so the provider does not redeliver it.
func (h *IntegrationHandlers) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	var upd providerUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil || upd.Message == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	var chatID string
	if upd.Message.Chat.ID != 0 {
		chatID = strconv.FormatInt(upd.Message.Chat.ID, 10)
	}

	connected, err := h.callbackUC.Execute(r.Context(), usecase.ProviderUpdate{
		ChatID: chatID,
		Text:   upd.Message.Text,
	})
	if err != nil {
		h.log.WithError(err).WithField("update_id", upd.UpdateID).Error("provider callback failed")
	}

	if connected {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "connected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

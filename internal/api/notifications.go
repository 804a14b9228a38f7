package api

import (
	"net/http"

	"github.com/DurkaVerder/ProjectFlow/internal/usecase"

	"github.com/sirupsen/logrus"
)

type NotificationHandlers struct {
	listUC     *usecase.ListNotifications
	markReadUC *usecase.MarkNotificationRead
	log        logrus.FieldLogger
}

func NewNotificationHandlers(listUC *usecase.ListNotifications, markReadUC *usecase.MarkNotificationRead, log logrus.FieldLogger) *NotificationHandlers {
	return &NotificationHandlers{
		listUC:     listUC,
		markReadUC: markReadUC,
		log:        log,
	}
}

func (h *NotificationHandlers) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	items, err := h.listUC.Execute(r.Context(), caller(r), userID)
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	n, err := h.markReadUC.Execute(r.Context(), caller(r), id)
	if err != nil {
		writeUsecaseError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

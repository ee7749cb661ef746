package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/pkg"

	log "github.com/sirupsen/logrus"
)

func (h *Handler) handleSessionState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	pkg.WriteJSON(w, http.StatusOK, h.session.State())
}

type notificationsResponse struct {
	Notifications []hubapi.Notification `json:"notifications"`
	Total         int                   `json:"total"`
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.api.UnreadNotifications(r.Context())
	if err != nil {
		h.writeAPIError(w, err, "failed to get notifications")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, notificationsResponse{
		Notifications: notifications,
		Total:         len(notifications),
	})
}

func (h *Handler) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.api.UnreadNotifications(r.Context())
	if err != nil {
		h.writeAPIError(w, err, "failed to get notifications")
		return
	}

	if err := h.api.MarkAllRead(r.Context(), notifications); err != nil {
		h.writeAPIError(w, err, "failed to mark notifications read")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, map[string]int{"marked": len(notifications)})
}

func (h *Handler) writeAPIError(w http.ResponseWriter, err error, fallback string) {
	log.Errorf("%s: %s", fallback, err)
	if errors.Is(err, hubapi.ErrUnauthorized) {
		if refreshErr := h.session.Refresh(context.Background()); refreshErr != nil {
			log.Warnf("refresh rejected session: %s", refreshErr)
		}
	}
	pkg.WriteJSON(w, apiStatus(err), map[string]string{
		"error": hubapi.UserMessage(err, fallback),
	})
}

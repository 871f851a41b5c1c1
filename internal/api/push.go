package api

import (
	"net/http"

	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/chatly-hq/chatly/internal/notifications"
)

type PushHandler struct {
	push *notifications.PushSender
}

func NewPushHandler(push *notifications.PushSender) *PushHandler {
	return &PushHandler{push: push}
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.push == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not available")
		return
	}
	var sub notifications.Subscription
	if !decodeBody(w, r, &sub) {
		return
	}
	if err := h.push.Subscribe(r.Context(), identity.UserID(r.Context()), &sub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if h.push == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not available")
		return
	}
	var body struct {
		Endpoint string `json:"endpoint"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.push.Unsubscribe(r.Context(), identity.UserID(r.Context()), body.Endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

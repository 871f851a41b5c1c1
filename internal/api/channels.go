package api

import (
	"net/http"

	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/chatly-hq/chatly/internal/membership"
	"github.com/chatly-hq/chatly/internal/unread"
	"github.com/google/uuid"
)

type ChannelHandler struct {
	channels *channels.Service
	members  *membership.Service
	unread   *unread.Service
}

func NewChannelHandler(channelSvc *channels.Service, memberSvc *membership.Service, unreadSvc *unread.Service) *ChannelHandler {
	return &ChannelHandler{channels: channelSvc, members: memberSvc, unread: unreadSvc}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	ch, err := h.channels.Create(r.Context(), body.Name, channels.ChannelType(body.Type))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.channels.ListForUser(r.Context(), queryBool(r, "hide_archived"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	ch, err := h.channels.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	if err := h.channels.Archive(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *ChannelHandler) CreateDM(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PeerUserID string `json:"peer_user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	peer, err := uuid.Parse(body.PeerUserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid peer user id")
		return
	}

	ch, err := h.channels.CreateDirectMessageChannel(r.Context(), peer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *ChannelHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	members, err := h.members.ListMembers(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *ChannelHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		// An empty body means the actor joins themselves.
		userID = identity.UserID(r.Context())
	}

	if err := h.members.AddMember(r.Context(), channelID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (h *ChannelHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	userID, ok := urlUUID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.members.RemoveMember(r.Context(), channelID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *ChannelHandler) TrackVisit(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	if err := h.members.TrackVisit(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChannelHandler) SetNotificationPreference(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	var body struct {
		Allow bool `json:"allow"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.members.SetNotificationPreference(r.Context(), id, body.Allow); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ChannelHandler) UnreadOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.unread.Overview(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *ChannelHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	count, err := h.unread.ChannelCount(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

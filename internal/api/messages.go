package api

import (
	"encoding/json"
	"net/http"

	"github.com/chatly-hq/chatly/internal/messages"
	"github.com/chatly-hq/chatly/internal/reactions"
	"github.com/google/uuid"
)

type MessageHandler struct {
	messages  *messages.Service
	reactions *reactions.Service
}

func NewMessageHandler(messageSvc *messages.Service, reactionSvc *reactions.Service) *MessageHandler {
	return &MessageHandler{messages: messageSvc, reactions: reactionSvc}
}

type sendRequest struct {
	Type              string          `json:"type"`
	Text              string          `json:"text"`
	File              string          `json:"file"`
	PollID            *uuid.UUID      `json:"poll_id"`
	IsReply           bool            `json:"is_reply"`
	LinkedMessageID   *int64          `json:"linked_message_id"`
	StructuredContent json.RawMessage `json:"structured_content"`
	HideLinkPreview   bool            `json:"hide_link_preview"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	var body sendRequest
	if !decodeBody(w, r, &body) {
		return
	}

	m, err := h.messages.Send(r.Context(), messages.SendInput{
		ChannelID:         channelID,
		Type:              messages.Type(body.Type),
		Text:              body.Text,
		File:              body.File,
		PollID:            body.PollID,
		IsReply:           body.IsReply,
		LinkedMessageID:   body.LinkedMessageID,
		StructuredContent: body.StructuredContent,
		HideLinkPreview:   body.HideLinkPreview,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if m == nil {
		// An all-markup text send projects to nothing and creates nothing.
		writeJSON(w, http.StatusNoContent, nil)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MessageHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	blocks, err := h.messages.ListTimeline(r.Context(), channelID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt64(r, "messageID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	m, err := h.messages.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt64(r, "messageID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	var body struct {
		Text              string          `json:"text"`
		StructuredContent json.RawMessage `json:"structured_content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := h.messages.Edit(r.Context(), id, body.Text, body.StructuredContent)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt64(r, "messageID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	if err := h.messages.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *MessageHandler) AttachFile(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt64(r, "messageID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	var body struct {
		File string `json:"file"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := h.messages.AttachFile(r.Context(), id, body.File)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MessageHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt64(r, "messageID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	saved, err := h.messages.ToggleSave(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (h *MessageHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	list, err := h.messages.ListSaved(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *MessageHandler) RecentFiles(w http.ResponseWriter, r *http.Request) {
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	files, err := h.messages.ListRecentFiles(r.Context(), channelID, queryInt(r, "limit", 10))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *MessageHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	id, ok := urlInt64(r, "messageID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	var body struct {
		Emoji string `json:"emoji"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	aggregate, err := h.reactions.Toggle(r.Context(), id, body.Emoji)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate)
}

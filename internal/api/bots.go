package api

import (
	"encoding/json"
	"net/http"

	"github.com/chatly-hq/chatly/internal/bot"
	"github.com/google/uuid"
)

type BotHandler struct {
	bots *bot.Service
}

func NewBotHandler(botSvc *bot.Service) *BotHandler {
	return &BotHandler{bots: botSvc}
}

func (h *BotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Handle      string `json:"handle"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	b, err := h.bots.Create(r.Context(), body.Name, body.Handle, body.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}
	b, err := h.bots.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BotHandler) AddToChannel(w http.ResponseWriter, r *http.Request) {
	botID, ok := urlUUID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	if err := h.bots.AddToChannel(r.Context(), botID, channelID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (h *BotHandler) RemoveFromChannel(w http.ResponseWriter, r *http.Request) {
	botID, ok := urlUUID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	if err := h.bots.RemoveFromChannel(r.Context(), botID, channelID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *BotHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	botID, ok := urlUUID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}
	var body struct {
		ChannelID         *uuid.UUID      `json:"channel_id"`
		UserID            *uuid.UUID      `json:"user_id"`
		Text              string          `json:"text"`
		StructuredContent json.RawMessage `json:"structured_content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	switch {
	case body.ChannelID != nil:
		m, err := h.bots.SendMessage(r.Context(), botID, *body.ChannelID, body.Text, body.StructuredContent)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	case body.UserID != nil:
		m, err := h.bots.SendDirectMessage(r.Context(), botID, *body.UserID, body.Text)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	default:
		writeError(w, http.StatusBadRequest, "channel_id or user_id is required")
	}
}

func (h *BotHandler) LastMessage(w http.ResponseWriter, r *http.Request) {
	botID, ok := urlUUID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}
	var channelID *uuid.UUID
	if raw := r.URL.Query().Get("channel_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid channel id")
			return
		}
		channelID = &id
	}
	m, err := h.bots.GetLastMessage(r.Context(), botID, channelID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *BotHandler) PreviousMessages(w http.ResponseWriter, r *http.Request) {
	botID, ok := urlUUID(r, "botID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}
	channelID, ok := urlUUID(r, "channelID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}

	var beforeID int64
	if raw := r.URL.Query().Get("before_id"); raw != "" {
		id, ok := parseInt64(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid before id")
			return
		}
		beforeID = id
	}

	list, err := h.bots.GetPreviousMessages(r.Context(), botID, channelID, beforeID, queryInt(r, "limit", 20))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

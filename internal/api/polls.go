package api

import (
	"net/http"

	"github.com/chatly-hq/chatly/internal/polls"
	"github.com/google/uuid"
)

type PollHandler struct {
	polls *polls.Service
}

func NewPollHandler(pollSvc *polls.Service) *PollHandler {
	return &PollHandler{polls: pollSvc}
}

func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question    string   `json:"question"`
		Options     []string `json:"options"`
		MultiChoice bool     `json:"is_multi_choice"`
		Anonymous   bool     `json:"is_anonymous"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	poll, err := h.polls.Create(r.Context(), body.Question, body.Options, body.MultiChoice, body.Anonymous)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poll)
}

func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "pollID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid poll id")
		return
	}
	poll, votedOptions, err := h.polls.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"poll":          poll,
		"voted_options": votedOptions,
	})
}

func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "pollID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid poll id")
		return
	}
	var body struct {
		OptionID uuid.UUID `json:"option_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.polls.Vote(r.Context(), id, body.OptionID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PollHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "pollID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid poll id")
		return
	}
	if err := h.polls.RetractVote(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PollHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "pollID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid poll id")
		return
	}
	if err := h.polls.Close(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/willow-sdr/internal/dialogue"
	"github.com/ashureev/willow-sdr/internal/identity"
)

// TalkRequest is the body of POST /talk and POST /lead.
type TalkRequest struct {
	Message string `json:"message"`
}

// Talk handles one user turn. Backend failures still produce a 200 reply
// carrying the apology text.
func (h *Handler) Talk(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	var req TalkRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	reply, err := h.dialogue.HandleTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, dialogue.ErrEmptyMessage) {
			Error(w, http.StatusBadRequest, "message is required")
			return
		}
		h.logger.Error("turn failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	JSON(w, http.StatusOK, reply)
}

// Reset clears the caller's conversation.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	h.dialogue.Reset(sessionID)
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Lead returns the caller's lead. A message in the body ends the
// conversation and returns the extracted summary.
func (h *Handler) Lead(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	var req TalkRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	reply, err := h.dialogue.Lead(r.Context(), sessionID, req.Message)
	if err != nil {
		h.logger.Error("lead retrieval failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to retrieve lead")
		return
	}
	JSON(w, http.StatusOK, reply)
}

// session resolves the session key and applies the rate limit.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "missing session")
		return "", false
	}

	// Rate-limit by device, not session, so clients cannot bypass throttling
	// by rotating session IDs.
	key := identity.DeviceIDFromContext(r.Context())
	if key == "" {
		key = sessionID
	}
	if h.limiter != nil && !h.limiter.Allow(key) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return "", false
	}
	return sessionID, true
}

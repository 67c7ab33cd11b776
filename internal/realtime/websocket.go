// Package realtime serves dialogue turns over a WebSocket so voice clients
// can keep one connection open for a whole conversation.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ashureev/willow-sdr/internal/dialogue"
	"github.com/ashureev/willow-sdr/internal/identity"
	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// Dialogue is the part of the orchestrator the socket drives.
type Dialogue interface {
	HandleTurn(ctx context.Context, sessionID, message string) (*dialogue.Reply, error)
	Lead(ctx context.Context, sessionID, closing string) (*dialogue.Reply, error)
	Reset(sessionID string)
}

// Handler handles WebSocket-based dialogue sessions.
type Handler struct {
	dialogue       Dialogue
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(d Dialogue, allowedOrigins []string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{dialogue: d, allowedOrigins: allowedOrigins, isDev: isDev, logger: logger}
}

// inbound is a client message.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// outbound wraps a reply with its message type.
type outbound struct {
	Type string `json:"type"`
	*dialogue.Reply
	Error string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "conversation closed"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	h.readLoop(r.Context(), ws, sessionID)
	h.logger.Info("Dialogue socket closed", "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			// Plain text frames are treated as user messages.
			msg = inbound{Type: "message", Content: string(data)}
		}

		out, done := h.dispatch(ctx, sessionID, msg)
		if err := h.writeJSON(ctx, ws, out); err != nil {
			h.logger.Debug("Failed to write reply", "error", err, "session_id", sessionID)
			return
		}
		if done {
			return
		}
	}
}

// dispatch handles one client message. done reports whether the socket should close.
func (h *Handler) dispatch(ctx context.Context, sessionID string, msg inbound) (out outbound, done bool) {
	switch msg.Type {
	case "message":
		reply, err := h.dialogue.HandleTurn(ctx, sessionID, msg.Content)
		if errors.Is(err, dialogue.ErrEmptyMessage) {
			return outbound{Type: "error", Error: "message is required"}, false
		}
		if err != nil {
			h.logger.Error("turn failed", "session_id", sessionID, "error", err)
			return outbound{Type: "error", Error: "failed to process message"}, false
		}
		return outbound{Type: "reply", Reply: reply}, false
	case "lead":
		reply, err := h.dialogue.Lead(ctx, sessionID, msg.Content)
		if err != nil {
			h.logger.Error("lead retrieval failed", "session_id", sessionID, "error", err)
			return outbound{Type: "error", Error: "failed to retrieve lead"}, false
		}
		return outbound{Type: "lead", Reply: reply}, false
	case "reset":
		h.dialogue.Reset(sessionID)
		return outbound{Type: "reset"}, false
	case "ping":
		return outbound{Type: "pong"}, false
	case "close":
		return outbound{Type: "closed"}, true
	default:
		return outbound{Type: "error", Error: "unknown message type"}, false
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

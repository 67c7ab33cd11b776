// Package api provides HTTP handlers for the Willow SDR API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/willow-sdr/internal/dialogue"
	"github.com/ashureev/willow-sdr/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultMaxRequestBodySize = 64 << 10

// Dialogue is the turn orchestrator as seen by the HTTP layer.
type Dialogue interface {
	HandleTurn(ctx context.Context, sessionID, message string) (*dialogue.Reply, error)
	Lead(ctx context.Context, sessionID, closing string) (*dialogue.Reply, error)
	Reset(sessionID string)
	ActiveSessions() int
}

// ArtifactOpener resolves artifact ids to files on disk.
type ArtifactOpener interface {
	Open(id string) (string, error)
}

// Handler serves the dialogue, lead and artifact endpoints.
type Handler struct {
	dialogue    Dialogue
	repo        store.Repository
	artifacts   ArtifactOpener
	limiter     *RateLimiter
	maxBodySize int64
	logger      *slog.Logger
}

// Options configures a Handler. Limiter may be nil to disable rate limiting.
type Options struct {
	Dialogue    Dialogue
	Repo        store.Repository
	Artifacts   ArtifactOpener
	Limiter     *RateLimiter
	MaxBodySize int64
	Logger      *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dialogue:    opts.Dialogue,
		repo:        opts.Repo,
		artifacts:   opts.Artifacts,
		limiter:     opts.Limiter,
		maxBodySize: maxBody,
		logger:      logger,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/talk", h.Talk)
	r.Post("/reset", h.Reset)
	r.Post("/lead", h.Lead)

	r.Route("/leads", func(r chi.Router) {
		r.Get("/", h.ListLeads)
		r.Get("/{id}", h.GetLead)
		r.Delete("/{id}", h.DeleteLead)
	})
	r.Get("/artifacts/{id}", h.GetArtifact)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes a JSON request body bounded by the handler's size limit.
// An empty body decodes to the zero value.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

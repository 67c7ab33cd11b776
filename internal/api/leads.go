package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ashureev/willow-sdr/internal/artifact"
	"github.com/go-chi/chi/v5"
)

// ListLeads returns stored leads, newest first.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	leads, err := h.repo.ListLeads(r.Context(), limit)
	if err != nil {
		h.logger.Error("list leads failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"leads": leads})
}

// GetLead returns one stored lead.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := h.repo.GetLead(r.Context(), id)
	if err != nil {
		h.logger.Error("get lead failed", "lead_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load lead")
		return
	}
	if lead == nil {
		Error(w, http.StatusNotFound, "lead not found")
		return
	}
	JSON(w, http.StatusOK, lead)
}

// DeleteLead removes a stored lead.
func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.DeleteLead(r.Context(), id); err != nil {
		h.logger.Error("delete lead failed", "lead_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete lead")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetArtifact serves a stored summary or audio file.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	path, err := h.artifacts.Open(chi.URLParam(r, "id"))
	if errors.Is(err, artifact.ErrNotFound) {
		Error(w, http.StatusNotFound, "artifact not found")
		return
	}
	if err != nil {
		h.logger.Error("open artifact failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to open artifact")
		return
	}
	http.ServeFile(w, r, path)
}

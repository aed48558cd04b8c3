package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streamops/streamcheck/pkg/types"
)

// RunValidation runs a validation synchronously and returns the report.
func (h *Handlers) RunValidation(w http.ResponseWriter, r *http.Request) {
	var req types.ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	if req.AMGID == "" {
		h.writeError(w, r, http.StatusBadRequest, "amgid is required", nil)
		return
	}
	if req.CDNOnly && req.FlowsOnly {
		h.writeError(w, r, http.StatusBadRequest, "cdn_only and flows_only are mutually exclusive", nil)
		return
	}

	rep, err := h.run(r.Context(), req)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "validation failed", err)
		return
	}

	h.store.Set(rep)
	_ = json.NewEncoder(w).Encode(rep)
}

// LatestReport returns the most recent completed report.
func (h *Handlers) LatestReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.store.Latest()
	if !ok {
		h.writeError(w, r, http.StatusNotFound, "no validation has completed yet", nil)
		return
	}
	_ = json.NewEncoder(w).Encode(rep)
}

// LatestEndpoint returns a single endpoint verdict from the latest report.
func (h *Handlers) LatestEndpoint(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid endpoint index", err)
		return
	}

	rep, ok := h.store.Latest()
	if !ok {
		h.writeError(w, r, http.StatusNotFound, "no validation has completed yet", nil)
		return
	}
	if idx >= len(rep.Endpoints) {
		h.writeError(w, r, http.StatusNotFound, "endpoint index out of range", nil)
		return
	}
	_ = json.NewEncoder(w).Encode(rep.Endpoints[idx])
}

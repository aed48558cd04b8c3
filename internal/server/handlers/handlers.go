// Package handlers implements HTTP request handlers for the streamcheck API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/streamops/streamcheck/internal/watcher"
	"github.com/streamops/streamcheck/pkg/types"
)

// RunFunc executes one validation run and returns its report.
type RunFunc func(ctx context.Context, req types.ValidationRequest) (types.Report, error)

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	run    RunFunc
	store  *watcher.Store
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(run RunFunc, store *watcher.Store) *Handlers {
	return &Handlers{
		run:    run,
		store:  store,
		logger: slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status, "request_id", RequestIDFromContext(r.Context()))
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Package server implements the streamcheck HTTP API server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/streamops/streamcheck/internal/server/handlers"
	"github.com/streamops/streamcheck/internal/watcher"
)

// Server is the streamcheck HTTP API server.
type Server struct {
	run     handlers.RunFunc
	store   *watcher.Store
	router  chi.Router
	addr    string
	apiKey  string
	maxBody int64
	srv     *http.Server
}

// New creates a new HTTP server. An empty apiKey disables authentication and
// a non-positive maxBody disables the request body limit.
func New(addr string, run handlers.RunFunc, store *watcher.Store, apiKey string, maxBody int64) *Server {
	s := &Server{
		run:     run,
		store:   store,
		addr:    addr,
		apiKey:  apiKey,
		maxBody: maxBody,
	}

	r := chi.NewRouter()
	r.Use(handlers.RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	r.Use(APIKeyMiddleware(apiKey))
	if maxBody > 0 {
		r.Use(MaxBodyMiddleware(maxBody))
	}

	s.router = r
	s.registerRoutes(r)
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	fmt.Printf("streamcheck API listening on %s\n", s.addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

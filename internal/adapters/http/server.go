// Package http exposes a navigator over a JSON inspection and control API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/traverse/internal/logging"
	"github.com/aretw0/traverse/pkg/domain"
)

// Navigator defines the engine surface the server drives.
type Navigator interface {
	Navigate(url string, opts domain.NavigateOptions) (domain.Result, error)
	Back(opts domain.TraverseOptions) (domain.Result, error)
	Forward(opts domain.TraverseOptions) (domain.Result, error)
	TraverseTo(key string, opts domain.TraverseOptions) (domain.Result, error)
	Reload(opts domain.TraverseOptions) (domain.Result, error)
	UpdateCurrent(opts domain.UpdateOptions) (domain.Result, error)
	Entries() []*domain.Entry
	CurrentEntry() *domain.Entry
	CurrentIndex() int
	Snapshot() *domain.Snapshot
}

// Server handles the inspection API routes.
type Server struct {
	nav    Navigator
	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger for request handling failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler for the navigator.
func NewHandler(nav Navigator, opts ...Option) http.Handler {
	s := &Server{nav: nav, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/entries", s.handleEntries)
	r.Get("/current", s.handleCurrent)
	r.Get("/snapshot", s.handleSnapshot)
	r.Post("/navigate", s.handleNavigate)
	r.Post("/back", s.traversal(s.nav.Back))
	r.Post("/forward", s.traversal(s.nav.Forward))
	r.Post("/reload", s.traversal(s.nav.Reload))
	r.Post("/traverse", s.handleTraverse)
	r.Post("/update", s.handleUpdate)

	return r
}

type navigateRequest struct {
	URL          string `json:"url"`
	Replace      bool   `json:"replace"`
	State        any    `json:"state,omitempty"`
	SameDocument bool   `json:"same_document"`
}

type traverseRequest struct {
	Key string `json:"key"`
}

type updateRequest struct {
	State any `json:"state"`
}

type transitionResponse struct {
	Entry domain.EntryRecord `json:"entry"`
	Index int                `json:"index"`
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.nav.Entries()
	records := make([]domain.EntryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"entries":       records,
		"current_index": s.nav.CurrentIndex(),
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	cur := s.nav.CurrentEntry()
	if cur == nil {
		http.Error(w, "history is empty", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, cur.Record())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.nav.Snapshot())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var body navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	res, err := s.nav.Navigate(body.URL, domain.NavigateOptions{
		Replace:      body.Replace,
		State:        body.State,
		SameDocument: body.SameDocument,
	})
	s.settle(w, r, res, err)
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	var body traverseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res, err := s.nav.TraverseTo(body.Key, domain.TraverseOptions{})
	s.settle(w, r, res, err)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res, err := s.nav.UpdateCurrent(domain.UpdateOptions{State: body.State})
	s.settle(w, r, res, err)
}

// traversal adapts the parameterless traversal operations.
func (s *Server) traversal(op func(domain.TraverseOptions) (domain.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := op(domain.TraverseOptions{})
		s.settle(w, r, res, err)
	}
}

// settle waits for the transition to finish and maps the outcome to a
// response. Synchronous rejections and aborted transitions are client
// errors, everything else a 500.
func (s *Server) settle(w http.ResponseWriter, r *http.Request, res domain.Result, err error) {
	if err == nil {
		var entry *domain.Entry
		entry, err = res.Finished.Wait(r.Context())
		if err == nil {
			s.writeJSON(w, http.StatusOK, transitionResponse{
				Entry: entry.Record(),
				Index: s.nav.CurrentIndex(),
			})
			return
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidOperation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrAborted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, fmt.Sprintf("Navigation error: %v", err), http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "err", err)
	}
}

// Package server exposes the data layer's operation surface over HTTP.
// Routing only — authentication and authorization are the business of the
// deployment sitting in front of this service.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tessera-db/tessera/internal/errs"
	"github.com/tessera-db/tessera/internal/logger"
	"github.com/tessera-db/tessera/internal/row"
	"github.com/tessera-db/tessera/internal/schema"
)

// Core is the slice of the database layer the HTTP surface consumes.
type Core interface {
	Describe(ctx context.Context, table string) (schema.Table, error)
	Select(ctx context.Context, table string, columns []string, predicate string, params ...any) ([]row.Document, error)
	Insert(ctx context.Context, table string, rows []row.Document) error
	Reset(ctx context.Context, withBackup bool) error
	IsEmpty(ctx context.Context) (bool, error)
	Health(ctx context.Context) bool
	Spec() schema.Spec
}

// Server is the chi-routed HTTP surface over a Core.
type Server struct {
	core Core
	log  *logger.Logger
	mux  *chi.Mux
}

// New builds the router.
func New(core Core, log *logger.Logger) *Server {
	s := &Server{core: core, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/tables", s.handleListTables)
	r.Get("/tables/{table}/schema", s.handleDescribe)
	r.Get("/tables/{table}/rows", s.handleSelect)
	r.Post("/tables/{table}/rows", s.handleInsert)
	r.Post("/reset", s.handleReset)

	s.mux = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.core.Health(r.Context())

	status := http.StatusOK
	resp := map[string]any{"healthy": healthy}
	if healthy {
		empty, err := s.core.IsEmpty(r.Context())
		if err == nil {
			resp["empty"] = empty
		}
	} else {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tables": s.core.Spec().TableNames(),
	})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	desc, err := s.core.Describe(r.Context(), table)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var columns []string
	if raw := r.URL.Query().Get("columns"); raw != "" {
		columns = strings.Split(raw, ",")
	}

	docs, err := s.core.Select(r.Context(), table, columns, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rows": docs})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var rows []row.Document
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		s.writeError(w, errs.Wrap(errs.KindInvalidInput, "decode request body", err))
		return
	}

	if err := s.core.Insert(r.Context(), table, rows); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"inserted": len(rows)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	withBackup := r.URL.Query().Get("backup") == "true"

	if err := s.core.Reset(r.Context(), withBackup); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reset": true, "backup": withBackup})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WarnErr("write response", err)
	}
}

// writeError maps the unified error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindTableNotPresent:
		status = http.StatusNotFound
	case errs.KindColumnsNotPresent,
		errs.KindInsertEmptyData,
		errs.KindInsertFormat,
		errs.KindInvalidInput:
		status = http.StatusBadRequest
	case errs.KindPoolExhausted:
		status = http.StatusServiceUnavailable
	case errs.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.log.ErrorErr("request failed", err)
	}
	s.writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"kind":  errs.KindOf(err).String(),
	})
}

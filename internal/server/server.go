// Package server exposes the pipeline over HTTP: receipt upload and
// analysis, entry preview and submission, and the admin configuration
// surface.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tlacroix/receiptledger/internal/common"
	"github.com/tlacroix/receiptledger/internal/pipeline"
)

type Service struct {
	processor *pipeline.Processor
	store     *common.Store
	uploads   *uploadStore
	log       *slog.Logger
}

func NewService(processor *pipeline.Processor, store *common.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		processor: processor,
		store:     store,
		uploads:   newUploadStore(),
		log:       logger,
	}
}

func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/receipts", s.handleAnalyze)
		r.Post("/entries", s.handleSubmit)
		r.Post("/entries/preview", s.handlePreview)
		r.Put("/config", s.handleConfigUpdate)
	})
	return r
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Messages pass
// through as-is: the taxonomy already keeps credentials and stack traces
// out of them.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_failed", Detail: err.Error()})
	case errors.Is(err, common.ErrUpstreamParse):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_parse_failed", Detail: err.Error()})
	case errors.Is(err, common.ErrUpstreamTransport):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_unavailable", Detail: err.Error()})
	case errors.Is(err, common.ErrSession):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "session_failed", Detail: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal", Detail: err.Error()})
	}
}

// Package server exposes the query engine over HTTP: a health check
// and a query endpoint. It is the single place internal error kinds
// are translated into HTTP statuses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/plainapi/plainapi/model"
)

// QueryEngine is the only surface the HTTP layer depends on.
type QueryEngine interface {
	Answer(ctx context.Context, question string) (*model.AnsweredQuery, error)
	Ready(ctx context.Context) (int, error)
}

// Server handles the HTTP API.
type Server struct {
	engine QueryEngine
	log    *slog.Logger
	mux    *http.ServeMux
}

// queryRequest is the body accepted by POST /api/query.
type queryRequest struct {
	Query string `json:"query"`
}

// queryResponse is the body returned by POST /api/query.
type queryResponse struct {
	Answer    string           `json:"answer"`
	Grounded  bool             `json:"grounded"`
	Citations []model.Citation `json:"citations"`
}

// healthResponse is the body returned by GET /api/health.
type healthResponse struct {
	Status   string `json:"status"`
	Passages int    `json:"passages,omitempty"`
	Message  string `json:"message,omitempty"`
}

// errorResponse is the body returned on failure.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewServer creates the HTTP server around a query engine.
func NewServer(engine QueryEngine, logger *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		log:    logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/query", s.handleQuery)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	passages, err := s.engine.Ready(r.Context())
	if err != nil {
		s.log.Error("Health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "degraded",
			Message: "vector store unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Passages: passages,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, model.ErrInvalidInput, "request body must be JSON with a \"query\" field")
		return
	}

	answered, err := s.engine.Answer(r.Context(), req.Query)
	if err != nil {
		s.writeError(w, err, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    answered.Answer,
		Grounded:  answered.Grounded,
		Citations: answered.Citations,
	})
}

// writeError maps internal error kinds onto the HTTP contract:
// InvalidInput -> 400, ServiceUnavailable -> 503, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: message})
	case errors.Is(err, model.ErrServiceUnavailable):
		s.log.Error("Upstream service unavailable", slog.String("error", message))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable", Message: "upstream service unavailable, retry later"})
	default:
		s.log.Error("Internal error", slog.String("error", message))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

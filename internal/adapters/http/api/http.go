// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/refx-online/omajinai/internal/adapters/beatmaps"
	"github.com/refx-online/omajinai/internal/adapters/engine"
	"github.com/refx-online/omajinai/internal/domain/model"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the application service.
type Dependencies interface {
	Calculate(ctx context.Context, req *model.CalculationRequest) (model.PerformanceResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	calculateHandler *CalculateHandler
	healthHandler    *HealthHandler
	metricsHandler   *MetricsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, version string) *Server {
	return &Server{
		calculateHandler: NewCalculateHandler(deps),
		healthHandler:    NewHealthHandler(version),
		metricsHandler:   NewMetricsHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/api/calculate", Middleware(s.calculateHandler.HandleCalculate, "calculate"))
	mux.HandleFunc("/healthz", Middleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.metricsHandler.HandleMetrics)
}

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, apiResponse{Success: false, Error: msg})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case model.IsValidationError(err), errors.Is(err, engine.ErrUnsupportedMode):
		return http.StatusBadRequest
	case errors.Is(err, beatmaps.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, beatmaps.ErrExternalService), errors.Is(err, engine.ErrEngineFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

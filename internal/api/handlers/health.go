package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bikeshrana/pi5-trading-system-go/internal/store"
)

// HealthHandler reports process and results-store health.
type HealthHandler struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st *store.Store, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{store: st, logger: logger}
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents a single health check.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Handle responds to health check requests.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]HealthCheck),
	}

	if err := h.store.Health(ctx); err != nil {
		response.Status = "unhealthy"
		response.Checks["store"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
	} else {
		response.Checks["store"] = HealthCheck{Status: "healthy"}
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode health response")
	}
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/criteo/install-registry/internal/installer"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	session *installer.Session
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(session *installer.Session, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		session: session,
		logger:  logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult represents a single health check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// GetHealth handles GET /api/v1/health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status: "healthy",
		Checks: make(map[string]CheckResult),
	}

	// the installation tree must be readable and filterable by the record
	if _, err := h.session.Products(r.Context(), installer.ViewCurrent); err != nil {
		response.Checks["registry"] = CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
		response.Status = "unhealthy"

		h.logger.Error("Health check failed: registry unhealthy", "error", err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(response)
		return
	}

	response.Checks["registry"] = CheckResult{
		Status: "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

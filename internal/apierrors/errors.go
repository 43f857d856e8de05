package apierrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/criteo/install-registry/internal/installer"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/storage"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	ErrCodeProductNotFound    ErrorCode = "PRODUCT_NOT_FOUND"
	ErrCodeComponentNotFound  ErrorCode = "COMPONENT_NOT_FOUND"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeValidationError    ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnknownView        ErrorCode = "UNKNOWN_VIEW"
	ErrCodeSourceUnavailable  ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, code ErrorCode, message string, statusCode int, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// MapError maps session and storage errors to HTTP responses. kind names
// the entity looked up ("product", "component") for not-found errors.
func MapError(err error, kind models.Kind) (ErrorCode, string, int) {
	switch {
	case errors.Is(err, models.ErrInvalidKey):
		return ErrCodeValidationError, err.Error(), http.StatusBadRequest

	case errors.Is(err, installer.ErrNotFound):
		switch kind {
		case models.KindProduct:
			return ErrCodeProductNotFound, "Product not found", http.StatusNotFound
		case models.KindComponent:
			return ErrCodeComponentNotFound, "Component not found", http.StatusNotFound
		default:
			return ErrCodeNotFound, "Resource not found", http.StatusNotFound
		}

	case errors.Is(err, installer.ErrUnknownView):
		return ErrCodeUnknownView, "View must be current or local", http.StatusBadRequest

	case errors.Is(err, installer.ErrSourceUnavailable):
		return ErrCodeSourceUnavailable, err.Error(), http.StatusBadGateway

	case errors.Is(err, storage.ErrStorageUnavailable):
		return ErrCodeStorageUnavailable, "Storage service unavailable", http.StatusServiceUnavailable

	default:
		return ErrCodeInternal, "Internal server error", http.StatusInternalServerError
	}
}

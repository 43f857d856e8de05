package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/criteo/install-registry/internal/apierrors"
	"github.com/criteo/install-registry/internal/installer"
	"github.com/criteo/install-registry/internal/models"
)

// RegistryHandler serves read access to the installation tree
type RegistryHandler struct {
	session *installer.Session
	logger  *slog.Logger
}

// NewRegistryHandler creates a new registry handler
func NewRegistryHandler(session *installer.Session, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{
		session: session,
		logger:  logger,
	}
}

// ListProducts handles GET /api/v1/products?view=current|local
func (h *RegistryHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	products, err := h.session.Products(r.Context(), view)
	if err != nil {
		h.writeError(w, err, models.KindProduct, "Failed to list products")
		return
	}
	if products == nil {
		products = []*models.Product{}
	}

	h.logger.Debug("Products listed", "view", view, "count", len(products))
	writeJSON(w, http.StatusOK, products, h.logger)
}

// GetProduct handles GET /api/v1/products/{key}
func (h *RegistryHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	p, err := h.session.Product(r.Context(), key)
	if err != nil {
		h.writeError(w, err, models.KindProduct, "Failed to get product")
		return
	}
	writeJSON(w, http.StatusOK, p, h.logger)
}

// ListComponents handles GET /api/v1/components?view=current|local
func (h *RegistryHandler) ListComponents(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	components, err := h.session.Components(r.Context(), view)
	if err != nil {
		h.writeError(w, err, models.KindComponent, "Failed to list components")
		return
	}
	if components == nil {
		components = []*models.Component{}
	}

	h.logger.Debug("Components listed", "view", view, "count", len(components))
	writeJSON(w, http.StatusOK, components, h.logger)
}

// GetComponent handles GET /api/v1/components/{key}
func (h *RegistryHandler) GetComponent(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	c, err := h.session.Component(r.Context(), key)
	if err != nil {
		h.writeError(w, err, models.KindComponent, "Failed to get component")
		return
	}
	writeJSON(w, http.StatusOK, c, h.logger)
}

// ListDangling handles GET /api/v1/dangling
func (h *RegistryHandler) ListDangling(w http.ResponseWriter, r *http.Request) {
	components, err := h.session.Dangling(r.Context())
	if err != nil {
		h.writeError(w, err, models.KindComponent, "Failed to list dangling components")
		return
	}
	if components == nil {
		components = []*models.Component{}
	}
	writeJSON(w, http.StatusOK, components, h.logger)
}

// GetActivation handles GET /api/v1/activation
func (h *RegistryHandler) GetActivation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Activation(), h.logger)
}

func (h *RegistryHandler) writeError(w http.ResponseWriter, err error, kind models.Kind, logMessage string) {
	code, msg, status := apierrors.MapError(err, kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error(logMessage, "error", err)
	}
	apierrors.WriteError(w, code, msg, status, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

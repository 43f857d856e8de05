package handlers

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/criteo/install-registry/internal/apierrors"
	"github.com/criteo/install-registry/internal/auth"
	"github.com/criteo/install-registry/internal/installer"
	"github.com/criteo/install-registry/internal/manager"
	"github.com/criteo/install-registry/internal/manifest"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/server/middleware"
)

// PropertiesContentType selects the properties form of an uninstall request
const PropertiesContentType = "text/x-java-properties"

// OperationsHandler runs discover, check, install and uninstall
type OperationsHandler struct {
	session *installer.Session
	logger  *slog.Logger
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(session *installer.Session, logger *slog.Logger) *OperationsHandler {
	return &OperationsHandler{
		session: session,
		logger:  logger,
	}
}

// InstallRequest is the body of POST /api/v1/install
type InstallRequest struct {
	Source     string   `json:"source,omitempty"`
	Products   []string `json:"products,omitempty"`
	Components []string `json:"components,omitempty"`
}

// UninstallRequest is the JSON body of POST /api/v1/uninstall
type UninstallRequest struct {
	Products   []string `json:"products,omitempty"`
	Components []string `json:"components,omitempty"`
}

// MessagesResponse lists the conflicts and rejections of an operation
type MessagesResponse struct {
	Messages []string `json:"messages"`
}

// Discover handles POST /api/v1/discover
func (h *OperationsHandler) Discover(w http.ResponseWriter, r *http.Request) {
	list, err := h.session.Discover(r.Context())
	if err != nil {
		h.writeError(w, err, "Discover failed")
		return
	}
	if list.Items == nil {
		list.Items = []manager.Item{}
	}

	h.logger.Info("Discover completed", "staged", list.Len(), "user", username(r),
		"request_id", middleware.RequestID(r.Context()))
	writeJSON(w, http.StatusOK, list, h.logger)
}

// Check handles GET /api/v1/check/{kind}/{key}?source=<url>
func (h *OperationsHandler) Check(w http.ResponseWriter, r *http.Request) {
	kind := models.Kind(chi.URLParam(r, "kind"))
	if kind != models.KindProduct && kind != models.KindComponent {
		apierrors.WriteError(w, apierrors.ErrCodeValidationError, "Kind must be product or component", http.StatusBadRequest, nil)
		return
	}
	check, err := h.session.Check(r.Context(), r.URL.Query().Get("source"), kind, chi.URLParam(r, "key"))
	if err != nil {
		code, msg, status := apierrors.MapError(err, kind)
		apierrors.WriteError(w, code, msg, status, nil)
		return
	}
	writeJSON(w, http.StatusOK, check, h.logger)
}

// Install handles POST /api/v1/install
func (h *OperationsHandler) Install(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode install request",
			"error", err,
			"remote_addr", r.RemoteAddr)
		apierrors.WriteError(w, apierrors.ErrCodeValidationError, "Invalid JSON in request body", http.StatusBadRequest, nil)
		return
	}
	if len(req.Products) == 0 && len(req.Components) == 0 {
		apierrors.WriteError(w, apierrors.ErrCodeValidationError, "At least one product or component is required", http.StatusBadRequest, nil)
		return
	}

	messages, err := h.session.Install(r.Context(), req.Source, req.Products, req.Components)
	if err != nil {
		h.writeError(w, err, "Install failed")
		return
	}

	h.logger.Info("Install request applied",
		"source", req.Source,
		"products", len(req.Products),
		"components", len(req.Components),
		"messages", len(messages),
		"user", username(r),
		"request_id", middleware.RequestID(r.Context()))
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: nonNil(messages)}, h.logger)
}

// Uninstall handles POST /api/v1/uninstall. The body is either JSON or the
// properties form with configurations= and components= keys.
func (h *OperationsHandler) Uninstall(w http.ResponseWriter, r *http.Request) {
	var req UninstallRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == PropertiesContentType {
		props, err := manifest.ReadUninstallRequest(r.Body)
		if err != nil {
			apierrors.WriteError(w, apierrors.ErrCodeValidationError, err.Error(), http.StatusBadRequest, nil)
			return
		}
		req.Products, req.Components = props.Products, props.Components
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode uninstall request",
			"error", err,
			"remote_addr", r.RemoteAddr)
		apierrors.WriteError(w, apierrors.ErrCodeValidationError, "Invalid JSON in request body", http.StatusBadRequest, nil)
		return
	}

	messages, err := h.session.Uninstall(r.Context(), req.Products, req.Components)
	if err != nil {
		h.writeError(w, err, "Uninstall failed")
		return
	}

	h.logger.Info("Uninstall request applied",
		"messages", len(messages),
		"user", username(r),
		"request_id", middleware.RequestID(r.Context()))
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: nonNil(messages)}, h.logger)
}

func (h *OperationsHandler) writeError(w http.ResponseWriter, err error, logMessage string) {
	code, msg, status := apierrors.MapError(err, "")
	if status >= http.StatusInternalServerError {
		h.logger.Error(logMessage, "error", err)
	}
	apierrors.WriteError(w, code, msg, status, nil)
}

func username(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.Username
	}
	return ""
}

func nonNil(messages []string) []string {
	if messages == nil {
		return []string{}
	}
	return messages
}

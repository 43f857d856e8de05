package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/criteo/install-registry/internal/auth"
	"github.com/criteo/install-registry/internal/installer"
)

// MutatingOperations are the POST routes guarded by the authenticator
var MutatingOperations = []string{"discover", "install", "uninstall"}

// WhoamiHandler reports who the caller is and what it may change
type WhoamiHandler struct {
	authenticator auth.Authenticator
	session       *installer.Session
	logger        *slog.Logger
}

// NewWhoamiHandler creates a new whoami handler
func NewWhoamiHandler(authenticator auth.Authenticator, session *installer.Session, logger *slog.Logger) *WhoamiHandler {
	return &WhoamiHandler{
		authenticator: authenticator,
		session:       session,
		logger:        logger,
	}
}

// WhoamiResponse represents the whoami response
type WhoamiResponse struct {
	Username string `json:"username,omitempty"`
	// Operations lists the mutating routes this caller may use; empty for a
	// caller without credentials when auth is required
	Operations  []string `json:"operations"`
	Application string   `json:"application,omitempty"`
}

// GetWhoami handles GET /api/v1/whoami. Missing credentials yield a
// read-only answer, wrong ones a 401.
func (h *WhoamiHandler) GetWhoami(w http.ResponseWriter, r *http.Request) {
	response := WhoamiResponse{
		Operations:  []string{},
		Application: h.session.Activation().Application,
	}

	user, err := h.authenticator.Authenticate(r)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		h.logger.Debug("Anonymous whoami, installation is read-only")
	case err != nil:
		h.logger.Debug("Authentication failed for whoami", "error", err)
		w.Header().Set("WWW-Authenticate", auth.Challenge)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	default:
		response.Username = user.Username
		response.Operations = MutatingOperations
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode whoami response", "error", err)
	}
}

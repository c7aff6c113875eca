package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/musicshare/server/internal/auth"
	"github.com/musicshare/server/internal/shared"
)

// AuthHandler serves the OAuth session endpoints. Implements the [Handler]
// interface for registration with a [Router].
type AuthHandler struct {
	manager     *auth.Manager
	frontendURL string
	logger      *log.Logger
}

// NewAuthHandler creates the auth endpoint handler. frontendURL is where the
// browser is sent after a successful callback.
func NewAuthHandler(manager *auth.Manager, frontendURL string, logger *log.Logger) *AuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AuthHandler{
		manager:     manager,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{
		"/auth/login",
		"/auth/callback",
		"/auth/status",
		"/auth/logout",
	}
}

// ServeHTTP dispatches to the endpoint implementations.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/auth/login":
		h.login(w, r)
	case "/auth/callback":
		h.callback(w, r)
	case "/auth/status":
		h.status(w, r)
	case "/auth/logout":
		h.logout(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login creates the session cookie if absent and redirects the browser to
// the authorization endpoint.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		sid = shared.GenerateID()
		setSessionCookie(w, sid)
	}

	authURL, err := h.manager.Begin(sid)
	if err != nil {
		h.logger.Error("failed to begin login", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start login", err.Error())
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback completes the login. State failures are client errors; exchange
// failures surface the upstream response.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "Missing code or state", "")
		return
	}

	sid, err := h.manager.Callback(r.Context(), state, code)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidState) {
			writeError(w, http.StatusBadRequest, "Invalid or expired state", "")
			return
		}
		h.logger.Error("token exchange failed", "error", err)
		writeTokenError(w, err)
		return
	}

	// The cookie is re-set from the redeemed state so the record owner and
	// the browser session always agree.
	setSessionCookie(w, sid)
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// status is a read-only probe; it never triggers a refresh.
func (h *AuthHandler) status(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"authenticated": false,
			"reason":        "No session ID",
		})
		return
	}

	if !h.manager.Status(sid) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"authenticated": false,
			"reason":        "No valid token",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true})
}

// logout deletes the token record and clears the cookie. Idempotent.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if err := h.manager.Logout(sid); err != nil {
		h.logger.Error("failed to delete token record", "session", sid, "error", err)
		writeError(w, http.StatusInternalServerError, "Logout failed", err.Error())
		return
	}

	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

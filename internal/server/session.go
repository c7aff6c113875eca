package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/musicshare/server/internal/shared"
	"golang.org/x/oauth2"
)

// SessionCookieName is the cookie carrying the opaque session id.
const SessionCookieName = "sess"

// sessionCookieMaxAge keeps the cookie alive for a day; the server-side
// token record outlives or expires independently of it.
const sessionCookieMaxAge = 24 * 60 * 60

// sessionID reads the session id from the request cookie, returning "" when
// the cookie is absent.
func sessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// setSessionCookie writes the session cookie. HTTP-only and same-site so the
// opaque id never leaks to scripts or cross-site requests.
func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie on the client.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the JSON error body used across all handlers.
func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// writeTokenError maps an auth manager failure onto the error taxonomy:
// missing authentication maps to 401, token endpoint failures to 500 with
// the upstream response attached when available.
func writeTokenError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotAuthenticated) {
		writeError(w, http.StatusUnauthorized, "Not authenticated", "")
		return
	}

	msg := "Token exchange failed"
	if errors.Is(err, shared.ErrRefreshFailed) {
		msg = "Failed to refresh token"
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		writeError(w, http.StatusInternalServerError, msg, string(retrieveErr.Body))
		return
	}

	writeError(w, http.StatusInternalServerError, msg, err.Error())
}

package server

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/musicshare/server/internal/auth"
	"github.com/musicshare/server/internal/services"
	"github.com/musicshare/server/internal/shared"
)

var (
	searchKinds = map[string]bool{"track": true, "album": true, "playlist": true}
	topKinds    = map[string]bool{"tracks": true, "artists": true}
)

// SpotifyProxy is the slice of the services client the proxy handler uses.
type SpotifyProxy interface {
	Search(ctx context.Context, token, query, kind, limit string) (*services.APIResponse, error)
	Me(ctx context.Context, token string) (*services.APIResponse, error)
	TopItems(ctx context.Context, token, kind, timeRange, limit, offset string) (*services.APIResponse, error)
}

// ProxyHandler forwards read-only Spotify endpoints verbatim, resolving the
// caller's bearer token per request.
type ProxyHandler struct {
	manager *auth.Manager
	spotify SpotifyProxy
	logger  *log.Logger
}

// NewProxyHandler creates the passthrough handler.
func NewProxyHandler(manager *auth.Manager, spotify SpotifyProxy, logger *log.Logger) *ProxyHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ProxyHandler{
		manager: manager,
		spotify: spotify,
		logger:  logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *ProxyHandler) Routes() []string {
	return []string{
		"/search",
		"/profile",
		"/spotify/top/{type}",
	}
}

// ServeHTTP dispatches to the endpoint implementations.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case r.URL.Path == "/search":
		h.search(w, r)
	case r.URL.Path == "/profile":
		h.profile(w, r)
	case r.PathValue("type") != "":
		h.topItems(w, r)
	default:
		http.NotFound(w, r)
	}
}

// token resolves the caller's bearer token, writing the error response
// itself when resolution fails.
func (h *ProxyHandler) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, err := h.manager.EnsureAccessToken(r.Context(), sessionID(r))
	if err != nil {
		writeTokenError(w, err)
		return "", false
	}
	return token, true
}

// writeUpstream copies an upstream response through unchanged, including
// its status code on failures.
func (h *ProxyHandler) writeUpstream(w http.ResponseWriter, resp *services.APIResponse) {
	if ct := resp.Headers.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// search validates parameters before touching the token or the upstream so
// bad requests cost nothing.
func (h *ProxyHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	kind := q.Get("type")

	if query == "" {
		writeError(w, http.StatusBadRequest, "Missing search query", "")
		return
	}
	if !searchKinds[kind] {
		writeError(w, http.StatusBadRequest, "Invalid search type", "type must be one of track, album, playlist")
		return
	}

	token, ok := h.token(w, r)
	if !ok {
		return
	}

	resp, err := h.spotify.Search(r.Context(), token, query, kind, q.Get("limit"))
	if err != nil {
		h.logger.Error("search request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Upstream request failed", err.Error())
		return
	}

	h.writeUpstream(w, resp)
}

func (h *ProxyHandler) profile(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	resp, err := h.spotify.Me(r.Context(), token)
	if err != nil {
		h.logger.Error("profile request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Upstream request failed", err.Error())
		return
	}

	h.writeUpstream(w, resp)
}

func (h *ProxyHandler) topItems(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("type")
	if !topKinds[kind] {
		writeError(w, http.StatusBadRequest, "Invalid top items type", "type must be tracks or artists")
		return
	}

	token, ok := h.token(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	resp, err := h.spotify.TopItems(r.Context(), token, kind, q.Get("time_range"), q.Get("limit"), q.Get("offset"))
	if err != nil {
		h.logger.Error("top items request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Upstream request failed", err.Error())
		return
	}

	h.writeUpstream(w, resp)
}

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/musicshare/server/internal/auth"
	"github.com/musicshare/server/internal/services"
	"github.com/musicshare/server/internal/shared"
	"github.com/musicshare/server/internal/tasks"
)

// DefaultRecommendLimit bounds the response when the caller passes no limit.
const DefaultRecommendLimit = 20

// RecommendHandler serves the aggregated recommendation endpoint.
type RecommendHandler struct {
	manager *auth.Manager
	engine  *tasks.RecommendEngine
	logger  *log.Logger
}

// NewRecommendHandler creates the recommendation endpoint handler.
func NewRecommendHandler(manager *auth.Manager, engine *tasks.RecommendEngine, logger *log.Logger) *RecommendHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RecommendHandler{
		manager: manager,
		engine:  engine,
		logger:  logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *RecommendHandler) Routes() []string {
	return []string{"/alternative-recommendations"}
}

// ServeHTTP resolves the caller's token and runs the aggregation. A seed
// fetch failure propagates the upstream status when one is available.
func (h *RecommendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultRecommendLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	token, err := h.manager.EnsureAccessToken(r.Context(), sessionID(r))
	if err != nil {
		writeTokenError(w, err)
		return
	}

	set, err := h.engine.Alternatives(r.Context(), token, limit)
	if err != nil {
		h.logger.Error("recommendation aggregation failed", "error", err)

		var uerr *services.UpstreamError
		if errors.As(err, &uerr) {
			writeError(w, uerr.StatusCode, "Failed to fetch recommendations", string(uerr.Body))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch recommendations", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, set)
}

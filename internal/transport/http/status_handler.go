package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "ferroci/internal/errors"
	"ferroci/internal/middleware"
)

// maxLogLimit bounds ?limit= on the status log
const maxLogLimit = 10000

// StatusHistory exposes the recent status log lines kept by the hub
type StatusHistory interface {
	History() []json.RawMessage
	GetHubMetrics() map[string]interface{}
}

// StatusHandler serves the status log to clients that connect late or
// cannot hold a WebSocket open
type StatusHandler struct {
	history StatusHistory
	query   *middleware.QueryParamValidator
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(history StatusHistory, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		history: history,
		query:   middleware.NewQueryParamValidator(apierrors.NewErrorHandler(logger, false)),
	}
}

// Log handles GET /api/status/log. ?limit=N keeps only the newest N lines.
func (h *StatusHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxLogLimit, 0)
	if !ok {
		return
	}

	entries := h.history.History()
	if entries == nil {
		entries = []json.RawMessage{}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	render.JSON(w, r, entries)
}

// Hub handles GET /api/status/hub
func (h *StatusHandler) Hub(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.history.GetHubMetrics())
}

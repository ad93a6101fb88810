package websocket

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ferroci/internal/config"
	"ferroci/internal/infrastructure"
)

// Handler upgrades GUI requests to WebSocket connections on the hub
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	clientOpts     ClientOptions
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHandler creates the /ws endpoint. Requests without an Origin header and
// requests from allowedOrigins are accepted.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	h := &Handler{
		hub:            hub,
		clientOpts:     ClientOptionsFrom(cfg),
		allowedOrigins: allowedOrigins,
		logger:         infrastructure.WithComponent(logger, "websocket.handler"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.ErrorContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Allow if no origin (local file or same-origin request)
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}

	h.logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.allowedOrigins))
	return false
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := infrastructure.GetTraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied
		return
	}

	client := NewClient(h.hub, NewConnectionWrapper(conn), traceID, h.clientOpts, h.logger)
	h.logger.InfoContext(ctx, "WebSocket connection upgraded",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", client.remoteAddr))
	client.Serve()
}

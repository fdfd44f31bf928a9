package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gorilla "github.com/gorilla/websocket"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/config"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/middleware"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/websocket"
)

// WebSocketHandler upgrades admin dashboard connections and hands them to
// the license status hub.
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a handler that accepts same-origin browsers and
// non-browser clients that send no Origin header.
func NewWebSocketHandler(hub *websocket.Hub, cfg config.WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     sameOrigin,
		},
		logger: logger.With(slog.String("handler", "websocket")),
	}
}

// ServeHTTP handles GET /ws/license.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	websocket.ServeWS(h.hub, websocket.NewConnectionWrapper(conn), middleware.GetRequestID(r.Context()), h.logger)
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

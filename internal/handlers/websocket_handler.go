package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/cattlebreed/server/internal/observability"
	"github.com/cattlebreed/server/internal/services"
)

// WebSocketHandler streams record, export and auth events to clients
type WebSocketHandler struct {
	hub      *services.WebSocketHub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. An empty
// allowedOrigins accepts any origin.
func NewWebSocketHandler(hub *services.WebSocketHub, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{hub: hub}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return h
}

// HandleConnection upgrades to a WebSocket. Topics listed in the "topics"
// query parameter (comma separated) are subscribed immediately; clients can
// subscribe to more with {"type":"subscribe","topic":"records"}.
// @Summary Event stream
// @Tags events
// @Param topics query string false "records,exports,auth"
// @Success 101 "Switching Protocols"
// @Router /api/ws [get]
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.WithContext(r.Context()).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	for _, topic := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if topic = strings.TrimSpace(topic); services.IsKnownTopic(topic) {
			h.hub.Subscribe(client, topic)
		}
	}

	go client.WritePump()
	client.ReadPump()
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and streams change events to them. originPatterns restricts
// cross-origin upgrades; nil allows same-origin only. Repeated ?entity=
// query parameters narrow the feed to those entities.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		logger.Debug("websocket connected", "clients", hub.ClientCount()+1)

		client := NewClient(hub, conn, r.URL.Query()["entity"]...)
		client.Run(r.Context())
	}
}

// ABOUTME: WebSocket session hub pushing notification events to agent consoles
// ABOUTME: One connection per agent session, fed from the broadcaster

package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds how long a single event write may take.
	writeWait = 10 * time.Second

	// pingInterval keeps idle connections alive through proxies.
	pingInterval = 30 * time.Second
)

// Hub accepts agent console WebSocket connections and forwards their
// subscribed events as JSON frames. The hub is transport only; all routing
// decisions live in the broadcaster.
type Hub struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewHub creates a hub backed by the given broadcaster.
func NewHub(broadcaster *Broadcaster, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the excluded auth layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "ws-hub"),
	}
}

// RegisterRoutes registers the WebSocket endpoint on the mux.
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.handleSession)
}

// handleSession upgrades the connection and streams events until the client
// disconnects. Connections without an agent_id receive the broadcast firehose.
func (h *Hub) handleSession(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var events <-chan *Event
	if agentID != "" {
		events, _ = h.broadcaster.Subscribe(ctx, agentID)
	} else {
		events, _ = h.broadcaster.SubscribeAll(ctx)
	}

	h.logger.Info("agent session connected", "agent_id", agentID, "remote", r.RemoteAddr)
	defer h.logger.Info("agent session disconnected", "agent_id", agentID)

	// Reader goroutine: we never expect inbound frames, but reading is
	// required to observe close frames and pings from the peer.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.writeLoop(ctx, conn, events)
	_ = conn.Close()
}

// writeLoop pushes events and periodic pings until the context ends or the
// subscription channel closes.
func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan *Event) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/JustinTDCT/StoryDraw/internal/auth"
	"github.com/JustinTDCT/StoryDraw/internal/httputil"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
)

// ──────────────────── WebSocket Hub ────────────────────

const (
	EventDismissed  = lottery.EventDismissed
	EventRedeemed   = lottery.EventRedeemed
	EventDrawClosed = lottery.EventDrawClosed
)

type WSHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]bool
	log     *zap.Logger
}

type WSClient struct {
	conn      *websocket.Conn
	visitorID string
	send      chan []byte
}

type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewWSHub(log *zap.Logger) *WSHub {
	return &WSHub{
		clients: make(map[*WSClient]bool),
		log:     log.With(zap.String("component", "ws")),
	}
}

// Broadcast sends an event to every client.
func (h *WSHub) Broadcast(event string, data interface{}) {
	h.publish("", event, data)
}

// Publish sends an event to the clients of one visitor.
func (h *WSHub) Publish(visitorID, event string, data interface{}) {
	if visitorID == "" {
		return
	}
	h.publish(visitorID, event, data)
}

func (h *WSHub) publish(visitorID, event string, data interface{}) {
	msg, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.log.Warn("marshal ws event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if visitorID != "" && client.visitorID != visitorID {
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) addClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) removeClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractToken(r)
	if token == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "visitor token required")
		return
	}
	visitorID, err := s.tokens.Parse(token)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid visitor token")
		return
	}

	opts := &websocket.AcceptOptions{}
	if _, host := s.siteOrigin(); host != "" {
		opts.OriginPatterns = []string{host}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:      conn,
		visitorID: visitorID,
		send:      make(chan []byte, 64),
	}

	s.wsHub.addClient(client)
	s.log.Debug("websocket client connected", zap.String("visitor", visitorID))

	ctx := r.Context()

	// Writer goroutine
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range client.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop keeps the connection alive and notices the close.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.wsHub.removeClient(client)
	s.log.Debug("websocket client disconnected", zap.String("visitor", visitorID))
}

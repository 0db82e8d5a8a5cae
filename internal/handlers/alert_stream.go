package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

const (
	streamSendBuffer = 64
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// StreamEventType identifies messages pushed to stream subscribers
type StreamEventType string

const (
	StreamEventAlertCreated StreamEventType = "alert_created"
)

// StreamEvent is one message on the alert stream
type StreamEvent struct {
	Type  StreamEventType `json:"type"`
	Alert *alerts.Alert   `json:"alert"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.send) })
}

// AlertStreamHandler pushes newly created alerts to websocket subscribers.
// Slow subscribers are dropped rather than allowed to hold up alert
// creation.
type AlertStreamHandler struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	logger   *zap.Logger
}

// NewAlertStreamHandler creates the stream handler. An empty origin list
// accepts any origin.
func NewAlertStreamHandler(allowedOrigins []string, logger *zap.Logger) *AlertStreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertStreamHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*streamClient]struct{}),
		logger:  logger.Named("alert_stream"),
	}
}

// SetupRoutes configures WebSocket routes
func (h *AlertStreamHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/alerts", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and streams alerts until the
// subscriber goes away
func (h *AlertStreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("stream subscriber connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop discards inbound messages and returns when the peer closes
func (h *AlertStreamHandler) readLoop(c *streamClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Info("stream subscriber disconnected")
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *AlertStreamHandler) writeLoop(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *AlertStreamHandler) remove(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// HandleAlert broadcasts a created alert. It has the AlertHandler
// signature so it can be registered with the alert manager.
func (h *AlertStreamHandler) HandleAlert(ctx context.Context, alert *alerts.Alert) error {
	data, err := json.Marshal(StreamEvent{Type: StreamEventAlertCreated, Alert: alert})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			c.close()
			h.logger.Warn("dropping slow stream subscriber", zap.String("alert_id", alert.ID))
		}
	}
	return nil
}

// ClientCount returns the number of connected subscribers
func (h *AlertStreamHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *AlertStreamHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mev-shield/tx-protection-engine/pkg/interfaces"
	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser dashboards connect cross-origin; auth happens via the first
	// message, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the envelope every frame on the alert stream uses.
type wsMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan *wsMessage
}

// AlertHub fans threat alerts out to connected websocket clients.
type AlertHub struct {
	alerts interfaces.AlertManager
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAlertHub creates a hub over the alert manager's subscription stream.
func NewAlertHub(alerts interfaces.AlertManager, logger *zap.Logger) *AlertHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHub{
		alerts:  alerts,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins pumping alerts from the alert manager to connected clients.
func (h *AlertHub) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.pump(ctx)
}

// Stop disconnects all clients and stops the pump.
func (h *AlertHub) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *AlertHub) pump(ctx context.Context) {
	defer close(h.done)
	if h.alerts == nil {
		<-ctx.Done()
		return
	}
	sub := h.alerts.Subscribe()
	for {
		select {
		case alert, ok := <-sub:
			if !ok {
				return
			}
			h.broadcast(&wsMessage{Type: "alert", Payload: alert, Timestamp: time.Now()})
		case <-ctx.Done():
			return
		}
	}
}

func (h *AlertHub) broadcast(msg *wsMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow consumer; drop it rather than stalling the stream.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// HandleWebSocket upgrades the connection and streams alerts until the client
// disconnects. Recent alerts are replayed on connect.
func (h *AlertHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan *wsMessage, 64)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	var recent []*types.Alert
	if h.alerts != nil {
		recent = h.alerts.RecentAlerts(20)
	}
	client.send <- &wsMessage{Type: "snapshot", Payload: recent, Timestamp: time.Now()}

	go h.writeLoop(client)
	go h.readLoop(client)
}

func (h *AlertHub) readLoop(c *wsClient) {
	defer h.disconnect(c)
	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		// Clients only send control frames; discard anything else.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertHub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Warn("websocket marshal failed", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *AlertHub) disconnect(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Package ws pushes achievement notifications to connected browsers.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/arena/internal/adapters/http/auth"
	"github.com/okian/arena/internal/adapters/notify"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Hub tracks open connections per user and implements notify.Notifier.
type Hub struct {
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

// NewHub returns a Hub that authenticates connections with verifier.
// checkOrigin may be nil to accept any origin.
func NewHub(verifier *auth.Verifier, checkOrigin func(*http.Request) bool, log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: log,
		conns:  make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP upgrades an authenticated request. The token comes from the
// "token" query parameter since browsers cannot set headers on websockets.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.FromContext(r.Context())
	if !ok {
		s, err := h.verifier.Verify(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		session = s
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{userID: session.UserID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	h.logger.Debug(r.Context(), "websocket connected", logger.String("user", c.userID))

	go h.writePump(c)
	h.readPump(c)
}

// Notify sends the grant to every open connection of userID. A user with no
// connections is not an error.
func (h *Hub) Notify(ctx context.Context, userID string, achievements []model.Achievement) error {
	payload, err := json.Marshal(notify.NewMessage(userID, achievements))
	if err != nil {
		metrics.RecordNotification("websocket", "error")
		return fmt.Errorf("encode notification: %w", err)
	}

	// Sends happen under the read lock; remove closes channels under the write lock.
	h.mu.RLock()
	listeners := len(h.conns[userID])
	var slow []*client
	for c := range h.conns[userID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if listeners == 0 {
		metrics.RecordNotification("websocket", "no_listener")
		return nil
	}

	dropped := len(slow)
	for _, c := range slow {
		h.remove(c)
	}
	if dropped > 0 {
		metrics.RecordNotification("websocket", "dropped")
		h.logger.Warn(ctx, "dropped slow websocket clients", logger.String("user", userID), logger.Int("count", dropped))
	}
	if dropped < listeners {
		metrics.RecordNotification("websocket", "ok")
	}
	return nil
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

// Close disconnects everyone.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.remove(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.AddWebsocketConnections(1)
}

func (h *Hub) remove(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.conns[c.userID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.conns, c.userID)
			}
		}
		close(c.send)
		h.mu.Unlock()
		metrics.AddWebsocketConnections(-1)
	})
}

// readPump consumes control frames until the peer goes away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

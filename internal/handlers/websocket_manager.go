package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
	"github.com/sand/fraud-detector/backend/internal/metrics"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pingPeriod       = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	userID int64 // 0 means every user
}

// Manager fans accepted suspicious records out to websocket clients.
type Manager struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func NewWebSocketManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Upgrade switches the request to the websocket protocol.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

func (m *Manager) add(conn *websocket.Conn, userID int64) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, clientSendBuffer), userID: userID}

	m.mu.Lock()
	m.clients[c] = struct{}{}
	n := len(m.clients)
	m.mu.Unlock()

	metrics.ActiveWebSocketClients.Set(float64(n))
	go m.writePump(c)
	return c
}

func (m *Manager) remove(c *wsClient) {
	m.mu.Lock()
	if _, ok := m.clients[c]; ok {
		delete(m.clients, c)
		close(c.send)
	}
	n := len(m.clients)
	m.mu.Unlock()

	metrics.ActiveWebSocketClients.Set(float64(n))
}

// NotifyAccepted broadcasts record. Clients that cannot keep up are dropped.
func (m *Manager) NotifyAccepted(record entities.SuspiciousRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		m.logger.Error("Failed to encode suspicious record", "error", err)
		return
	}

	var slow []*wsClient
	m.mu.RLock()
	for c := range m.clients {
		if c.userID != 0 && c.userID != record.UserID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range slow {
		m.logger.Warn("Dropping slow websocket client")
		m.remove(c)
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				m.logger.Warn("WebSocket write error", "error", err)
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

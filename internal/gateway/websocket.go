// Package gateway holds the two process-wide collaborators every
// service shares: the websocket connection used to push frames to users
// through the API gateway, and the registry client that keeps this
// instance visible to the gateway's router.
package gateway

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
)

// Notifier delivers a frame to a user via the gateway. Satisfied by
// *WSManager in production and by fakes in tests.
type Notifier interface {
	Notify(frame models.GatewayFrame) error
}

var ErrNotConnected = errors.New("gateway websocket is not connected")

// WSManager owns the single outbound websocket to the gateway. Send is
// serialized by the mutex; gorilla connections do not tolerate
// concurrent writers.
type WSManager struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSManager(url string, logger *zap.Logger) *WSManager {
	return &WSManager{url: url, logger: logger}
}

// Connect dials the gateway. Called once at startup; Notify redials
// lazily if the connection dropped in between.
func (m *WSManager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dialLocked()
}

func (m *WSManager) dialLocked() error {
	conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
	if err != nil {
		return err
	}
	m.conn = conn
	return nil
}

// Notify sends one frame. A send failure drops the connection and
// retries once on a fresh dial; delivery failures beyond that are the
// caller's to log, never to block on.
func (m *WSManager) Notify(frame models.GatewayFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		if err := m.dialLocked(); err != nil {
			return ErrNotConnected
		}
	}

	if err := m.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		m.conn.Close()
		m.conn = nil
		if err := m.dialLocked(); err != nil {
			return ErrNotConnected
		}
		return m.conn.WriteMessage(websocket.TextMessage, payload)
	}
	return nil
}

// Close tears the connection down at shutdown.
func (m *WSManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

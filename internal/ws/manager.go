// Package ws pushes server-side story events (appended chapters) to
// connected browsers over WebSocket.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is a single WebSocket connection bound to a user.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan []byte
}

// ConnectionManager tracks active connections by user ID. At most one
// connection per user: a new connection displaces the old one.
type ConnectionManager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan string
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewConnectionManager creates the manager and starts its control loop.
func NewConnectionManager(logger zerolog.Logger) *ConnectionManager {
	m := &ConnectionManager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan string),
		logger:     logger.With().Str("component", "ConnectionManager").Logger(),
	}
	go m.run()
	return m
}

func (m *ConnectionManager) run() {
	m.logger.Info().Msg("ConnectionManager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			if old, ok := m.clients[client.UserID]; ok {
				m.logger.Info().Str("userID", client.UserID).Msg("Closing previous connection for user")
				close(old.send)
				if old.Conn != nil {
					_ = old.Conn.Close()
				}
			}
			m.clients[client.UserID] = client
			m.mu.Unlock()
			m.logger.Debug().Str("userID", client.UserID).Msg("Client registered")

		case userID := <-m.unregister:
			m.mu.Lock()
			if client, ok := m.clients[userID]; ok {
				delete(m.clients, userID)
				close(client.send)
			}
			m.mu.Unlock()
			m.logger.Debug().Str("userID", userID).Msg("Client unregistered")
		}
	}
}

// RegisterClient adds a client to the manager.
func (m *ConnectionManager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a client by user ID.
func (m *ConnectionManager) UnregisterClient(userID string) {
	m.unregister <- userID
}

// SendToUser queues a message for a user's connection. Returns false when
// the user is offline or the send queue is full. The read lock is held
// across the channel send so a displacing register cannot close the
// channel mid-send.
func (m *ConnectionManager) SendToUser(userID string, message []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[userID]
	if !ok {
		m.logger.Debug().Str("userID", userID).Msg("User offline, message dropped")
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		m.logger.Warn().Str("userID", userID).Msg("Send queue full, message dropped")
		return false
	}
}

// NotifyJSON marshals the payload and delivers it to the user. Marshal
// failures are logged and swallowed, notifications are best-effort.
func (m *ConnectionManager) NotifyJSON(userID string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error().Err(err).Str("userID", userID).Msg("Failed to marshal notification payload")
		return false
	}
	return m.SendToUser(userID, data)
}

package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"storyweaver-server/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from the peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are already filtered by the CORS layer in front of us.
		return true
	},
}

// TokenVerifier validates an access token and returns its claims.
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*models.Claims, error)
}

// Handler upgrades HTTP requests to WebSocket connections. Browsers cannot
// set headers on the upgrade request, so the access token arrives as a
// query parameter.
type Handler struct {
	manager  *ConnectionManager
	verifier TokenVerifier
	logger   zerolog.Logger
}

// NewHandler creates a WebSocket upgrade handler.
func NewHandler(manager *ConnectionManager, verifier TokenVerifier, logger zerolog.Logger) *Handler {
	return &Handler{
		manager:  manager,
		verifier: verifier,
		logger:   logger.With().Str("component", "WebSocketHandler").Logger(),
	}
}

// ServeWS handles the incoming HTTP request for a WebSocket upgrade.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.logger.Warn().Msg("Missing 'token' query parameter")
		http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.verifier.VerifyAccessToken(tokenString)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Invalid token on WebSocket upgrade")
		http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID.String()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already wrote the HTTP error response
		h.logger.Error().Err(err).Str("userID", userID).Msg("Failed to upgrade connection")
		return
	}

	h.logger.Info().Str("userID", userID).Msg("WebSocket connection established")

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan []byte, 256),
	}

	h.manager.RegisterClient(client)

	clientLogger := h.logger.With().Str("userID", userID).Logger()
	go client.writePump(clientLogger)
	go client.readPump(h.manager, clientLogger)
}

// readPump drains messages from the connection. Clients are not expected to
// send anything, the read loop exists to detect disconnects and answer pings.
func (c *Client) readPump(manager *ConnectionManager, logger zerolog.Logger) {
	defer func() {
		manager.UnregisterClient(c.UserID)
		_ = c.Conn.Close()
		logger.Debug().Msg("readPump finished")
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			break
		}
		logger.Warn().Bytes("message", message).Msg("Unexpected message from client (ignored)")
	}
}

// writePump pumps messages from the send channel to the connection.
func (c *Client) writePump(logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		logger.Debug().Msg("writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}

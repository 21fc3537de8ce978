package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"grabit/internal/logging"
	"grabit/internal/services"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// socket is the slice of *websocket.Conn the hub needs, separated so
// tests can run connections without a network.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// Conn is one observer connection. Outbound messages are queued on send
// by the hub loop; the write pump drains them onto the socket.
type Conn struct {
	id   string
	hub  *Hub
	sock socket
	send chan []byte
}

func newConn(h *Hub, sock socket) *Conn {
	return &Conn{
		id:   "conn_" + uuid.NewString()[:8],
		hub:  h,
		sock: sock,
		send: make(chan []byte, sendBuffer),
	}
}

// ID returns the identifier announced to the client in the welcome message.
func (c *Conn) ID() string { return c.id }

// Handler upgrades HTTP requests to websocket connections and attaches
// them to the hub. Connections over the capacity limit are closed with a
// policy-violation close frame.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", logging.Error(err))
			return
		}
		conn := newConn(h, sock)
		if err := h.Connect(conn); err != nil {
			if errors.Is(err, services.ErrCapacity) {
				reason := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Server at capacity")
				_ = sock.WriteControl(websocket.CloseMessage, reason, time.Now().Add(writeWait))
			}
			h.logger.Debug("connection rejected", logging.Error(err))
			_ = sock.Close()
			return
		}
		go conn.writePump()
		go conn.readPump()
	}
}

// writePump drains queued messages onto the socket. It exits when the hub
// closes the send channel or a write fails.
func (c *Conn) writePump() {
	defer c.sock.Close()
	for payload := range c.send {
		_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.hub.logger.Debug("observer connection closed during delivery",
				logging.String("connection_id", c.id),
				logging.Error(services.Wrap(services.ErrConnection, "hub", "deliver", c.id, err)))
			c.hub.Disconnect(c)
			return
		}
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.sock.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
}

// readPump consumes inbound client messages until the connection drops,
// then detaches from the hub.
func (c *Conn) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.sock.Close()
	}()
	c.sock.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(raw)
	}
}

// inboundMessage is what clients may send: subscribe/unsubscribe carry a
// task id, ping and stats stand alone.
type inboundMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
}

func (c *Conn) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.hub.sendError(c, "Invalid JSON format")
		return
	}

	switch msg.Type {
	case "subscribe":
		if msg.TaskID == "" {
			c.hub.sendError(c, "task_id required for subscription")
			return
		}
		c.hub.Subscribe(c, msg.TaskID)
	case "unsubscribe":
		if msg.TaskID == "" {
			c.hub.sendError(c, "task_id required for unsubscription")
			return
		}
		c.hub.Unsubscribe(c, msg.TaskID)
	case "ping":
		c.hub.sendTo(c, newMessage(TypePong, "", map[string]any{"timestamp": unixNow()}))
	case "stats":
		c.hub.sendTo(c, newMessage(TypeStats, "", c.hub.Stats()))
	default:
		c.hub.sendError(c, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

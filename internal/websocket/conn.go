package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ikkim/quickcart-backend/pkg/logger"
)

// KeepAlive bounds how long a feed session may stay silent
type KeepAlive struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

var DefaultKeepAlive = KeepAlive{
	WriteWait:      10 * time.Second,
	PongWait:       60 * time.Second,
	MaxMessageSize: 4096,
}

func (k KeepAlive) pingEvery() time.Duration {
	return k.PongWait * 9 / 10
}

// Conn is the socket behind a Client
type Conn struct {
	*websocket.Conn
	KeepAlive KeepAlive
}

func (c *Conn) keepAlive() KeepAlive {
	if c.KeepAlive.PongWait <= 0 {
		return DefaultKeepAlive
	}
	return c.KeepAlive
}

// feedCommand is the only inbound frame a feed session understands.
// {"action":"subscribe","types":["order.created"]} narrows the stream,
// an empty type list restores everything.
type feedCommand struct {
	Action string      `json:"action"`
	Types  []EventType `json:"types"`
}

// Client is one admin feed session
type Client struct {
	Hub    *Hub
	Conn   *Conn
	UserID string
	Send   chan []byte

	mu     sync.RWMutex
	topics map[EventType]bool
}

// NewClient wraps an upgraded socket
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   &Conn{Conn: conn, KeepAlive: DefaultKeepAlive},
		UserID: userID,
		Send:   make(chan []byte, 256),
	}
}

// Subscribe limits delivery to the given event types; no types means all
func (c *Client) Subscribe(types ...EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(types) == 0 {
		c.topics = nil
		return
	}
	c.topics = make(map[EventType]bool, len(types))
	for _, t := range types {
		c.topics[t] = true
	}
}

func (c *Client) wants(t EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics == nil || c.topics[t]
}

// Serve registers the client and starts both socket loops
func (c *Client) Serve() {
	c.Hub.Register(c)
	go c.writeLoop()
	go c.readLoop()
}

func (c *Client) readLoop() {
	ka := c.Conn.keepAlive()
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(ka.MaxMessageSize)
	extend := func() error {
		return c.Conn.SetReadDeadline(time.Now().Add(ka.PongWait))
	}
	_ = extend()
	c.Conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Order feed closed unexpectedly", map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				})
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var cmd feedCommand
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.Action != "subscribe" {
		logger.Debug("Ignoring order feed frame", map[string]interface{}{
			"user_id": c.UserID,
		})
		return
	}
	c.Subscribe(cmd.Types...)
}

func (c *Client) writeLoop() {
	ka := c.Conn.keepAlive()
	ticker := time.NewTicker(ka.pingEvery())
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	write := func(kind int, payload []byte) error {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(ka.WriteWait))
		return c.Conn.WriteMessage(kind, payload)
	}

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

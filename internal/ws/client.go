package ws

import (
	"encoding/json"
	"sync"
	"time"

	"trivia_backend/internal/logger"
	"trivia_backend/internal/week"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte

	hub    *Hub
	remote string

	mu     sync.RWMutex
	weekID string
}

func NewClient(conn *websocket.Conn, hub *Hub, weekID string) *Client {
	return &Client{
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		hub:    hub,
		remote: conn.RemoteAddr().String(),
		weekID: weekID,
	}
}

func (c *Client) follows(weekID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weekID == "" || weekID == "" || c.weekID == weekID
}

// Run registers the client and blocks until the connection closes.
func (c *Client) Run() {
	c.hub.register(c)
	go c.writePump()

	c.reply(Envelope{Type: MsgReady, WeekID: c.weekID})
	c.readPump()
}

// reply queues a message for this client only.
func (c *Client) reply(msg Envelope) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	// Send is closed once the hub dropped the client
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- b:
	default:
	}
}

//read
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1024)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "remote", c.remote, "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg []byte) {
	var in SubscribePayload
	if err := json.Unmarshal(msg, &in); err != nil {
		c.reply(Envelope{Type: MsgError, Data: ErrorPayload{Message: "invalid message"}})
		return
	}

	switch in.Type {
	case MsgSubscribe:
		if in.WeekID != "" {
			if _, err := week.Start(in.WeekID); err != nil {
				c.reply(Envelope{Type: MsgError, Data: ErrorPayload{Message: "invalid weekId"}})
				return
			}
		}
		c.mu.Lock()
		c.weekID = in.WeekID
		c.mu.Unlock()
		c.reply(Envelope{Type: MsgReady, WeekID: in.WeekID})
	case MsgPing:
		c.reply(Envelope{Type: MsgPong})
	default:
		c.reply(Envelope{Type: MsgError, Data: ErrorPayload{Message: "unknown message type"}})
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "remote", c.remote, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

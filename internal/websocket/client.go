package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	sendBuffer = 32

	guardTimeout = 5 * time.Second
)

// Client is one websocket connection
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	guard  TopicGuard
	logger *slog.Logger
}

// ClientMessage is a control frame sent by the browser
type ClientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, guard TopicGuard, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		guard:  guard,
		logger: logger,
	}
}

// readPump handles control frames until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(Message{Type: MessageTypeError, Data: map[string]string{"error": "invalid message format"}})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		if !ValidTopic(msg.Topic) {
			c.reply(Message{Type: MessageTypeError, Topic: msg.Topic, Data: map[string]string{"error": "unknown topic"}})
			return
		}
		if err := c.authorize(msg.Topic); err != nil {
			c.logger.Debug("subscription denied", "client_id", c.id, "topic", msg.Topic, "error", err)
			c.reply(Message{Type: MessageTypeError, Topic: msg.Topic, Data: map[string]string{"error": "subscription denied"}})
			return
		}
		// the hub acks once the subscription is live
		c.hub.Subscribe(c, msg.Topic)

	case MessageTypeUnsubscribe:
		c.hub.Unsubscribe(c, msg.Topic)

	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})

	default:
		c.logger.Debug("unknown message type", "client_id", c.id, "type", msg.Type)
	}
}

func (c *Client) authorize(topic string) error {
	if c.guard == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.hub.ctx, guardTimeout)
	defer cancel()
	return c.guard(ctx, c.userID, topic)
}

// writePump writes queued messages, one per frame, and keeps the
// connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// reply queues a direct response. The hub owns c.send, so the write goes
// through the same non-blocking path as broadcasts.
func (c *Client) reply(msg Message) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Handler upgrades requests to websocket connections. An empty
// allowedOrigins accepts any origin. The caller's id is read from userHeader
// and checked by guard, when set, on every subscribe.
func Handler(hub *Hub, allowedOrigins []string, userHeader string, guard TopicGuard, logger *slog.Logger) http.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowed) == 0 || origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := newClient(hub, conn, r.Header.Get(userHeader), guard, logger)
		hub.Register(client)

		go client.writePump()
		go client.readPump()

		logger.Debug("websocket connected", "client_id", client.id)
	}
}

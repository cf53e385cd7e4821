package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// Message types
const (
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
)

// Message is the envelope for every frame sent to a client
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ValidTopic reports whether clients may subscribe to topic.
func ValidTopic(topic string) bool {
	if topic == domain.TopicLeaderboard {
		return true
	}
	id, ok := strings.CutPrefix(topic, domain.MatchTopic(""))
	return ok && id != ""
}

// TopicGuard decides whether userID may subscribe to topic. userID is empty
// for callers the gateway did not identify.
type TopicGuard func(ctx context.Context, userID, topic string) error

// Hub tracks connected clients and fans messages out per topic
type Hub struct {
	// subscribers by topic
	topics map[string]map[*Client]struct{}

	clients map[*Client]struct{}

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics:      make(map[string]map[*Client]struct{}),
		clients:     make(map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	defer close(h.done)
	h.logger.Info("websocket hub started")

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			h.logger.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.client]; ok {
				if _, ok := h.topics[req.topic]; !ok {
					h.topics[req.topic] = make(map[*Client]struct{})
				}
				h.topics[req.topic][req.client] = struct{}{}
				h.ack(req.client, MessageTypeSubscribed, req.topic)
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			h.drop(req.client, req.topic)
			if _, ok := h.clients[req.client]; ok {
				h.ack(req.client, MessageTypeUnsubscribed, req.topic)
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Stop stops the hub and disconnects every client
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

// caller holds h.mu
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for topic := range h.topics {
		h.drop(client, topic)
	}
	close(client.send)
}

// caller holds h.mu
func (h *Hub) drop(client *Client, topic string) {
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// ack confirms a subscription change once it is applied, so no broadcast
// sent after the ack can miss the client. Caller holds h.mu.
func (h *Hub) ack(client *Client, msgType, topic string) {
	data, err := json.Marshal(Message{Type: msgType, Topic: topic, Timestamp: time.Now()})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.remove(client)
	}
}

func (h *Hub) deliver(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "topic", message.Topic, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[message.Topic] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message", "client_id", client.id, "topic", message.Topic)
		}
	}
}

// Broadcast queues payload for every subscriber of topic. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(topic, msgType string, payload interface{}) {
	message := &Message{
		Type:      msgType,
		Topic:     topic,
		Data:      payload,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "topic", topic)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.ctx.Done():
	}
}

// Unsubscribe removes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.ctx.Done():
	}
}

// SubscriberCount returns the number of subscribers for a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TotalConnections returns the total number of connected clients
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicModeration is the shared feed every connected moderator listens on.
const TopicModeration = "moderation"

type EventKind string

const (
	EventPlaceSubmitted EventKind = "PlaceSubmitted"
	EventPlaceApproved  EventKind = "PlaceApproved"
	EventPlaceRejected  EventKind = "PlaceRejected"
)

// Event is the ephemeral payload pushed to subscribers. Nothing here is
// persisted; a subscriber not connected at emission time never sees it.
type Event struct {
	Kind    EventKind `json:"kind"`
	PlaceID int64     `json:"place_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

const outboundBuffer = 16

// Client is one live subscriber connection: a private mailbox plus any
// topics it has joined.
type Client struct {
	ID       uuid.UUID
	UserID   int64
	Outbound chan Event

	topics map[string]bool
}

// Hub fans events out to current subscribers. Delivery is best-effort: a
// subscriber whose buffer is full misses the event rather than blocking the
// publisher.
type Hub struct {
	mu     sync.RWMutex
	logger *zap.SugaredLogger
	topics map[string]map[*Client]bool
	users  map[int64]map[*Client]bool
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		logger: logger,
		topics: make(map[string]map[*Client]bool),
		users:  make(map[int64]map[*Client]bool),
	}
}

// Subscribe registers a new client under userID's private mailbox.
func (h *Hub) Subscribe(userID int64) *Client {
	client := &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Outbound: make(chan Event, outboundBuffer),
		topics:   make(map[string]bool),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.users[userID]
	if !ok {
		clients = make(map[*Client]bool)
		h.users[userID] = clients
	}
	clients[client] = true

	h.logger.Debugw("notify client subscribed", "clientID", client.ID, "userID", userID)
	return client
}

// JoinTopic attaches the client to a shared topic.
func (h *Hub) JoinTopic(client *Client, topic string) {
	if topic == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client.topics[topic] = true

	clients, ok := h.topics[topic]
	if !ok {
		clients = make(map[*Client]bool)
		h.topics[topic] = clients
	}
	clients[client] = true

	h.logger.Debugw("notify client joined topic", "clientID", client.ID, "topic", topic)
}

// Remove detaches the client from its mailbox and every topic, and closes
// its outbound channel.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range client.topics {
		if clients, ok := h.topics[topic]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	client.topics = make(map[string]bool)

	if clients, ok := h.users[client.UserID]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.Outbound)
		}
		if len(clients) == 0 {
			delete(h.users, client.UserID)
		}
	}

	h.logger.Debugw("notify client removed", "clientID", client.ID)
}

// Broadcast delivers the event to every subscriber currently attached to
// the topic.
func (h *Hub) Broadcast(topic string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[topic] {
		h.send(client, event)
	}
}

// Directed delivers the event only to subscribers attached under userID's
// private mailbox.
func (h *Hub) Directed(userID int64, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.users[userID] {
		h.send(client, event)
	}
}

func (h *Hub) send(client *Client, event Event) {
	select {
	case client.Outbound <- event:
	default:
		h.logger.Warnw("notify client buffer full, dropping event",
			"clientID", client.ID, "kind", event.Kind, "placeID", event.PlaceID)
	}
}

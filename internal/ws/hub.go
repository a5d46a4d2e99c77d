package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// userEvent is an internal struct for routing events to a user's room
type userEvent struct {
	UserID uuid.UUID
	Event  Event
}

// Hub maintains the set of active clients and broadcasts order events to
// them. Customers join a room keyed by their user ID; admin connections
// join a shared room that receives every event.
type Hub struct {
	// Registered customer clients by user ID
	rooms map[uuid.UUID]map[*Client]bool

	// Admin clients receive all events
	admins map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *userEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		admins:     make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *userEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if client.admin {
				h.admins[client] = true
			} else {
				if h.rooms[client.userID] == nil {
					h.rooms[client.userID] = make(map[*Client]bool)
				}
				h.rooms[client.userID][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range h.rooms[event.UserID] {
				h.deliver(client, message)
			}
			for client := range h.admins {
				h.deliver(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver sends a message to one client; a full send buffer drops the
// client. Caller holds the lock.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		h.drop(client)
	}
}

// drop removes a client and cleans up its room. Caller holds the lock.
func (h *Hub) drop(client *Client) {
	if client.admin {
		if _, ok := h.admins[client]; ok {
			delete(h.admins, client)
			close(client.send)
		}
		return
	}
	if clients, ok := h.rooms[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)
			// Clean up empty rooms
			if len(clients) == 0 {
				delete(h.rooms, client.userID)
			}
		}
	}
}

// BroadcastToUser sends an event to the user's connections and to every
// admin connection. This is the public API for handlers to broadcast.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event Event) {
	h.broadcast <- &userEvent{
		UserID: userID,
		Event:  event,
	}
}

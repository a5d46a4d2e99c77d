package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

func mockAdminClient(hub *Hub) *Client {
	return &Client{
		hub:   hub,
		admin: true,
		send:  make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	client := mockClient(hub, userID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[userID] == nil {
		t.Fatal("user room not created")
	}
	if !hub.rooms[userID][client] {
		t.Fatal("client not registered in user room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	client := mockClient(hub, userID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[userID] != nil {
		t.Fatal("user room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	user1 := uuid.New()
	user2 := uuid.New()

	client1 := mockClient(hub, user1)
	client2 := mockClient(hub, user2)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"order_number":"NT-2026-000042"}`)
	event := Event{
		Type:    "order.created",
		Payload: testPayload,
	}
	hub.BroadcastToUser(user1, event)

	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.created" {
			t.Errorf("expected type 'order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not have received another user's event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsOfSameUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Same account logged in on three devices
	userID := uuid.New()
	client1 := mockClient(hub, userID)
	client2 := mockClient(hub, userID)
	client3 := mockClient(hub, userID)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	event := Event{
		Type:    "order.status_changed",
		Payload: json.RawMessage(`{"status":"SHIPPED"}`),
	}
	hub.BroadcastToUser(userID, event)

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.status_changed" {
				t.Errorf("client%d: expected type 'order.status_changed', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestAdminReceivesAllEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	user1 := uuid.New()
	user2 := uuid.New()
	customer := mockClient(hub, user1)
	admin := mockAdminClient(hub)

	hub.register <- customer
	hub.register <- admin
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToUser(user1, Event{Type: "order.created", Payload: json.RawMessage(`{}`)})
	hub.BroadcastToUser(user2, Event{Type: "order.status_changed", Payload: json.RawMessage(`{}`)})

	// Admin sees both events even though no client is registered for user2.
	for _, wantType := range []string{"order.created", "order.status_changed"} {
		select {
		case msg := <-admin.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("failed to unmarshal: %v", err)
			}
			if received.Type != wantType {
				t.Errorf("admin event type: got '%s', want '%s'", received.Type, wantType)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("admin did not receive '%s'", wantType)
		}
	}

	// The customer only sees their own event.
	select {
	case <-customer.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("customer did not receive their own event")
	}
	select {
	case <-customer.send:
		t.Fatal("customer should not receive another user's event")
	case <-time.After(50 * time.Millisecond):
		// Expected
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	userID := uuid.New()
	client1 := mockClient(hub, userID)
	client2 := mockClient(hub, userID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[userID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[userID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[userID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[userID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[userID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestAdminUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	admin := mockAdminClient(hub)
	hub.register <- admin
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- admin
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if len(hub.admins) != 0 {
		t.Fatalf("admin clients left: %d, want 0", len(hub.admins))
	}
}

func TestBroadcastToUnknownUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	user1 := uuid.New()
	client1 := mockClient(hub, user1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToUser(uuid.New(), Event{
		Type:    "order.created",
		Payload: json.RawMessage(`{"test":"data"}`),
	})

	select {
	case <-client1.send:
		t.Fatal("client should not receive another user's event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}

package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/ws"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// orderEvent is the wire shape shared by the WebSocket and broker paths.
type orderEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        uuid.UUID `json:"user_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Total         string    `json:"total"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Broadcaster delivers events to live connections. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event ws.Event)
}

// Notifier pushes order events to the WebSocket hub and the message
// broker. Either side may be nil; a fully nil notifier is still safe.
type Notifier struct {
	hub Broadcaster
	pub *Publisher
}

func NewNotifier(hub Broadcaster, pub *Publisher) *Notifier {
	return &Notifier{hub: hub, pub: pub}
}

func (n *Notifier) OrderCreated(order database.Order) {
	n.send(EventOrderCreated, order)
}

func (n *Notifier) OrderStatusChanged(order database.Order) {
	n.send(EventOrderStatusChanged, order)
}

func (n *Notifier) send(eventType string, order database.Order) {
	event := orderEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         money(order.Total),
		OccurredAt:    time.Now().UTC(),
	}

	if n.hub != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("ERROR: encode %s event: %v", eventType, err)
			return
		}
		n.hub.BroadcastToUser(order.UserID, ws.Event{Type: eventType, Payload: payload})
	}

	if n.pub != nil {
		// The broker publish must never hold up the request path.
		go func() {
			if err := n.pub.Publish(eventType, event); err != nil {
				log.Printf("ERROR: %v", err)
			}
		}()
	}
}

func money(num pgtype.Numeric) string {
	if !num.Valid {
		return "0.00"
	}
	val, err := num.Value()
	if err != nil {
		return "0.00"
	}
	s, ok := val.(string)
	if !ok {
		return "0.00"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

package events

import (
	"encoding/json"
	"sync"
	"time"

	"courtbook/internal/models"
)

// Reservation lifecycle event types.
const (
	ReservationCreated     = "reservation.created"
	ReservationCancelled   = "reservation.cancelled"
	ReservationRescheduled = "reservation.rescheduled"
	ReservationPaid        = "reservation.payment_updated"
	ReservationsCompleted  = "reservation.completed"
)

// Event represents a lightweight domain event.
type Event struct {
	Type          string
	ReservationID int64
	ResourceID    int64
	Payload       []byte
	CreatedAt     time.Time
}

// ReservationPayload is the JSON body of reservation events.
type ReservationPayload struct {
	Reservation models.Reservation `json:"reservation"`
	FeeCents    int64              `json:"fee_cents,omitempty"`
	Completed   int64              `json:"completed,omitempty"`
}

// NewReservationEvent builds an event carrying r as its payload.
func NewReservationEvent(eventType string, r models.Reservation, feeCents int64) Event {
	payload, _ := json.Marshal(ReservationPayload{Reservation: r, FeeCents: feeCents})
	return Event{
		Type:          eventType,
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		Payload:       payload,
	}
}

// Decode unmarshals a reservation payload.
func (e Event) Decode() (ReservationPayload, error) {
	var p ReservationPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(Event, error)
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets a callback for handler failures.
func (b *EventBus) OnError(fn func(Event, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type. "*" receives every event.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers["*"]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

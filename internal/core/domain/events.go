package domain

import "time"

const (
	EventSaleCreated    = "sale.created"
	EventStockChanged   = "stock.changed"
	EventProductUpdated = "product.updated"
)

// Event is the envelope broadcast to subscribers after a committed state
// change. Delivery is best-effort; nothing in the core depends on it.
type Event struct {
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func NewSaleCreatedEvent(sale *Sale) Event {
	return Event{Name: EventSaleCreated, OccurredAt: time.Now().UTC(), Payload: sale}
}

func NewStockChangedEvent(product *Product) Event {
	return Event{Name: EventStockChanged, OccurredAt: time.Now().UTC(), Payload: product}
}

func NewProductUpdatedEvent(product *Product) Event {
	return Event{Name: EventProductUpdated, OccurredAt: time.Now().UTC(), Payload: product}
}

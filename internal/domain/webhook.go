package domain

import "time"

// Webhook events emitted for an assets list.
const (
	EventPriceUpdated     = "price.updated"
	EventMaxSupplyChanged = "max_supply.changed"
)

// Webhook represents a subscription to the events of one assets list.
type Webhook struct {
	WebhookID string
	ListID    string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

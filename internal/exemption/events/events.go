// Package events announces durable exemption changes to downstream systems
// (invoicing, CRM, tax reporting). Publishing is best effort: a failed publish
// never changes a verdict.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an exemption event.
type Type string

const (
	// TypeExemptionApplied fires when an order is finalized as exempt.
	TypeExemptionApplied Type = "exemption_applied"
	// TypeCustomerIdentifierUpdated fires when a customer's profile identifier changes.
	TypeCustomerIdentifierUpdated Type = "customer_identifier_updated"
)

// Event is the payload published for every exemption change.
type Event struct {
	ID                 uuid.UUID `json:"id"`
	Type               Type      `json:"type"`
	OrderID            string    `json:"order_id,omitempty"`
	CustomerID         string    `json:"customer_id,omitempty"`
	Identifier         string    `json:"identifier"`
	IdentifierCountry  string    `json:"identifier_country,omitempty"`
	BillingCountry     string    `json:"billing_country,omitempty"`
	ShippingCountry    string    `json:"shipping_country,omitempty"`
	HomeCountry        string    `json:"home_country,omitempty"`
	Exempt             bool      `json:"exempt"`
	PreviousIdentifier string    `json:"previous_identifier,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// Key partitions events by the entity they describe.
func (e Event) Key() string {
	if e.OrderID != "" {
		return "order:" + e.OrderID
	}
	return "customer:" + e.CustomerID
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// New stamps an event with a fresh id and occurrence time.
func New(typ Type, at time.Time) Event {
	return Event{ID: uuid.New(), Type: typ, OccurredAt: at}
}

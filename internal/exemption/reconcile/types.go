package reconcile

import (
	"context"

	"vatguard/internal/exemption/decision"
	"vatguard/internal/exemption/identifier"
)

// Trigger names the lifecycle event that asked for a reconciliation pass.
type Trigger string

const (
	TriggerIdentifierChanged   Trigger = "identifier_changed"
	TriggerOrderFinalizing     Trigger = "order_finalizing"
	TriggerOrderStatusChanged  Trigger = "order_status_changed"
	TriggerTotalsRecalculating Trigger = "totals_recalculating"
	TriggerPaymentCallback     Trigger = "payment_callback"
	TriggerRequestStart        Trigger = "request_start"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerIdentifierChanged, TriggerOrderFinalizing, TriggerOrderStatusChanged,
		TriggerTotalsRecalculating, TriggerPaymentCallback, TriggerRequestStart:
		return true
	default:
		return false
	}
}

// LiveState is the host's in-flight "customer is exempt" flag, which other
// actors may overwrite at any time.
type LiveState interface {
	IsExempt() bool
	SetExempt(exempt bool)
}

// Source says where the reconciled verdict came from.
type Source string

const (
	SourceOrder    Source = "order"
	SourceSession  Source = "session"
	SourceDisabled Source = "disabled"
	SourceSkipped  Source = "skipped"
)

// Input is everything needed to evaluate a transaction without persistence.
type Input struct {
	Identifier         string
	BillingCountry     string
	ShippingCountry    string
	FulfillmentMethods []string
}

// Evaluation pairs a verdict with the validation outcome that produced it.
type Evaluation struct {
	Verdict    decision.Verdict   `json:"verdict"`
	Validation identifier.Outcome `json:"validation"`
}

// Request describes one reconciliation pass.
type Request struct {
	Trigger    Trigger
	SessionID  string
	CustomerID string
	OrderID    string
	// Identifier is the value the customer just submitted. Nil means nothing
	// was submitted in this request and stored values apply.
	Identifier         *string
	BillingCountry     string
	ShippingCountry    string
	FulfillmentMethods []string
	Live               LiveState
	// Recalculate asks the host to recompute totals after a live correction.
	// Optional.
	Recalculate func(ctx context.Context) error
}

// Result reports what one pass decided and did.
type Result struct {
	Verdict      decision.Verdict `json:"verdict"`
	Source       Source           `json:"source"`
	Changed      bool             `json:"changed"`
	Recalculated bool             `json:"recalculated"`
	Warnings     []string         `json:"warnings,omitempty"`
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

package handler

import (
	"vatguard/internal/exemption/decision"
	"vatguard/internal/exemption/identifier"
	"vatguard/internal/exemption/reconcile"
)

type validateRequest struct {
	Identifier string `json:"identifier"`
}

type validateResponse struct {
	identifier.Outcome
	Message string `json:"message,omitempty"`
}

type evaluateRequest struct {
	Identifier         string   `json:"identifier"`
	BillingCountry     string   `json:"billing_country"`
	ShippingCountry    string   `json:"shipping_country"`
	FulfillmentMethods []string `json:"fulfillment_methods"`
}

type evaluateResponse struct {
	Exempt     bool               `json:"exempt"`
	Rule       decision.Rule      `json:"rule"`
	Reasons    []decision.Reason  `json:"reasons"`
	Validation identifier.Outcome `json:"validation"`
}

// reconcileRequest carries the host's live flag in Exempt. Nested marks a
// call made from inside the host's own recalculation.
type reconcileRequest struct {
	Trigger            reconcile.Trigger `json:"trigger"`
	SessionID          string            `json:"session_id"`
	CustomerID         string            `json:"customer_id"`
	OrderID            string            `json:"order_id"`
	Identifier         *string           `json:"identifier"`
	BillingCountry     string            `json:"billing_country"`
	ShippingCountry    string            `json:"shipping_country"`
	FulfillmentMethods []string          `json:"fulfillment_methods"`
	Exempt             bool              `json:"exempt"`
	Nested             bool              `json:"nested"`
}

type reconcileResponse struct {
	Exempt      bool              `json:"exempt"`
	Changed     bool              `json:"changed"`
	Recalculate bool              `json:"recalculate"`
	Source      reconcile.Source  `json:"source"`
	Rule        decision.Rule     `json:"rule,omitempty"`
	Reasons     []decision.Reason `json:"reasons"`
	Warnings    []string          `json:"warnings,omitempty"`
}

type overrideRequest struct {
	Current bool   `json:"current"`
	OrderID string `json:"order_id"`
}

type overrideResponse struct {
	Exempt bool `json:"exempt"`
}

type statusResponse struct {
	Disabled bool `json:"disabled"`
}

// liveFlag is the host's live exemption flag for the duration of one call.
type liveFlag struct {
	exempt bool
}

func (l *liveFlag) IsExempt() bool { return l.exempt }

func (l *liveFlag) SetExempt(exempt bool) { l.exempt = exempt }

func reasonsOrEmpty(r []decision.Reason) []decision.Reason {
	if r == nil {
		return []decision.Reason{}
	}
	return r
}

// Package decision maps a validated identifier and the transaction's countries
// and fulfillment methods to an exemption verdict.
//
// Domain purity: no I/O, no context.Context, no clock. Decide is total over its
// input and deterministic, so it can be re-run on every lifecycle trigger.
package decision

import (
	"strings"

	"vatguard/internal/exemption/identifier"
	pstrings "vatguard/pkg/platform/strings"
)

// DefaultPickupMethods is the in-person pickup set used when none is configured.
var DefaultPickupMethods = []string{"local_pickup"}

// Rule names the rule that settled a verdict.
type Rule string

const (
	RuleFeatureDisabled    Rule = "feature_disabled"
	RuleIdentifierRequired Rule = "identifier_required"
	RuleIdentifierAbsent   Rule = "identifier_absent"
	RuleIdentifierInvalid  Rule = "identifier_invalid"
	RuleBillingMismatch    Rule = "billing_mismatch"
	RuleShippingMismatch   Rule = "shipping_mismatch"
	RulePickup             Rule = "pickup"
	RuleDomestic           Rule = "domestic"
	RuleExempt             Rule = "exempt"
	// RuleRecorded marks a verdict replayed from a persisted order record.
	// Decide never returns it.
	RuleRecorded Rule = "recorded"
)

// Field identifies which input a Reason refers to.
const (
	FieldIdentifier = "identifier"
	FieldBilling    = "billing_country"
	FieldShipping   = "shipping_country"
)

// Reason is one user-facing explanation of a non-exempt verdict.
type Reason struct {
	Kind    identifier.ErrorKind `json:"kind"`
	Field   string               `json:"field"`
	Message string               `json:"message"`
}

// Verdict is the single source of truth for "should this transaction be
// exempt right now". Reasons are ordered by precedence.
type Verdict struct {
	Exempt  bool     `json:"exempt"`
	Rule    Rule     `json:"rule"`
	Reasons []Reason `json:"reasons,omitempty"`
}

// Messages returns the ordered user-facing messages.
func (v Verdict) Messages() []string {
	out := make([]string, 0, len(v.Reasons))
	for _, r := range v.Reasons {
		out = append(out, r.Message)
	}
	return out
}

// Context is assembled fresh for every decision and never persisted.
type Context struct {
	Identifier         identifier.Outcome
	BillingCountry     string
	ShippingCountry    string
	FulfillmentMethods []string
	HomeCountry        string
	FeatureEnabled     bool
	IdentifierRequired bool
	// PickupMethods defaults to DefaultPickupMethods when empty.
	PickupMethods []string
}

// Decide applies the exemption rules in order; the first rule that matches
// settles the verdict. Order matters for user-facing error precedence.
func Decide(ctx Context) Verdict {
	// Rule 1: feature off short-circuits everything
	if !ctx.FeatureEnabled {
		return Verdict{Rule: RuleFeatureDisabled}
	}

	// Rule 2: identifier required but absent
	if !ctx.Identifier.Supplied {
		if ctx.IdentifierRequired {
			return rejected(RuleIdentifierRequired, identifier.ErrorRequired, FieldIdentifier, identifier.ErrorRequired.Message())
		}
		return Verdict{Rule: RuleIdentifierAbsent}
	}

	// Rule 3: identifier present but invalid
	if !ctx.Identifier.Valid || ctx.Identifier.Normalized == nil {
		kind := ctx.Identifier.Reason
		if kind == identifier.ErrorNone {
			kind = identifier.ErrorInvalidFormat
		}
		return rejected(RuleIdentifierInvalid, kind, FieldIdentifier, kind.Message())
	}

	idCountry := ctx.Identifier.Normalized.Country()
	billing := normalizeCountry(ctx.BillingCountry)
	shipping := normalizeCountry(ctx.ShippingCountry)

	// Rule 4: billing country must match the identifier's country
	if billing != "" && billing != idCountry {
		return rejected(RuleBillingMismatch, identifier.ErrorCountryMismatch, FieldBilling,
			"The billing country must match the country of the VAT number.")
	}

	// Rule 5: shipping (or billing when shipping is absent) must match
	effective := shipping
	if effective == "" {
		effective = billing
	}
	if effective != "" && effective != idCountry {
		return rejected(RuleShippingMismatch, identifier.ErrorCountryMismatch, FieldShipping,
			"The shipping country must match the country of the VAT number.")
	}

	// Rule 6: in-person pickup never qualifies (silent business rule)
	if hasPickup(ctx.FulfillmentMethods, ctx.PickupMethods) {
		return Verdict{Rule: RulePickup}
	}

	// Rule 7: domestic transactions are never exempt
	if idCountry == normalizeCountry(ctx.HomeCountry) {
		return Verdict{Rule: RuleDomestic}
	}

	return Verdict{Exempt: true, Rule: RuleExempt}
}

func rejected(rule Rule, kind identifier.ErrorKind, field, message string) Verdict {
	return Verdict{
		Rule:    rule,
		Reasons: []Reason{{Kind: kind, Field: field, Message: message}},
	}
}

func normalizeCountry(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// ExpandMethods unions method ids with their method types, so "flat_rate:2"
// yields both "flat_rate:2" and "flat_rate".
func ExpandMethods(methods []string) []string {
	expanded := make([]string, 0, len(methods)*2)
	for _, m := range methods {
		expanded = append(expanded, m)
		if typ, _, ok := strings.Cut(m, ":"); ok {
			expanded = append(expanded, typ)
		}
	}
	return pstrings.DedupeAndTrimLower(expanded)
}

func hasPickup(methods, pickup []string) bool {
	if len(pickup) == 0 {
		pickup = DefaultPickupMethods
	}
	set := make(map[string]struct{}, len(pickup))
	for _, p := range pstrings.DedupeAndTrimLower(pickup) {
		set[p] = struct{}{}
	}
	for _, m := range ExpandMethods(methods) {
		if _, ok := set[m]; ok {
			return true
		}
	}
	return false
}

// Package registry confirms tax identifiers against the external member-state
// registry (VIES). Adapters are composable decorators around the Checker port:
//
//	checker := registry.NewCachingChecker(
//		registry.NewBreakerChecker(registry.NewVIESClient(baseURL, timeout), breaker, logger),
//		registry.NewMemoryCache(ttl),
//	)
//
// Only definitive business answers are ever reported as StatusRegistered or
// StatusNotRegistered. Every infrastructure failure surfaces as an error or
// StatusUnknown so the validator can degrade to format-only validation.
package registry

import "context"

// Status is the registry's answer for one identifier.
type Status int

const (
	// StatusUnknown means the registry could not give a definitive answer.
	StatusUnknown Status = iota
	// StatusRegistered means the registry confirmed the identifier is active.
	StatusRegistered
	// StatusNotRegistered means the registry confirmed the identifier is invalid.
	StatusNotRegistered
)

func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusNotRegistered:
		return "not_registered"
	default:
		return "unknown"
	}
}

// Definitive reports whether s is a business answer worth caching.
func (s Status) Definitive() bool {
	return s == StatusRegistered || s == StatusNotRegistered
}

// Checker looks up an identifier keyed by (country prefix, body).
type Checker interface {
	Lookup(ctx context.Context, countryCode, number string) (Status, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, countryCode, number string) (Status, error)

// Lookup calls f.
func (f CheckerFunc) Lookup(ctx context.Context, countryCode, number string) (Status, error) {
	return f(ctx, countryCode, number)
}

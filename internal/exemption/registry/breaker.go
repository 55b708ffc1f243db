package registry

import (
	"context"
	"log/slog"

	"vatguard/pkg/platform/circuit"
)

// BreakerChecker short-circuits lookups while the upstream is failing so a
// registry outage costs checkout nothing but a log line.
type BreakerChecker struct {
	next    Checker
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewBreakerChecker wraps next with breaker. A nil logger discards transitions.
func NewBreakerChecker(next Checker, breaker *circuit.Breaker, logger *slog.Logger) *BreakerChecker {
	if breaker == nil {
		breaker = circuit.New("registry")
	}
	return &BreakerChecker{next: next, breaker: breaker, logger: logger}
}

// Lookup implements Checker.
func (b *BreakerChecker) Lookup(ctx context.Context, countryCode, number string) (Status, error) {
	if !b.breaker.Allow() {
		return StatusUnknown, circuit.ErrOpen
	}

	status, err := b.next.Lookup(ctx, countryCode, number)
	if err != nil {
		// Caller cancellation says nothing about upstream health.
		if ctx.Err() != nil && GetCategory(err) != ErrorTimeout {
			return status, err
		}
		if _, change := b.breaker.RecordFailure(); change.Opened && b.logger != nil {
			b.logger.WarnContext(ctx, "registry circuit opened",
				"breaker", b.breaker.Name(),
				"error", err,
			)
		}
		return status, err
	}

	if _, change := b.breaker.RecordSuccess(); change.Closed && b.logger != nil {
		b.logger.InfoContext(ctx, "registry circuit closed", "breaker", b.breaker.Name())
	}
	return status, nil
}

// Package reconcile keeps the exemption verdict stable across a checkout and
// order lifetime. It is the only component that writes verdicts back to the
// host's live state, and it re-derives them on every lifecycle trigger so a
// competing actor's overwrite is corrected on the next pass.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vatguard/internal/exemption/decision"
	"vatguard/internal/exemption/events"
	"vatguard/internal/exemption/identifier"
	"vatguard/internal/exemption/metrics"
	"vatguard/internal/exemption/state"
	dErrors "vatguard/pkg/domain-errors"
	"vatguard/pkg/requestcontext"
)

// Validator validates raw identifiers.
type Validator interface {
	Validate(ctx context.Context, raw string, policy identifier.Policy) identifier.Outcome
}

// Controller runs reconciliation passes. It holds no per-request state; all
// durable state lives in the store, so one Controller serves every request.
type Controller struct {
	validator Validator
	records   *state.Records
	settings  SettingsSource
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	clock     func(ctx context.Context) time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithPublisher sets the event publisher. Without one, no events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.clock = func(context.Context) time.Time { return now() }
		}
	}
}

// New creates a Controller.
func New(validator Validator, store state.Store, settings SettingsSource, opts ...Option) *Controller {
	c := &Controller{
		validator: validator,
		records:   state.NewRecords(store),
		settings:  settings,
		logger:    slog.Default(),
		tracer:    otel.Tracer("vatguard/reconcile"),
		clock:     requestcontext.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsFeatureDisabled reports whether the merchant has switched exemptions off.
func (c *Controller) IsFeatureDisabled(ctx context.Context) bool {
	return !c.settings.Settings(ctx).FeatureEnabled
}

// Evaluate validates the identifier and decides, without touching state.
// The validation outcome is returned even when the feature is disabled so
// hosts can still display format errors.
func (c *Controller) Evaluate(ctx context.Context, in Input) Evaluation {
	ctx, span := c.tracer.Start(ctx, "exemption.evaluate")
	defer span.End()
	return c.evaluate(ctx, c.settings.Settings(ctx), in)
}

func (c *Controller) evaluate(ctx context.Context, settings Settings, in Input) Evaluation {
	outcome := c.validator.Validate(ctx, in.Identifier, identifier.Policy{
		Required:      settings.IdentifierRequired,
		CheckRegistry: settings.RegistryCheckEnabled && settings.FeatureEnabled,
	})
	verdict := decision.Decide(decision.Context{
		Identifier:         outcome,
		BillingCountry:     in.BillingCountry,
		ShippingCountry:    in.ShippingCountry,
		FulfillmentMethods: in.FulfillmentMethods,
		HomeCountry:        settings.HomeCountry,
		FeatureEnabled:     settings.FeatureEnabled,
		IdentifierRequired: settings.IdentifierRequired,
		PickupMethods:      settings.PickupMethods,
	})
	c.metrics.IncrementDecision(string(verdict.Rule), verdict.Exempt)
	return Evaluation{Verdict: verdict, Validation: outcome}
}

// ValidateIdentifier validates raw under the current settings without
// deciding. Used for inline form feedback.
func (c *Controller) ValidateIdentifier(ctx context.Context, raw string) identifier.Outcome {
	settings := c.settings.Settings(ctx)
	return c.validator.Validate(ctx, raw, identifier.Policy{
		Required:      settings.IdentifierRequired,
		CheckRegistry: settings.RegistryCheckEnabled && settings.FeatureEnabled,
	})
}

// EndSession discards the session's identifier and verdict. It is the only
// deletion path in the engine.
func (c *Controller) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "session id is required")
	}
	if err := c.records.Clear(ctx, state.ScopeSession, sessionID); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear session exemption state",
			"session_id", sessionID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear session")
	}
	return nil
}

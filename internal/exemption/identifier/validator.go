package identifier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vatguard/internal/exemption/metrics"
	"vatguard/internal/exemption/registry"
	"vatguard/pkg/platform/circuit"
)

// DefaultRegistryTimeout bounds a single registry lookup.
const DefaultRegistryTimeout = 5 * time.Second

// RegistryCheck describes what the registry contributed to an outcome.
type RegistryCheck string

const (
	RegistrySkipped   RegistryCheck = "skipped"
	RegistryConfirmed RegistryCheck = "confirmed"
	RegistryRejected  RegistryCheck = "rejected"
	// RegistryDegraded means the registry was unreachable and the identifier
	// passed on format rules alone.
	RegistryDegraded RegistryCheck = "degraded"
)

// Outcome is the immutable result of one validation call.
type Outcome struct {
	Valid      bool          `json:"valid"`
	Supplied   bool          `json:"supplied"`
	Normalized *Identifier   `json:"normalized,omitempty"`
	Reason     ErrorKind     `json:"reason,omitempty"`
	Registry   RegistryCheck `json:"registry"`
}

// Policy carries the caller's requirements for one validation.
type Policy struct {
	Required      bool
	CheckRegistry bool
}

// Validator turns raw user input into a validated Identifier.
type Validator struct {
	checker registry.Checker
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Validator.
type Option func(*Validator)

// WithChecker enables registry confirmation through c.
func WithChecker(c registry.Checker) Option {
	return func(v *Validator) {
		v.checker = c
	}
}

// WithTimeout bounds each registry lookup.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithLogger sets the logger used for degrade events.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) {
		v.metrics = m
	}
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(v *Validator) {
		if t != nil {
			v.tracer = t
		}
	}
}

// NewValidator creates a validator. Without WithChecker it validates format only.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		timeout: DefaultRegistryTimeout,
		tracer:  otel.Tracer("vatguard/identifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate normalizes raw and checks it against the member-state rules.
// Registry infrastructure failures never fail validation: they degrade to
// format-only validation. Only a confirmed-invalid registry answer rejects.
func (v *Validator) Validate(ctx context.Context, raw string, policy Policy) Outcome {
	normalized := Normalize(raw)
	if normalized == "" {
		out := Outcome{Registry: RegistrySkipped}
		if policy.Required {
			out.Reason = ErrorRequired
		}
		return out
	}

	id, ok := Split(normalized)
	if !ok || !IsMemberPrefix(id.CountryPrefix) {
		return Outcome{Supplied: true, Reason: ErrorUnsupportedCountry, Registry: RegistrySkipped}
	}
	if !formats[id.CountryPrefix].MatchString(id.Body) {
		return Outcome{Supplied: true, Normalized: &id, Reason: ErrorInvalidFormat, Registry: RegistrySkipped}
	}

	out := Outcome{Valid: true, Supplied: true, Normalized: &id, Registry: RegistrySkipped}
	if !policy.CheckRegistry || v.checker == nil {
		return out
	}

	switch v.lookup(ctx, id) {
	case registry.StatusRegistered:
		out.Registry = RegistryConfirmed
	case registry.StatusNotRegistered:
		out.Valid = false
		out.Reason = ErrorNotRegistered
		out.Registry = RegistryRejected
	default:
		out.Registry = RegistryDegraded
	}
	return out
}

func (v *Validator) lookup(ctx context.Context, id Identifier) registry.Status {
	ctx, span := v.tracer.Start(ctx, "identifier.registry_lookup",
		trace.WithAttributes(attribute.String("vat.country_prefix", id.CountryPrefix)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	status, err := v.checker.Lookup(ctx, id.CountryPrefix, id.Body)
	elapsed := time.Since(start)

	if err != nil {
		result := "error"
		if errors.Is(err, circuit.ErrOpen) {
			result = "circuit_open"
		}
		v.metrics.ObserveRegistryLookup(result, elapsed)
		span.SetAttributes(attribute.String("vat.registry_result", result))
		if v.logger != nil {
			v.logger.WarnContext(ctx, "registry lookup degraded to format-only validation",
				"country_prefix", id.CountryPrefix,
				"category", registry.GetCategory(err),
				"retryable", registry.IsRetryable(err),
				"duration_ms", elapsed.Milliseconds(),
				"error", err,
			)
		}
		return registry.StatusUnknown
	}

	v.metrics.ObserveRegistryLookup(status.String(), elapsed)
	span.SetAttributes(attribute.String("vat.registry_result", status.String()))
	return status
}

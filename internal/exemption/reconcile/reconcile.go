package reconcile

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vatguard/internal/exemption/decision"
	"vatguard/internal/exemption/events"
	"vatguard/internal/exemption/identifier"
	"vatguard/internal/exemption/state"
	dErrors "vatguard/pkg/domain-errors"
)

// Reconcile is the idempotent entry point for every lifecycle trigger. It
// re-derives the verdict from the authoritative source, corrects live state
// when it disagrees, and persists what the trigger calls for. Storage and
// publishing failures are reported as warnings; the only errors are
// malformed requests.
func (c *Controller) Reconcile(ctx context.Context, req Request) (*Result, error) {
	if req.Live == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "live state is required")
	}
	if !req.Trigger.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown trigger %q", req.Trigger))
	}

	ctx, span := c.tracer.Start(ctx, "exemption.reconcile", trace.WithAttributes(
		attribute.String("exemption.trigger", string(req.Trigger)),
		attribute.Bool("exemption.nested", InRecalculation(ctx)),
	))
	defer span.End()

	settings := c.settings.Settings(ctx)
	res := c.pass(ctx, settings, req)

	span.SetAttributes(
		attribute.String("exemption.source", string(res.Source)),
		attribute.Bool("exemption.exempt", res.Verdict.Exempt),
		attribute.Bool("exemption.changed", res.Changed),
	)
	c.metrics.IncrementReconciliation(string(req.Trigger), string(res.Source))
	return res, nil
}

func (c *Controller) pass(ctx context.Context, settings Settings, req Request) *Result {
	if req.Trigger == TriggerRequestStart && !settings.OverrideCompetingExtensions {
		return &Result{Source: SourceSkipped}
	}

	// Disabled: nothing is exempt and nothing is persisted
	if !settings.FeatureEnabled {
		res := &Result{Source: SourceDisabled, Verdict: decision.Verdict{Rule: decision.RuleFeatureDisabled}}
		c.apply(ctx, req, res)
		return res
	}

	// Order path: an explicit persisted order verdict is authoritative
	if req.OrderID != "" {
		res := &Result{Source: SourceOrder}
		rec, err := c.records.Load(ctx, state.ScopeOrder, req.OrderID)
		if err != nil {
			c.persistenceFailure(ctx, res, "order_read", err)
		} else if exempt, explicit := orderVerdict(rec); explicit {
			res.Verdict = decision.Verdict{Exempt: exempt, Rule: decision.RuleRecorded}
			c.apply(ctx, req, res)
			return res
		}
	}

	return c.sessionPass(ctx, settings, req)
}

func (c *Controller) sessionPass(ctx context.Context, settings Settings, req Request) *Result {
	res := &Result{Source: SourceSession}

	raw, profile := c.resolveIdentifier(ctx, req, res)
	eval := c.evaluate(ctx, settings, Input{
		Identifier:         raw,
		BillingCountry:     req.BillingCountry,
		ShippingCountry:    req.ShippingCountry,
		FulfillmentMethods: req.FulfillmentMethods,
	})
	res.Verdict = eval.Verdict
	c.apply(ctx, req, res)

	canonical := canonicalIdentifier(raw, eval.Validation)

	if req.SessionID != "" {
		// A submitted blank is written too, so later passes cannot fall back
		// to an older session value or the profile pre-fill.
		if req.Identifier != nil {
			if err := c.records.SaveIdentifier(ctx, state.ScopeSession, req.SessionID, canonical); err != nil {
				c.persistenceFailure(ctx, res, "session", err)
			}
		}
		if err := c.records.SaveFlag(ctx, state.ScopeSession, req.SessionID, state.FlagOf(res.Verdict.Exempt)); err != nil {
			c.persistenceFailure(ctx, res, "session", err)
		}
	}

	if req.Trigger == TriggerOrderFinalizing && req.OrderID != "" && canonical != "" {
		c.finalize(ctx, settings, req, res, canonical, eval.Validation, profile)
	}
	return res
}

// resolveIdentifier picks the identifier for this pass: the submitted value,
// else the session's (including a cleared one), else the customer profile's.
// The profile only pre-fills a session that never stored an identifier. It
// also returns the profile value so finalization can tell whether it changed.
func (c *Controller) resolveIdentifier(ctx context.Context, req Request, res *Result) (raw string, profile string) {
	if req.CustomerID != "" {
		rec, err := c.records.Load(ctx, state.ScopeCustomer, req.CustomerID)
		if err != nil {
			c.persistenceFailure(ctx, res, "customer_read", err)
		} else {
			profile = rec.Identifier
		}
	}

	if req.Identifier != nil {
		return *req.Identifier, profile
	}
	if req.SessionID != "" {
		id, found, err := c.records.LoadIdentifier(ctx, state.ScopeSession, req.SessionID)
		if err != nil {
			c.persistenceFailure(ctx, res, "session_read", err)
		} else if found {
			return id, profile
		}
	}
	return profile, profile
}

// finalize writes the order record and refreshes the customer profile. Only
// an exempt order is announced as exemption_applied; a profile change is
// announced either way. After this the order record is authoritative.
func (c *Controller) finalize(ctx context.Context, settings Settings, req Request, res *Result, canonical string, outcome identifier.Outcome, profile string) {
	rec := state.Record{Identifier: canonical, Exempt: state.FlagOf(res.Verdict.Exempt)}
	if err := c.records.Save(ctx, state.ScopeOrder, req.OrderID, rec); err != nil {
		c.persistenceFailure(ctx, res, "order", err)
		return
	}

	country := ""
	if outcome.Normalized != nil {
		country = outcome.Normalized.Country()
	}

	if res.Verdict.Exempt {
		applied := events.New(events.TypeExemptionApplied, c.clock(ctx))
		applied.OrderID = req.OrderID
		applied.CustomerID = req.CustomerID
		applied.Identifier = canonical
		applied.IdentifierCountry = country
		applied.BillingCountry = req.BillingCountry
		applied.ShippingCountry = req.ShippingCountry
		applied.HomeCountry = settings.HomeCountry
		applied.Exempt = true
		c.publish(ctx, res, applied)
	}

	if req.CustomerID == "" || profile == canonical {
		return
	}
	if err := c.records.SaveIdentifier(ctx, state.ScopeCustomer, req.CustomerID, canonical); err != nil {
		c.persistenceFailure(ctx, res, "customer", err)
		return
	}
	updated := events.New(events.TypeCustomerIdentifierUpdated, c.clock(ctx))
	updated.CustomerID = req.CustomerID
	updated.OrderID = req.OrderID
	updated.Identifier = canonical
	updated.IdentifierCountry = country
	updated.PreviousIdentifier = profile
	updated.Exempt = res.Verdict.Exempt
	c.publish(ctx, res, updated)
}

// apply corrects live state when it disagrees with the verdict and, on a
// correction, asks the host to recalculate once per guarded call chain.
func (c *Controller) apply(ctx context.Context, req Request, res *Result) {
	if req.Live.IsExempt() == res.Verdict.Exempt {
		return
	}
	req.Live.SetExempt(res.Verdict.Exempt)
	res.Changed = true
	c.metrics.IncrementLiveCorrection(string(res.Source))
	c.logger.InfoContext(ctx, "live exemption state corrected",
		"trigger", string(req.Trigger),
		"source", string(res.Source),
		"rule", string(res.Verdict.Rule),
		"exempt", res.Verdict.Exempt,
	)

	if req.Recalculate == nil {
		return
	}
	res.Recalculated = c.recalculate(ctx, req, res)
}

func (c *Controller) recalculate(ctx context.Context, req Request, res *Result) bool {
	ctx = WithGuard(ctx)
	guard := guardFrom(ctx)
	if !guard.enter() {
		c.metrics.IncrementSuppressedRecalculation()
		return false
	}
	defer guard.exit()

	if err := req.Recalculate(ctx); err != nil {
		res.warn("recalculation failed: " + err.Error())
		c.logger.WarnContext(ctx, "recalculation after exemption correction failed",
			"trigger", string(req.Trigger),
			"error", err,
		)
		return false
	}
	return true
}

func (c *Controller) publish(ctx context.Context, res *Result, evt events.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, evt); err != nil {
		c.persistenceFailure(ctx, res, "event", err)
	}
}

func (c *Controller) persistenceFailure(ctx context.Context, res *Result, target string, err error) {
	res.warn(fmt.Sprintf("%s: %v", target, err))
	c.metrics.IncrementPersistenceFailure(target)
	c.logger.WarnContext(ctx, "exemption state persistence failed",
		"target", target,
		"error", err,
	)
}

// canonicalIdentifier is the form persisted for raw: the normalized
// identifier when it parsed, else the normalized input.
func canonicalIdentifier(raw string, outcome identifier.Outcome) string {
	if outcome.Normalized != nil {
		return outcome.Normalized.String()
	}
	return identifier.Normalize(raw)
}

package reconcile

import (
	"context"

	"vatguard/internal/exemption/state"
)

// Override is the hook for the host's per-order "is this order exempt"
// question. An explicit persisted order verdict wins outright; anything else
// passes current through unchanged. It never fails: read errors are logged
// and current is returned.
func (c *Controller) Override(ctx context.Context, current bool, orderID string) bool {
	if orderID == "" || c.IsFeatureDisabled(ctx) {
		c.metrics.IncrementOverride("passthrough")
		return current
	}

	rec, err := c.records.Load(ctx, state.ScopeOrder, orderID)
	if err != nil {
		c.metrics.IncrementOverride("error")
		c.logger.WarnContext(ctx, "order exemption record unreadable, passing through",
			"order_id", orderID,
			"error", err,
		)
		return current
	}

	exempt, explicit := orderVerdict(rec)
	if !explicit {
		c.metrics.IncrementOverride("passthrough")
		return current
	}
	c.metrics.IncrementOverride("order_record")
	return exempt
}

// orderVerdict reads an order record. "yes" only counts when the identifier
// it was granted for is recorded alongside it; a bare "yes" is deliberately
// treated as no record, since finalize always writes both values together.
func orderVerdict(rec state.Record) (exempt, explicit bool) {
	switch rec.Exempt {
	case state.FlagYes:
		return true, rec.Identifier != ""
	case state.FlagNo:
		return false, true
	default:
		return false, false
	}
}

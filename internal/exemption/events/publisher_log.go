package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a log-backed publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, evt Event) error {
	p.logger.InfoContext(ctx, "exemption event",
		"event_id", evt.ID.String(),
		"event_type", string(evt.Type),
		"order_id", evt.OrderID,
		"customer_id", evt.CustomerID,
		"identifier_country", evt.IdentifierCountry,
		"exempt", evt.Exempt,
	)
	return nil
}

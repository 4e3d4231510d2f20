package checkout

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	orphanedSessions  metric.Int64Counter
	unmatchedSessions metric.Int64Counter
	webhookRejected   metric.Int64Counter
	transitions       metric.Int64Counter
	duplicates        metric.Int64Counter
}

func newMetrics(meter metric.Meter, log *slog.Logger) *metrics {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			log.Warn("failed to create counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}
	return &metrics{
		orphanedSessions:  counter("checkout.orphaned_sessions", "Payment sessions created without a persisted order"),
		unmatchedSessions: counter("checkout.webhook.unmatched_sessions", "Verified webhooks that referenced no known order"),
		webhookRejected:   counter("checkout.webhook.rejected", "Webhooks rejected before processing"),
		transitions:       counter("checkout.order.transitions", "Order payment status transitions"),
		duplicates:        counter("checkout.signal.duplicates", "Completion signals for orders that were already final"),
	}
}

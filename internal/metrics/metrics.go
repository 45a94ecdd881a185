package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersim_orders_created_total",
		Help: "Total number of shipment orders successfully created.",
	})

	OrdersOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersim_orders_opened_total",
		Help: "Total number of orders advanced from CREATED to OPEN.",
	})

	OrdersFlaggedLateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersim_orders_flagged_late_total",
		Help: "Total number of orders flagged for simulated late delivery.",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersim_orders_completed_total",
		Help: "Total number of orders delivered and moved to COMPLETE.",
	})

	TrackingEventsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersim_tracking_events_sent_total",
		Help: "Total number of tracking events accepted by the remote API.",
	})

	OrdersSkippedUnmappedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersim_orders_skipped_unmapped_total",
		Help: "Total number of orders skipped due to an unmapped delivery method.",
	})

	OrdersPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ordersim_orders_purged_total",
		Help: "Total number of completed orders removed by the purge job.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersim_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)
)

// Push delivers the run's counters to a Pushgateway. Batch runs end
// before any scraper could reach them, so pushing is the only export
// path; a missing URL disables it.
func Push(gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	return push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		Push()
}

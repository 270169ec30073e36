package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters for monitoring the order lifecycle.
var (
	UploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_uploads_total",
			Help: "Total number of artifact uploads received",
		},
	)

	UploadsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_uploads_rejected_total",
			Help: "Total number of uploads rejected before an order was created",
		},
	)

	PaymentsConfirmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_payments_confirmed_total",
			Help: "Total number of verified payment confirmations",
		},
	)

	PaymentsMismatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_payments_mismatched_total",
			Help: "Total number of payment confirmations rejected on amount mismatch",
		},
	)

	PaymentsDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_payments_duplicate_total",
			Help: "Total number of duplicate payment confirmations swallowed",
		},
	)

	DispatchAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_dispatch_attempts_total",
			Help: "Total number of fulfillment dispatch attempts",
		},
	)

	DispatchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_dispatch_failures_total",
			Help: "Total number of failed fulfillment dispatch attempts",
		},
	)

	OrdersFulfilledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_fulfilled_total",
			Help: "Total number of orders fulfilled",
		},
	)

	OrdersAbandonedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_abandoned_total",
			Help: "Total number of orders abandoned",
		},
	)
)

// Register registers all collectors with the default registry.
// Must be called once at startup.
func Register() {
	prometheus.MustRegister(
		UploadsTotal,
		UploadsRejectedTotal,
		PaymentsConfirmedTotal,
		PaymentsMismatchedTotal,
		PaymentsDuplicateTotal,
		DispatchAttemptsTotal,
		DispatchFailuresTotal,
		OrdersFulfilledTotal,
		OrdersAbandonedTotal,
	)
}

// Handler exposes the default registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics holds the Prometheus collectors shared by the API server
// and the reminder worker. Collectors are registered on the default registry
// and exposed via promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_http_requests_total",
		Help: "HTTP requests processed, by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tontine_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	CyclesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tontine_cycles_created_total",
		Help: "Cycles opened through the API.",
	})

	PaymentsFannedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tontine_payments_fanned_out_total",
		Help: "Payment rows written during cycle fan-out.",
	})

	PaymentsMarkedPaid = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_payments_marked_paid_total",
		Help: "Payments settled, by gateway.",
	}, []string{"gateway"})

	CheckoutsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_checkouts_initiated_total",
		Help: "Gateway checkout sessions started or resumed.",
	}, []string{"outcome"})

	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_gateway_webhooks_total",
		Help: "Gateway notifications received, by transaction status.",
	}, []string{"status"})

	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_reminders_sent_total",
		Help: "Reminder deliveries attempted by the worker, by channel and result.",
	}, []string{"channel", "result"})

	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tontine_scheduled_task_runs_total",
		Help: "Scheduled task executions, by task name and outcome.",
	}, []string{"task", "status"})
)

// Handler exposes the default registry; mount it at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

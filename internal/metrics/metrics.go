// Package metrics defines the Prometheus series exported by the relay:
// HTTP traffic metrics (mirroring the teacher's middleware.Metrics) and
// the domain metrics the chain monitor emits on every tick.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge

	Submissions       *prometheus.CounterVec
	Rebroadcasts      *prometheus.CounterVec
	Inclusions        *prometheus.CounterVec
	TickErrors        *prometheus.CounterVec
	NonceTooLowEvents *prometheus.CounterVec
}

// New registers and returns the metrics set against the default registry,
// as the teacher's main.go does via promhttp.Handler().
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txrelay_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "txrelay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "txrelay_http_active_requests",
			Help: "Number of HTTP requests currently being served.",
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txrelay_submissions_total",
			Help: "Transactions accepted for relay, by chain.",
		}, []string{"chain"}),
		Rebroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txrelay_rebroadcasts_total",
			Help: "Fee-escalated re-broadcasts sent, by chain.",
		}, []string{"chain"}),
		Inclusions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txrelay_inclusions_total",
			Help: "Requests observed mined, by chain.",
		}, []string{"chain"}),
		TickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txrelay_tick_errors_total",
			Help: "Monitor ticks aborted by a non-recoverable error, by chain.",
		}, []string{"chain"}),
		NonceTooLowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txrelay_nonce_too_low_total",
			Help: "\"nonce too low\" responses treated as inclusion, by chain.",
		}, []string{"chain"}),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPActiveRequests,
		m.Submissions,
		m.Rebroadcasts,
		m.Inclusions,
		m.TickErrors,
		m.NonceTooLowEvents,
	)

	return m
}

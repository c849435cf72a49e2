// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	webhookVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushgate_webhook_verifications_total",
			Help: "Webhook signature verification results by outcome",
		},
		[]string{"outcome"},
	)

	deploysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushgate_deploys_total",
			Help: "Completed deploy invocations by status",
		},
		[]string{"status"},
	)

	deployDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pushgate_deploy_duration_seconds",
			Help:    "Deploy process run time in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	deploysInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushgate_deploys_in_flight",
			Help: "Number of deploy processes currently running",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordVerification(outcome string) {
	webhookVerifications.WithLabelValues(outcome).Inc()
}

func DeployStarted() {
	deploysInFlight.Inc()
}

func DeployFinished(status string, duration time.Duration) {
	deploysInFlight.Dec()
	deploysTotal.WithLabelValues(status).Inc()
	deployDuration.Observe(duration.Seconds())
}

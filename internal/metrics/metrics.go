// AngelaMos | 2026
// metrics.go

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supernova_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supernova_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Dispatch metrics
	EmailsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supernova_emails_sent_total",
			Help: "Total number of emails handed to the provider by type and result",
		},
		[]string{"type", "result"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supernova_dispatch_duration_seconds",
			Help:    "Time taken by one newsletter dispatch in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	// Content metrics, refreshed by the Collector
	ArticlesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supernova_articles_total",
			Help: "Published newsletter articles by minimum tier",
		},
		[]string{"min_tier"},
	)

	SubscribersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supernova_subscribers_total",
			Help: "Free list subscribers by confirmation state",
		},
		[]string{"confirmed"},
	)

	ActiveSubscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supernova_active_subscriptions_total",
			Help: "Paid subscriptions with an active payment status by tier",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(EmailsSentTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(ArticlesTotal)
	prometheus.MustRegister(SubscribersTotal)
	prometheus.MustRegister(ActiveSubscriptionsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}

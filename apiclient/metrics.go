/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-adminclient/internal/libinfo"
)

// Refresh results reported to MetricsCollector.
const (
	RefreshResultSuccess = "success"
	RefreshResultFailure = "failure"
)

// MetricsCollector collects metrics of the admission and refresh machinery.
type MetricsCollector interface {
	// SetInFlight reports the number of admitted calls.
	SetInFlight(n int)
	// SetQueued reports the number of parked calls.
	SetQueued(n int)
	// IncRefreshes counts a finished credential refresh.
	IncRefreshes(result string)
	// ObserveQueueWait observes how long a call was parked before it was resumed.
	ObserveQueueWait(kind CallKind, d time.Duration)
}

type disabledMetrics struct{}

func (disabledMetrics) SetInFlight(int)                          {}
func (disabledMetrics) SetQueued(int)                            {}
func (disabledMetrics) IncRefreshes(string)                      {}
func (disabledMetrics) ObserveQueueWait(CallKind, time.Duration) {}

// PrometheusMetricsCollector is a Prometheus metrics collector.
type PrometheusMetricsCollector struct {
	InFlight   prometheus.Gauge
	Queued     prometheus.Gauge
	Refreshes  *prometheus.CounterVec
	QueueWaits *prometheus.HistogramVec
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector.
// All metrics carry the library version as a constant label.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	constLabels := libinfo.AddPrometheusLibVersionLabel(nil)
	return &PrometheusMetricsCollector{
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "api_client_in_flight_requests",
			ConstLabels: constLabels,
			Help:        "Current number of admitted API requests.",
		}),
		Queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "api_client_queued_requests",
			ConstLabels: constLabels,
			Help:        "Current number of API requests waiting for admission or a fresh credential.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "api_client_credential_refreshes_total",
			ConstLabels: constLabels,
			Help:        "Number of credential refreshes.",
		}, []string{"result"}),
		QueueWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "api_client_queue_wait_seconds",
			ConstLabels: constLabels,
			Help:        "A histogram of the time API requests spent in the queue.",
			Buckets:     []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
	}
}

// MustRegister registers the Prometheus metrics.
func (p *PrometheusMetricsCollector) MustRegister() {
	prometheus.MustRegister(p.InFlight, p.Queued, p.Refreshes, p.QueueWaits)
}

// Unregister the Prometheus metrics.
func (p *PrometheusMetricsCollector) Unregister() {
	prometheus.Unregister(p.InFlight)
	prometheus.Unregister(p.Queued)
	prometheus.Unregister(p.Refreshes)
	prometheus.Unregister(p.QueueWaits)
}

// SetInFlight reports the number of admitted calls.
func (p *PrometheusMetricsCollector) SetInFlight(n int) {
	p.InFlight.Set(float64(n))
}

// SetQueued reports the number of parked calls.
func (p *PrometheusMetricsCollector) SetQueued(n int) {
	p.Queued.Set(float64(n))
}

// IncRefreshes counts a finished credential refresh.
func (p *PrometheusMetricsCollector) IncRefreshes(result string) {
	p.Refreshes.WithLabelValues(result).Inc()
}

// ObserveQueueWait observes how long a call was parked before it was resumed.
func (p *PrometheusMetricsCollector) ObserveQueueWait(kind CallKind, d time.Duration) {
	p.QueueWaits.WithLabelValues(kind.String()).Observe(d.Seconds())
}

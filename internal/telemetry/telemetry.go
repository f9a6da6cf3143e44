// Package telemetry registers the backend's prometheus metrics. Exposed
// at /metrics via promhttp.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors the handlers observe into.
type Metrics struct {
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	SearchDuration     prometheus.Histogram
	SearchResults      prometheus.Histogram
	GenerationDuration prometheus.Histogram
	GenerationConf     prometheus.Histogram
	ActiveSessions     prometheus.Gauge
}

// New registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companion_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "companion_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_search_duration_seconds",
			Help:    "Knowledge base search latency.",
			Buckets: prometheus.DefBuckets,
		}),
		SearchResults: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_search_results",
			Help:    "Result count per knowledge base search.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		GenerationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_generation_duration_seconds",
			Help:    "Generation provider latency per chat turn.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		GenerationConf: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "companion_generation_confidence",
			Help:    "Confidence score distribution of chat answers.",
			Buckets: []float64{0.70, 0.75, 0.80, 0.85, 0.90, 0.95},
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "companion_active_sessions",
			Help: "Sessions created minus sessions cleared.",
		}),
	}
}

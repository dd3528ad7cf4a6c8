// Package metrics defines the Prometheus collectors for source traffic and scoring.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Source and scoring Prometheus metrics.
var (
	SourceAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "varscore",
			Name:      "source_attempts_total",
			Help:      "HTTP attempts per source by response class",
		},
		[]string{"source", "class"}, // "2xx", "4xx", "5xx", "error"
	)

	SourceResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "varscore",
			Name:      "source_results_total",
			Help:      "Final per-variant source outcomes",
		},
		[]string{"source", "outcome"}, // "success" or a failure kind
	)

	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "varscore",
			Name:      "source_request_duration_seconds",
			Help:      "Single HTTP attempt duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	LimiterWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "varscore",
			Name:      "limiter_wait_seconds",
			Help:      "Time spent waiting for a rate limiter grant",
			Buckets:   []float64{0, 0.1, 0.3, 0.6, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	VariantsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "varscore",
			Name:      "variants_scored_total",
			Help:      "Scored variants by interpretation band",
		},
		[]string{"interpretation"},
	)

	AnnotationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "varscore",
			Name:      "annotation_cache_total",
			Help:      "Annotation memo hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "varscore",
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "varscore",
			Name:      "http_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SourceAttemptsTotal,
			SourceResultsTotal,
			SourceRequestDuration,
			LimiterWaitSeconds,
			VariantsScoredTotal,
			AnnotationCacheTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// StatusClass buckets an HTTP status code for the attempts counter
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	case code == 0:
		return "error"
	default:
		return "other"
	}
}

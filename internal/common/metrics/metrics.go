// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExternalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_requests_total",
			Help: "Total number of outbound API requests",
		},
		[]string{"api", "status"},
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "external_api_request_duration_seconds",
			Help: "Duration of outbound API requests in seconds",
		},
		[]string{"api"},
	)

	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_reads_total",
			Help: "Cache read outcomes per store",
		},
		[]string{"store", "outcome"}, // outcome: hit, miss, expired
	)

	AnalysesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyses_completed_total",
			Help: "Total number of completed restaurant analyses",
		},
		[]string{"fallback"},
	)

	AnalysesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyses_failed_total",
			Help: "Total number of failed restaurant analyses",
		},
		[]string{"stage", "error_code"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "solaradvisor"

var (
	// Recommendation metrics
	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Total number of recommendations produced",
	}, []string{"kind"}) // "sizing", "narrative"

	RecommendationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendation_failures_total",
		Help:      "Total recommendation requests that failed, by error code",
	}, []string{"code"})

	RecommendedSystemKW = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "recommended_system_kw",
		Help:      "Distribution of recommended array sizes",
		Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20, 30, 50},
	})

	// Sizing cache metrics
	SizingCacheHits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sizing_cache_hits",
		Help:      "Sizing calculator cache hits since start",
	})

	SizingCacheMisses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sizing_cache_misses",
		Help:      "Sizing calculator cache misses since start",
	})

	SizingCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sizing_cache_entries",
		Help:      "Entries currently held by the sizing calculator cache",
	})

	// Upstream service metrics
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_latency_seconds",
		Help:      "Latency of calls to external services",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service"}) // "geocoder", "irradiance", "llm"

	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_errors_total",
		Help:      "Failed calls to external services",
	}, []string{"service"})

	UpstreamCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_cache_hits_total",
		Help:      "External lookups answered from cache",
	}, []string{"service"})

	BreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breaker_rejections_total",
		Help:      "Calls rejected because the service breaker was open",
	}, []string{"service"})

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})

	// Store metrics
	HistoryWritesDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_writes_dropped",
		Help:      "History writes dropped due to writer backpressure",
	})

	MaintenanceRowsPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_rows_purged_total",
		Help:      "Rows removed by scheduled maintenance",
	}, []string{"table"})
)

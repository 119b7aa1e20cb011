// Package metrics defines the gateway's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Token metrics
	TokenValidationsTotal    *prometheus.CounterVec
	ProviderResolutionsTotal *prometheus.CounterVec
	DecoderBuildsTotal       *prometheus.CounterVec

	// Routing metrics
	RouteTableSize      prometheus.Gauge
	RouteLookupsTotal   *prometheus.CounterVec
	RouteRefreshesTotal *prometheus.CounterVec

	// Event metrics
	EventsProcessedTotal *prometheus.CounterVec

	// Include resolution metrics
	IncludeResolutionsTotal *prometheus.CounterVec
	IncludedResourcesTotal  prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheSize        *prometheus.GaugeVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ProxyErrorsTotal    *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics *Metrics

func init() {
	DefaultMetrics = NewMetrics()
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TokenValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "token",
				Name:      "validations_total",
				Help:      "Total number of token validations",
			},
			[]string{"issuer", "result"},
		),
		ProviderResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "provider",
				Name:      "resolutions_total",
				Help:      "Total number of provider info resolutions",
			},
			[]string{"source", "result"},
		),
		DecoderBuildsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "decoder",
				Name:      "builds_total",
				Help:      "Total number of token decoder builds",
			},
			[]string{"result"},
		),

		RouteTableSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "routes",
				Name:      "table_size",
				Help:      "Current number of routes in the registry",
			},
		),
		RouteLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "routes",
				Name:      "lookups_total",
				Help:      "Total number of route lookups",
			},
			[]string{"result"},
		),
		RouteRefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "routes",
				Name:      "refreshes_total",
				Help:      "Total number of full route table refreshes",
			},
			[]string{"result"},
		),

		EventsProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "events",
				Name:      "processed_total",
				Help:      "Total number of configuration events processed",
			},
			[]string{"channel", "result"},
		),

		IncludeResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "include",
				Name:      "resolutions_total",
				Help:      "Total number of include resolution passes",
			},
			[]string{"result"},
		),
		IncludedResourcesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "include",
				Name:      "resources_total",
				Help:      "Total number of resources added to included sections",
			},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"level"},
		),
		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"level"},
		),
		CacheSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "cache",
				Name:      "size",
				Help:      "Current number of items in cache",
			},
			[]string{"level"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ProxyErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Total number of proxy failures",
			},
			[]string{"reason"},
		),
	}
}

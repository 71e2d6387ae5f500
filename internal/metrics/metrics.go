// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks upstream traffic and product cache effectiveness.
type Collector struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	notifications    prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_upstream_requests_total",
			Help: "Upstream store API requests by operation and status code.",
		}, []string{"op", "status"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_upstream_latency_seconds",
			Help:    "Upstream store API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_product_cache_hits_total",
			Help: "Product lookups served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_product_cache_misses_total",
			Help: "Product lookups that went upstream.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_notifications_total",
			Help: "Notifications pushed into session flash slots.",
		}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.cacheHits,
		c.cacheMisses,
		c.notifications,
	)

	return c
}

func (c *Collector) ObserveUpstream(op string, status int, d time.Duration) {
	c.upstreamRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.upstreamLatency.Observe(d.Seconds())
}

func (c *Collector) CacheHit()  { c.cacheHits.Inc() }
func (c *Collector) CacheMiss() { c.cacheMisses.Inc() }

func (c *Collector) NotificationSent() { c.notifications.Inc() }

// Handler serves the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Package observability provides the prometheus metrics collector for the
// background computation worker.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all prometheus metrics for the worker. Each collector owns
// its registry so tests can construct collectors independently.
//
// All record methods are safe to call on a nil *Collector, which lets
// components treat metrics as optional.
type Collector struct {
	registry *prometheus.Registry

	// Scheduler metrics
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	JobRetries    *prometheus.CounterVec
	QueueDepth    prometheus.Gauge

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec

	// Aggregation metrics
	AggregationDuration *prometheus.HistogramVec

	// Query metrics
	SlowQueries *prometheus.CounterVec

	// Document store metrics
	StoreOperations *prometheus.CounterVec
}

// NewCollector creates a metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_processed_total",
				Help:      "Total number of jobs processed by type and final status",
			},
			[]string{"type", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Job processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		JobRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_retries_total",
				Help:      "Total number of job retry attempts",
			},
			[]string{"type"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "job_queue_depth",
				Help:      "Current number of queued jobs",
			},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits by tier",
			},
			[]string{"tier"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses by tier",
			},
			[]string{"tier"},
		),
		CacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Total number of cache evictions by tier",
			},
			[]string{"tier"},
		),
		AggregationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregation_duration_seconds",
				Help:      "Aggregation window computation duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"timeframe"},
		),
		SlowQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slow_queries_total",
				Help:      "Total number of queries exceeding the slow threshold",
			},
			[]string{"query_type"},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of document store operations",
			},
			[]string{"operation", "status"},
		),
	}

	registry.MustRegister(
		c.JobsProcessed,
		c.JobDuration,
		c.JobRetries,
		c.QueueDepth,
		c.CacheHits,
		c.CacheMisses,
		c.CacheEvictions,
		c.AggregationDuration,
		c.SlowQueries,
		c.StoreOperations,
	)

	return c
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordJob records a finished job.
func (c *Collector) RecordJob(jobType, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.JobsProcessed.WithLabelValues(jobType, status).Inc()
	c.JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// RecordRetry records a job retry.
func (c *Collector) RecordRetry(jobType string) {
	if c == nil {
		return
	}
	c.JobRetries.WithLabelValues(jobType).Inc()
}

// SetQueueDepth updates the queue depth gauge.
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(depth))
}

// RecordCacheHit records a hit on the given tier.
func (c *Collector) RecordCacheHit(tier string) {
	if c == nil {
		return
	}
	c.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a miss on the given tier.
func (c *Collector) RecordCacheMiss(tier string) {
	if c == nil {
		return
	}
	c.CacheMisses.WithLabelValues(tier).Inc()
}

// RecordCacheEviction records evictions on the given tier.
func (c *Collector) RecordCacheEviction(tier string, count int) {
	if c == nil || count <= 0 {
		return
	}
	c.CacheEvictions.WithLabelValues(tier).Add(float64(count))
}

// RecordAggregation records a completed window computation.
func (c *Collector) RecordAggregation(timeframe string, duration time.Duration) {
	if c == nil {
		return
	}
	c.AggregationDuration.WithLabelValues(timeframe).Observe(duration.Seconds())
}

// RecordSlowQuery records a query exceeding the slow threshold.
func (c *Collector) RecordSlowQuery(queryType string) {
	if c == nil {
		return
	}
	c.SlowQueries.WithLabelValues(queryType).Inc()
}

// RecordStoreOperation records a document store call.
func (c *Collector) RecordStoreOperation(operation, status string) {
	if c == nil {
		return
	}
	c.StoreOperations.WithLabelValues(operation, status).Inc()
}

// Package metrics holds the Prometheus instruments for the imagery pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache-aside gateway
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagery_cache_hits_total",
			Help: "Total number of frame cache hits",
		},
		[]string{"prefix"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagery_cache_misses_total",
			Help: "Total number of frame cache misses (remote downloads)",
		},
		[]string{"prefix"},
	)

	// Timelapse assembly
	TimelapsesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagery_timelapses_generated_total",
			Help: "Total number of timelapse GIFs encoded and uploaded",
		},
		[]string{"kind"},
	)

	TimelapsesReused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagery_timelapses_reused_total",
			Help: "Total number of timelapse requests served from an existing artifact",
		},
		[]string{"kind"},
	)

	TimelapseBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagery_timelapse_bytes",
			Help:    "Size of encoded timelapse GIFs in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 8), // 64KiB .. 8MiB
		},
		[]string{"kind"},
	)

	// Janitor
	JanitorDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagery_janitor_deleted_total",
			Help: "Total number of expired cache objects deleted",
		},
		[]string{"prefix"},
	)

	JanitorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagery_janitor_delete_failures_total",
			Help: "Total number of cache object deletions that failed",
		},
		[]string{"prefix"},
	)

	// Refresh cycle
	RefreshFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagery_refresh_failures_total",
			Help: "Total number of isolated per-subject refresh phase failures",
		},
		[]string{"phase"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imagery_refresh_cycle_duration_seconds",
			Help:    "Duration of a full refresh cycle in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

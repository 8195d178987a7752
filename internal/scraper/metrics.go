package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Pages fetched, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	propertiesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_properties_saved_total",
			Help: "Normalized properties upserted, labeled by source.",
		},
		[]string{"source"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_retries_total",
			Help: "Fetch retry attempts, labeled by source.",
		},
		[]string{"source"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by source.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	runDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Histogram of full source run durations, labeled by source and status.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"source", "status"},
	)

	breakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scraper_circuit_breaker_open",
			Help: "1 when the source's circuit breaker is open, else 0.",
		},
		[]string{"source"},
	)
)

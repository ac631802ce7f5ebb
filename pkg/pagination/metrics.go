package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch phases used as metric labels.
const (
	phaseSequential = "sequential"
	phaseProbe      = "probe"
	phaseWorker     = "worker"
)

// Aggregation strategies used as metric and log labels.
const (
	strategySequential = "sequential"
	strategyParallel   = "parallel"
	strategyProbe      = "probe"
)

// Prometheus metrics for aggregation operations.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_pages_fetched_total",
		Help: "Total pages fetched by aggregation phase",
	}, []string{"phase"})

	pagesReusedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_pages_reused_total",
		Help: "Total page fetches avoided by reusing probe results",
	})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_aggregation_duration_seconds",
		Help:    "Wall-clock duration of full aggregations by strategy",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"strategy"})

	aggregationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_aggregation_failures_total",
		Help: "Total failed aggregations by strategy and reason",
	}, []string{"strategy", "reason"})

	boundsProbeFetches = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crm_bounds_probe_fetches",
		Help:    "Number of backend fetches needed to resolve page bounds",
		Buckets: []float64{1, 2, 4, 8, 12, 16, 24, 32},
	})

	sequentialFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_sequential_fallbacks_total",
		Help: "Total parallel aggregations that fell back to a sequential walk",
	})
)

// Package metrics exposes the Prometheus registry used by the CRM client.
// All metrics are defined in their respective packages (client, pagination,
// cache, ratelimit) to keep those packages free of a shared dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer the CRM packages register with.
// All metrics are registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an http.Handler serving every registered metric in the
// Prometheus text format. Embedding services mount it on their own mux.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - crm_requests_total{path, status} (Counter): Requests by path and HTTP status
//   - crm_request_duration_seconds{path} (Histogram): Request duration, retries included
//   - crm_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - crm_retries_total{error_class} (Counter): Retry attempts by error class
//   - crm_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - crm_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Aggregation Metrics (pkg/pagination):
//   - crm_pages_fetched_total{phase} (Counter): Pages fetched by phase (sequential, probe, worker)
//   - crm_pages_reused_total (Counter): Pages reused from an earlier phase instead of refetched
//   - crm_aggregation_duration_seconds{strategy} (Histogram): FetchAll* duration
//   - crm_aggregation_failures_total{strategy, reason} (Counter): Failed aggregations
//   - crm_bounds_probe_fetches (Histogram): Pages fetched per bounds probe
//   - crm_sequential_fallbacks_total (Counter): Parallel aggregations that fell back to sequential
//
// Cache Metrics (pkg/cache):
//   - crm_cache_hits_total (Counter): Page cache hits
//   - crm_cache_misses_total (Counter): Page cache misses
//   - crm_cache_errors_total{operation} (Counter): Cache operation errors
//   - crm_cache_stored_bytes_total (Counter): Bytes written to the cache
//
// Rate Limit Metrics (pkg/ratelimit):
//   - crm_rate_limit_wait_seconds (Histogram): Time spent in the local pacer
//   - crm_rate_limit_cooldowns_total (Counter): Cooldown windows opened by Retry-After
//   - crm_rate_limit_cooldown_blocks_total (Counter): Requests delayed or rejected by a cooldown
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(crm_cache_hits_total[5m])) /
//   (sum(rate(crm_cache_hits_total[5m])) + sum(rate(crm_cache_misses_total[5m])))
//
//   # Fallback Rate
//   rate(crm_sequential_fallbacks_total[1h])
//
//   # Request Error Rate
//   rate(crm_errors_total[5m])
//
//   # P95 Aggregation Latency
//   histogram_quantile(0.95, rate(crm_aggregation_duration_seconds_bucket[5m]))

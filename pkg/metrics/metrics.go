// Package metrics exposes the Prometheus registry used by the offline agent.
// All metrics are defined in their respective packages (gateway, cache,
// pending, client, trigger, notify, connectivity) and registered via promauto.
//
// This package provides the scrape handler and a reference for every metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the agent.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the scrape handler for the agent metrics.
func Handler() http.Handler {
	return HandlerFor(Gatherer)
}

// HandlerFor returns a scrape handler for g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Gateway Metrics (pkg/gateway):
//   - offline_gateway_requests_total{outcome} (Counter): Intercepted requests by outcome
//     (pass_through, cache_hit, network_stored, network_uncached, offline_fallback, offline_fallback_miss)
//   - offline_gateway_request_duration_seconds{outcome} (Histogram): Interception duration
//   - offline_gateway_installs_total{result} (Counter): Install attempts
//   - offline_gateway_seed_fetches_total{result} (Counter): Seed resource fetches
//
// Cache Metrics (pkg/cache):
//   - offline_cache_hits_total{layer} (Counter): Response cache hits by layer (redis, memory)
//   - offline_cache_misses_total (Counter): Response cache misses
//   - offline_cache_written_bytes_total{layer} (Counter): Snapshot bytes written to the response cache
//   - offline_cache_generations_deleted_total (Counter): Generations purged on activation
//   - offline_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pending-Sync Metrics (pkg/pending):
//   - offline_pending_enqueued_total (Counter): Records added to the pending store
//   - offline_pending_uploaded_total (Counter): Records uploaded and deleted
//   - offline_pending_replay_total{result} (Counter): Replay runs (complete, upload_failed, store_failed)
//   - offline_pending_records (Gauge): Records waiting for upload
//
// Upload Metrics (pkg/client):
//   - offline_upload_requests_total{status} (Counter): Upload requests by HTTP status
//   - offline_upload_request_duration_seconds (Histogram): Upload request duration
//   - offline_upload_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, invalid_response)
//
// Sync Trigger Metrics (pkg/trigger):
//   - offline_sync_triggers_total{source, result} (Counter): Sync triggers by source (http, connectivity, schedule, cli, startup)
//   - offline_sync_retries_total (Counter): Replay retries after an upload failure
//   - offline_sync_retry_backoff_seconds (Histogram): Backoff before a retry
//   - offline_sync_retry_exhausted_total (Counter): Sync runs that gave up
//
// Client Metrics (pkg/notify):
//   - offline_notify_clients (Gauge): Connected client views
//   - offline_notify_messages_total{direction, type} (Counter): Messages sent and received
//
// Connectivity Metrics (pkg/connectivity):
//   - offline_connectivity_online (Gauge): 1 when the origin is reachable
//   - offline_connectivity_transitions_total{status} (Counter): Status changes
//   - offline_connectivity_probe_failures_total (Counter): Failed probes
//
// Example Prometheus Queries:
//
//   # Offline Fallback Rate
//   rate(offline_gateway_requests_total{outcome="offline_fallback"}[5m])
//
//   # Cache Hit Rate
//   sum(rate(offline_cache_hits_total[5m])) /
//   (sum(rate(offline_cache_hits_total[5m])) + sum(rate(offline_cache_misses_total[5m])))
//
//   # Backlog
//   offline_pending_records > 0
//
//   # P95 Upload Latency
//   histogram_quantile(0.95, rate(offline_upload_request_duration_seconds_bucket[5m]))

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package metrics provides Prometheus metrics for the ingestion pipeline.

All collectors are registered with the default registry through promauto
and exposed at /metrics by the api package:

	curl http://localhost:8080/metrics

# Available Metrics

Poller:
  - quake_poll_cycles_total{result}
  - quake_poll_duration_seconds
  - quake_events_fetched_total, quake_events_new_total, quake_events_duplicate_total
  - quake_alerts_total{scope}

Log and bus:
  - quake_log_appends_total{result}
  - quake_bus_publishes_total{topic,result}

Consumer:
  - quake_consumer_entries_total{outcome}: acked, failed, dead_lettered
  - quake_consumer_processing_duration_seconds
  - quake_graph_write_failures_total
  - quake_relationships_inferred_total{type}

Geocoding:
  - quake_geocode_cache_hits_total, quake_geocode_cache_misses_total
  - quake_geocode_errors_total

Clustering:
  - quake_clustering_runs_total{trigger,result}
  - quake_clustering_duration_seconds
  - quake_clusters, quake_clustering_noise_events

Stores, HTTP, WebSocket and circuit breakers:
  - quake_db_query_duration_seconds{store,operation}
  - quake_db_query_errors_total{store,operation}
  - http_requests_total, http_request_duration_seconds
  - websocket_connections_active, websocket_messages_sent_total{type}
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

# Alerting

	- alert: QuakeDeadLetters
	  expr: increase(quake_consumer_entries_total{outcome="dead_lettered"}[15m]) > 0
	- alert: CircuitBreakerOpen
	  expr: circuit_breaker_state > 1
*/
package metrics

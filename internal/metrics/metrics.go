// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poller Metrics
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_poll_cycles_total",
			Help: "Total number of feed poll cycles",
		},
		[]string{"result"}, // "success", "fetch_error"
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quake_poll_duration_seconds",
			Help:    "Duration of a full poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quake_events_fetched_total",
			Help: "Total number of feed records fetched",
		},
	)

	EventsNew = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quake_events_new_total",
			Help: "Total number of events that passed deduplication",
		},
	)

	EventsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quake_events_duplicate_total",
			Help: "Total number of events rejected as duplicates",
		},
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"scope"}, // "regional", "global"
	)

	// Log and Bus Metrics
	LogAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_log_appends_total",
			Help: "Total number of durable log appends",
		},
		[]string{"result"},
	)

	WALEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_wal_entries_total",
			Help: "Append write-ahead log entries by outcome",
		},
		[]string{"outcome"}, // spooled, replayed, expired, dropped
	)

	WALPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quake_wal_pending_entries",
			Help: "Entries waiting in the append write-ahead log",
		},
	)

	BusPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_bus_publishes_total",
			Help: "Total number of pub/sub publishes",
		},
		[]string{"topic", "result"},
	)

	// Consumer Metrics
	ConsumerProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_consumer_entries_total",
			Help: "Total number of log entries handled by the consumer",
		},
		[]string{"outcome"}, // "acked", "failed", "dead_lettered"
	)

	ConsumerProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quake_consumer_processing_duration_seconds",
			Help:    "Time to process one log entry",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	GraphWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quake_graph_write_failures_total",
			Help: "Graph merges that failed and were acknowledged anyway",
		},
	)

	RelationshipsInferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_relationships_inferred_total",
			Help: "Total number of inferred relationship edges",
		},
		[]string{"type"},
	)

	// Geocoding Metrics
	GeocodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quake_geocode_cache_hits_total",
			Help: "Total number of geocode cache hits",
		},
	)

	GeocodeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quake_geocode_cache_misses_total",
			Help: "Total number of geocode cache misses",
		},
	)

	GeocodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quake_geocode_errors_total",
			Help: "Total number of failed reverse geocode lookups",
		},
	)

	// Clustering Metrics
	ClusteringRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_clustering_runs_total",
			Help: "Total number of clustering runs",
		},
		[]string{"trigger", "result"},
	)

	ClusteringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quake_clustering_duration_seconds",
			Help:    "Duration of a clustering run including write-back",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ClustersCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quake_clusters",
			Help: "Number of clusters produced by the last run",
		},
	)

	ClusteringNoise = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quake_clustering_noise_events",
			Help: "Number of unclustered events in the last run",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quake_db_query_duration_seconds",
			Help:    "Duration of store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quake_db_query_errors_total",
			Help: "Total number of store query errors",
		},
		[]string{"store", "operation"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordPollCycle records the outcome of one poll cycle.
func RecordPollCycle(duration time.Duration, fetched, fresh, duplicates int, err error) {
	PollDuration.Observe(duration.Seconds())
	if err != nil {
		PollCycles.WithLabelValues("fetch_error").Inc()
		return
	}
	PollCycles.WithLabelValues("success").Inc()
	EventsFetched.Add(float64(fetched))
	EventsNew.Add(float64(fresh))
	EventsDuplicate.Add(float64(duplicates))
}

// RecordAlert counts an alert by scope.
func RecordAlert(regional bool) {
	if regional {
		AlertsRaised.WithLabelValues("regional").Inc()
		return
	}
	AlertsRaised.WithLabelValues("global").Inc()
}

// RecordLogAppend counts a durable log append.
func RecordLogAppend(err error) {
	LogAppends.WithLabelValues(resultLabel(err)).Inc()
}

// RecordWALEntry counts an entry leaving or entering the append WAL.
func RecordWALEntry(outcome string) {
	WALEntries.WithLabelValues(outcome).Inc()
}

// RecordBusPublish counts a pub/sub publish.
func RecordBusPublish(topic string, err error) {
	BusPublishes.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordConsumerOutcome records how a log entry left the consumer.
func RecordConsumerOutcome(outcome string, duration time.Duration) {
	ConsumerProcessed.WithLabelValues(outcome).Inc()
	ConsumerProcessingDuration.Observe(duration.Seconds())
}

// RecordRelationship counts one inferred edge.
func RecordRelationship(relType string) {
	RelationshipsInferred.WithLabelValues(relType).Inc()
}

// RecordGeocode records a cache lookup result.
func RecordGeocode(hit bool) {
	if hit {
		GeocodeCacheHits.Inc()
	} else {
		GeocodeCacheMisses.Inc()
	}
}

// RecordClusteringRun records a clustering run.
func RecordClusteringRun(trigger string, duration time.Duration, clusters, noise int, err error) {
	ClusteringRuns.WithLabelValues(trigger, resultLabel(err)).Inc()
	ClusteringDuration.Observe(duration.Seconds())
	if err == nil {
		ClustersCurrent.Set(float64(clusters))
		ClusteringNoise.Set(float64(noise))
	}
}

// RecordDBQuery records a store query.
func RecordDBQuery(store, operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package api serves the operational HTTP surface: health and metrics,
// read endpoints over the document store and graph store, the recency
// buffer replay, maintenance jobs and the live WebSocket feed.
//
// # Routes
//
//	GET  /healthz                          liveness and dependency checks
//	GET  /metrics                          Prometheus exposition
//	GET  /ws/live                          live and alert stream
//
//	GET  /api/v1/events                    filtered event list
//	GET  /api/v1/events/{id}               one event
//	GET  /api/v1/clusters                  current clusters
//	GET  /api/v1/clusters/{id}             one cluster
//	GET  /api/v1/buffer/recent             recency buffer, newest first
//
//	GET  /api/v1/analytics/magnitudes      magnitude distribution
//	GET  /api/v1/analytics/trends          daily trends
//	GET  /api/v1/analytics/nearby          events near a point
//	GET  /api/v1/analytics/heatmap         magnitude-weighted grid
//	GET  /api/v1/analytics/depth           depth vs magnitude
//	GET  /api/v1/analytics/risk            regional risk scores
//	GET  /api/v1/analytics/unusual         unusual regional activity
//	GET  /api/v1/analytics/hourly          hourly counts (time-series mirror)
//
//	GET  /api/v1/graph/events/{id}         event context
//	GET  /api/v1/graph/neighbors           edges around a node
//	GET  /api/v1/graph/centrality          degree centrality
//	GET  /api/v1/graph/aftershocks         aftershock sequences
//	GET  /api/v1/graph/cascades            TRIGGERED edges
//	GET  /api/v1/graph/stats               node and edge counts
//
//	POST /api/v1/recluster                 request a clustering run
//	POST /api/v1/backfill/readable-time    fill readable_time
//	POST /api/v1/backfill/addresses        geocode events without address
//	GET  /api/v1/audit                     recorded operator actions
//	GET  /api/v1/backups                   document store snapshots
//	POST /api/v1/backups                   take a snapshot
//	GET  /api/v1/pipeline/stats            consumer, log and buffer counters
//
// The POST routes are recorded in the audit log when one is configured.
// When server.ops_token is set, the recluster, backfill, audit and backup
// routes require "Authorization: Bearer <token>".
//
// Every JSON response uses the APIResponse envelope. Graph routes answer
// 503 when the graph store is disabled, as does /analytics/hourly without
// the time-series mirror.
package api

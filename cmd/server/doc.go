// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package main is the QuakeGraph server.

QuakeGraph polls a GeoJSON earthquake feed, deduplicates and alerts on new
events, appends them to a durable log, and drains that log into a DuckDB
document store and an optional Postgres relationship graph. A periodic
clustering job groups events with DBSCAN and records the clusters and
NEAR edges; an HTTP API serves analytics, graph queries and a live
WebSocket feed.

# Process layout

	quakegraph (root supervisor)
	├── data-layer
	│   ├── recency-buffer      badger value-log GC
	│   ├── audit-logger        audit writes and retention
	│   ├── backup-scheduler    DuckDB snapshots
	│   └── broker-watchdog     embedded NATS only
	├── messaging-layer
	│   ├── feed-poller
	│   ├── wal-retry           replays spooled appends (WAL_ENABLED)
	│   ├── stream-consumer
	│   └── clustering
	└── api-layer
	    ├── websocket-hub
	    ├── websocket-bridge    live/alert bus -> hub
	    └── http-server

# Backends

MESSAGING_BACKEND=nats (default) uses JetStream for the event log and DLQ, a
JetStream KV bucket for the dedup marker and core NATS for pub/sub. With
NATS_EMBEDDED=true the server starts its own broker. MESSAGING_BACKEND=memory
keeps all three in-process for single-node development.

When an append to the event log fails, the poller spools the payload to a
Badger write-ahead log under WAL_PATH and wal-retry replays it once the log
is reachable again.

# Configuration

Defaults, then config.yaml (CONFIG_PATH), then environment variables. A
.env file in the working directory is loaded first. See internal/config.

# Signals

SIGINT and SIGTERM stop the supervisor tree, then close the stores and
shut the embedded broker down.
*/
package main

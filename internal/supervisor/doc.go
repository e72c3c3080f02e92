// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package supervisor runs the long-lived components under a suture v4
// supervisor tree.
//
// # Tree
//
//	quakegraph (root)
//	├── data-layer       recency buffer GC, embedded broker watchdog
//	├── messaging-layer  feed poller, stream consumer, clustering service
//	└── api-layer        WebSocket hub, bus bridge, HTTP server
//
// A service that returns an error or panics is restarted by its layer
// supervisor. Repeated failures past FailureThreshold put that layer into
// FailureBackoff without touching the others, so a crashing poller does
// not take the HTTP server down.
//
// Supervisor events are logged through sutureslog into the zerolog-backed
// slog.Logger from logging.NewSlogLogger.
//
// Services are anything with Serve(ctx) error; a String method names the
// service in log lines. Components that do not fit that shape are wrapped
// in package services.
package supervisor

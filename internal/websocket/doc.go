// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package websocket streams live earthquakes and alerts to browser clients.

# Architecture

	Bus (live, alert) ──▶ Bridge ──▶ Hub ──▶ Client ──▶ browser
	                                  ▲
	               /ws/live upgrade ──┘ (Register)

The Hub owns the set of connected clients and runs as a supervised service.
Register, Unregister and broadcast are channels serviced by one goroutine,
so the client map has a single writer. Lifecycle events are drained before
broadcasts, so a client registered before a message is published receives
it.

The Bridge subscribes to the live and alert topics and forwards each
payload verbatim inside an envelope:

	{"type": "event", "data": <raw GeoJSON feature>}
	{"type": "alert", "data": {"event": {...}, "message": "ALERT: ..."}}

# Slow Clients

Each client has a bounded send queue. When a broadcast finds the queue
full the client is dropped rather than blocking the hub. Clients answer
{"type":"ping"} with {"type":"pong"}; the server pings every 54s and drops
connections that miss the 60s pong deadline.
*/
package websocket

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package eventprocessor provides the messaging substrate shared by the
// poller, the stream consumer and the clustering service.
//
// # Components
//
//   - Log: a durable, append-only event log with consumer-group semantics
//     (create group, read new, read pending with a delivery count, ack) and
//     a separate dead-letter target. JetStreamLog backs it with two
//     JetStream streams and a durable pull consumer; MemoryLog is an
//     in-process implementation for single-node development and tests.
//   - Marker: an atomic set-if-absent with a TTL, used to deduplicate feed
//     records by their natural id. KVMarker uses a JetStream KeyValue bucket
//     whose MaxAge is the dedup horizon.
//   - Bus: fire-and-forget pub/sub for the live, alert and control
//     channels, built on Watermill over core NATS (or the Watermill
//     gochannel for the memory backend).
//   - EmbeddedServer: an in-process NATS server with JetStream for
//     single-instance deployments.
//
// # Data Flow
//
//	Poller ──MarkNew──▶ Marker
//	   │
//	   ├──Append──▶ Log (QUAKE_EVENTS) ──ReadNew/ReadPending──▶ Consumer
//	   │                                                          │
//	   │                                    DeadLetter ◀──────────┘
//	   │                                  (QUAKE_DLQ)
//	   └──Publish──▶ Bus (live, alert) ──▶ WebSocket hub
//
// # Delivery Accounting
//
// Entry.Deliveries counts the deliveries that happened before the current
// one. A consumer configured with a limit of 5 dead-letters an entry on the
// read that reports 6, i.e. after six failed processing attempts.
package eventprocessor

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package consumer reads the event log as a member of a consumer group and
// persists each event with at-least-once semantics.
//
// # Entry Lifecycle
//
//	NEW ──process──▶ ACKED
//	 │
//	 └─fail─▶ PENDING ──process──▶ ACKED
//	              │
//	              └─ deliveries > limit ──▶ DLQ, ACKED
//
// Each loop iteration first drains the pending set (entries delivered but
// never acknowledged), then reads new entries, blocking for a bounded time
// when the log is idle. The delivery limit applies to both reads since the
// JetStream backend redelivers through the new-entry read.
//
// # Processing
//
// An entry is decoded, enriched with a readable time and a geocoded
// address, and upserted into the document store. A document store failure
// leaves the entry pending. The graph merge and the optional time-series
// mirror run next; their failures are logged and counted but the entry is
// still acknowledged, so a graph outage cannot stall ingestion. Payloads
// that do not decode are dead-lettered on first sight.
package consumer

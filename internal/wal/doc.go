// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package wal is a BadgerDB write-ahead log for event log appends.
//
// The poller takes the dedup mark before it appends a new event to the
// durable log, so an append that fails would otherwise lose the event
// until the mark expires. With a WAL configured the poller spools such a
// payload here instead, and the RetryLoop replays it into the log once the
// log is reachable again:
//
//	Poller → Log.Append ──ok──▶ done
//	              │
//	            error
//	              ▼
//	         WAL.Write → RetryLoop → Log.Append → WAL.Confirm
//
// Entries carry a TTL (EntryTTL) and an attempt counter. The RetryLoop
// backs off exponentially per entry (RetryBackoff * 2^attempts, capped at
// five minutes) and drops entries past MaxRetries or their TTL.
//
// Pending entries survive restarts when the WAL is on disk. The RetryLoop
// replays them as soon as it starts.
//
// The consumer deduplicates by event id on upsert, so an entry replayed
// after an append that actually succeeded is harmless.
package wal

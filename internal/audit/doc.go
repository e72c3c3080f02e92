// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package audit records operator actions against the pipeline.

Every mutating ops endpoint (recluster requests, backfill jobs and
snapshots)
produces an Event with the caller's address, the request id and the
outcome. Events are handed to a Logger, which buffers them and writes
them to a Store from its own goroutine so a slow store never delays the
HTTP response. The Logger runs as a supervised service and also deletes
events older than the retention period.

# Stores

DuckDBStore keeps events in the audit_events table of the document
store. It is the only persistent store.

# Usage

	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil {
		return err
	}
	logger := audit.NewLogger(store, audit.Config{Enabled: true, RetentionDays: 90})
	tree.AddDataService(logger)

	logger.Log(&audit.Event{
		Type:    audit.EventTypeReclusterRequested,
		Outcome: audit.OutcomeSuccess,
		Actor:   audit.ActorFromRequest(r),
		Source:  audit.SourceFromRequest(r),
		Action:  "recluster",
	})
*/
package audit

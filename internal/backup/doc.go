// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package backup takes point-in-time snapshots of the DuckDB document
// store.
//
// A snapshot checkpoints the database, then writes the database file (and
// its WAL, if one is left) into a tar archive, gzip-compressed by default,
// together with a metadata entry. The SHA-256 of the finished archive is
// recorded in an index file (backups.json) next to the archives so that
// Validate can detect corruption later.
//
// Archive layout:
//
//	quakegraph-{timestamp}-{id}.tar.gz
//	├── database/quakegraph.duckdb
//	├── database/quakegraph.duckdb.wal   (only if present)
//	└── backup-metadata.json
//
// Retention keeps the newest Keep snapshots and removes older archives.
// The Manager runs as a supervised service that takes scheduled snapshots
// every Interval; the API takes manual ones.
//
// Snapshots are not coordinated with concurrent writers. Events written
// while the file is being copied may be missing from the snapshot or
// present only in the copied WAL.
package backup

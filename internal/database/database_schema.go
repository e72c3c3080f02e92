// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the schema. Every column is defined in the
// CREATE TABLE statements; there are no migrations yet.
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			magnitude DOUBLE NOT NULL DEFAULT 0,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			depth DOUBLE NOT NULL DEFAULT 0,
			time_ms BIGINT NOT NULL DEFAULT 0,
			place TEXT NOT NULL DEFAULT 'Unknown',
			region TEXT NOT NULL DEFAULT 'Unknown',
			url TEXT NOT NULL DEFAULT '',
			exact_address TEXT,
			readable_time TEXT,
			cluster_id TEXT,
			is_alert BOOLEAN NOT NULL DEFAULT false
		)`,

		`CREATE TABLE IF NOT EXISTS clusters (
			cluster_id TEXT PRIMARY KEY,
			centroid_lat DOUBLE NOT NULL,
			centroid_lon DOUBLE NOT NULL,
			event_count INTEGER NOT NULL,
			avg_magnitude DOUBLE NOT NULL,
			region TEXT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			anchor_id TEXT NOT NULL,
			strongest_id TEXT NOT NULL
		)`,
	}
}

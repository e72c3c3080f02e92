// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/quakegraph/internal/models"
)

const clusterColumns = `cluster_id, centroid_lat, centroid_lon, event_count, avg_magnitude, region,
	start_time, end_time, created_at, anchor_id, strongest_id`

// ClearClusters removes every cluster row and every event assignment.
func (db *DB) ClearClusters(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe("clear_clusters", start, err) }()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE events SET cluster_id = NULL WHERE cluster_id IS NOT NULL`); err != nil {
			return fmt.Errorf("clear event assignments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clusters`); err != nil {
			return fmt.Errorf("delete clusters: %w", err)
		}
		return nil
	})
}

// AssignClusters writes each event's cluster id; a nil id marks noise.
func (db *DB) AssignClusters(ctx context.Context, assignments []models.ClusterAssignment) (err error) {
	if len(assignments) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("assign_clusters", start, err) }()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE events SET cluster_id = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeWithLog(stmt, "prepared statement")

		for _, a := range assignments {
			var id sql.NullString
			if a.ClusterID != nil {
				id = sql.NullString{String: *a.ClusterID, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, id, a.EventID); err != nil {
				return fmt.Errorf("assign %s: %w", a.EventID, err)
			}
		}
		return nil
	})
}

// InsertClusters stores cluster metadata rows.
func (db *DB) InsertClusters(ctx context.Context, clusters []models.Cluster) (err error) {
	if len(clusters) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("insert_clusters", start, err) }()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO clusters (`+clusterColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeWithLog(stmt, "prepared statement")

		for _, c := range clusters {
			_, err := stmt.ExecContext(ctx, c.ID, c.CentroidLat, c.CentroidLon, c.EventCount, c.AvgMagnitude,
				c.Region, c.StartTime, c.EndTime, c.CreatedAt, c.AnchorID, c.StrongestID)
			if err != nil {
				return fmt.Errorf("insert cluster %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// ListClusters returns the current clusters, largest first.
func (db *DB) ListClusters(ctx context.Context) ([]models.Cluster, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+clusterColumns+` FROM clusters ORDER BY event_count DESC, cluster_id`)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer closeWithLog(rows, "rows")

	clusters := make([]models.Cluster, 0)
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

// GetCluster returns one cluster by id.
func (db *DB) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE cluster_id = ?`, id)
	c, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster %s: %w", id, err)
	}
	return &c, nil
}

func scanCluster(row rowScanner) (models.Cluster, error) {
	var c models.Cluster
	err := row.Scan(&c.ID, &c.CentroidLat, &c.CentroidLon, &c.EventCount, &c.AvgMagnitude, &c.Region,
		&c.StartTime, &c.EndTime, &c.CreatedAt, &c.AnchorID, &c.StrongestID)
	return c, err
}

// inTx runs fn in a transaction, rolling back if it fails.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

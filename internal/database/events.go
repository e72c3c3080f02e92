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

	"github.com/tomtom215/quakegraph/internal/enrich"
	"github.com/tomtom215/quakegraph/internal/models"
)

const eventColumns = `id, magnitude, latitude, longitude, depth, time_ms, place, url,
	exact_address, readable_time, cluster_id, is_alert`

// UpsertEvent inserts an event or, when the id exists, fills in derived
// fields. Core fields of an existing row are not rewritten, a NULL never
// replaces a stored address or readable time, the alert flag only goes
// from false to true and cluster_id is left to the clustering job.
func (db *DB) UpsertEvent(ctx context.Context, ev *models.Event) (err error) {
	start := time.Now()
	defer func() { observe("upsert_event", start, err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO events (id, magnitude, latitude, longitude, depth, time_ms, place, region, url,
			exact_address, readable_time, is_alert)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			exact_address = COALESCE(EXCLUDED.exact_address, exact_address),
			readable_time = COALESCE(EXCLUDED.readable_time, readable_time),
			is_alert = is_alert OR EXCLUDED.is_alert`,
		ev.ID, ev.Magnitude, ev.Latitude, ev.Longitude, ev.Depth, ev.Time,
		ev.Place, models.ExtractRegion(ev.Place), ev.URL,
		nullString(ev.ExactAddress), nullString(ev.ReadableTime), ev.IsAlert,
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}
	return nil
}

// GetEvent returns one event by id.
func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &ev, nil
}

// QueryEvents returns events matching the filter, newest first.
func (db *DB) QueryEvents(ctx context.Context, f models.EventFilter) (events []models.Event, err error) {
	start := time.Now()
	defer func() { observe("query_events", start, err) }()

	where, args := buildEventWhere(f)
	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY time_ms DESC, id LIMIT ? OFFSET ?`
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	return db.queryEvents(ctx, query, args...)
}

// EventsSince returns up to limit events with time_ms >= since, newest
// first. It is the clustering window.
func (db *DB) EventsSince(ctx context.Context, since int64, limit int) (events []models.Event, err error) {
	start := time.Now()
	defer func() { observe("events_since", start, err) }()

	return db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE time_ms >= ? ORDER BY time_ms DESC, id LIMIT ?`,
		since, limit)
}

// EventsMissingAddress returns up to limit events without an address.
func (db *DB) EventsMissingAddress(ctx context.Context, limit int) ([]models.Event, error) {
	return db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE exact_address IS NULL ORDER BY time_ms DESC LIMIT ?`,
		clampLimit(limit))
}

// SetAddress stores the resolved address of an event.
func (db *DB) SetAddress(ctx context.Context, id, address string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE events SET exact_address = ? WHERE id = ?`, address, id)
	if err != nil {
		return fmt.Errorf("set address for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountEvents returns the number of stored events.
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// BackfillReadableTime fills readable_time for every event that has a time
// but no readable form. It returns the number of rows updated.
func (db *DB) BackfillReadableTime(ctx context.Context) (updated int, err error) {
	start := time.Now()
	defer func() { observe("backfill_readable_time", start, err) }()

	type pending struct {
		id string
		ms int64
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, time_ms FROM events WHERE readable_time IS NULL AND time_ms > 0`)
	if err != nil {
		return 0, fmt.Errorf("select events without readable time: %w", err)
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.ms); err != nil {
			closeQuietly(rows)
			return 0, fmt.Errorf("scan: %w", err)
		}
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return 0, err
	}
	closeWithLog(rows, "rows")

	if len(todo) == 0 {
		return 0, nil
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE events SET readable_time = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeWithLog(stmt, "prepared statement")

		for _, p := range todo {
			if _, err := stmt.ExecContext(ctx, enrich.ReadableTime(p.ms), p.id); err != nil {
				return fmt.Errorf("update %s: %w", p.id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(todo), nil
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer closeWithLog(rows, "rows")

	events := make([]models.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (models.Event, error) {
	var ev models.Event
	var address, readable, cluster sql.NullString
	err := row.Scan(&ev.ID, &ev.Magnitude, &ev.Latitude, &ev.Longitude, &ev.Depth, &ev.Time,
		&ev.Place, &ev.URL, &address, &readable, &cluster, &ev.IsAlert)
	if err != nil {
		return ev, err
	}
	ev.ExactAddress = address.String
	ev.ReadableTime = readable.String
	if cluster.Valid {
		id := cluster.String
		ev.ClusterID = &id
	}
	return ev, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

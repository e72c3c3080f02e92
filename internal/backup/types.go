// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package backup

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoDatabaseFile is returned for an in-memory database.
	ErrNoDatabaseFile = errors.New("backup: database has no file to snapshot")

	// ErrNotFound is returned for an unknown backup id.
	ErrNotFound = errors.New("backup not found")

	// ErrChecksumMismatch means an archive changed after it was written.
	ErrChecksumMismatch = errors.New("backup checksum mismatch")
)

// Trigger records why a snapshot was taken.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// Backup describes one snapshot archive.
type Backup struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	Trigger    Trigger       `json:"trigger"`
	FilePath   string        `json:"file_path"`
	SizeBytes  int64         `json:"size_bytes"`
	Checksum   string        `json:"checksum"` // hex SHA-256 of the archive
	EventCount int64         `json:"event_count"`
	WAL        bool          `json:"wal_included"`
	Duration   time.Duration `json:"duration_ns"`
}

// Config configures a Manager.
type Config struct {
	Dir string

	// Interval between scheduled snapshots. Zero disables the schedule.
	Interval time.Duration

	// Keep is the number of snapshots retained. Zero keeps all.
	Keep int

	Compress bool
}

// Database is the document store as the backup manager needs it.
type Database interface {
	Path() string
	Checkpoint(ctx context.Context) error
	CountEvents(ctx context.Context) (int64, error)
}

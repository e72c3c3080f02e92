// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/quakegraph/internal/logging"
)

const indexFile = "backups.json"

// Manager takes and tracks snapshots.
type Manager struct {
	cfg Config
	db  Database

	mu      sync.Mutex // serializes snapshots and index writes
	backups []Backup   // oldest first
	now     func() time.Time
}

// NewManager creates the backup directory and loads its index.
func NewManager(cfg Config, db Database) (*Manager, error) {
	if db == nil {
		return nil, errors.New("backup: database is required")
	}
	if p := db.Path(); p == "" || p == ":memory:" {
		return nil, ErrNoDatabaseFile
	}
	if cfg.Dir == "" {
		return nil, errors.New("backup: directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	m := &Manager{cfg: cfg, db: db, now: time.Now}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// Create takes a snapshot and applies retention.
func (m *Manager) Create(ctx context.Context, trigger Trigger) (*Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now().UTC()
	b := Backup{
		ID:        uuid.NewString(),
		CreatedAt: start,
		Trigger:   trigger,
	}
	ext := ".tar"
	if m.cfg.Compress {
		ext = ".tar.gz"
	}
	b.FilePath = filepath.Join(m.cfg.Dir,
		fmt.Sprintf("quakegraph-%s-%s%s", start.Format("20060102T150405Z"), b.ID[:8], ext))

	if err := m.snapshot(ctx, &b); err != nil {
		_ = os.Remove(b.FilePath)
		logging.Error().Err(err).Str("trigger", string(trigger)).Msg("Backup failed")
		return nil, err
	}
	b.Duration = m.now().Sub(start)

	m.backups = append(m.backups, b)
	m.applyRetention()
	if err := m.saveIndex(); err != nil {
		return nil, err
	}

	logging.Info().
		Str("id", b.ID).
		Str("trigger", string(trigger)).
		Int64("size_bytes", b.SizeBytes).
		Int64("events", b.EventCount).
		Dur("duration", b.Duration).
		Msg("Backup created")
	return &b, nil
}

func (m *Manager) snapshot(ctx context.Context, b *Backup) (err error) {
	if err := m.db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint failed, snapshot may need its WAL")
	}
	if n, err := m.db.CountEvents(ctx); err == nil {
		b.EventCount = n
	}

	aw, err := newArchiveWriter(b.FilePath, m.cfg.Compress)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			_ = aw.Close()
		}
	}()

	dbPath := m.db.Path()
	name := filepath.Base(dbPath)
	if err := aw.addFile(dbPath, "database/"+name); err != nil {
		return fmt.Errorf("failed to add database file: %w", err)
	}
	if wal := dbPath + ".wal"; fileExists(wal) {
		if err := aw.addFile(wal, "database/"+name+".wal"); err != nil {
			return fmt.Errorf("failed to add WAL file: %w", err)
		}
		b.WAL = true
	}
	if err := aw.addJSON(metadataEntry, b); err != nil {
		return fmt.Errorf("failed to add metadata: %w", err)
	}

	closed = true
	if err := aw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	b.Checksum, b.SizeBytes, err = fileChecksum(b.FilePath)
	return err
}

// applyRetention drops the oldest snapshots beyond Keep. Callers hold mu.
func (m *Manager) applyRetention() {
	if m.cfg.Keep <= 0 || len(m.backups) <= m.cfg.Keep {
		return
	}
	excess := len(m.backups) - m.cfg.Keep
	for _, old := range m.backups[:excess] {
		if err := os.Remove(old.FilePath); err != nil && !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("id", old.ID).Msg("Failed to remove expired backup")
			continue
		}
		logging.Debug().Str("id", old.ID).Msg("Removed expired backup")
	}
	m.backups = append([]Backup(nil), m.backups[excess:]...)
}

// List returns the tracked snapshots, newest first.
func (m *Manager) List() []Backup {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Backup, len(m.backups))
	for i, b := range m.backups {
		out[len(out)-1-i] = b
	}
	return out
}

// Get returns one snapshot by id.
func (m *Manager) Get(id string) (*Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.backups {
		if m.backups[i].ID == id {
			b := m.backups[i]
			return &b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Validate recomputes an archive's checksum.
func (m *Manager) Validate(id string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	sum, _, err := fileChecksum(b.FilePath)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", id, err)
	}
	if sum != b.Checksum {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, id)
	}
	return nil
}

// Serve takes a snapshot every Interval until ctx ends. With no interval
// it only waits.
func (m *Manager) Serve(ctx context.Context) error {
	if m.cfg.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Failures are logged by Create; the schedule continues.
			_, _ = m.Create(ctx, TriggerScheduled)
		}
	}
}

// String implements fmt.Stringer for suture.
func (m *Manager) String() string { return "backup-scheduler" }

//nolint:gosec // G304: index lives in the configured backup directory
func (m *Manager) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read backup index: %w", err)
	}
	if err := json.Unmarshal(data, &m.backups); err != nil {
		return fmt.Errorf("failed to parse backup index: %w", err)
	}
	sort.SliceStable(m.backups, func(i, j int) bool {
		return m.backups[i].CreatedAt.Before(m.backups[j].CreatedAt)
	})
	return nil
}

// saveIndex writes the index atomically. Callers hold mu.
func (m *Manager) saveIndex() error {
	data, err := json.MarshalIndent(m.backups, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(m.cfg.Dir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("failed to write backup index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace backup index: %w", err)
	}
	return nil
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package wal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
)

var (
	ErrWALClosed     = errors.New("wal is closed")
	ErrEmptyEntryID  = errors.New("entry id is empty")
	ErrEntryNotFound = errors.New("wal entry not found")
	ErrEmptyPayload  = errors.New("payload is empty")
)

// Config configures the WAL and its retry loop.
type Config struct {
	Path       string
	InMemory   bool
	SyncWrites bool

	// EntryTTL is how long an entry may wait. Default: 24h
	EntryTTL time.Duration

	// MaxRetries before an entry is dropped. Default: 100
	MaxRetries int

	// RetryInterval between retry passes. Default: 10s
	RetryInterval time.Duration

	// RetryBackoff is the first per-entry backoff. Default: 1s
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.EntryTTL <= 0 {
		c.EntryTTL = 24 * time.Hour
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 100
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 10 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	return c
}

// Entry is one spooled append.
type Entry struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// Stats contains WAL counters.
type Stats struct {
	Writes   int64 `json:"writes"`
	Confirms int64 `json:"confirms"`
	Retries  int64 `json:"retries"`
}

// BadgerWAL implements the WAL on BadgerDB.
type BadgerWAL struct {
	db  *badger.DB
	cfg Config

	writes   atomic.Int64
	confirms atomic.Int64
	retries  atomic.Int64

	mu     sync.RWMutex
	closed bool
}

const prefixPending = "pending:"

// Open opens (or creates) the WAL.
func Open(cfg Config) (*BadgerWAL, error) {
	cfg = cfg.withDefaults()
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("wal: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("WAL opened")
	return &BadgerWAL{db: db, cfg: cfg}, nil
}

// Config returns the effective configuration.
func (w *BadgerWAL) Config() Config { return w.cfg }

func (w *BadgerWAL) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWALClosed
	}
	return nil
}

// Write spools a log payload and returns its entry id.
func (w *BadgerWAL) Write(_ context.Context, payload []byte) (string, error) {
	if err := w.checkOpen(); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: time.Now().UTC(),
	}
	if err := w.put(&entry); err != nil {
		return "", err
	}

	w.writes.Add(1)
	metrics.RecordWALEntry("spooled")
	metrics.WALPending.Inc()
	return entry.ID, nil
}

// put stores an entry with the TTL left from its creation time.
func (w *BadgerWAL) put(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	ttl := w.cfg.EntryTTL - time.Since(entry.CreatedAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	err = w.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(prefixPending+entry.ID), data).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("write to BadgerDB: %w", err)
	}
	return nil
}

// Confirm removes an entry after its payload reached the log.
func (w *BadgerWAL) Confirm(ctx context.Context, entryID string) error {
	if err := w.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	w.confirms.Add(1)
	return nil
}

// DeleteEntry removes an entry.
func (w *BadgerWAL) DeleteEntry(_ context.Context, entryID string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}
	key := []byte(prefixPending + entryID)
	err := w.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	metrics.WALPending.Dec()
	return nil
}

// UpdateAttempt records a failed retry.
func (w *BadgerWAL) UpdateAttempt(_ context.Context, entryID, lastError string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	entry, err := w.get(entryID)
	if err != nil {
		return err
	}
	entry.Attempts++
	entry.LastAttemptAt = time.Now().UTC()
	entry.LastError = lastError
	w.retries.Add(1)
	return w.put(entry)
}

func (w *BadgerWAL) get(entryID string) (*Entry, error) {
	var entry Entry
	err := w.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPending + entryID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetPending returns all entries, oldest first.
func (w *BadgerWAL) GetPending(ctx context.Context) ([]*Entry, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	var entries []*Entry
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("skipping unreadable WAL entry")
				continue
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	metrics.WALPending.Set(float64(len(entries)))
	return entries, nil
}

// Stats returns the WAL counters.
func (w *BadgerWAL) Stats() Stats {
	return Stats{
		Writes:   w.writes.Load(),
		Confirms: w.confirms.Load(),
		Retries:  w.retries.Load(),
	}
}

// RunGC reclaims value-log space left by confirmed entries.
func (w *BadgerWAL) RunGC() error {
	for {
		err := w.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the WAL. Pending entries stay on disk for the next start.
func (w *BadgerWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.db.Close()
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package buffer keeps the most recent events in a bounded, time-ordered
// BadgerDB set. It backs the live map's replay endpoint and survives
// restarts when opened on disk.
//
// Keys:
//
//	buf/<8-byte big-endian event time ms><event id>  → event JSON
//	bufid/<event id>                                 → buf/ key
//
// The id index gives sorted-set semantics: re-inserting an id replaces its
// previous position instead of adding a second member.
package buffer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/models"
)

const (
	prefixScore = "buf/"
	prefixID    = "bufid/"

	// maxConflictRetries bounds retries of a transaction that lost a
	// write conflict to a concurrent insert.
	maxConflictRetries = 5
)

// ErrClosed is returned by operations on a closed buffer.
var ErrClosed = errors.New("buffer closed")

// Config configures the buffer.
type Config struct {
	Path     string
	Capacity int
	InMemory bool
}

// Buffer is a capacity-bounded recency set of events ordered by event time.
type Buffer struct {
	db       *badger.DB
	capacity int
}

// Open opens (or creates) the buffer.
func Open(cfg Config) (*Buffer, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("buffer capacity must be positive, got %d", cfg.Capacity)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Int("capacity", cfg.Capacity).
		Msg("recency buffer opened")
	return &Buffer{db: db, capacity: cfg.Capacity}, nil
}

func scoreKey(ev *models.Event) []byte {
	key := make([]byte, 0, len(prefixScore)+8+len(ev.ID))
	key = append(key, prefixScore...)
	key = binary.BigEndian.AppendUint64(key, uint64(ev.Time))
	return append(key, ev.ID...)
}

// Insert adds ev scored by its event time and trims the set to capacity,
// dropping the oldest members, in one transaction.
func (b *Buffer) Insert(ctx context.Context, ev *models.Event) error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := scoreKey(ev)
	idKey := []byte(prefixID + ev.ID)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			if err := b.replaceMember(txn, idKey, key); err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			if err := txn.Set(idKey, key); err != nil {
				return err
			}
			return b.trim(txn)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		if err != nil {
			return fmt.Errorf("buffer insert %s: %w", ev.ID, err)
		}
		return nil
	}
}

// replaceMember removes the previous position of a re-inserted id.
func (b *Buffer) replaceMember(txn *badger.Txn, idKey, newKey []byte) error {
	item, err := txn.Get(idKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	old, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if string(old) == string(newKey) {
		return nil
	}
	return txn.Delete(old)
}

// trim deletes the oldest members beyond capacity. The transaction sees its
// own pending writes, so the new member is counted.
func (b *Buffer) trim(txn *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	prefix := []byte(prefixScore)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	excess := len(keys) - b.capacity
	for i := 0; i < excess; i++ {
		if err := txn.Delete(keys[i]); err != nil {
			return err
		}
		id := keys[i][len(prefixScore)+8:]
		if err := txn.Delete(append([]byte(prefixID), id...)); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit events, newest first. A limit of zero or less
// returns the whole buffer.
func (b *Buffer) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	if b.db.IsClosed() {
		return nil, ErrClosed
	}
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}

	events := make([]models.Event, 0, limit)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = limit
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixScore)
		seek := append([]byte(prefixScore), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(events) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ev models.Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				// Skip entries we can't parse
				continue
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("buffer read: %w", err)
	}
	return events, nil
}

// Len returns the number of buffered events.
func (b *Buffer) Len() (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(prefixScore)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// RunGC reclaims value-log space left by trimmed members.
func (b *Buffer) RunGC() error {
	for {
		err := b.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Serve runs value-log GC every interval until ctx ends. It implements
// suture.Service.
func (b *Buffer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("recency buffer GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (b *Buffer) String() string { return "recency-buffer" }

// Close closes the underlying database.
func (b *Buffer) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

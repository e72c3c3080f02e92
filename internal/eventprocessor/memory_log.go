// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

var _ Log = (*MemoryLog)(nil)

type memEntry struct {
	id        string
	payload   []byte
	delivered int
	acked     bool
}

// MemoryLog is an in-process Log supporting a single consumer group. The
// fully acknowledged prefix of the log is dropped as acks arrive.
type MemoryLog struct {
	mu       sync.Mutex
	entries  []*memEntry
	byID     map[string]*memEntry
	cursor   int // index of the first never-delivered entry
	appended uint64
	dropped  entryPos // newest entry removed by compaction
	compacts bool     // dropped is set
	group    bool
	seq      int64
	lastMs   int64
	notify   chan struct{}
	dead     []DeadLetter
	clock    func() time.Time
	closed   bool
}

// entryPos orders entry ids of the form "<unix ms>-<seq>".
type entryPos struct{ ms, seq int64 }

func parseEntryPos(id string) (entryPos, bool) {
	msPart, seqPart, ok := strings.Cut(id, "-")
	if !ok {
		return entryPos{}, false
	}
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return entryPos{}, false
	}
	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil {
		return entryPos{}, false
	}
	return entryPos{ms, seq}, true
}

func (p entryPos) after(o entryPos) bool {
	return p.ms > o.ms || (p.ms == o.ms && p.seq > o.seq)
}

// NewMemoryLog creates an empty in-process log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		byID:   make(map[string]*memEntry),
		notify: make(chan struct{}),
		clock:  time.Now,
	}
}

// Append adds a record. Entry ids take the form "<unix ms>-<seq>".
func (l *MemoryLog) Append(_ context.Context, payload []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", ErrClosed
	}

	ms := l.clock().UnixMilli()
	if ms == l.lastMs {
		l.seq++
	} else {
		l.lastMs, l.seq = ms, 0
	}
	e := &memEntry{
		id:      fmt.Sprintf("%d-%d", ms, l.seq),
		payload: append([]byte(nil), payload...),
	}
	l.entries = append(l.entries, e)
	l.byID[e.id] = e
	l.appended++

	// wake blocked readers
	close(l.notify)
	l.notify = make(chan struct{})
	return e.id, nil
}

// EnsureGroup is idempotent.
func (l *MemoryLog) EnsureGroup(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.group = true
	return nil
}

// ReadPending returns delivered, unacknowledged entries in append order and
// counts this read as a delivery.
func (l *MemoryLog) ReadPending(_ context.Context, count int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.group {
		return nil, ErrGroupNotReady
	}

	var out []Entry
	for _, e := range l.entries[:l.cursor] {
		if len(out) >= count {
			break
		}
		if e.acked {
			continue
		}
		out = append(out, Entry{ID: e.id, Deliveries: e.delivered, Payload: e.payload})
		e.delivered++
	}
	return out, nil
}

// ReadNew returns never-delivered entries, blocking up to block when none
// are available.
func (l *MemoryLog) ReadNew(ctx context.Context, count int, block time.Duration) ([]Entry, error) {
	deadline := time.NewTimer(block)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		if !l.group {
			l.mu.Unlock()
			return nil, ErrGroupNotReady
		}
		if l.closed {
			l.mu.Unlock()
			return nil, ErrClosed
		}
		if l.cursor < len(l.entries) {
			out := l.takeNewLocked(count)
			l.mu.Unlock()
			return out, nil
		}
		wait := l.notify
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-wait:
		}
	}
}

func (l *MemoryLog) takeNewLocked(count int) []Entry {
	end := l.cursor + count
	if end > len(l.entries) {
		end = len(l.entries)
	}
	out := make([]Entry, 0, end-l.cursor)
	for _, e := range l.entries[l.cursor:end] {
		out = append(out, Entry{ID: e.id, Deliveries: 0, Payload: e.payload})
		e.delivered = 1
	}
	l.cursor = end
	return out
}

// Ack marks an entry acknowledged. Acking twice is not an error.
func (l *MemoryLog) Ack(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	if !ok {
		// already acked and compacted away
		if pos, ok := parseEntryPos(id); ok && l.compacts && !pos.after(l.dropped) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	if e.delivered == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	e.acked = true
	l.compactLocked()
	return nil
}

// compactLocked drops the leading run of acknowledged entries.
func (l *MemoryLog) compactLocked() {
	n := 0
	for n < l.cursor && l.entries[n].acked {
		n++
	}
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		e := l.entries[i]
		delete(l.byID, e.id)
		if pos, ok := parseEntryPos(e.id); ok {
			l.dropped, l.compacts = pos, true
		}
		l.entries[i] = nil
	}
	l.entries = l.entries[n:]
	l.cursor -= n
}

// DeadLetter records dl in the in-process dead-letter list.
func (l *MemoryLog) DeadLetter(_ context.Context, dl DeadLetter) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	dl.Payload = append([]byte(nil), dl.Payload...)
	l.dead = append(l.dead, dl)
	return nil
}

// DeadLetters returns a copy of the dead-letter list.
func (l *MemoryLog) DeadLetters() []DeadLetter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DeadLetter(nil), l.dead...)
}

// Len returns the number of appended entries, compacted ones included.
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.appended)
}

// Retained returns the number of entries still held in memory.
func (l *MemoryLog) Retained() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close wakes blocked readers and rejects further appends.
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.notify)
		l.notify = make(chan struct{})
	}
	return nil
}

// Stats reports the log's counters.
func (l *MemoryLog) Stats(context.Context) (LogStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := LogStats{
		Appended:    l.appended,
		Unread:      uint64(len(l.entries) - l.cursor),
		DeadLetters: uint64(len(l.dead)),
	}
	for _, e := range l.entries[:l.cursor] {
		if !e.acked {
			stats.Pending++
		}
	}
	return stats, nil
}

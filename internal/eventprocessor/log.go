// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"context"
	"time"
)

// Entry is one delivery of a log record to the consumer group.
type Entry struct {
	// ID identifies the record within the log. It is stable across
	// redeliveries.
	ID string

	// Deliveries is the number of times the record was delivered before
	// this delivery.
	Deliveries int

	Payload []byte
}

// DeadLetter is the record appended to the dead-letter log. Payload is the
// original entry payload, verbatim.
type DeadLetter struct {
	EntryID    string    `json:"entry_id"`
	SourceID   string    `json:"source_id,omitempty"`
	Deliveries int       `json:"deliveries"`
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failed_at"`
	Payload    []byte    `json:"payload"`
}

// Log is a durable append-only log with consumer-group semantics.
//
// A group tracks acknowledgment per entry independently of any single
// process. Delivered but unacknowledged entries stay pending and are
// visible to any live consumer of the group.
type Log interface {
	// Append adds a record and returns its entry id.
	Append(ctx context.Context, payload []byte) (string, error)

	// EnsureGroup creates the consumer group if it does not exist.
	EnsureGroup(ctx context.Context) error

	// ReadPending returns up to count entries that were delivered but not
	// acknowledged, each with its prior delivery count.
	ReadPending(ctx context.Context, count int) ([]Entry, error)

	// ReadNew returns up to count never-delivered entries, waiting up to
	// block for at least one to arrive.
	ReadNew(ctx context.Context, count int, block time.Duration) ([]Entry, error)

	// Ack removes an entry from the pending set.
	Ack(ctx context.Context, id string) error

	// DeadLetter appends a record to the dead-letter log. It does not ack
	// the original entry.
	DeadLetter(ctx context.Context, dl DeadLetter) error
}

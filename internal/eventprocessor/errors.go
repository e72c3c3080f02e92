// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import "errors"

// ErrGroupNotReady is returned by read and ack operations before EnsureGroup.
var ErrGroupNotReady = errors.New("consumer group not initialized")

// ErrUnknownEntry is returned when acking an entry this log never delivered.
var ErrUnknownEntry = errors.New("unknown log entry")

// ErrClosed is returned by operations on a closed log or bus.
var ErrClosed = errors.New("closed")

// ErrInvalidConfig is returned when configuration is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

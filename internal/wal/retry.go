// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package wal

import (
	"context"
	"math"
	"time"

	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
)

const maxBackoff = 5 * time.Minute

// Appender is the durable event log.
type Appender interface {
	Append(ctx context.Context, payload []byte) (string, error)
}

// RetryLoop replays spooled entries into the event log.
type RetryLoop struct {
	wal *BadgerWAL
	log Appender
	cfg Config
	now func() time.Time
}

// NewRetryLoop creates a retry loop using the WAL's configuration.
func NewRetryLoop(w *BadgerWAL, log Appender) *RetryLoop {
	return &RetryLoop{wal: w, log: log, cfg: w.Config(), now: time.Now}
}

// PassResult summarizes one retry pass.
type PassResult struct {
	Replayed int
	Failed   int
	Expired  int
	Dropped  int
	Waiting  int
}

// Serve replays pending entries immediately and then every RetryInterval
// until ctx ends.
func (r *RetryLoop) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.RetryInterval)
	defer ticker.Stop()
	for {
		res := r.RetryPending(ctx)
		if res.Replayed > 0 {
			if err := r.wal.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("WAL GC failed")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// String implements fmt.Stringer for suture.
func (r *RetryLoop) String() string { return "wal-retry" }

// RetryPending makes one pass over the pending entries.
func (r *RetryLoop) RetryPending(ctx context.Context) (res PassResult) {
	entries, err := r.wal.GetPending(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("WAL retry: failed to read pending entries")
		return res
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return res
		}
		switch {
		case r.now().Sub(e.CreatedAt) > r.cfg.EntryTTL:
			r.drop(ctx, e, "expired")
			res.Expired++
		case e.Attempts >= r.cfg.MaxRetries:
			r.drop(ctx, e, "dropped")
			res.Dropped++
		case !r.ready(e):
			res.Waiting++
		default:
			if r.replay(ctx, e) {
				res.Replayed++
			} else {
				res.Failed++
			}
		}
	}

	if res.Replayed+res.Failed+res.Expired+res.Dropped > 0 {
		logging.Info().
			Int("replayed", res.Replayed).
			Int("failed", res.Failed).
			Int("expired", res.Expired).
			Int("dropped", res.Dropped).
			Int("waiting", res.Waiting).
			Msg("WAL retry pass complete")
	}
	return res
}

func (r *RetryLoop) replay(ctx context.Context, e *Entry) bool {
	appendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	_, err := r.log.Append(appendCtx, e.Payload)
	cancel()
	if err != nil {
		logging.Debug().Err(err).Str("entry_id", e.ID).Int("attempt", e.Attempts+1).Msg("WAL retry: append failed")
		if uerr := r.wal.UpdateAttempt(ctx, e.ID, err.Error()); uerr != nil {
			logging.Error().Err(uerr).Str("entry_id", e.ID).Msg("WAL retry: failed to record attempt")
		}
		return false
	}
	if err := r.wal.Confirm(ctx, e.ID); err != nil {
		logging.Error().Err(err).Str("entry_id", e.ID).Msg("WAL retry: failed to confirm entry")
	}
	metrics.RecordWALEntry("replayed")
	return true
}

func (r *RetryLoop) drop(ctx context.Context, e *Entry, outcome string) {
	logging.Error().
		Str("entry_id", e.ID).
		Int("attempts", e.Attempts).
		Str("last_error", e.LastError).
		Str("outcome", outcome).
		Msg("WAL retry: giving up on entry")
	if err := r.wal.DeleteEntry(ctx, e.ID); err != nil {
		logging.Error().Err(err).Str("entry_id", e.ID).Msg("WAL retry: failed to delete entry")
	}
	metrics.RecordWALEntry(outcome)
}

// ready reports whether an entry's backoff has elapsed.
func (r *RetryLoop) ready(e *Entry) bool {
	if e.LastAttemptAt.IsZero() {
		return true
	}
	return r.now().Sub(e.LastAttemptAt) >= backoff(r.cfg.RetryBackoff, e.Attempts)
}

// backoff is base * 2^attempts, capped at five minutes.
func backoff(base time.Duration, attempts int) time.Duration {
	if attempts > 50 {
		return maxBackoff
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempts)))
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

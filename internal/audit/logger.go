// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/quakegraph/internal/logging"
)

// Config holds configuration for the audit logger.
type Config struct {
	Enabled bool

	// RetentionDays is how long events are kept. Zero keeps them forever.
	RetentionDays int

	// CleanupInterval is how often retention runs. Default: 24h
	CleanupInterval time.Duration

	// BufferSize is the number of events queued for the writer. Default: 256
	BufferSize int
}

// Logger queues events and writes them to a Store from Serve.
type Logger struct {
	cfg    Config
	store  Store
	events chan *Event
	now    func() time.Time
}

// NewLogger creates a logger. Events are only persisted while Serve runs.
func NewLogger(store Store, cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}
	return &Logger{
		cfg:    cfg,
		store:  store,
		events: make(chan *Event, cfg.BufferSize),
		now:    time.Now,
	}
}

// Log queues an event. It never blocks; a full queue drops the event.
func (l *Logger) Log(event *Event) {
	if !l.cfg.Enabled || event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
		if event.Outcome == OutcomeFailure {
			event.Severity = SeverityWarning
		}
	}

	select {
	case l.events <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).
			Msg("Audit event buffer full, dropping event")
	}
}

// Query reads events from the store.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Serve writes queued events and applies retention until ctx ends, then
// drains what is left in the queue.
func (l *Logger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	l.cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case e := <-l.events:
			l.write(ctx, e)
		case <-ticker.C:
			l.cleanup(ctx)
		}
	}
}

// String implements fmt.Stringer for suture.
func (l *Logger) String() string { return "audit-logger" }

func (l *Logger) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-l.events:
			l.write(ctx, e)
		default:
			return
		}
	}
}

func (l *Logger) write(ctx context.Context, e *Event) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := l.store.Save(writeCtx, e); err != nil {
		logging.Error().Err(err).Str("event_id", e.ID).Msg("Failed to save audit event")
	}
}

func (l *Logger) cleanup(ctx context.Context) {
	if l.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := l.now().Add(-time.Duration(l.cfg.RetentionDays) * 24 * time.Hour)
	n, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Msg("Audit retention cleanup failed")
		return
	}
	if n > 0 {
		logging.Info().Int64("deleted", n).Time("older_than", cutoff).Msg("Deleted old audit events")
	}
}

// SourceFromRequest extracts the client address and user agent.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{IPAddress: ip, UserAgent: r.UserAgent()}
}

// ActorFromRequest identifies an unauthenticated client by its address.
func ActorFromRequest(r *http.Request) Actor {
	return Actor{ID: SourceFromRequest(r).IPAddress, Type: "client"}
}

// SystemActor is the actor for actions the server takes on its own.
func SystemActor() Actor {
	return Actor{ID: "quakegraph", Type: "system"}
}

// MustJSON marshals v for Event.Metadata, returning nil on failure.
func MustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

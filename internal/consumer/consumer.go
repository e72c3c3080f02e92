// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
	"github.com/tomtom215/quakegraph/internal/models"
)

// ErrPoisonMessage marks a payload that can never be processed.
var ErrPoisonMessage = errors.New("poison message")

// Outcome labels.
const (
	outcomeAcked        = "acked"
	outcomeFailed       = "failed"
	outcomeDeadLettered = "dead_lettered"
)

const (
	readRetryDelay        = time.Second // pause after a failed log read
	defaultProcessTimeout = 30 * time.Second
	defaultBlock          = 5 * time.Second
)

// DocumentStore is the system of record for events.
type DocumentStore interface {
	UpsertEvent(ctx context.Context, ev *models.Event) error
}

// GraphStore merges an event and its inferred relationships.
type GraphStore interface {
	MergeEvent(ctx context.Context, ev models.Event) (int, error)
}

// Mirror copies events to a secondary store.
type Mirror interface {
	WriteEvent(ctx context.Context, ev models.Event) error
}

// Enricher fills derived event fields in place.
type Enricher interface {
	Enrich(ctx context.Context, ev *models.Event)
}

// Config wires a Consumer. Graph and Mirror are optional.
type Config struct {
	Log      eventprocessor.Log
	Docs     DocumentStore
	Graph    GraphStore
	Mirror   Mirror
	Enricher Enricher
	Settings config.ConsumerConfig
}

// Stats holds runtime counters for monitoring.
type Stats struct {
	Received      int64     `json:"received"`
	Acked         int64     `json:"acked"`
	Failed        int64     `json:"failed"`
	DeadLettered  int64     `json:"dead_lettered"`
	GraphFailures int64     `json:"graph_failures"`
	LastEntryTime time.Time `json:"last_entry_time"`
}

// Consumer drains the event log into the stores.
type Consumer struct {
	log      eventprocessor.Log
	docs     DocumentStore
	graph    GraphStore
	mirror   Mirror
	enricher Enricher
	cfg      config.ConsumerConfig

	received      atomic.Int64
	acked         atomic.Int64
	failed        atomic.Int64
	deadLettered  atomic.Int64
	graphFailures atomic.Int64
	lastEntryTime atomic.Value // time.Time
}

// New creates a consumer.
func New(cfg Config) (*Consumer, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("event log required")
	}
	if cfg.Docs == nil {
		return nil, fmt.Errorf("document store required")
	}
	if cfg.Settings.BatchSize <= 0 || cfg.Settings.MaxDeliveries <= 0 {
		return nil, fmt.Errorf("%w: batch size and max deliveries must be positive", config.ErrInvalidConfig)
	}
	if cfg.Settings.ProcessTimeout <= 0 {
		cfg.Settings.ProcessTimeout = defaultProcessTimeout
	}
	if cfg.Settings.Block <= 0 {
		cfg.Settings.Block = defaultBlock
	}
	c := &Consumer{
		log:      cfg.Log,
		docs:     cfg.Docs,
		graph:    cfg.Graph,
		mirror:   cfg.Mirror,
		enricher: cfg.Enricher,
		cfg:      cfg.Settings,
	}
	c.lastEntryTime.Store(time.Time{})
	return c, nil
}

// Init creates the consumer group. Failure here is fatal to the process.
func (c *Consumer) Init(ctx context.Context) error {
	if err := c.log.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	return nil
}

// Serve runs the consume loop until ctx ends.
func (c *Consumer) Serve(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	logging.Info().
		Str("consumer", c.cfg.Name).
		Int("batch", c.cfg.BatchSize).
		Int("max_deliveries", c.cfg.MaxDeliveries).
		Msg("stream consumer started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.RunOnce(ctx); err != nil {
			if errors.Is(err, eventprocessor.ErrClosed) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn().Err(err).Msg("event log read failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readRetryDelay):
			}
		}
	}
}

// String identifies the service in the supervisor tree.
func (c *Consumer) String() string { return "stream-consumer" }

// RunOnce performs one recovery pass and one new-entry pass.
func (c *Consumer) RunOnce(ctx context.Context) error {
	pending, err := c.log.ReadPending(ctx, c.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("read pending: %w", err)
	}
	for _, e := range pending {
		c.handle(ctx, e)
	}

	fresh, err := c.log.ReadNew(ctx, c.cfg.BatchSize, c.cfg.Block)
	for _, e := range fresh {
		c.handle(ctx, e)
	}
	if err != nil {
		return fmt.Errorf("read new: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() Stats {
	last, _ := c.lastEntryTime.Load().(time.Time)
	return Stats{
		Received:      c.received.Load(),
		Acked:         c.acked.Load(),
		Failed:        c.failed.Load(),
		DeadLettered:  c.deadLettered.Load(),
		GraphFailures: c.graphFailures.Load(),
		LastEntryTime: last,
	}
}

func (c *Consumer) handle(ctx context.Context, e eventprocessor.Entry) {
	start := time.Now()
	c.received.Add(1)
	c.lastEntryTime.Store(start)

	if e.Deliveries > c.cfg.MaxDeliveries {
		reason := fmt.Sprintf("exceeded %d deliveries", c.cfg.MaxDeliveries)
		c.deadLetter(ctx, e, reason, start)
		return
	}

	err := c.process(ctx, e)
	switch {
	case errors.Is(err, ErrPoisonMessage):
		c.deadLetter(ctx, e, err.Error(), start)
	case err != nil:
		c.failed.Add(1)
		metrics.RecordConsumerOutcome(outcomeFailed, time.Since(start))
		logging.Ctx(ctx).Warn().Err(err).
			Str("entry_id", e.ID).
			Int("deliveries", e.Deliveries).
			Msg("processing failed, entry left pending")
	default:
		if err := c.log.Ack(ctx, e.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("entry_id", e.ID).Msg("ack failed")
			return
		}
		c.acked.Add(1)
		metrics.RecordConsumerOutcome(outcomeAcked, time.Since(start))
	}
}

// process runs one delivery end to end. Only a document store failure or
// an undecodable payload is returned.
func (c *Consumer) process(parent context.Context, e eventprocessor.Entry) error {
	ev, err := decode(e.Payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, c.cfg.ProcessTimeout)
	defer cancel()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx).With().Str("event_id", ev.ID).Str("entry_id", e.ID).Logger()

	if c.enricher != nil {
		c.enricher.Enrich(ctx, &ev)
	}

	if err := c.docs.UpsertEvent(ctx, &ev); err != nil {
		return fmt.Errorf("store event %s: %w", ev.ID, err)
	}

	if c.graph != nil {
		inferred, err := c.graph.MergeEvent(ctx, ev)
		if err != nil {
			c.graphFailures.Add(1)
			metrics.GraphWriteFailures.Inc()
			log.Error().Err(err).Msg("graph merge failed")
		} else {
			log.Debug().Int("relationships", inferred).Msg("event merged into graph")
		}
	}

	if c.mirror != nil {
		if err := c.mirror.WriteEvent(ctx, ev); err != nil {
			log.Warn().Err(err).Msg("time-series mirror write failed")
		}
	}
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, e eventprocessor.Entry, reason string, start time.Time) {
	dl := eventprocessor.DeadLetter{
		EntryID:    e.ID,
		SourceID:   sourceID(e.Payload),
		Deliveries: e.Deliveries,
		Reason:     reason,
		FailedAt:   time.Now().UTC(),
		Payload:    e.Payload,
	}
	if err := c.log.DeadLetter(ctx, dl); err != nil {
		// Not acked, so the entry comes back and the write is retried.
		logging.Ctx(ctx).Error().Err(err).Str("entry_id", e.ID).Msg("dead-letter write failed")
		return
	}
	if err := c.log.Ack(ctx, e.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("entry_id", e.ID).Msg("ack after dead-letter failed")
	}
	c.deadLettered.Add(1)
	metrics.RecordConsumerOutcome(outcomeDeadLettered, time.Since(start))
	logging.Ctx(ctx).Warn().
		Str("entry_id", e.ID).
		Str("source_id", dl.SourceID).
		Int("deliveries", e.Deliveries).
		Str("reason", reason).
		Msg("entry moved to dead-letter log")
}

func decode(payload []byte) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}
	if ev.ID == "" {
		return ev, fmt.Errorf("%w: event has no id", ErrPoisonMessage)
	}
	return ev, nil
}

// sourceID extracts the event id from a payload when it decodes.
func sourceID(payload []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}

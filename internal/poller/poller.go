// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package poller fetches the earthquake feed on a fixed interval and fans
// each new record out to the recency buffer, the alert channel, the durable
// event log and the live channel.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/feed"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
	"github.com/tomtom215/quakegraph/internal/models"
)

// Fetcher returns the current feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.Record, error)
}

// RecentBuffer keeps the newest events.
type RecentBuffer interface {
	Insert(ctx context.Context, ev *models.Event) error
}

// Appender writes to the durable event log.
type Appender interface {
	Append(ctx context.Context, payload []byte) (string, error)
}

// Spooler holds payloads the event log rejected so they can be replayed.
type Spooler interface {
	Write(ctx context.Context, payload []byte) (string, error)
}

// Publisher broadcasts to a pub/sub topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Config wires a Poller.
type Config struct {
	Feed     Fetcher
	Marker   eventprocessor.Marker
	Buffer   RecentBuffer // optional
	Log      Appender
	Spool    Spooler   // optional
	Bus      Publisher // optional
	Alerts   AlertPolicy
	Interval time.Duration
}

// CycleStats summarizes one poll.
type CycleStats struct {
	Fetched    int `json:"fetched"`
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
	Alerts     int `json:"alerts"`
	Spooled    int `json:"spooled"`
	Failed     int `json:"failed"`
}

// Poller is the ingestion front end.
type Poller struct {
	feed     Fetcher
	marker   eventprocessor.Marker
	buffer   RecentBuffer
	log      Appender
	spool    Spooler
	bus      Publisher
	alerts   AlertPolicy
	interval time.Duration
}

// New creates a poller.
func New(cfg Config) (*Poller, error) {
	switch {
	case cfg.Feed == nil:
		return nil, errors.New("poller: feed client required")
	case cfg.Marker == nil:
		return nil, errors.New("poller: dedup marker required")
	case cfg.Log == nil:
		return nil, errors.New("poller: event log required")
	case cfg.Interval <= 0:
		return nil, errors.New("poller: interval must be positive")
	}
	return &Poller{
		feed:     cfg.Feed,
		marker:   cfg.Marker,
		buffer:   cfg.Buffer,
		log:      cfg.Log,
		spool:    cfg.Spool,
		bus:      cfg.Bus,
		alerts:   cfg.Alerts,
		interval: cfg.Interval,
	}, nil
}

// Serve polls immediately and then on every tick until ctx ends.
func (p *Poller) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", p.interval).Msg("feed poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			logging.Warn().Err(err).Msg("poll cycle skipped")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// String identifies the service in the supervisor tree.
func (p *Poller) String() string { return "feed-poller" }

// PollOnce runs one cycle. A fetch failure skips the cycle and is
// returned; per-record failures are logged, counted and do not abort the
// batch.
func (p *Poller) PollOnce(ctx context.Context) (stats CycleStats, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordPollCycle(time.Since(start), stats.Fetched, stats.New, stats.Duplicates, err)
	}()

	records, err := p.feed.Fetch(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch feed: %w", err)
	}
	stats.Fetched = len(records)

	for i := range records {
		fresh, alerted, spooled, err := p.ingest(ctx, &records[i])
		if spooled {
			stats.Spooled++
		}
		switch {
		case err != nil:
			stats.Failed++
			logging.Warn().Err(err).Str("event_id", records[i].Event.ID).Msg("failed to ingest record")
		case !fresh:
			stats.Duplicates++
		default:
			stats.New++
			if alerted {
				stats.Alerts++
			}
		}
	}

	logging.Info().
		Int("fetched", stats.Fetched).
		Int("new", stats.New).
		Int("duplicates", stats.Duplicates).
		Int("alerts", stats.Alerts).
		Int("spooled", stats.Spooled).
		Int("failed", stats.Failed).
		Msg("poll cycle complete")
	return stats, nil
}

// ingest handles one record. The dedup mark is taken first, so a record
// whose append fails is lost until the marker expires unless a spool is
// configured to hold it for replay.
func (p *Poller) ingest(ctx context.Context, rec *feed.Record) (fresh, alerted, spooled bool, err error) {
	ev := rec.Event
	fresh, err = p.marker.MarkNew(ctx, ev.ID)
	if err != nil || !fresh {
		return false, false, false, err
	}

	if p.buffer != nil {
		if err := p.buffer.Insert(ctx, &ev); err != nil {
			logging.Warn().Err(err).Str("event_id", ev.ID).Msg("recency buffer insert failed")
		}
	}

	if alert, ok := p.alerts.Evaluate(ev); ok {
		alerted = true
		ev.IsAlert = true
		metrics.RecordAlert(p.alerts.IsRegional(ev.Place))
		p.publishJSON(ctx, eventprocessor.TopicAlert, alert)
		logging.Warn().Str("event_id", ev.ID).Float64("magnitude", ev.Magnitude).Msg(alert.Message)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return true, alerted, false, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if _, err := p.log.Append(ctx, payload); err != nil {
		if p.spool == nil {
			return true, alerted, false, fmt.Errorf("append event %s: %w", ev.ID, err)
		}
		if _, serr := p.spool.Write(ctx, payload); serr != nil {
			return true, alerted, false, fmt.Errorf("append event %s: %w (spool: %w)", ev.ID, err, serr)
		}
		spooled = true
		logging.Warn().Err(err).Str("event_id", ev.ID).Msg("event log append failed, spooled for replay")
	}

	if p.bus != nil && len(rec.Raw) > 0 {
		if err := p.bus.Publish(ctx, eventprocessor.TopicLive, rec.Raw); err != nil {
			logging.Debug().Err(err).Str("event_id", ev.ID).Msg("live publish failed")
		}
	}
	return true, alerted, spooled, nil
}

func (p *Poller) publishJSON(ctx context.Context, topic string, v any) {
	if p.bus == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logging.Warn().Err(err).Str("topic", topic).Msg("encode broadcast")
		return
	}
	if err := p.bus.Publish(ctx, topic, data); err != nil {
		logging.Debug().Err(err).Str("topic", topic).Msg("broadcast failed")
	}
}

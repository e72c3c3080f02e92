// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/feed"
	"github.com/tomtom215/quakegraph/internal/models"
)

type staticFeed struct {
	records []feed.Record
	err     error
}

func (f *staticFeed) Fetch(context.Context) ([]feed.Record, error) {
	return f.records, f.err
}

type published struct {
	topic   string
	payload []byte
}

type recordingBus struct {
	mu   sync.Mutex
	msgs []published
}

func (b *recordingBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{topic, payload})
	return nil
}

func (b *recordingBus) on(topic string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, m := range b.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type memBuffer struct {
	events []models.Event
}

func (b *memBuffer) Insert(_ context.Context, ev *models.Event) error {
	b.events = append(b.events, *ev)
	return nil
}

type failingLog struct{}

func (failingLog) Append(context.Context, []byte) (string, error) {
	return "", errors.New("log unavailable")
}

func record(id string, mag float64, place string) feed.Record {
	ev := models.Event{ID: id, Magnitude: mag, Latitude: 36, Longitude: -120, Time: 1770045297070, Place: place}
	raw, _ := json.Marshal(map[string]any{"type": "Feature", "id": id})
	return feed.Record{Event: ev, Raw: raw}
}

func alertConfig() config.AlertConfig {
	return config.AlertConfig{GlobalThreshold: 5.0, RegionalThreshold: 3.5, HighRiskRegions: []string{"California", "Japan"}}
}

type harness struct {
	poller *Poller
	log    *eventprocessor.MemoryLog
	bus    *recordingBus
	buffer *memBuffer
	feed   *staticFeed
}

func newHarness(t *testing.T, records ...feed.Record) *harness {
	t.Helper()
	h := &harness{
		log:    eventprocessor.NewMemoryLog(),
		bus:    &recordingBus{},
		buffer: &memBuffer{},
		feed:   &staticFeed{records: records},
	}
	p, err := New(Config{
		Feed:     h.feed,
		Marker:   eventprocessor.NewMemoryMarker(24 * time.Hour),
		Buffer:   h.buffer,
		Log:      h.log,
		Bus:      h.bus,
		Alerts:   NewAlertPolicy(alertConfig()),
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.poller = p
	return h
}

func TestPollOnce_Dedup(t *testing.T) {
	t.Parallel()

	h := newHarness(t, record("us1", 2.1, "Nevada"), record("us2", 1.0, "Alaska"))
	ctx := context.Background()

	first, err := h.poller.PollOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Fetched != 2 || first.New != 2 || first.Duplicates != 0 {
		t.Errorf("first cycle = %+v", first)
	}

	second, err := h.poller.PollOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.New != 0 || second.Duplicates != 2 {
		t.Errorf("second cycle = %+v, want all duplicates", second)
	}
	if h.log.Len() != 2 {
		t.Errorf("log entries = %d, want 2", h.log.Len())
	}
	if len(h.buffer.events) != 2 {
		t.Errorf("buffer inserts = %d, want 2", len(h.buffer.events))
	}
	if live := h.bus.on(eventprocessor.TopicLive); len(live) != 2 {
		t.Errorf("live broadcasts = %d, want 2", len(live))
	}
}

func TestPollOnce_LivePayloadIsRaw(t *testing.T) {
	t.Parallel()

	rec := record("us9", 1.0, "Alaska")
	h := newHarness(t, rec)
	if _, err := h.poller.PollOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	live := h.bus.on(eventprocessor.TopicLive)
	if len(live) != 1 || string(live[0].payload) != string(rec.Raw) {
		t.Errorf("live payload = %v, want raw feature", live)
	}
}

func TestPollOnce_Alerts(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		record("ca", 3.6, "10 km N of Ridgecrest, California"),
		record("elsewhere", 3.6, "20 km S of Somewhere, Chile"),
		record("big", 5.0, "Fiji region"),
	)
	stats, err := h.poller.PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Alerts != 2 {
		t.Errorf("Alerts = %d, want 2", stats.Alerts)
	}

	alerts := h.bus.on(eventprocessor.TopicAlert)
	if len(alerts) != 2 {
		t.Fatalf("alert broadcasts = %d, want 2", len(alerts))
	}
	var first models.Alert
	if err := json.Unmarshal(alerts[0].payload, &first); err != nil {
		t.Fatal(err)
	}
	want := "REGIONAL ALERT: Magnitude 3.6 earthquake detected near 10 km N of Ridgecrest, California"
	if first.Message != want {
		t.Errorf("message = %q, want %q", first.Message, want)
	}
	if !first.Event.IsAlert {
		t.Error("alert event should carry is_alert")
	}

	var second models.Alert
	if err := json.Unmarshal(alerts[1].payload, &second); err != nil {
		t.Fatal(err)
	}
	if second.Message != "ALERT: Magnitude 5.0 earthquake detected near Fiji region" {
		t.Errorf("message = %q", second.Message)
	}

	// The logged copy carries the flag too.
	if err := h.log.EnsureGroup(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries, err := h.log.ReadNew(context.Background(), 10, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	flagged := map[string]bool{}
	for _, e := range entries {
		var ev models.Event
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			t.Fatal(err)
		}
		flagged[ev.ID] = ev.IsAlert
	}
	if !flagged["ca"] || flagged["elsewhere"] || !flagged["big"] {
		t.Errorf("is_alert in log = %v", flagged)
	}
}

func TestPollOnce_FetchFailureSkipsCycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.feed.err = errors.New("503")
	if _, err := h.poller.PollOnce(context.Background()); err == nil {
		t.Fatal("PollOnce() error = nil, want fetch failure")
	}
	if h.log.Len() != 0 {
		t.Error("nothing should be appended on fetch failure")
	}
}

func TestPollOnce_AppendFailureCounted(t *testing.T) {
	t.Parallel()

	p, err := New(Config{
		Feed:     &staticFeed{records: []feed.Record{record("a", 1, "x"), record("b", 1, "y")}},
		Marker:   eventprocessor.NewMemoryMarker(time.Hour),
		Log:      failingLog{},
		Alerts:   NewAlertPolicy(alertConfig()),
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	stats, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce() error = %v, per-record failures must not fail the cycle", err)
	}
	if stats.Failed != 2 || stats.New != 0 {
		t.Errorf("stats = %+v, want 2 failed", stats)
	}
}

type memSpool struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (s *memSpool) Write(_ context.Context, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.payloads = append(s.payloads, payload)
	return "spool-1", nil
}

func TestPollOnce_AppendFailureSpooled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		spoolErr    error
		wantNew     int
		wantSpooled int
		wantFailed  int
	}{
		{name: "spool accepts", wantNew: 2, wantSpooled: 2},
		{name: "spool unavailable", spoolErr: errors.New("disk full"), wantFailed: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spool := &memSpool{err: tt.spoolErr}
			p, err := New(Config{
				Feed:     &staticFeed{records: []feed.Record{record("a", 1, "x"), record("b", 1, "y")}},
				Marker:   eventprocessor.NewMemoryMarker(time.Hour),
				Log:      failingLog{},
				Spool:    spool,
				Alerts:   NewAlertPolicy(alertConfig()),
				Interval: time.Minute,
			})
			if err != nil {
				t.Fatal(err)
			}
			stats, err := p.PollOnce(context.Background())
			if err != nil {
				t.Fatalf("PollOnce() error = %v", err)
			}
			if stats.New != tt.wantNew || stats.Spooled != tt.wantSpooled || stats.Failed != tt.wantFailed {
				t.Errorf("stats = %+v, want new=%d spooled=%d failed=%d", stats, tt.wantNew, tt.wantSpooled, tt.wantFailed)
			}
			if len(spool.payloads) != tt.wantSpooled {
				t.Errorf("spooled payloads = %d, want %d", len(spool.payloads), tt.wantSpooled)
			}
		})
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Interval: time.Second}); err == nil {
		t.Error("New() with no dependencies should fail")
	}
}

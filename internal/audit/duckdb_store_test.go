// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

func newTestDuckDBStore(t *testing.T) *DuckDBStore {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewDuckDBStore(db)
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	return store
}

func TestDuckDBStore_SaveGet(t *testing.T) {
	t.Parallel()

	store := newTestDuckDBStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &Event{
		ID:        "evt-1",
		Timestamp: ts,
		Type:      EventTypeBackfillAddresses,
		Severity:  SeverityInfo,
		Outcome:   OutcomeSuccess,
		Actor:     Actor{ID: "192.0.2.10", Type: "client"},
		Source:    Source{IPAddress: "192.0.2.10", UserAgent: "curl/8.0"},
		Action:    "backfill_addresses",
		Metadata:  MustJSON(map[string]int{"updated": 7}),
		RequestID: "req-1",
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Type != in.Type || got.Outcome != in.Outcome || got.Actor != in.Actor {
		t.Errorf("Get() = %+v, want %+v", got, in)
	}
	if string(got.Metadata) != `{"updated":7}` {
		t.Errorf("Metadata = %s, want {\"updated\":7}", got.Metadata)
	}
	if got.Description != "" {
		t.Errorf("Description = %q, want empty", got.Description)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDuckDBStore_QueryAndDelete(t *testing.T) {
	t.Parallel()

	store := newTestDuckDBStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, e := range []Event{
		{ID: "a", Type: EventTypeReclusterRequested, Outcome: OutcomeSuccess},
		{ID: "b", Type: EventTypeBackfillAddresses, Outcome: OutcomeFailure},
		{ID: "c", Type: EventTypeReclusterRequested, Outcome: OutcomeFailure},
	} {
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		e.Severity = SeverityInfo
		e.Actor = SystemActor()
		e.Source = Source{IPAddress: "127.0.0.1"}
		e.Action = "test"
		if err := store.Save(ctx, &e); err != nil {
			t.Fatalf("Save(%s) error = %v", e.ID, err)
		}
	}

	got, err := store.Query(ctx, QueryFilter{Types: []EventType{EventTypeReclusterRequested}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Errorf("Query(type) = %v, want [c a]", ids(got))
	}

	since := base.Add(30 * time.Minute)
	got, err = store.Query(ctx, QueryFilter{Outcome: OutcomeFailure, Since: &since, Limit: 1})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Query(outcome, since, limit) = %v, want [c]", ids(got))
	}

	n, err := store.Delete(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Delete() = %d, want 2", n)
	}
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// startEmbedded runs a JetStream server on a random port in a temp dir.
func startEmbedded(t *testing.T) *natsgo.Conn {
	t.Helper()
	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              -1,
		StoreDir:          t.TempDir(),
		JetStreamMaxMem:   64 << 20,
		JetStreamMaxStore: 256 << 20,
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	if !srv.JetStreamEnabled() {
		t.Fatal("JetStream not enabled on embedded server")
	}

	nc, err := Connect(srv.ClientURL(), "test")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func testStreamConfig() StreamConfig {
	cfg := DefaultStreamConfig()
	cfg.AckWait = 500 * time.Millisecond
	return cfg
}

func TestJetStreamLog_AppendReadAck(t *testing.T) {
	nc := startEmbedded(t)
	ctx := context.Background()

	l, err := NewJetStreamLog(nc, testStreamConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureGroup(ctx); err != nil {
		t.Fatalf("EnsureGroup() error = %v", err)
	}
	// EnsureGroup is idempotent across restarts.
	if err := l.EnsureGroup(ctx); err != nil {
		t.Fatalf("second EnsureGroup() error = %v", err)
	}

	id, err := l.Append(ctx, []byte(`{"id":"us1"}`))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := l.ReadNew(ctx, 10, 2*time.Second)
	if err != nil {
		t.Fatalf("ReadNew() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ReadNew() = %d entries, want 1", len(got))
	}
	if got[0].ID != id || got[0].Deliveries != 0 || string(got[0].Payload) != `{"id":"us1"}` {
		t.Errorf("entry = %+v, want id %s with 0 prior deliveries", got[0], id)
	}

	if err := l.Ack(ctx, id); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}

	pending, err := l.ReadPending(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Errorf("ReadPending() = %v, %v; want empty", pending, err)
	}

	// Acked entries are not redelivered after the ack window.
	time.Sleep(700 * time.Millisecond)
	again, err := l.ReadNew(ctx, 10, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadNew() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("acked entry redelivered: %+v", again)
	}
}

func TestJetStreamLog_RedeliveryCountsDeliveries(t *testing.T) {
	nc := startEmbedded(t)
	ctx := context.Background()

	l, err := NewJetStreamLog(nc, testStreamConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureGroup(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Append(ctx, []byte("x")); err != nil {
		t.Fatal(err)
	}

	first, err := l.ReadNew(ctx, 1, 2*time.Second)
	if err != nil || len(first) != 1 {
		t.Fatalf("first ReadNew() = %v, %v", first, err)
	}

	// Not acked: JetStream redelivers after AckWait.
	var second []Entry
	deadline := time.Now().Add(5 * time.Second)
	for len(second) == 0 && time.Now().Before(deadline) {
		second, err = l.ReadNew(ctx, 1, time.Second)
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(second) != 1 {
		t.Fatal("entry was not redelivered")
	}
	if second[0].ID != first[0].ID {
		t.Errorf("redelivered id = %s, want %s", second[0].ID, first[0].ID)
	}
	if second[0].Deliveries != 1 {
		t.Errorf("redelivery Deliveries = %d, want 1", second[0].Deliveries)
	}
	if err := l.Ack(ctx, second[0].ID); err != nil {
		t.Errorf("Ack() error = %v", err)
	}
}

func TestJetStreamLog_DeadLetter(t *testing.T) {
	nc := startEmbedded(t)
	ctx := context.Background()

	cfg := testStreamConfig()
	l, err := NewJetStreamLog(nc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureGroup(ctx); err != nil {
		t.Fatal(err)
	}

	dl := DeadLetter{
		EntryID:    "7",
		SourceID:   "us7000abcd",
		Deliveries: 6,
		Reason:     "document store unavailable",
		FailedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:    []byte(`{"id":"us7000abcd"}`),
	}
	if err := l.DeadLetter(ctx, dl); err != nil {
		t.Fatalf("DeadLetter() error = %v", err)
	}
	// Same entry dead-lettered twice is stored once.
	if err := l.DeadLetter(ctx, dl); err != nil {
		t.Fatalf("second DeadLetter() error = %v", err)
	}

	js, _ := jetstream.New(nc)
	stream, err := js.Stream(ctx, cfg.DLQName)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := stream.GetLastMsgForSubject(ctx, cfg.DLQSubject)
	if err != nil {
		t.Fatalf("GetLastMsgForSubject() error = %v", err)
	}
	var got DeadLetter
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.SourceID != dl.SourceID || string(got.Payload) != string(dl.Payload) {
		t.Errorf("dead letter = %+v, want %+v", got, dl)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DeadLetters != 1 {
		t.Errorf("Stats().DeadLetters = %d, want 1", stats.DeadLetters)
	}
}

func TestKVMarker(t *testing.T) {
	nc := startEmbedded(t)
	ctx := context.Background()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewKVMarker(ctx, js, "quake-dedup-test", time.Hour)
	if err != nil {
		t.Fatalf("NewKVMarker() error = %v", err)
	}

	for i, want := range []bool{true, false, false} {
		got, err := m.MarkNew(ctx, "us7000abcd")
		if err != nil {
			t.Fatalf("MarkNew() #%d error = %v", i, err)
		}
		if got != want {
			t.Errorf("MarkNew() #%d = %v, want %v", i, got, want)
		}
	}
	if got, _ := m.MarkNew(ctx, "weird id/with.dots"); !got {
		t.Error("MarkNew() for an id needing encoding = false, want true")
	}
}

func TestNATSBus_RoundTrip(t *testing.T) {
	nc := startEmbedded(t)

	bus, err := NewNATSBus(nc.ConnectedUrl(), watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewNATSBus() error = %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicControl)
	if err != nil {
		t.Fatal(err)
	}

	// Core NATS interest propagates asynchronously; publish until seen.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := bus.Publish(ctx, TopicControl, []byte(ControlRecluster)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		select {
		case msg := <-msgs:
			msg.Ack()
			if string(msg.Payload) != ControlRecluster {
				t.Errorf("payload = %q, want %q", msg.Payload, ControlRecluster)
			}
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("no message received")
		}
	}
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/websocket"
)

func startLiveServer(t *testing.T, origins []string) (*httptest.Server, *websocket.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub()
	go func() { _ = hub.Serve(ctx) }()

	env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) {
		c.Hub = hub
		c.AllowedOrigins = origins
	})
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live"
}

func TestLiveFeed_ReceivesBroadcast(t *testing.T) {
	t.Parallel()
	srv, hub := startLiveServer(t, []string{"https://quakes.example"})

	header := http.Header{"Origin": []string{"https://quakes.example"}}
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !hub.Broadcast(websocket.MessageTypeAlert, []byte(`{"message":"ALERT: Magnitude 5.0 earthquake detected near Fiji region"}`)) {
		t.Fatal("Broadcast() = false")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg websocket.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != websocket.MessageTypeAlert {
		t.Errorf("Type = %q, want alert", msg.Type)
	}
	if !strings.Contains(string(msg.Data), "Fiji region") {
		t.Errorf("Data = %s", msg.Data)
	}
}

func TestLiveFeed_OriginCheck(t *testing.T) {
	t.Parallel()
	srv, hub := startLiveServer(t, []string{"https://quakes.example"})

	tests := []struct {
		name   string
		origin string
	}{
		{"foreign origin", "https://evil.example"},
		{"missing origin", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL(srv), header)
			if err == nil {
				_ = conn.Close()
				t.Fatal("Dial() succeeded, want rejection")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
			if resp != nil {
				_ = resp.Body.Close()
			}
		})
	}
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
}

func TestCheckOrigin_Wildcard(t *testing.T) {
	t.Parallel()

	h := &Handler{origins: []string{"*"}}
	r := httptest.NewRequest(http.MethodGet, "/ws/live", nil)
	if !h.checkOrigin(r) {
		t.Error("wildcard should allow a request without Origin")
	}
}

func TestLiveFeed_Disabled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	if rec, _ := env.do(t, http.MethodGet, "/ws/live"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakegraph/internal/audit"
	"github.com/tomtom215/quakegraph/internal/backup"
	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/database"
	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/graph"
	"github.com/tomtom215/quakegraph/internal/models"
	"github.com/tomtom215/quakegraph/internal/timeseries"
)

type fakeDocs struct {
	mu         sync.Mutex
	events     []models.Event
	filter     models.EventFilter
	pingErr    error
	queryErr   error
	missing    []models.Event
	addresses  map[string]string
	backfilled int
	nearbyArgs []float64
	trendDays  int
}

func (f *fakeDocs) QueryEvents(_ context.Context, filter models.EventFilter) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.events, nil
}

func (f *fakeDocs) GetEvent(_ context.Context, id string) (*models.Event, error) {
	for _, ev := range f.events {
		if ev.ID == id {
			return &ev, nil
		}
	}
	return nil, fmt.Errorf("event %s: %w", id, database.ErrNotFound)
}

func (f *fakeDocs) CountEvents(context.Context) (int64, error) { return int64(len(f.events)), nil }

func (f *fakeDocs) ListClusters(context.Context) ([]models.Cluster, error) {
	return []models.Cluster{{ID: "cl_a", EventCount: 3}}, nil
}

func (f *fakeDocs) GetCluster(_ context.Context, id string) (*models.Cluster, error) {
	if id == "cl_a" {
		return &models.Cluster{ID: "cl_a", EventCount: 3}, nil
	}
	return nil, fmt.Errorf("cluster %s: %w", id, database.ErrNotFound)
}

func (f *fakeDocs) MagnitudeDistribution(context.Context) ([]models.MagnitudeBucket, error) {
	return []models.MagnitudeBucket{{Lower: 2, Count: 5}}, nil
}

func (f *fakeDocs) DailyTrends(_ context.Context, days int, _ time.Time) ([]models.DailyTrend, error) {
	f.trendDays = days
	return []models.DailyTrend{}, nil
}

func (f *fakeDocs) NearestEvents(_ context.Context, lat, lon, radius float64, limit int) ([]models.NearbyEvent, error) {
	f.nearbyArgs = []float64{lat, lon, radius, float64(limit)}
	return []models.NearbyEvent{}, nil
}

func (f *fakeDocs) HeatGrid(context.Context, float64, int64) ([]models.HeatCell, error) {
	return []models.HeatCell{}, nil
}

func (f *fakeDocs) DepthVsMagnitude(context.Context, int) ([]models.DepthMagnitude, error) {
	return []models.DepthMagnitude{}, nil
}

func (f *fakeDocs) RegionalRisk(context.Context, time.Time, int) ([]models.RegionalRisk, error) {
	return []models.RegionalRisk{{Region: "California", RiskScore: 64}}, nil
}

func (f *fakeDocs) UnusualActivity(context.Context, time.Time) ([]models.UnusualActivity, error) {
	return []models.UnusualActivity{}, nil
}

func (f *fakeDocs) BackfillReadableTime(context.Context) (int, error) { return f.backfilled, nil }

func (f *fakeDocs) EventsMissingAddress(context.Context, int) ([]models.Event, error) {
	return f.missing, nil
}

func (f *fakeDocs) SetAddress(_ context.Context, id, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addresses == nil {
		f.addresses = map[string]string{}
	}
	f.addresses[id] = address
	return nil
}

func (f *fakeDocs) Ping(context.Context) error { return f.pingErr }

type fakeGraph struct {
	ref     models.NodeRef
	pingErr error
}

func (g *fakeGraph) EventContext(_ context.Context, id string) (*graph.EventContext, error) {
	if id != "ci1" {
		return nil, fmt.Errorf("earthquake %s: %w", id, graph.ErrNotFound)
	}
	return &graph.EventContext{Event: models.Event{ID: "ci1"}, Region: "CA"}, nil
}

func (g *fakeGraph) Neighbors(_ context.Context, ref models.NodeRef, _ int) ([]graph.Neighbor, error) {
	g.ref = ref
	return []graph.Neighbor{{Direction: "out", Type: "NEAR", Node: models.Quake("ci2")}}, nil
}

func (g *fakeGraph) Centrality(context.Context, models.NodeKind, int) ([]graph.NodeDegree, error) {
	return []graph.NodeDegree{}, nil
}

func (g *fakeGraph) AftershockSequences(context.Context, int, int) ([]graph.AftershockSequence, error) {
	return []graph.AftershockSequence{}, nil
}

func (g *fakeGraph) CascadeEvents(context.Context, int) ([]graph.Cascade, error) {
	return []graph.Cascade{}, nil
}

func (g *fakeGraph) Stats(context.Context) (graph.Stats, error) {
	return graph.Stats{Nodes: map[string]int64{"Earthquake": 2}}, nil
}

func (g *fakeGraph) Ping(context.Context) error { return g.pingErr }

type fakeBuffer struct {
	events []models.Event
	limit  int
}

func (b *fakeBuffer) Recent(_ context.Context, limit int) ([]models.Event, error) {
	b.limit = limit
	return b.events, nil
}

func (b *fakeBuffer) Len() (int, error) { return len(b.events), nil }

type published struct {
	topic   string
	payload string
}

type fakeBus struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *fakeBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, published{topic, string(payload)})
	return nil
}

type fakeMirror struct{}

func (fakeMirror) HourlyCounts(context.Context, int) ([]timeseries.HourlyCount, error) {
	return []timeseries.HourlyCount{{Count: 4}}, nil
}

func (fakeMirror) Ping(context.Context) error { return nil }

type fixedEnricher struct{}

func (fixedEnricher) Enrich(_ context.Context, ev *models.Event) {
	ev.ExactAddress = "Main St, Ridgecrest"
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type testEnv struct {
	docs   *fakeDocs
	graph  *fakeGraph
	buffer *fakeBuffer
	bus    *fakeBus
	router http.Handler
}

func newTestEnv(t *testing.T, mutate func(*HandlerConfig, *config.ServerConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		docs: &fakeDocs{events: []models.Event{
			{ID: "ci1", Magnitude: 3.2, Place: "5km N of Ridgecrest, CA"},
			{ID: "ci2", Magnitude: 2.1, Place: "Fiji region"},
		}},
		graph:  &fakeGraph{},
		buffer: &fakeBuffer{events: []models.Event{{ID: "ci2"}, {ID: "ci1"}}},
		bus:    &fakeBus{},
	}
	cfg := HandlerConfig{
		Docs:   env.docs,
		Graph:  env.graph,
		Buffer: env.buffer,
		Bus:    env.bus,
	}
	srv := config.ServerConfig{Timeout: 10 * time.Second, RateLimitReqs: 1000, RateLimitWindow: time.Minute}
	if mutate != nil {
		mutate(&cfg, &srv)
	}
	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	env.router = NewRouter(h, srv).Setup()
	return env
}

func (env *testEnv) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v (%s)", target, err, rec.Body.String())
		}
	}
	return rec, body
}

func TestNewHandler_Validation(t *testing.T) {
	t.Parallel()

	full := HandlerConfig{Docs: &fakeDocs{}, Buffer: &fakeBuffer{}, Bus: &fakeBus{}}
	tests := []struct {
		name   string
		mutate func(*HandlerConfig)
	}{
		{"no docs", func(c *HandlerConfig) { c.Docs = nil }},
		{"no buffer", func(c *HandlerConfig) { c.Buffer = nil }},
		{"no bus", func(c *HandlerConfig) { c.Bus = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := full
			tt.mutate(&cfg)
			if _, err := NewHandler(cfg); err == nil {
				t.Error("NewHandler() error = nil, want error")
			}
		})
	}
	if _, err := NewHandler(full); err != nil {
		t.Errorf("NewHandler(full) error = %v", err)
	}
}

func TestEvents_Filter(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet,
		"/api/v1/events?min_magnitude=2.5&bbox=-120,30,-110,40&region=CA&start=100&end=200&limit=2&offset=4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	f := env.docs.filter
	if f.MinMagnitude == nil || *f.MinMagnitude != 2.5 {
		t.Errorf("MinMagnitude = %v, want 2.5", f.MinMagnitude)
	}
	if f.MaxMagnitude != nil {
		t.Errorf("MaxMagnitude = %v, want nil", *f.MaxMagnitude)
	}
	if f.Bounds == nil || f.Bounds.West != -120 || f.Bounds.North != 40 {
		t.Errorf("Bounds = %+v", f.Bounds)
	}
	if f.Region != "CA" || f.StartTime != 100 || f.EndTime != 200 || f.Limit != 2 || f.Offset != 4 {
		t.Errorf("filter = %+v", f)
	}
	if body.Meta == nil || body.Meta.Pagination == nil {
		t.Fatal("missing pagination meta")
	}
	if p := body.Meta.Pagination; p.Count != 2 || !p.HasMore {
		t.Errorf("pagination = %+v, want count 2 has_more", p)
	}
	if body.Meta.RequestID == "" {
		t.Error("meta.request_id is empty")
	}
}

func TestEvents_InvalidQuery(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"limit zero", "limit=0", ErrCodeValidationFailed},
		{"limit too large", "limit=5001", ErrCodeValidationFailed},
		{"limit not a number", "limit=ten", ErrCodeValidationFailed},
		{"magnitude not a number", "min_magnitude=big", ErrCodeValidationFailed},
		{"bad bbox", "bbox=1,2,3", ErrCodeValidationFailed},
		{"negative start", "start=-5", ErrCodeValidationFailed},
		{"min above max", "min_magnitude=5&max_magnitude=3", ErrCodeBadRequest},
		{"start after end", "start=200&end=100", ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodGet, "/api/v1/events?"+tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body.Error == nil || body.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", body.Error, tt.wantCode)
			}
		})
	}
}

func TestEvents_StoreError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.docs.queryErr = errors.New("duckdb: connection lost")

	rec, body := env.do(t, http.MethodGet, "/api/v1/events")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body.Error == nil || strings.Contains(body.Error.Message, "duckdb") {
		t.Errorf("error = %+v, want generic message", body.Error)
	}
}

func TestLookupRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/events/ci1", http.StatusOK},
		{"/api/v1/events/missing", http.StatusNotFound},
		{"/api/v1/clusters", http.StatusOK},
		{"/api/v1/clusters/cl_a", http.StatusOK},
		{"/api/v1/clusters/cl_zzz", http.StatusNotFound},
		{"/api/v1/graph/events/ci1", http.StatusOK},
		{"/api/v1/graph/events/nope", http.StatusNotFound},
		{"/api/v1/graph/stats", http.StatusOK},
		{"/api/v1/graph/centrality?kind=FaultZone", http.StatusOK},
		{"/api/v1/graph/centrality?kind=Volcano", http.StatusBadRequest},
		{"/api/v1/graph/aftershocks?min=2", http.StatusOK},
		{"/api/v1/graph/cascades", http.StatusOK},
		{"/api/v1/analytics/magnitudes", http.StatusOK},
		{"/api/v1/analytics/heatmap?cell=0.5&days=7", http.StatusOK},
		{"/api/v1/analytics/heatmap?cell=0", http.StatusBadRequest},
		{"/api/v1/analytics/depth", http.StatusOK},
		{"/api/v1/analytics/risk?limit=5", http.StatusOK},
		{"/api/v1/analytics/unusual", http.StatusOK},
		{"/api/v1/analytics/hourly", http.StatusServiceUnavailable},
		{"/api/v1/pipeline/stats", http.StatusOK},
		{"/api/v1/nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec, _ := env.do(t, http.MethodGet, tt.target)
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d: %s", tt.target, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestDailyTrends_Defaults(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	if rec, _ := env.do(t, http.MethodGet, "/api/v1/analytics/trends"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.docs.trendDays != 30 {
		t.Errorf("days = %d, want 30", env.docs.trendDays)
	}
	if rec, _ := env.do(t, http.MethodGet, "/api/v1/analytics/trends?days=400"); rec.Code != http.StatusBadRequest {
		t.Errorf("days=400 status = %d, want 400", rec.Code)
	}
}

func TestNearestEvents(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/analytics/nearby?lon=-117.6")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing lat status = %d, want 400", rec.Code)
	}
	if body.Error == nil || !strings.Contains(body.Error.Message, "lat is required") {
		t.Errorf("error = %+v, want lat is required", body.Error)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/analytics/nearby?lat=35.7&lon=-117.6&radius_km=25")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	want := []float64{35.7, -117.6, 25, 20}
	for i, v := range want {
		if env.docs.nearbyArgs[i] != v {
			t.Errorf("arg %d = %v, want %v", i, env.docs.nearbyArgs[i], v)
		}
	}
}

func TestNeighbors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/graph/neighbors?kind=City&key=Ridgecrest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if env.graph.ref != models.CityRef("Ridgecrest") {
		t.Errorf("ref = %+v, want City/Ridgecrest", env.graph.ref)
	}

	if rec, _ := env.do(t, http.MethodGet, "/api/v1/graph/neighbors?kind=City"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing key status = %d, want 400", rec.Code)
	}
}

func TestGraphDisabled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) { c.Graph = nil })

	rec, body := env.do(t, http.MethodGet, "/api/v1/graph/stats")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body.Error == nil || body.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestHourlyCounts_WithMirror(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) { c.Mirror = fakeMirror{} })

	rec, body := env.do(t, http.MethodGet, "/api/v1/analytics/hourly?hours=6")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var counts []timeseries.HourlyCount
	if err := json.Unmarshal(body.Data, &counts); err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].Count != 4 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestRecentBuffer(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/buffer/recent?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.buffer.limit != 2 {
		t.Errorf("limit = %d, want 2", env.buffer.limit)
	}
	var events []models.Event
	if err := json.Unmarshal(body.Data, &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != "ci2" {
		t.Errorf("events = %+v, want newest first", events)
	}
}

func TestRecluster(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/recluster")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(env.bus.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(env.bus.sent))
	}
	got := env.bus.sent[0]
	if got.topic != eventprocessor.TopicControl || got.payload != eventprocessor.ControlRecluster {
		t.Errorf("published %+v, want control/recluster", got)
	}

	if rec, _ := env.do(t, http.MethodGet, "/api/v1/recluster"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET recluster = %d, want 405", rec.Code)
	}
}

func TestRecluster_BusDown(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.bus.err = eventprocessor.ErrClosed

	if rec, _ := env.do(t, http.MethodPost, "/api/v1/recluster"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestOpsRoutes_RequireToken(t *testing.T) {
	t.Parallel()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/recluster"},
		{http.MethodPost, "/api/v1/backfill/readable-time"},
		{http.MethodPost, "/api/v1/backfill/addresses"},
		{http.MethodGet, "/api/v1/audit"},
		{http.MethodGet, "/api/v1/backups"},
		{http.MethodPost, "/api/v1/backups"},
	}
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong token", "Bearer nope"},
		{"wrong scheme", "Basic s3cret"},
	}
	env := newTestEnv(t, func(_ *HandlerConfig, srv *config.ServerConfig) { srv.OpsToken = "s3cret" })
	for _, rt := range routes {
		for _, tt := range tests {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s %s (%s) = %d, want 401", rt.method, rt.path, tt.name, rec.Code)
			}
		}
	}
	if len(env.bus.sent) != 0 {
		t.Errorf("published %d messages without a token, want 0", len(env.bus.sent))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recluster", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Errorf("recluster with token = %d, want 202", rec.Code)
	}

	if rec, _ := env.do(t, http.MethodGet, "/api/v1/events"); rec.Code != http.StatusOK {
		t.Errorf("GET events without token = %d, want 200", rec.Code)
	}
}

func TestBackfill(t *testing.T) {
	t.Parallel()

	t.Run("readable time", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.docs.backfilled = 7

		rec, body := env.do(t, http.MethodPost, "/api/v1/backfill/readable-time")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if string(body.Data) != `{"updated":7}` {
			t.Errorf("data = %s", body.Data)
		}
	})

	t.Run("addresses without geocoder", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if rec, _ := env.do(t, http.MethodPost, "/api/v1/backfill/addresses"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("addresses", func(t *testing.T) {
		env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) { c.Enricher = fixedEnricher{} })
		env.docs.missing = []models.Event{{ID: "ci1"}, {ID: "ci2"}}

		rec, body := env.do(t, http.MethodPost, "/api/v1/backfill/addresses?limit=10")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if string(body.Data) != `{"scanned":2,"updated":2}` {
			t.Errorf("data = %s", body.Data)
		}
		if env.docs.addresses["ci2"] != "Main St, Ridgecrest" {
			t.Errorf("addresses = %v", env.docs.addresses)
		}
	})
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		docsErr    error
		graphErr   error
		wantCode   int
		wantStatus string
	}{
		{"ok", nil, nil, http.StatusOK, "ok"},
		{"graph down", nil, errors.New("postgres unreachable"), http.StatusOK, "degraded"},
		{"documents down", errors.New("duckdb closed"), nil, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil)
			env.docs.pingErr = tt.docsErr
			env.graph.pingErr = tt.graphErr

			rec, body := env.do(t, http.MethodGet, "/healthz")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			raw := body.Data
			if body.Error != nil {
				b, err := json.Marshal(body.Error.Details)
				if err != nil {
					t.Fatal(err)
				}
				raw = b
			}
			var health HealthStatus
			if err := json.Unmarshal(raw, &health); err != nil {
				t.Fatal(err)
			}
			if health.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", health.Status, tt.wantStatus)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(_ *HandlerConfig, s *config.ServerConfig) { s.RateLimitReqs = 2 })

	for i := range 2 {
		if rec, _ := env.do(t, http.MethodGet, "/api/v1/clusters"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, body := env.do(t, http.MethodGet, "/api/v1/clusters")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body.Error == nil || body.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("error = %+v", body.Error)
	}

	// health checks are not rate limited
	if rec, _ := env.do(t, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestMetricsAndHeaders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("/metrics missing default collectors")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

type fakeAudit struct {
	mu     sync.Mutex
	events []audit.Event
	filter audit.QueryFilter
}

func (f *fakeAudit) Log(e *audit.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *e)
}

func (f *fakeAudit) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return f.events, nil
}

func TestAudit(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if rec, _ := env.do(t, http.MethodGet, "/api/v1/audit"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("records operator actions", func(t *testing.T) {
		log := &fakeAudit{}
		env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) { c.Audit = log })
		env.bus.err = eventprocessor.ErrClosed

		env.do(t, http.MethodPost, "/api/v1/recluster")
		env.do(t, http.MethodPost, "/api/v1/backfill/readable-time")

		if len(log.events) != 2 {
			t.Fatalf("recorded %d events, want 2", len(log.events))
		}
		first := log.events[0]
		if first.Type != audit.EventTypeReclusterRequested || first.Outcome != audit.OutcomeFailure {
			t.Errorf("first = %s/%s, want recluster failure", first.Type, first.Outcome)
		}
		if first.Actor.Type != "client" || first.Source.IPAddress == "" {
			t.Errorf("actor = %+v, source = %+v", first.Actor, first.Source)
		}
		if first.RequestID == "" {
			t.Error("RequestID is empty")
		}
		if second := log.events[1]; second.Type != audit.EventTypeBackfillReadableTime || second.Outcome != audit.OutcomeSuccess {
			t.Errorf("second = %s/%s, want readable time success", second.Type, second.Outcome)
		}
	})

	t.Run("query", func(t *testing.T) {
		log := &fakeAudit{}
		env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) { c.Audit = log })
		env.do(t, http.MethodPost, "/api/v1/recluster")

		rec, body := env.do(t, http.MethodGet, "/api/v1/audit?type=ops.recluster_requested&outcome=success&limit=5")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var got []audit.Event
		if err := json.Unmarshal(body.Data, &got); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len = %d, want 1", len(got))
		}
		if log.filter.Limit != 5 || log.filter.Outcome != audit.OutcomeSuccess || len(log.filter.Types) != 1 {
			t.Errorf("filter = %+v", log.filter)
		}

		if rec, _ := env.do(t, http.MethodGet, "/api/v1/audit?type=auth.login"); rec.Code != http.StatusBadRequest {
			t.Errorf("unknown type status = %d, want 400", rec.Code)
		}
	})
}

type fakeBackups struct {
	mu      sync.Mutex
	backups []backup.Backup
	err     error
}

func (f *fakeBackups) Create(_ context.Context, trigger backup.Trigger) (*backup.Backup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b := backup.Backup{ID: fmt.Sprintf("b%d", len(f.backups)+1), Trigger: trigger, SizeBytes: 1024}
	f.backups = append(f.backups, b)
	return &b, nil
}

func (f *fakeBackups) List() []backup.Backup {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backup.Backup{}, f.backups...)
}

func TestBackups(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if rec, _ := env.do(t, http.MethodPost, "/api/v1/backups"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("POST status = %d, want 503", rec.Code)
		}
		if rec, _ := env.do(t, http.MethodGet, "/api/v1/backups"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET status = %d, want 503", rec.Code)
		}
	})

	t.Run("create and list", func(t *testing.T) {
		backups := &fakeBackups{}
		log := &fakeAudit{}
		env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) {
			c.Backups = backups
			c.Audit = log
		})

		rec, body := env.do(t, http.MethodPost, "/api/v1/backups")
		if rec.Code != http.StatusOK {
			t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
		}
		var created backup.Backup
		if err := json.Unmarshal(body.Data, &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if created.ID != "b1" || created.Trigger != backup.TriggerManual {
			t.Errorf("created = %+v", created)
		}
		if len(log.events) != 1 || log.events[0].Type != audit.EventTypeBackupCreated {
			t.Errorf("audit events = %+v", log.events)
		}

		rec, body = env.do(t, http.MethodGet, "/api/v1/backups")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET status = %d", rec.Code)
		}
		var list []backup.Backup
		if err := json.Unmarshal(body.Data, &list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("list len = %d, want 1", len(list))
		}
	})

	t.Run("failure", func(t *testing.T) {
		log := &fakeAudit{}
		env := newTestEnv(t, func(c *HandlerConfig, _ *config.ServerConfig) {
			c.Backups = &fakeBackups{err: errors.New("disk full")}
			c.Audit = log
		})
		if rec, _ := env.do(t, http.MethodPost, "/api/v1/backups"); rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if len(log.events) != 1 || log.events[0].Outcome != audit.OutcomeFailure {
			t.Errorf("audit events = %+v", log.events)
		}
	})
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package clustering

import (
	"math"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/tomtom215/quakegraph/internal/models"
)

var base = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

var defaultParams = Params{EpsKm: 50, TimeWindowHours: 48, MinSamples: 3}

func quake(id string, mag, lat, lon float64, offset time.Duration, place string) models.Event {
	return models.Event{
		ID:        id,
		Magnitude: mag,
		Latitude:  lat,
		Longitude: lon,
		Time:      base.Add(offset).UnixMilli(),
		Place:     place,
	}
}

func labels(res Result) map[string]string {
	out := make(map[string]string, len(res.Assignments))
	for _, a := range res.Assignments {
		if a.ClusterID == nil {
			out[a.EventID] = ""
			continue
		}
		out[a.EventID] = *a.ClusterID
	}
	return out
}

func TestEngineRun_Basic(t *testing.T) {
	t.Parallel()

	events := []models.Event{
		quake("b", 4.1, 35.1, -118.0, 2*time.Hour, "12 km SW of Ridgecrest, CA"),
		quake("a", 3.0, 35.0, -118.0, time.Hour, "10 km N of Ridgecrest, CA"),
		quake("c", 2.5, 35.2, -118.1, 3*time.Hour, ""),
		quake("far", 5.0, 40.0, -120.0, time.Hour, "somewhere else"),
	}
	now := base.Add(24 * time.Hour)
	res := NewEngine().Run(events, defaultParams, now)

	if res.Considered != 4 {
		t.Errorf("Considered = %d, want 4", res.Considered)
	}
	if len(res.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(res.Clusters))
	}
	if res.Noise != 1 {
		t.Errorf("Noise = %d, want 1", res.Noise)
	}

	c := res.Clusters[0]
	if c.ID != "cl_a" {
		t.Errorf("ID = %q, want cl_a", c.ID)
	}
	if c.EventCount != 3 {
		t.Errorf("EventCount = %d, want 3", c.EventCount)
	}
	if c.Region != "Ridgecrest, CA" {
		t.Errorf("Region = %q, want region of strongest member", c.Region)
	}
	if c.StrongestID != "b" || c.AnchorID != "a" {
		t.Errorf("strongest/anchor = %s/%s, want b/a", c.StrongestID, c.AnchorID)
	}
	if math.Abs(c.CentroidLat-35.1) > 1e-9 || math.Abs(c.CentroidLon-(-118.0333333333)) > 1e-6 {
		t.Errorf("centroid = (%v, %v)", c.CentroidLat, c.CentroidLon)
	}
	if math.Abs(c.AvgMagnitude-3.2) > 1e-9 {
		t.Errorf("AvgMagnitude = %v, want 3.2", c.AvgMagnitude)
	}
	if c.StartTime != base.Add(time.Hour).UnixMilli() || c.EndTime != base.Add(3*time.Hour).UnixMilli() {
		t.Errorf("time span = %d..%d", c.StartTime, c.EndTime)
	}
	if c.CreatedAt != now.UnixMilli() {
		t.Errorf("CreatedAt = %d, want %d", c.CreatedAt, now.UnixMilli())
	}

	got := labels(res)
	if got["far"] != "" {
		t.Errorf("far event assigned to %q, want noise", got["far"])
	}
	for _, id := range []string{"a", "b", "c"} {
		if got[id] != "cl_a" {
			t.Errorf("event %s assigned to %q, want cl_a", id, got[id])
		}
	}
}

func TestEngineRun_Bounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		events    []models.Event
		params    Params
		clustered bool
	}{
		{
			name: "outside time window",
			events: []models.Event{
				quake("a", 3, 35.0, -118.0, 0, ""),
				quake("b", 3, 35.0, -118.0, 49*time.Hour, ""),
			},
			params: Params{EpsKm: 50, TimeWindowHours: 48, MinSamples: 2},
		},
		{
			name: "inside time window",
			events: []models.Event{
				quake("a", 3, 35.0, -118.0, 0, ""),
				quake("b", 3, 35.0, -118.0, 47*time.Hour, ""),
			},
			params:    Params{EpsKm: 50, TimeWindowHours: 48, MinSamples: 2},
			clustered: true,
		},
		{
			// 44.5 km on each axis is 63 km apart but within eps on both.
			name: "chebyshev not euclidean",
			events: []models.Event{
				quake("a", 3, 0, 0, 0, ""),
				quake("b", 3, 0.4, 0.4, time.Hour, ""),
			},
			params:    Params{EpsKm: 50, TimeWindowHours: 48, MinSamples: 2},
			clustered: true,
		},
		{
			name: "outside eps",
			events: []models.Event{
				quake("a", 3, 35.0, -118.0, 0, ""),
				quake("b", 3, 35.5, -118.0, time.Hour, ""),
			},
			params: Params{EpsKm: 50, TimeWindowHours: 48, MinSamples: 2},
		},
		{
			name: "too few samples",
			events: []models.Event{
				quake("a", 3, 35.0, -118.0, 0, ""),
				quake("b", 3, 35.0, -118.0, time.Hour, ""),
			},
			params: Params{EpsKm: 50, TimeWindowHours: 48, MinSamples: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := NewEngine().Run(tt.events, tt.params, base)
			if got := len(res.Clusters) == 1; got != tt.clustered {
				t.Errorf("clustered = %v (clusters %d), want %v", got, len(res.Clusters), tt.clustered)
			}
		})
	}
}

func TestEngineRun_StableIDs(t *testing.T) {
	t.Parallel()

	events := []models.Event{
		quake("x2", 3, 10.0, 20.0, time.Hour, ""),
		quake("x1", 3, 10.1, 20.0, 0, ""),
		quake("x3", 3, 10.0, 20.1, 2*time.Hour, ""),
	}
	first := NewEngine().Run(events, defaultParams, base)
	second := NewEngine().Run(events, defaultParams, base.Add(time.Hour))

	if len(first.Clusters) != 1 || len(second.Clusters) != 1 {
		t.Fatalf("clusters = %d/%d, want 1/1", len(first.Clusters), len(second.Clusters))
	}
	if first.Clusters[0].ID != second.Clusters[0].ID {
		t.Errorf("ids differ across runs: %s vs %s", first.Clusters[0].ID, second.Clusters[0].ID)
	}

	// A later member does not move the id.
	events = append(events, quake("x4", 6, 10.05, 20.05, 3*time.Hour, "5 km E of Town, Land"))
	third := NewEngine().Run(events, defaultParams, base)
	if third.Clusters[0].ID != "cl_x1" {
		t.Errorf("ID after growth = %s, want cl_x1", third.Clusters[0].ID)
	}
	if third.Clusters[0].Region != "Town, Land" {
		t.Errorf("Region = %q, want Town, Land", third.Clusters[0].Region)
	}
}

func TestEngineRun_TiedAnchorUsesID(t *testing.T) {
	t.Parallel()

	events := []models.Event{
		quake("q", 3, 10, 20, 0, ""),
		quake("p", 3, 10, 20, 0, ""),
	}
	res := NewEngine().Run(events, Params{EpsKm: 10, TimeWindowHours: 1, MinSamples: 2}, base)
	if len(res.Clusters) != 1 || res.Clusters[0].ID != "cl_p" {
		t.Errorf("clusters = %+v, want single cl_p", res.Clusters)
	}
}

func TestEngineRun_EmptyAndInvalid(t *testing.T) {
	t.Parallel()

	res := NewEngine().Run(nil, defaultParams, base)
	if res.Clusters == nil || res.Assignments == nil {
		t.Error("empty run should return empty, non-nil slices")
	}
	if len(res.Clusters) != 0 || res.Considered != 0 {
		t.Errorf("empty run = %+v", res)
	}

	events := []models.Event{
		quake("ok", 3, 10, 20, 0, ""),
		{ID: "nan", Latitude: math.NaN(), Longitude: 20, Time: base.UnixMilli()},
		{ID: "notime", Latitude: 10, Longitude: 20},
	}
	res = NewEngine().Run(events, defaultParams, base)
	if res.Considered != 1 || len(res.Assignments) != 1 {
		t.Fatalf("Considered = %d, assignments = %d, want 1/1", res.Considered, len(res.Assignments))
	}
	if res.Assignments[0].EventID != "ok" || res.Assignments[0].ClusterID != nil {
		t.Errorf("assignment = %+v, want ok as noise", res.Assignments[0])
	}
}

// TestEngineRun_DBSCANProperties checks the DBSCAN invariants against a
// brute-force neighbour count on random data.
func TestEngineRun_DBSCANProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	events := make([]models.Event, 0, 400)
	for i := range 400 {
		events = append(events, quake(
			"e"+strconv.Itoa(i),
			2+rng.Float64()*4,
			34+rng.Float64()*4,
			-120+rng.Float64()*4,
			time.Duration(rng.Int63n(int64(7*24*time.Hour))),
			"",
		))
	}
	params := Params{EpsKm: 30, TimeWindowHours: 24, MinSamples: 3}
	res := NewEngine().Run(events, params, base)
	got := labels(res)

	pts := project(events, params)
	adjacent := func(i, j int) bool {
		return math.Abs(pts[i].x-pts[j].x) <= 1 &&
			math.Abs(pts[i].y-pts[j].y) <= 1 &&
			math.Abs(pts[i].t-pts[j].t) <= 1
	}
	core := make([]bool, len(pts))
	for i := range pts {
		n := 0
		for j := range pts {
			if adjacent(i, j) {
				n++
			}
		}
		core[i] = n >= params.MinSamples
	}

	for i := range pts {
		li := got[pts[i].ev.ID]
		if core[i] && li == "" {
			t.Fatalf("core point %s labelled noise", pts[i].ev.ID)
		}
		reached := core[i]
		for j := range pts {
			if i == j || !adjacent(i, j) {
				continue
			}
			lj := got[pts[j].ev.ID]
			if core[i] && core[j] && li != lj {
				t.Fatalf("adjacent core points %s and %s in %q and %q", pts[i].ev.ID, pts[j].ev.ID, li, lj)
			}
			if core[j] {
				if li == "" {
					t.Fatalf("point %s next to core %s labelled noise", pts[i].ev.ID, pts[j].ev.ID)
				}
				if li == lj {
					reached = true
				}
			}
		}
		if li != "" && !reached {
			t.Fatalf("point %s in %q has no core neighbour in that cluster", pts[i].ev.ID, li)
		}
	}

	total := 0
	for _, c := range res.Clusters {
		total += c.EventCount
	}
	if total+res.Noise != res.Considered {
		t.Errorf("members %d + noise %d != considered %d", total, res.Noise, res.Considered)
	}
}

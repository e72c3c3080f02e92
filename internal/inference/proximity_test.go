// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package inference

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/tomtom215/quakegraph/internal/models"
)

func TestNearPairs(t *testing.T) {
	t.Parallel()

	events := []models.Event{
		ev("b", 2, 35.0, -118.0, 0),
		ev("a", 2, kmNorth(35.0, 20), -118.0, time.Hour),
		ev("c", 2, kmNorth(35.0, 40), -118.0, 72*time.Hour), // close to a but too late
		ev("d", 2, 10.0, 10.0, 0),
	}

	edges := NearPairs(events, DefaultRules().Proximity)
	if len(edges) != 1 {
		t.Fatalf("NearPairs() = %+v, want one edge", edges)
	}
	e := edges[0]
	if e.From != models.Quake("a") || e.To != models.Quake("b") || e.Type != models.RelNear {
		t.Errorf("edge = %+v, want a NEAR b", e)
	}
}

func TestNearPairs_MatchesBruteForce(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	events := make([]models.Event, 300)
	for i := range events {
		events[i] = ev("e"+strconv.Itoa(i), 2,
			34+rng.Float64()*3, -119+rng.Float64()*3,
			time.Duration(rng.Intn(240))*time.Hour)
	}
	rule := DefaultRules().Proximity

	want := 0
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			a, b := events[i], events[j]
			dt := time.Duration(abs64(a.Time-b.Time)) * time.Millisecond
			if models.HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude) <= rule.MaxDistanceKm && dt <= rule.MaxTimeDelta {
				want++
			}
		}
	}

	got := NearPairs(events, rule)
	if len(got) != want {
		t.Errorf("NearPairs() = %d edges, want %d", len(got), want)
	}
	for _, e := range got {
		if e.From.Key >= e.To.Key {
			t.Errorf("edge %s -> %s not ordered by id", e.From.Key, e.To.Key)
		}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

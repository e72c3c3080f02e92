// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package models

import (
	"math"
	"testing"
)

func TestExtractRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		place string
		want  string
	}{
		{"distance prefix and state", "10 km NE of Ridgecrest, CA", "CA"},
		{"no comma", "Southern Alaska", "Southern Alaska"},
		{"several commas", "5 km W of Volcano, Hawaii, Hawaii", "Hawaii"},
		{"padding", "  Fiji region  ", "Fiji region"},
		{"empty", "", UnknownPlace},
		{"trailing comma", "Somewhere,", UnknownPlace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractRegion(tt.place); got != tt.want {
				t.Errorf("ExtractRegion(%q) = %q, want %q", tt.place, got, tt.want)
			}
		})
	}
}

func TestExtractCity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		place string
		want  string
	}{
		{"10 km NE of Ridgecrest, CA", "Ridgecrest"},
		{"Ridgecrest, CA", "Ridgecrest"},
		{"south of the Fiji Islands", "the Fiji Islands"},
		{"Southern Alaska", ""},
		{"3 km SSW of Town of Cats, CA", "Cats"},
	}
	for _, tt := range tests {
		t.Run(tt.place, func(t *testing.T) {
			t.Parallel()
			if got := ExtractCity(tt.place); got != tt.want {
				t.Errorf("ExtractCity(%q) = %q, want %q", tt.place, got, tt.want)
			}
		})
	}
}

func TestCleanRegionName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		place string
		want  string
	}{
		{"10km SSW of Ridgecrest, CA", "Ridgecrest, CA"},
		{"Southern Alaska", "Southern Alaska"},
		{"5 km S of Town of Cats, CA", "Town"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanRegionName(tt.place); got != tt.want {
			t.Errorf("CleanRegionName(%q) = %q, want %q", tt.place, got, tt.want)
		}
	}
}

func TestMatchesAnyRegion(t *testing.T) {
	t.Parallel()

	regions := []string{"California", "Japan", ""}
	if !MatchesAnyRegion("12 km N of Petrolia, California", regions) {
		t.Error("expected California to match")
	}
	if MatchesAnyRegion("12 km N of Petrolia, CA", regions) {
		t.Error("empty region entry must not match everything")
	}
}

func TestEvent_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"complete", Event{Latitude: 35.1, Longitude: -117.6, Time: 1700000000000}, true},
		{"zero time", Event{Latitude: 35.1, Longitude: -117.6}, false},
		{"nan latitude", Event{Latitude: math.NaN(), Longitude: -117.6, Time: 1}, false},
		{"inf longitude", Event{Latitude: 1, Longitude: math.Inf(1), Time: 1}, false},
	}
	for _, tt := range tests {
		if got := tt.ev.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRiskScore(t *testing.T) {
	t.Parallel()

	if got := RiskScore(3.0, 5.0, 10); got != 75 {
		t.Errorf("RiskScore = %v, want 75", got)
	}
	if got := RiskScore(6.0, 8.0, 50); got != 100 {
		t.Errorf("RiskScore = %v, want capped 100", got)
	}
}

func TestStableClusterID(t *testing.T) {
	t.Parallel()

	if got := StableClusterID("ci40000001"); got != "cl_ci40000001" {
		t.Errorf("StableClusterID = %q", got)
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	t.Parallel()

	box := BoundingBox{West: -125, South: 32, East: -114, North: 42}
	if !box.Contains(35.7, -117.5) {
		t.Error("expected Ridgecrest inside California box")
	}
	if box.Contains(61.2, -149.9) {
		t.Error("expected Anchorage outside California box")
	}
}

func TestHaversineKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"same point", 35.7, -117.5, 35.7, -117.5, 0},
		{"one degree of latitude", 0, 0, 1, 0, 111.19},
		{"los angeles to san francisco", 34.0522, -118.2437, 37.7749, -122.4194, 559.1},
	}
	for _, tt := range tests {
		got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
		if math.Abs(got-tt.want) > 1 {
			t.Errorf("%s: HaversineKm = %.2f, want ~%.2f", tt.name, got, tt.want)
		}
	}
}

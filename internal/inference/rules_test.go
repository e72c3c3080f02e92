// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package inference

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestImpactRadius(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	tests := []struct {
		mag  float64
		want float64
	}{
		{1.5, 5},
		{2.5, 20},
		{3.0, 20},
		{5.5, 100},
		{7.0, 500},
		{-1, 10},
		{11, 10},
	}
	for _, tt := range tests {
		if got := rules.ImpactRadius(tt.mag); got != tt.want {
			t.Errorf("ImpactRadius(%v) = %v, want %v", tt.mag, got, tt.want)
		}
	}
}

func TestDefaultRulesValidate(t *testing.T) {
	t.Parallel()

	r := DefaultRules()
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if r.MaxTimeDelta() != 7*24*time.Hour {
		t.Errorf("MaxTimeDelta() = %v, want 168h", r.MaxTimeDelta())
	}
	if r.MaxDistanceKm() != 200 {
		t.Errorf("MaxDistanceKm() = %v, want 200", r.MaxDistanceKm())
	}
}

func TestParseRules_OverridesAndKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
aftershock:
  min_magnitude: 4.5
  max_time_delta: 72h
impact:
  buckets:
    - {min: 0, max: 5, radius_km: 15}
    - {min: 5, max: 10, radius_km: 300}
`)
	r, err := ParseRules(path)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if r.Aftershock.MinMagnitude != 4.5 || r.Aftershock.MaxTimeDelta != 72*time.Hour {
		t.Errorf("Aftershock = %+v", r.Aftershock)
	}
	if r.Aftershock.MaxDistanceKm != 50 {
		t.Errorf("Aftershock.MaxDistanceKm = %v, want default 50", r.Aftershock.MaxDistanceKm)
	}
	if len(r.Impact.Buckets) != 2 || r.ImpactRadius(6) != 300 {
		t.Errorf("Impact = %+v", r.Impact)
	}
	if r.Impact.DefaultRadiusKm != 10 {
		t.Errorf("DefaultRadiusKm = %v, want 10", r.Impact.DefaultRadiusKm)
	}
	if r.Cascade != DefaultRules().Cascade {
		t.Errorf("Cascade = %+v, want defaults", r.Cascade)
	}
}

func TestParseRules_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"negative distance", "fault:\n  max_distance_km: -5\n"},
		{"inverted bucket", "impact:\n  buckets:\n    - {min: 5, max: 2, radius_km: 10}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRules(writeRules(t, tt.content))
			if !errors.Is(err, ErrInvalidRules) {
				t.Errorf("ParseRules() error = %v, want ErrInvalidRules", err)
			}
		})
	}
}

func TestLoadRules_FallsBack(t *testing.T) {
	t.Parallel()

	want := DefaultRules()
	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml")},
		{"malformed yaml", writeRules(t, "fault: [unclosed\n")},
		{"invalid values", writeRules(t, "cascade:\n  max_distance_km: 0\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := LoadRules(tt.path)
			if got.Fault != want.Fault || got.Cascade != want.Cascade || len(got.Impact.Buckets) != len(want.Impact.Buckets) {
				t.Errorf("LoadRules(%q) = %+v, want defaults", tt.path, got)
			}
		})
	}
}

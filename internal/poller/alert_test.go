// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package poller

import (
	"testing"

	"github.com/tomtom215/quakegraph/internal/models"
)

func TestAlertPolicy_Evaluate(t *testing.T) {
	t.Parallel()

	policy := NewAlertPolicy(alertConfig())
	tests := []struct {
		name  string
		mag   float64
		place string
		want  bool
	}{
		{"regional at threshold", 3.5, "Northern California", true},
		{"regional below threshold", 3.4, "Northern California", false},
		{"global below threshold", 4.9, "Peru", false},
		{"global at threshold", 5.0, "Peru", true},
		{"case sensitive region", 4.0, "northern california", false},
		{"empty place", 6.0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, got := policy.Evaluate(models.Event{ID: "x", Magnitude: tt.mag, Place: tt.place})
			if got != tt.want {
				t.Errorf("Evaluate(%v, %q) = %v, want %v", tt.mag, tt.place, got, tt.want)
			}
		})
	}
}

func TestFormatMagnitude(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{3.6, "3.6"},
		{5, "5.0"},
		{0, "0.0"},
		{4.25, "4.25"},
	}
	for _, tt := range tests {
		if got := formatMagnitude(tt.in); got != tt.want {
			t.Errorf("formatMagnitude(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

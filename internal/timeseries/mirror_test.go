// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package timeseries

import (
	"math"
	"strings"
	"testing"

	"github.com/tomtom215/quakegraph/internal/models"
)

func TestEventPoint(t *testing.T) {
	t.Parallel()

	ev := models.Event{
		ID: "ci1", Magnitude: 4.4, Depth: 8.2, Latitude: 35.7, Longitude: -117.5,
		Time: 1770045297070, Place: "10 km N of Ridgecrest, CA", IsAlert: true,
	}
	p, ok := eventPoint(ev)
	if !ok {
		t.Fatal("eventPoint() rejected a valid event")
	}
	if p.Name() != "earthquake" {
		t.Errorf("measurement = %q, want earthquake", p.Name())
	}
	if !p.Time().Equal(ev.OccurredAt()) {
		t.Errorf("time = %v, want %v", p.Time(), ev.OccurredAt())
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["region"] != "CA" || tags["alert"] != "true" || tags["event_id"] != "ci1" {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["magnitude"] != 4.4 || fields["depth"] != 8.2 {
		t.Errorf("fields = %v", fields)
	}
}

func TestEventPoint_SkipsInvalid(t *testing.T) {
	t.Parallel()

	tests := []models.Event{
		{ID: "no-time", Latitude: 1, Longitude: 1},
		{ID: "nan", Latitude: math.NaN(), Longitude: 1, Time: 1},
	}
	for _, ev := range tests {
		if _, ok := eventPoint(ev); ok {
			t.Errorf("eventPoint(%s) accepted an invalid event", ev.ID)
		}
	}
}

func TestHourlyQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hours int
		want  string
	}{
		{24, "range(start: -24h)"},
		{0, "range(start: -1h)"},
		{100000, "range(start: -2160h)"},
	}
	for _, tt := range tests {
		q := hourlyQuery("quakes", tt.hours)
		if !strings.Contains(q, tt.want) {
			t.Errorf("hourlyQuery(%d) missing %q:\n%s", tt.hours, tt.want, q)
		}
		if !strings.Contains(q, `from(bucket: "quakes")`) {
			t.Errorf("hourlyQuery(%d) has wrong bucket:\n%s", tt.hours, q)
		}
	}
}

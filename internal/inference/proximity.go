// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package inference

import (
	"sort"
	"time"

	"github.com/tomtom215/quakegraph/internal/cache"
	"github.com/tomtom215/quakegraph/internal/models"
)

// NearPairs returns one NEAR edge per unordered pair of valid events within
// the proximity bounds. The smaller id is always the edge source. Pairs are
// found through a spatial grid so the cost follows local density rather
// than the square of the population.
func NearPairs(events []models.Event, rule ProximityRule) []models.Edge {
	idx := cache.NewSpatialIndex[*models.Event](rule.MaxDistanceKm)
	valid := make([]*models.Event, 0, len(events))
	for i := range events {
		ev := &events[i]
		if !ev.Valid() {
			continue
		}
		idx.Insert(ev.ID, ev.Latitude, ev.Longitude, ev)
		valid = append(valid, ev)
	}

	maxMs := rule.MaxTimeDelta.Milliseconds()
	var edges []models.Edge
	for _, a := range valid {
		for _, hit := range idx.QueryNearby(a.Latitude, a.Longitude, rule.MaxDistanceKm) {
			b := hit.Value
			// each pair once, from the smaller id
			if b.ID <= a.ID {
				continue
			}
			dt := a.Time - b.Time
			if dt < 0 {
				dt = -dt
			}
			if dt > maxMs {
				continue
			}
			edges = append(edges, models.Edge{
				From: models.Quake(a.ID),
				Type: models.RelNear,
				To:   models.Quake(b.ID),
				Properties: map[string]any{
					"distance_km":   round2(hit.DistanceKm),
					"time_diff_hrs": round2((time.Duration(dt) * time.Millisecond).Hours()),
				},
			})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From.Key != edges[j].From.Key {
			return edges[i].From.Key < edges[j].From.Key
		}
		return edges[i].To.Key < edges[j].To.Key
	})
	return edges
}

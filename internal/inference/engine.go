// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package inference

import (
	"math"
	"time"

	"github.com/tomtom215/quakegraph/internal/models"
)

// Population is what a new event is compared against.
type Population struct {
	// Events are candidate others. The new event itself may be included;
	// it is skipped by id.
	Events []models.Event
	Places *Gazetteer
}

// Engine applies the per-event rules.
type Engine struct {
	rules Rules
}

// NewEngine creates an engine with fixed rules.
func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the engine's thresholds.
func (e *Engine) Rules() Rules { return e.rules }

// Infer returns every edge the rules derive for ev. Events failing Valid
// produce no edges.
func (e *Engine) Infer(ev models.Event, pop Population) []models.Edge {
	if !ev.Valid() {
		return nil
	}

	var edges []models.Edge
	newFault := ""
	if pop.Places != nil {
		edges = append(edges, e.faultEdges(ev, pop.Places)...)
		edges = append(edges, e.impactEdges(ev, pop.Places)...)
		newFault = pop.Places.NearestFault(ev.Latitude, ev.Longitude, e.rules.Fault.MaxDistanceKm)
	}

	for i := range pop.Events {
		other := &pop.Events[i]
		if other.ID == ev.ID || !other.Valid() {
			continue
		}
		dist := models.HaversineKm(ev.Latitude, ev.Longitude, other.Latitude, other.Longitude)
		delta := time.Duration(ev.Time-other.Time) * time.Millisecond

		if edge, ok := e.sequenceEdge(ev, other, dist, delta); ok {
			edges = append(edges, edge)
		}
		if newFault != "" {
			if edge, ok := e.cascadeEdge(ev, other, newFault, pop.Places, dist, delta); ok {
				edges = append(edges, edge)
			}
		}
	}
	return edges
}

func (e *Engine) faultEdges(ev models.Event, g *Gazetteer) []models.Edge {
	hits := g.FaultsWithin(ev.Latitude, ev.Longitude, e.rules.Fault.MaxDistanceKm)
	edges := make([]models.Edge, 0, len(hits))
	for _, h := range hits {
		edges = append(edges, models.Edge{
			From:       models.Quake(ev.ID),
			Type:       models.RelOnFaultline,
			To:         models.Fault(h.ID),
			Properties: map[string]any{"distance_km": round2(h.DistanceKm)},
		})
	}
	return edges
}

func (e *Engine) impactEdges(ev models.Event, g *Gazetteer) []models.Edge {
	radius := e.rules.ImpactRadius(ev.Magnitude)
	hits := g.CitiesWithin(ev.Latitude, ev.Longitude, radius)
	edges := make([]models.Edge, 0, len(hits))
	for _, h := range hits {
		edges = append(edges, models.Edge{
			From:       models.Quake(ev.ID),
			Type:       models.RelAffectedZone,
			To:         models.CityRef(h.ID),
			Properties: map[string]any{"radius_km": radius, "distance_km": round2(h.DistanceKm)},
		})
	}
	return edges
}

// sequenceEdge links ev to a strong nearby other. An earlier other makes ev
// an aftershock, a later one makes it a foreshock. Equal times link nothing.
func (e *Engine) sequenceEdge(ev models.Event, other *models.Event, dist float64, delta time.Duration) (models.Edge, bool) {
	r := e.rules.Aftershock
	if other.Magnitude < r.MinMagnitude || dist > r.MaxDistanceKm || absDuration(delta) > r.MaxTimeDelta {
		return models.Edge{}, false
	}

	var rel models.Relation
	switch {
	case other.Time < ev.Time:
		rel = models.RelAftershockOf
	case other.Time > ev.Time:
		rel = models.RelForeshockOf
	default:
		return models.Edge{}, false
	}
	return models.Edge{
		From: models.Quake(ev.ID),
		Type: rel,
		To:   models.Quake(other.ID),
		Properties: map[string]any{
			"distance_km":   round2(dist),
			"time_diff_hrs": round2(absDuration(delta).Hours()),
		},
	}, true
}

// cascadeEdge links an earlier strong event on a different fault to ev.
func (e *Engine) cascadeEdge(ev models.Event, other *models.Event, newFault string, g *Gazetteer, dist float64, delta time.Duration) (models.Edge, bool) {
	r := e.rules.Cascade
	if other.Magnitude < r.MinMagnitude || dist > r.MaxDistanceKm {
		return models.Edge{}, false
	}
	// The trigger precedes the triggered event.
	if delta < 0 || delta > r.MaxTimeDelta {
		return models.Edge{}, false
	}
	otherFault := g.NearestFault(other.Latitude, other.Longitude, e.rules.Fault.MaxDistanceKm)
	if otherFault == "" || otherFault == newFault {
		return models.Edge{}, false
	}
	return models.Edge{
		From: models.Quake(other.ID),
		Type: models.RelTriggered,
		To:   models.Quake(ev.ID),
		Properties: map[string]any{
			"from_fault":    otherFault,
			"to_fault":      newFault,
			"distance_km":   round2(dist),
			"time_diff_hrs": round2(delta.Hours()),
		},
	}, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

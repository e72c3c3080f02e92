// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tomtom215/quakegraph/internal/metrics"
	"github.com/tomtom215/quakegraph/internal/models"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 1000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	return min(limit, maxQueryLimit)
}

// LinkedNode is a node reached over one edge, with the edge's properties.
type LinkedNode struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// EventContext is an earthquake with everything it links to.
type EventContext struct {
	Event       models.Event `json:"event"`
	Region      string       `json:"region,omitempty"`
	Cluster     string       `json:"cluster,omitempty"`
	Faults      []LinkedNode `json:"faults"`
	Cities      []LinkedNode `json:"cities"`
	Aftershocks []LinkedNode `json:"aftershock_of"`
	Foreshocks  []LinkedNode `json:"foreshock_of"`
}

// Neighbor is one edge seen from a node. Direction is "out" when the node
// is the source and "in" when it is the target.
type Neighbor struct {
	Direction  string         `json:"direction"`
	Type       string         `json:"type"`
	Node       models.NodeRef `json:"node"`
	Properties map[string]any `json:"properties,omitempty"`
}

// NodeDegree is a node with its number of incident edges.
type NodeDegree struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Degree int    `json:"degree"`
}

// AftershockSequence is a main shock with the events linked to it as
// aftershocks.
type AftershockSequence struct {
	MainShockID string  `json:"main_shock_id"`
	Magnitude   float64 `json:"magnitude"`
	TimeMs      int64   `json:"time"`
	Aftershocks int     `json:"aftershocks"`
}

// Cascade is one TRIGGERED edge.
type Cascade struct {
	TriggerID     string  `json:"trigger_id"`
	TriggeredID   string  `json:"triggered_id"`
	FromFault     string  `json:"from_fault"`
	ToFault       string  `json:"to_fault"`
	DistanceKm    float64 `json:"distance_km"`
	TimeDiffHours float64 `json:"time_diff_hrs"`
}

// Stats counts nodes per kind and edges per type.
type Stats struct {
	Nodes map[string]int64 `json:"nodes"`
	Edges map[string]int64 `json:"edges"`
}

func (s *Store) observe(op string, start time.Time, err error) {
	metrics.RecordDBQuery("postgres", op, time.Since(start), err)
}

// EventContext returns an earthquake with its region, cluster, faults,
// affected cities and sequence links.
func (s *Store) EventContext(ctx context.Context, id string) (out *EventContext, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { s.observe("event_context", start, err) }()

	var node nodeRow
	err = s.db.WithContext(ctx).
		Where("kind = ? AND key = ?", string(models.NodeEarthquake), id).
		Take(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("earthquake %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load earthquake %s: %w", id, err)
	}

	var edges []edgeRow
	err = s.db.WithContext(ctx).
		Where("from_kind = ? AND from_key = ?", string(models.NodeEarthquake), id).
		Order("type, to_key").
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("load edges of %s: %w", id, err)
	}

	out = &EventContext{
		Event:       eventFromNode(node),
		Faults:      []LinkedNode{},
		Cities:      []LinkedNode{},
		Aftershocks: []LinkedNode{},
		Foreshocks:  []LinkedNode{},
	}
	for _, e := range edges {
		linked := LinkedNode{Name: e.ToKey, Properties: e.Properties}
		switch models.Relation(e.Type) {
		case models.RelOccurredIn:
			out.Region = e.ToKey
		case models.RelBelongsToCluster:
			out.Cluster = e.ToKey
		case models.RelOnFaultline:
			out.Faults = append(out.Faults, linked)
		case models.RelAffectedZone:
			out.Cities = append(out.Cities, linked)
		case models.RelAftershockOf:
			out.Aftershocks = append(out.Aftershocks, linked)
		case models.RelForeshockOf:
			out.Foreshocks = append(out.Foreshocks, linked)
		}
	}
	return out, nil
}

// Neighbors returns every edge incident to a node in either direction.
func (s *Store) Neighbors(ctx context.Context, ref models.NodeRef, limit int) (out []Neighbor, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { s.observe("neighbors", start, err) }()

	var edges []edgeRow
	err = s.db.WithContext(ctx).
		Where("(from_kind = ? AND from_key = ?) OR (to_kind = ? AND to_key = ?)",
			string(ref.Kind), ref.Key, string(ref.Kind), ref.Key).
		Order("type, from_key, to_key").
		Limit(clampLimit(limit)).
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s/%s: %w", ref.Kind, ref.Key, err)
	}

	out = make([]Neighbor, 0, len(edges))
	for _, e := range edges {
		n := Neighbor{Direction: "out", Type: e.Type, Node: e.to(), Properties: e.Properties}
		if e.from() != ref {
			n.Direction, n.Node = "in", e.from()
		}
		out = append(out, n)
	}
	return out, nil
}

// Centrality ranks nodes of one kind by degree. An empty kind ranks every
// node.
func (s *Store) Centrality(ctx context.Context, kind models.NodeKind, limit int) (out []NodeDegree, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { s.observe("centrality", start, err) }()

	out = make([]NodeDegree, 0)
	err = s.db.WithContext(ctx).Raw(`
		SELECT kind, key, COUNT(*) AS degree FROM (
			SELECT from_kind AS kind, from_key AS key FROM graph_edges
			UNION ALL
			SELECT to_kind AS kind, to_key AS key FROM graph_edges
		) ends
		WHERE ? = '' OR kind = ?
		GROUP BY kind, key
		ORDER BY degree DESC, key
		LIMIT ?`, string(kind), string(kind), clampLimit(limit)).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("centrality: %w", err)
	}
	return out, nil
}

// AftershockSequences returns main shocks with at least minAftershocks
// AFTERSHOCK_OF edges pointing at them, largest sequences first.
func (s *Store) AftershockSequences(ctx context.Context, minAftershocks, limit int) (out []AftershockSequence, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { s.observe("aftershock_sequences", start, err) }()

	if minAftershocks <= 0 {
		minAftershocks = 1
	}
	out = make([]AftershockSequence, 0)
	err = s.db.WithContext(ctx).Raw(`
		SELECT e.to_key AS main_shock_id,
			COALESCE(n.magnitude, 0) AS magnitude,
			COALESCE(n.time_ms, 0) AS time_ms,
			COUNT(*) AS aftershocks
		FROM graph_edges e
		LEFT JOIN graph_nodes n ON n.kind = e.to_kind AND n.key = e.to_key
		WHERE e.type = ?
		GROUP BY e.to_key, n.magnitude, n.time_ms
		HAVING COUNT(*) >= ?
		ORDER BY aftershocks DESC, main_shock_id
		LIMIT ?`, string(models.RelAftershockOf), minAftershocks, clampLimit(limit)).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("aftershock sequences: %w", err)
	}
	return out, nil
}

// CascadeEvents returns the most recently inferred TRIGGERED edges.
func (s *Store) CascadeEvents(ctx context.Context, limit int) (out []Cascade, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { s.observe("cascade_events", start, err) }()

	var edges []edgeRow
	err = s.db.WithContext(ctx).
		Where("type = ?", string(models.RelTriggered)).
		Order("updated_at DESC, from_key, to_key").
		Limit(clampLimit(limit)).
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("cascade events: %w", err)
	}

	out = make([]Cascade, 0, len(edges))
	for _, e := range edges {
		out = append(out, Cascade{
			TriggerID:     e.FromKey,
			TriggeredID:   e.ToKey,
			FromFault:     propString(e.Properties, "from_fault"),
			ToFault:       propString(e.Properties, "to_fault"),
			DistanceKm:    propFloat(e.Properties, "distance_km"),
			TimeDiffHours: propFloat(e.Properties, "time_diff_hrs"),
		})
	}
	return out, nil
}

// Stats counts nodes per kind and edges per type.
func (s *Store) Stats(ctx context.Context) (out Stats, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	defer func() { s.observe("stats", start, err) }()

	type count struct {
		Name  string
		Total int64
	}
	var nodes, edges []count
	db := s.db.WithContext(ctx)
	if err = db.Model(&nodeRow{}).Select("kind AS name, COUNT(*) AS total").Group("kind").Scan(&nodes).Error; err != nil {
		return Stats{}, fmt.Errorf("count nodes: %w", err)
	}
	if err = db.Model(&edgeRow{}).Select("type AS name, COUNT(*) AS total").Group("type").Scan(&edges).Error; err != nil {
		return Stats{}, fmt.Errorf("count edges: %w", err)
	}

	out = Stats{Nodes: make(map[string]int64, len(nodes)), Edges: make(map[string]int64, len(edges))}
	for _, c := range nodes {
		out.Nodes[c.Name] = c.Total
	}
	for _, c := range edges {
		out.Edges[c.Name] = c.Total
	}
	return out, nil
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package graph

import (
	"math"
	"time"

	"gorm.io/datatypes"

	"github.com/tomtom215/quakegraph/internal/models"
)

// nodeRow is one graph node. Coordinates, magnitude and time are columns so
// candidate lookups can use indexes; everything else lives in Props.
type nodeRow struct {
	Kind      string            `gorm:"primaryKey;size:32"`
	Key       string            `gorm:"primaryKey;size:255"`
	Latitude  *float64          `gorm:"index:idx_nodes_lat"`
	Longitude *float64
	Magnitude *float64
	TimeMs    *int64            `gorm:"column:time_ms;index:idx_nodes_time"`
	Props     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (nodeRow) TableName() string { return "graph_nodes" }

// edgeRow is one directed, typed relationship.
type edgeRow struct {
	FromKind   string            `gorm:"primaryKey;size:32;index:idx_edges_from,priority:1"`
	FromKey    string            `gorm:"primaryKey;size:255;index:idx_edges_from,priority:2"`
	Type       string            `gorm:"primaryKey;size:32;index:idx_edges_type"`
	ToKind     string            `gorm:"primaryKey;size:32;index:idx_edges_to,priority:1"`
	ToKey      string            `gorm:"primaryKey;size:255;index:idx_edges_to,priority:2"`
	Properties datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (edgeRow) TableName() string { return "graph_edges" }

func (r edgeRow) from() models.NodeRef {
	return models.NodeRef{Kind: models.NodeKind(r.FromKind), Key: r.FromKey}
}

func (r edgeRow) to() models.NodeRef {
	return models.NodeRef{Kind: models.NodeKind(r.ToKind), Key: r.ToKey}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// quakeNode maps an event to its node. Invalid coordinates are left NULL.
func quakeNode(ev models.Event) nodeRow {
	row := nodeRow{
		Kind:      string(models.NodeEarthquake),
		Key:       ev.ID,
		Latitude:  finite(ev.Latitude),
		Longitude: finite(ev.Longitude),
		Magnitude: finite(ev.Magnitude),
		Props: datatypes.JSONMap{
			"place":  ev.Place,
			"url":    ev.URL,
			"depth":  ev.Depth,
			"region": models.ExtractRegion(ev.Place),
		},
	}
	if ev.Time > 0 {
		t := ev.Time
		row.TimeMs = &t
	}
	if ev.ExactAddress != "" {
		row.Props["exact_address"] = ev.ExactAddress
	}
	if ev.ReadableTime != "" {
		row.Props["readable_time"] = ev.ReadableTime
	}
	if ev.IsAlert {
		row.Props["is_alert"] = true
	}
	return row
}

// eventFromNode maps an earthquake node back to an event.
func eventFromNode(row nodeRow) models.Event {
	ev := models.Event{
		ID:           row.Key,
		Place:        propString(row.Props, "place"),
		URL:          propString(row.Props, "url"),
		Depth:        propFloat(row.Props, "depth"),
		ExactAddress: propString(row.Props, "exact_address"),
		ReadableTime: propString(row.Props, "readable_time"),
	}
	if row.Latitude != nil {
		ev.Latitude = *row.Latitude
	} else {
		ev.Latitude = math.NaN()
	}
	if row.Longitude != nil {
		ev.Longitude = *row.Longitude
	} else {
		ev.Longitude = math.NaN()
	}
	if row.Magnitude != nil {
		ev.Magnitude = *row.Magnitude
	}
	if row.TimeMs != nil {
		ev.Time = *row.TimeMs
	}
	ev.IsAlert, _ = row.Props["is_alert"].(bool)
	return ev
}

func placeNode(kind models.NodeKind, p models.Place) nodeRow {
	row := nodeRow{
		Kind:      string(kind),
		Key:       p.Name,
		Latitude:  finite(p.Latitude),
		Longitude: finite(p.Longitude),
		Props:     datatypes.JSONMap{},
	}
	if p.Region != "" {
		row.Props["region"] = p.Region
	}
	return row
}

func placeFromNode(row nodeRow) models.Place {
	p := models.Place{Name: row.Key, Region: propString(row.Props, "region")}
	if row.Latitude != nil {
		p.Latitude = *row.Latitude
	}
	if row.Longitude != nil {
		p.Longitude = *row.Longitude
	}
	return p
}

func faultNode(f models.FaultZone) nodeRow {
	return nodeRow{
		Kind:      string(models.NodeFaultZone),
		Key:       f.Name,
		Latitude:  finite(f.Latitude),
		Longitude: finite(f.Longitude),
		Props:     datatypes.JSONMap{},
	}
}

func faultFromNode(row nodeRow) models.FaultZone {
	f := models.FaultZone{Name: row.Key}
	if row.Latitude != nil {
		f.Latitude = *row.Latitude
	}
	if row.Longitude != nil {
		f.Longitude = *row.Longitude
	}
	return f
}

func clusterNode(c models.Cluster) nodeRow {
	return nodeRow{
		Kind:      string(models.NodeCluster),
		Key:       c.ID,
		Latitude:  finite(c.CentroidLat),
		Longitude: finite(c.CentroidLon),
		Magnitude: finite(c.AvgMagnitude),
		TimeMs:    &c.StartTime,
		Props: datatypes.JSONMap{
			"event_count":  c.EventCount,
			"region":       c.Region,
			"start_time":   c.StartTime,
			"end_time":     c.EndTime,
			"created_at":   c.CreatedAt,
			"anchor_id":    c.AnchorID,
			"strongest_id": c.StrongestID,
		},
	}
}

func edgeFromModel(e models.Edge) edgeRow {
	props := datatypes.JSONMap{}
	for k, v := range e.Properties {
		props[k] = v
	}
	return edgeRow{
		FromKind:   string(e.From.Kind),
		FromKey:    e.From.Key,
		Type:       string(e.Type),
		ToKind:     string(e.To.Kind),
		ToKey:      e.To.Key,
		Properties: props,
	}
}

type edgeKey struct {
	fromKind, fromKey, typ, toKind, toKey string
}

// dedupEdges keeps the last edge per (from, type, to). Postgres rejects an
// INSERT ... ON CONFLICT DO UPDATE that touches the same row twice.
func dedupEdges(edges []models.Edge) []edgeRow {
	pos := make(map[edgeKey]int, len(edges))
	rows := make([]edgeRow, 0, len(edges))
	for _, e := range edges {
		r := edgeFromModel(e)
		k := edgeKey{r.FromKind, r.FromKey, r.Type, r.ToKind, r.ToKey}
		if i, ok := pos[k]; ok {
			rows[i] = r
			continue
		}
		pos[k] = len(rows)
		rows = append(rows, r)
	}
	return rows
}

func propString(props datatypes.JSONMap, key string) string {
	s, _ := props[key].(string)
	return s
}

// propFloat reads a number that went through JSONB and so may come back as
// float64 or json.Number-like integer types.
func propFloat(props datatypes.JSONMap, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package models

// ClusterIDPrefix is prepended to the anchor event id to form a stable cluster id.
const ClusterIDPrefix = "cl_"

// Cluster is a spatiotemporally dense group of events. The whole set is
// replaced on every clustering run.
type Cluster struct {
	ID           string  `json:"cluster_id"`
	CentroidLat  float64 `json:"centroid_lat"`
	CentroidLon  float64 `json:"centroid_lon"`
	EventCount   int     `json:"event_count"`
	AvgMagnitude float64 `json:"avg_magnitude"`
	Region       string  `json:"region"`
	StartTime    int64   `json:"start_time"` // Earliest member, epoch ms
	EndTime      int64   `json:"end_time"`   // Latest member, epoch ms
	CreatedAt    int64   `json:"created_at"`
	AnchorID     string  `json:"anchor_id"`  // Earliest member event id
	StrongestID  string  `json:"strongest"`  // Highest-magnitude member event id
}

// ClusterAssignment maps one event to its cluster for a run. A nil
// ClusterID marks noise.
type ClusterAssignment struct {
	EventID   string
	ClusterID *string
}

// StableClusterID derives the persistent id for a cluster anchored on eventID.
func StableClusterID(eventID string) string {
	return ClusterIDPrefix + eventID
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package models

// Relation is the type of a graph edge.
type Relation string

// Edge types written to the graph store.
const (
	RelAftershockOf     Relation = "AFTERSHOCK_OF"
	RelForeshockOf      Relation = "FORESHOCK_OF"
	RelTriggered        Relation = "TRIGGERED"
	RelOnFaultline      Relation = "ON_FAULTLINE"
	RelAffectedZone     Relation = "AFFECTED_ZONE"
	RelBelongsToCluster Relation = "BELONGS_TO_CLUSTER"
	RelNear             Relation = "NEAR"
	RelOccurredIn       Relation = "OCCURRED_IN"
	RelLocatedIn        Relation = "LOCATED_IN"
)

// NodeKind names the node label an edge endpoint refers to.
type NodeKind string

// Node kinds.
const (
	NodeEarthquake NodeKind = "Earthquake"
	NodeFaultZone  NodeKind = "FaultZone"
	NodeRegion     NodeKind = "Region"
	NodeCity       NodeKind = "City"
	NodeCluster    NodeKind = "Cluster"
)

// NodeRef identifies a node by kind and natural key.
type NodeRef struct {
	Kind NodeKind `json:"kind"`
	Key  string   `json:"key"`
}

// Edge is a directed relationship between two nodes. Edges are merged by
// (From, Type, To); Properties are overwritten on merge.
type Edge struct {
	From       NodeRef        `json:"from"`
	Type       Relation       `json:"type"`
	To         NodeRef        `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Quake returns a NodeRef for an earthquake id.
func Quake(id string) NodeRef { return NodeRef{Kind: NodeEarthquake, Key: id} }

// Fault returns a NodeRef for a fault zone name.
func Fault(name string) NodeRef { return NodeRef{Kind: NodeFaultZone, Key: name} }

// CityRef returns a NodeRef for a city name.
func CityRef(name string) NodeRef { return NodeRef{Kind: NodeCity, Key: name} }

// RegionRef returns a NodeRef for a region name.
func RegionRef(name string) NodeRef { return NodeRef{Kind: NodeRegion, Key: name} }

// ClusterRef returns a NodeRef for a cluster id.
func ClusterRef(id string) NodeRef { return NodeRef{Kind: NodeCluster, Key: id} }

// FaultZone is a reference point representing a known seismic fault.
type FaultZone struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place is a region or city with a proxy reference point taken from the
// first event seen there.
type Place struct {
	Name      string  `json:"name"`
	Region    string  `json:"region,omitempty"` // Cities only
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SeedFaultZones is the compiled-in fault set. An external dataset extends
// it.
func SeedFaultZones() []FaultZone {
	return []FaultZone{
		{Name: "San Andreas Fault", Latitude: 35.7, Longitude: -120.3},
		{Name: "Hayward Fault", Latitude: 37.7, Longitude: -122.1},
		{Name: "San Jacinto Fault", Latitude: 33.6, Longitude: -116.5},
		{Name: "Cascadia Subduction Zone", Latitude: 45.0, Longitude: -125.0},
		{Name: "New Madrid Seismic Zone", Latitude: 36.5, Longitude: -89.6},
		{Name: "Aleutian Megathrust", Latitude: 51.5, Longitude: -175.0},
		{Name: "Japan Trench", Latitude: 38.0, Longitude: 143.5},
		{Name: "Sunda Megathrust", Latitude: 2.0, Longitude: 96.0},
		{Name: "North Anatolian Fault", Latitude: 40.7, Longitude: 30.0},
		{Name: "Alpine Fault", Latitude: -43.5, Longitude: 170.5},
		{Name: "Peru-Chile Trench", Latitude: -20.0, Longitude: -71.0},
		{Name: "Hikurangi Subduction Zone", Latitude: -40.0, Longitude: 178.0},
	}
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package graph stores the relationship graph in PostgreSQL through gorm.

The graph is two tables. graph_nodes holds one row per (kind, key):
earthquakes keyed by event id, regions and cities keyed by name, fault
zones keyed by name and clusters keyed by cluster id. graph_edges holds one
row per (from, type, to) with a JSONB property map. Both are written with
INSERT ... ON CONFLICT, so every write is a merge by natural key.

MergeEvent is the ingestion-path entry point. It merges the earthquake,
its region and city, then runs the inference engine against candidate
events pre-filtered by the widest rule time bound and a latitude band,
and merges the resulting edges.

The clustering job replaces cluster nodes with ReplaceClusters and the
proximity edge set with ReplaceNearEdges. Each replacement is one
transaction, but the pair is not atomic with the document store.

Fault zones and cities are mirrored in an in-memory Gazetteer, loaded by
Init and kept current as cities are first seen.
*/
package graph

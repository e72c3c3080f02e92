// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package clustering groups recent earthquakes into spatiotemporal
// clusters and writes them back to the document and graph stores.
//
// Engine.Run is pure. It projects each event to kilometres
// (x = lat*111.32, y = lon*111.32*cos(lat)) and hours since the earliest
// event, divides the spatial axes by eps_km and the time axis by the time
// window, and runs DBSCAN with the Chebyshev metric and eps 1. Two events
// are neighbours exactly when both their projected distance on each axis
// is within eps_km and their time difference is within the window. The
// projection breaks down across the antimeridian; events there may split
// into separate clusters.
//
// A cluster's id is "cl_" plus the id of its earliest member, so rerunning
// on the same data yields the same ids.
//
// Service owns the write-back and the triggers: once at startup, on a
// "recluster" token on the control channel, when the clustering
// configuration changes on disk, and on an optional interval. Runs are
// serialized.
package clustering

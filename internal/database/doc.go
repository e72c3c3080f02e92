// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package database is the DuckDB document store for earthquake events and
clusters.

# Tables

  - events: one row per source event id. Core fields are written once;
    later upserts only fill derived fields (address, readable time, alert
    flag). cluster_id belongs to the clustering job and is never touched by
    an upsert.
  - clusters: the current clustering result, replaced wholesale each run.

The region column is derived from the place text at write time with
models.ExtractRegion, so regional aggregates do not parse strings in SQL.

# Analytics

  - MagnitudeDistribution: integer magnitude buckets 0..10
  - DailyTrends: count, mean and max magnitude per UTC day
  - NearestEvents: great-circle radius search around a point
  - HeatGrid: rounded lat/lon cells weighted by magnitude
  - DepthVsMagnitude: scatter pairs
  - RegionalRisk: min(100, avg*10 + recent30d*2 + max*5) per region
  - UnusualActivity: regions whose last 48h count exceeds five times their
    historical daily average

# Thread Safety

DB is safe for concurrent use; database/sql pools the connections.
*/
package database

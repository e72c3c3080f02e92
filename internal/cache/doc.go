// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package cache provides the in-memory data structures used on the hot path.

# LRU

LRU is a thread-safe least-recently-used cache with a per-entry TTL. The
geocoder keys it by the exact "lat,lon" pair, so a repeated coordinate
never costs a second upstream call while the entry is fresh.

	c := cache.NewLRU[string](10000, 24*time.Hour)
	c.Set("35.7,-117.5", "Ridgecrest, Kern County, California")
	addr, ok := c.Get("35.7,-117.5")

Expiration is lazy: an expired entry is dropped on the Get that finds it,
or by CleanupExpired.

# SpatialIndex

SpatialIndex is a geographic hash grid for radius queries. Instead of
comparing a point against every entry, a query only visits the cells that
intersect its bounding box and then filters by great-circle distance.

Relationship inference indexes fault zones and known cities with it, and
the batch proximity join indexes the whole clustering window.

	idx := cache.NewSpatialIndex[models.FaultZone](100)
	idx.Insert(f.Name, f.Latitude, f.Longitude, f)
	hits := idx.QueryNearby(lat, lon, 200)

Longitude cells wrap at the antimeridian, so a query near 180 degrees
finds entries on both sides.

# Thread Safety

Both types are safe for concurrent use. Returned values are copies.
*/
package cache

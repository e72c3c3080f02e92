// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package inference derives relationship edges between earthquakes, fault
zones and population centers.

Per-event rules run on the ingestion path, once for every newly persisted
event:

  - Fault association: ON_FAULTLINE to every fault zone within the fault
    distance, tagged with distance_km.
  - Impact radius: AFFECTED_ZONE to every known city within a radius looked
    up from a magnitude bucket table, tagged with radius_km.
  - Aftershock/foreshock: AFTERSHOCK_OF or FORESHOCK_OF from the new event to
    every strong enough, close enough other event. Direction encodes
    temporal order only.
  - Cascade: TRIGGERED from an earlier event on a different fault to the new
    event.

The proximity join (NEAR) is quadratic in the worst case and runs only in
the clustering batch through NearPairs.

Rule thresholds are loaded once at startup with LoadRules. A missing or
malformed rule file falls back to DefaultRules with a warning.

The engine is pure: it reads the Population it is given and never touches
a store.
*/
package inference

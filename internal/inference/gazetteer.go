// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package inference

import (
	"github.com/tomtom215/quakegraph/internal/cache"
	"github.com/tomtom215/quakegraph/internal/models"
)

// gazetteerCellKm matches the common query radii (50 to 200 km).
const gazetteerCellKm = 100

// Gazetteer indexes the static reference points rules link events to:
// fault zones and cities. It is safe for concurrent use.
type Gazetteer struct {
	faults *cache.SpatialIndex[models.FaultZone]
	cities *cache.SpatialIndex[models.Place]
}

// NewGazetteer indexes the given faults and cities.
func NewGazetteer(faults []models.FaultZone, cities []models.Place) *Gazetteer {
	g := &Gazetteer{
		faults: cache.NewSpatialIndex[models.FaultZone](gazetteerCellKm),
		cities: cache.NewSpatialIndex[models.Place](gazetteerCellKm),
	}
	for _, f := range faults {
		g.AddFault(f)
	}
	for _, c := range cities {
		g.AddCity(c)
	}
	return g
}

// AddFault adds or replaces a fault zone, keyed by name.
func (g *Gazetteer) AddFault(f models.FaultZone) {
	g.faults.Insert(f.Name, f.Latitude, f.Longitude, f)
}

// AddCity adds a city unless one with the same name is known. A city keeps
// the coordinates of the first event seen there.
func (g *Gazetteer) AddCity(c models.Place) bool {
	if c.Name == "" {
		return false
	}
	return g.cities.InsertIfAbsent(c.Name, c.Latitude, c.Longitude, c)
}

// Faults returns the number of indexed fault zones.
func (g *Gazetteer) Faults() int { return g.faults.Size() }

// Cities returns the number of indexed cities.
func (g *Gazetteer) Cities() int { return g.cities.Size() }

// FaultsWithin returns fault zones within radiusKm, nearest first.
func (g *Gazetteer) FaultsWithin(lat, lon, radiusKm float64) []cache.Hit[models.FaultZone] {
	return g.faults.QueryNearby(lat, lon, radiusKm)
}

// CitiesWithin returns cities within radiusKm, nearest first.
func (g *Gazetteer) CitiesWithin(lat, lon, radiusKm float64) []cache.Hit[models.Place] {
	return g.cities.QueryNearby(lat, lon, radiusKm)
}

// NearestFault returns the name of the closest fault within radiusKm, or ""
// when there is none.
func (g *Gazetteer) NearestFault(lat, lon, radiusKm float64) string {
	hit, ok := g.faults.Nearest(lat, lon, radiusKm)
	if !ok {
		return ""
	}
	return hit.ID
}

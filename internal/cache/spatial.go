// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package cache

import (
	"math"
	"sort"
	"sync"

	"github.com/tomtom215/quakegraph/internal/models"
)

const kmPerDegree = 111.0

type cellKey struct {
	X, Y int
}

type spatialEntry[T any] struct {
	id    string
	lat   float64
	lon   float64
	value T
	cell  cellKey
}

// Hit is one result of a radius query.
type Hit[T any] struct {
	ID         string
	Lat        float64
	Lon        float64
	DistanceKm float64
	Value      T
}

// SpatialIndex divides the globe into fixed-size cells for radius queries.
// A query visits only the cells that intersect its bounding box, so the
// cost is proportional to the entries nearby rather than the whole index.
type SpatialIndex[T any] struct {
	mu       sync.RWMutex
	cellDeg  float64
	lonCells int
	cells    map[cellKey][]*spatialEntry[T]
	entries  map[string]*spatialEntry[T]
}

// NewSpatialIndex creates an index with cells of roughly cellSizeKm on a
// side at the equator. Pick a size near the typical query radius.
func NewSpatialIndex[T any](cellSizeKm float64) *SpatialIndex[T] {
	if cellSizeKm <= 0 {
		cellSizeKm = 100
	}
	cellDeg := cellSizeKm / kmPerDegree
	return &SpatialIndex[T]{
		cellDeg:  cellDeg,
		lonCells: int(math.Ceil(360 / cellDeg)),
		cells:    make(map[cellKey][]*spatialEntry[T]),
		entries:  make(map[string]*spatialEntry[T]),
	}
}

func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func (s *SpatialIndex[T]) wrapX(x int) int {
	x %= s.lonCells
	if x < 0 {
		x += s.lonCells
	}
	return x
}

func (s *SpatialIndex[T]) keyFor(lat, lon float64) cellKey {
	x := int(math.Floor((normalizeLon(lon) + 180) / s.cellDeg))
	y := int(math.Floor((lat + 90) / s.cellDeg))
	return cellKey{X: s.wrapX(x), Y: y}
}

// Insert adds or replaces the entry with the given id.
func (s *SpatialIndex[T]) Insert(id string, lat, lon float64, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[id]; ok {
		s.removeFromCell(existing)
	}
	s.insertLocked(id, lat, lon, value)
}

// InsertIfAbsent adds the entry unless the id is already indexed and
// reports whether it was added.
func (s *SpatialIndex[T]) InsertIfAbsent(id string, lat, lon float64, value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return false
	}
	s.insertLocked(id, lat, lon, value)
	return true
}

func (s *SpatialIndex[T]) insertLocked(id string, lat, lon float64, value T) {
	entry := &spatialEntry[T]{id: id, lat: lat, lon: lon, value: value, cell: s.keyFor(lat, lon)}
	s.cells[entry.cell] = append(s.cells[entry.cell], entry)
	s.entries[id] = entry
}

// Remove deletes an entry by id and reports whether it existed.
func (s *SpatialIndex[T]) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	s.removeFromCell(entry)
	delete(s.entries, id)
	return true
}

func (s *SpatialIndex[T]) removeFromCell(entry *spatialEntry[T]) {
	list := s.cells[entry.cell]
	for i, e := range list {
		if e.id == entry.id {
			list[i] = list[len(list)-1]
			list = list[:len(list)-1]
			break
		}
	}
	if len(list) == 0 {
		delete(s.cells, entry.cell)
		return
	}
	s.cells[entry.cell] = list
}

// Get returns the value stored under id.
func (s *SpatialIndex[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.entries[id]; ok {
		return entry.value, true
	}
	var zero T
	return zero, false
}

// QueryNearby returns every entry within radiusKm of the point, nearest
// first. Equal distances are ordered by id.
func (s *SpatialIndex[T]) QueryNearby(lat, lon, radiusKm float64) []Hit[T] {
	if radiusKm < 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	center := s.keyFor(lat, lon)
	latSpan := radiusKm / kmPerDegree
	yCells := int(math.Ceil(latSpan/s.cellDeg)) + 1

	// Meridians converge, so the longitude span is widest at the box edge
	// nearest a pole.
	edgeLat := math.Min(math.Abs(lat)+latSpan, 89.9)
	lonSpan := latSpan / math.Cos(edgeLat*math.Pi/180)
	xCells := int(math.Ceil(lonSpan/s.cellDeg)) + 1

	var xs []int
	if 2*xCells+1 >= s.lonCells {
		xs = make([]int, s.lonCells)
		for i := range xs {
			xs[i] = i
		}
	} else {
		xs = make([]int, 0, 2*xCells+1)
		for dx := -xCells; dx <= xCells; dx++ {
			xs = append(xs, s.wrapX(center.X+dx))
		}
	}

	var hits []Hit[T]
	for dy := -yCells; dy <= yCells; dy++ {
		for _, x := range xs {
			for _, e := range s.cells[cellKey{X: x, Y: center.Y + dy}] {
				d := models.HaversineKm(lat, lon, e.lat, e.lon)
				if d <= radiusKm {
					hits = append(hits, Hit[T]{ID: e.id, Lat: e.lat, Lon: e.lon, DistanceKm: d, Value: e.value})
				}
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}

// Nearest returns the closest entry within radiusKm.
func (s *SpatialIndex[T]) Nearest(lat, lon, radiusKm float64) (Hit[T], bool) {
	hits := s.QueryNearby(lat, lon, radiusKm)
	if len(hits) == 0 {
		return Hit[T]{}, false
	}
	return hits[0], true
}

// Size returns the number of entries.
func (s *SpatialIndex[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package clustering

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/models"
)

const (
	kmPerDegree = 111.32
	msPerHour   = float64(time.Hour / time.Millisecond)

	// UnknownRegion names a cluster whose strongest member has no place.
	UnknownRegion = "Unknown Region"

	noise = -1
)

// Params are the hot-reloadable clustering parameters.
type Params struct {
	EpsKm           float64
	TimeWindowHours float64
	MinSamples      int
}

// ParamsFrom extracts Params from the clustering configuration.
func ParamsFrom(c config.ClusteringConfig) Params {
	return Params{EpsKm: c.EpsKm, TimeWindowHours: c.TimeWindowHours, MinSamples: c.MinSamples}
}

// Result is the outcome of one clustering pass.
type Result struct {
	Clusters    []models.Cluster
	Assignments []models.ClusterAssignment // one per considered event
	Considered  int
	Noise       int
}

// Engine runs DBSCAN over scaled spatiotemporal features.
type Engine struct{}

// NewEngine creates an engine.
func NewEngine() *Engine { return &Engine{} }

type point struct {
	ev      *models.Event
	x, y, t float64
	label   int
	visited bool
}

type cell struct{ x, y, t int64 }

// Run clusters events. Events failing Valid are ignored. Clusters are
// ordered by id.
func (e *Engine) Run(events []models.Event, p Params, now time.Time) Result {
	points := project(events, p)
	if len(points) == 0 {
		return Result{Clusters: []models.Cluster{}, Assignments: []models.ClusterAssignment{}}
	}

	grid := make(map[cell][]int, len(points))
	for i := range points {
		c := cellOf(&points[i])
		grid[c] = append(grid[c], i)
	}

	minSamples := max(p.MinSamples, 1)
	next := 0
	for i := range points {
		if points[i].visited {
			continue
		}
		points[i].visited = true
		nbrs := neighbours(points, grid, i)
		if len(nbrs) < minSamples {
			points[i].label = noise
			continue
		}

		label := next
		next++
		points[i].label = label
		queue := nbrs
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			q := &points[j]
			if q.label == noise {
				// border point reached from a core point
				q.label = label
			}
			if q.visited {
				continue
			}
			q.visited = true
			q.label = label
			if more := neighbours(points, grid, j); len(more) >= minSamples {
				queue = append(queue, more...)
			}
		}
	}

	return summarize(points, next, now)
}

// project drops invalid events and computes scaled features, sorted by
// time then id so labels are deterministic.
func project(events []models.Event, p Params) []point {
	valid := make([]*models.Event, 0, len(events))
	for i := range events {
		if events[i].Valid() {
			valid = append(valid, &events[i])
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Time != valid[j].Time {
			return valid[i].Time < valid[j].Time
		}
		return valid[i].ID < valid[j].ID
	})

	minTime := valid[0].Time
	eps := p.EpsKm
	window := p.TimeWindowHours
	points := make([]point, len(valid))
	for i, ev := range valid {
		xKm := ev.Latitude * kmPerDegree
		yKm := ev.Longitude * kmPerDegree * math.Cos(ev.Latitude*math.Pi/180)
		hours := float64(ev.Time-minTime) / msPerHour
		points[i] = point{
			ev:    ev,
			x:     xKm / eps,
			y:     yKm / eps,
			t:     hours / window,
			label: noise,
		}
	}
	return points
}

func cellOf(p *point) cell {
	return cell{int64(math.Floor(p.x)), int64(math.Floor(p.y)), int64(math.Floor(p.t))}
}

// neighbours returns every point within Chebyshev distance 1 of points[i],
// including i itself. With unit cells only the 27 surrounding cells can
// hold one.
func neighbours(points []point, grid map[cell][]int, i int) []int {
	p := &points[i]
	c := cellOf(p)
	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dt := int64(-1); dt <= 1; dt++ {
				for _, j := range grid[cell{c.x + dx, c.y + dy, c.t + dt}] {
					q := &points[j]
					if math.Abs(p.x-q.x) <= 1 && math.Abs(p.y-q.y) <= 1 && math.Abs(p.t-q.t) <= 1 {
						out = append(out, j)
					}
				}
			}
		}
	}
	sort.Ints(out)
	return out
}

// summarize derives stable ids and metadata from the labels.
func summarize(points []point, labels int, now time.Time) Result {
	members := make([][]*models.Event, labels)
	for i := range points {
		if l := points[i].label; l != noise {
			members[l] = append(members[l], points[i].ev)
		}
	}

	ids := make([]string, labels)
	clusters := make([]models.Cluster, 0, labels)
	for l, group := range members {
		c := describe(group, now)
		ids[l] = c.ID
		clusters = append(clusters, c)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	res := Result{
		Clusters:    clusters,
		Assignments: make([]models.ClusterAssignment, 0, len(points)),
		Considered:  len(points),
	}
	for i := range points {
		a := models.ClusterAssignment{EventID: points[i].ev.ID}
		if l := points[i].label; l != noise {
			id := ids[l]
			a.ClusterID = &id
		} else {
			res.Noise++
		}
		res.Assignments = append(res.Assignments, a)
	}
	return res
}

func describe(group []*models.Event, now time.Time) models.Cluster {
	anchor, strongest := group[0], group[0]
	var sumLat, sumLon, sumMag float64
	start, end := group[0].Time, group[0].Time
	for _, ev := range group {
		sumLat += ev.Latitude
		sumLon += ev.Longitude
		sumMag += ev.Magnitude
		start = min(start, ev.Time)
		end = max(end, ev.Time)
		if ev.Time < anchor.Time || (ev.Time == anchor.Time && ev.ID < anchor.ID) {
			anchor = ev
		}
		if ev.Magnitude > strongest.Magnitude {
			strongest = ev
		}
	}

	n := float64(len(group))
	region := UnknownRegion
	if strongest.Place != "" {
		region = models.CleanRegionName(strongest.Place)
	}
	return models.Cluster{
		ID:           models.StableClusterID(anchor.ID),
		CentroidLat:  sumLat / n,
		CentroidLon:  sumLon / n,
		EventCount:   len(group),
		AvgMagnitude: sumMag / n,
		Region:       region,
		StartTime:    start,
		EndTime:      end,
		CreatedAt:    now.UnixMilli(),
		AnchorID:     anchor.ID,
		StrongestID:  strongest.ID,
	}
}

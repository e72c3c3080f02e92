// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package feed

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/models"
)

// Property names tried, in order, for a fault's display name.
var faultNameKeys = []string{"name", "Name", "fault_name", "FAULT_NAME", "catalog_name"}

type faultFeature struct {
	Properties map[string]any `json:"properties"`
	Geometry   *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// KnownFaultZones returns the compiled-in fault set extended by the dataset
// at url. A dataset fault with a seed fault's name replaces it. An empty url
// or a failed download yields the seed set alone.
func (c *Client) KnownFaultZones(ctx context.Context, url string) []models.FaultZone {
	zones := models.SeedFaultZones()
	if url == "" {
		return zones
	}
	extra, err := c.FetchFaultZones(ctx, url)
	if err != nil {
		logging.Warn().Err(err).Str("url", url).Msg("Fault zone download failed; using the built-in faults")
		return zones
	}

	index := make(map[string]int, len(zones))
	for i, z := range zones {
		index[z.Name] = i
	}
	for _, z := range extra {
		if i, ok := index[z.Name]; ok {
			zones[i] = z
			continue
		}
		index[z.Name] = len(zones)
		zones = append(zones, z)
	}
	return zones
}

// FetchFaultZones downloads a GeoJSON fault dataset and reduces every
// named LineString or MultiLineString to a single reference point.
func (c *Client) FetchFaultZones(ctx context.Context, url string) ([]models.FaultZone, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseFaultZones(body)
}

// ParseFaultZones decodes a fault dataset. A fault's reference point is the
// mean of all its vertices. Unnamed faults and other geometry types are
// skipped. When a name repeats, the first occurrence wins.
func ParseFaultZones(body []byte) ([]models.FaultZone, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	seen := make(map[string]bool)
	var zones []models.FaultZone
	for _, raw := range fc.Features {
		var f faultFeature
		if err := json.Unmarshal(raw, &f); err != nil || f.Geometry == nil {
			continue
		}
		name := faultName(f.Properties)
		if name == "" || seen[name] {
			continue
		}

		var lines [][][]float64
		switch f.Geometry.Type {
		case "LineString":
			var line [][]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &line); err != nil {
				continue
			}
			lines = [][][]float64{line}
		case "MultiLineString":
			if err := json.Unmarshal(f.Geometry.Coordinates, &lines); err != nil {
				continue
			}
		default:
			continue
		}

		lat, lon, ok := meanVertex(lines)
		if !ok {
			continue
		}
		seen[name] = true
		zones = append(zones, models.FaultZone{Name: name, Latitude: lat, Longitude: lon})
	}
	return zones, nil
}

func faultName(props map[string]any) string {
	for _, key := range faultNameKeys {
		if s, ok := props[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func meanVertex(lines [][][]float64) (lat, lon float64, ok bool) {
	n := 0
	for _, line := range lines {
		for _, pt := range line {
			if len(pt) < 2 {
				continue
			}
			lon += pt[0]
			lat += pt[1]
			n++
		}
	}
	if n == 0 {
		return 0, 0, false
	}
	return lat / float64(n), lon / float64(n), true
}

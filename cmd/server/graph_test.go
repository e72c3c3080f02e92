// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/feed"
	"github.com/tomtom215/quakegraph/internal/inference"
	"github.com/tomtom215/quakegraph/internal/models"
)

// Without a fault dataset the graph still links events to the built-in
// faults.
func TestDefaultFaultsProduceFaultlineEdges(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	client := feed.NewClient(feed.Config{URL: "http://unused.invalid", Timeout: time.Second})
	faults := client.KnownFaultZones(context.Background(), cfg.Feed.FaultsDatasetURL)
	if len(faults) == 0 {
		t.Fatal("KnownFaultZones() returned no faults for the default config")
	}

	engine := inference.NewEngine(inference.DefaultRules())
	pop := inference.Population{Places: inference.NewGazetteer(faults, nil)}
	ev := models.Event{ID: "ci40000001", Magnitude: 4.2, Latitude: 35.7, Longitude: -120.3, Time: 1770045297070, Place: "5 km NW of Parkfield, CA"}

	var onFault bool
	for _, e := range engine.Infer(ev, pop) {
		if e.Type == models.RelOnFaultline && e.To == models.Fault("San Andreas Fault") {
			onFault = true
		}
	}
	if !onFault {
		t.Error("event on the San Andreas seed point has no ON_FAULTLINE edge")
	}
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package enrich derives the fields the feed does not carry: a street
// address from reverse geocoding and a readable time of day.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/quakegraph/internal/geocode"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/models"
)

// Enricher fills derived event fields. A nil geocoder disables address
// lookup.
type Enricher struct {
	geocoder geocode.Reverser
}

// New creates an Enricher.
func New(geocoder geocode.Reverser) *Enricher {
	return &Enricher{geocoder: geocoder}
}

// Enrich sets ReadableTime and, when a geocoder is configured and the
// event has valid coordinates, ExactAddress. Fields already set are left
// alone. Geocoding failures are logged and never fail enrichment.
func (e *Enricher) Enrich(ctx context.Context, ev *models.Event) {
	if ev.ReadableTime == "" && ev.Time > 0 {
		ev.ReadableTime = ReadableTime(ev.Time)
	}
	if e.geocoder == nil || ev.ExactAddress != "" || !ev.Valid() {
		return
	}

	addr, err := e.geocoder.Reverse(ctx, ev.Latitude, ev.Longitude)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("event_id", ev.ID).Msg("no address for event")
		return
	}
	ev.ExactAddress = addr
}

// ReadableTime formats an epoch-millisecond timestamp as HH:MM:SS:mmm in
// UTC, e.g. 1770045297070 becomes "15:14:57:070".
func ReadableTime(epochMs int64) string {
	t := time.UnixMilli(epochMs).UTC()
	return fmt.Sprintf("%02d:%02d:%02d:%03d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
}

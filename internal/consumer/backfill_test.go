// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package consumer

import (
	"context"
	"testing"

	"github.com/tomtom215/quakegraph/internal/models"
)

type fakeAddressStore struct {
	missing []models.Event
	set     map[string]string
}

func (f *fakeAddressStore) EventsMissingAddress(_ context.Context, limit int) ([]models.Event, error) {
	return f.missing[:min(limit, len(f.missing))], nil
}

func (f *fakeAddressStore) SetAddress(_ context.Context, id, address string) error {
	f.set[id] = address
	return nil
}

type oceanEnricher struct{}

// Enrich resolves only events on land (positive latitude here).
func (oceanEnricher) Enrich(_ context.Context, ev *models.Event) {
	if ev.Latitude > 0 {
		ev.ExactAddress = "Somewhere on land"
	}
}

func TestBackfillAddresses(t *testing.T) {
	t.Parallel()

	store := &fakeAddressStore{
		missing: []models.Event{
			{ID: "land", Latitude: 35, Longitude: -117, Time: 1},
			{ID: "sea", Latitude: -40, Longitude: -150, Time: 1},
			{ID: "land2", Latitude: 36, Longitude: -118, Time: 1},
		},
		set: make(map[string]string),
	}

	res, err := BackfillAddresses(context.Background(), store, oceanEnricher{}, 10)
	if err != nil {
		t.Fatalf("BackfillAddresses() error = %v", err)
	}
	if res.Scanned != 3 || res.Updated != 2 {
		t.Errorf("result = %+v, want 3 scanned, 2 updated", res)
	}
	if _, ok := store.set["sea"]; ok {
		t.Error("unresolved event should not be updated")
	}

	res, err = BackfillAddresses(context.Background(), store, oceanEnricher{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Scanned != 1 {
		t.Errorf("Scanned = %d, want limit 1", res.Scanned)
	}
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package consumer

import (
	"context"
	"fmt"

	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/models"
)

// AddressStore lists and updates events that lack an address.
type AddressStore interface {
	EventsMissingAddress(ctx context.Context, limit int) ([]models.Event, error)
	SetAddress(ctx context.Context, id, address string) error
}

// BackfillResult reports a backfill pass.
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// BackfillAddresses geocodes up to limit stored events that have no
// address. Lookups go through the shared rate limiter, so a large limit
// takes roughly one second per uncached coordinate pair. Events that still
// have no address after enrichment are skipped.
func BackfillAddresses(ctx context.Context, store AddressStore, enricher Enricher, limit int) (BackfillResult, error) {
	var res BackfillResult
	events, err := store.EventsMissingAddress(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list events without address: %w", err)
	}

	for i := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ev := &events[i]
		res.Scanned++
		enricher.Enrich(ctx, ev)
		if ev.ExactAddress == "" {
			continue
		}
		if err := store.SetAddress(ctx, ev.ID, ev.ExactAddress); err != nil {
			return res, err
		}
		res.Updated++
	}

	logging.Info().Int("scanned", res.Scanned).Int("updated", res.Updated).Msg("address backfill complete")
	return res, nil
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package geocode resolves coordinates to street addresses.
//
// Geocoder wraps a Reverser with the two constraints public providers
// impose: a process-wide request rate (Nominatim allows one per second) and
// caching. The cache key is the exact "lat,lon" pair as formatted by
// strconv, so nearby but distinct coordinates are separate entries.
package geocode

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/quakegraph/internal/cache"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
)

// ErrNoAddress is returned when the provider has no address for a point.
var ErrNoAddress = errors.New("no address for location")

// Reverser looks up the address of a coordinate pair.
type Reverser interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Config configures a Geocoder.
type Config struct {
	Rate      float64 // Requests per second
	CacheTTL  time.Duration
	CacheSize int
}

// Geocoder is a rate-limited, caching Reverser. Only successful lookups are
// cached, so a point that failed is retried on its next request.
type Geocoder struct {
	provider Reverser
	limiter  *rate.Limiter
	cache    *cache.LRU[string]
}

// New creates a Geocoder over provider.
func New(provider Reverser, cfg Config) *Geocoder {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	return &Geocoder{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		cache:    cache.NewLRU[string](cfg.CacheSize, cfg.CacheTTL),
	}
}

// Key returns the cache key for a coordinate pair.
func Key(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// Reverse returns the cached address or waits for a rate slot and asks the
// provider.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	key := Key(lat, lon)
	if addr, ok := g.cache.Get(key); ok {
		metrics.RecordGeocode(true)
		return addr, nil
	}
	metrics.RecordGeocode(false)

	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	addr, err := g.provider.Reverse(ctx, lat, lon)
	if err != nil {
		if !errors.Is(err, ErrNoAddress) {
			metrics.GeocodeErrors.Inc()
		}
		logging.Debug().Err(err).Str("location", key).Msg("reverse geocode failed")
		return "", err
	}

	g.cache.Set(key, addr)
	return addr, nil
}

// CacheStats exposes the address cache counters.
func (g *Geocoder) CacheStats() cache.Stats {
	return g.cache.Stats()
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package feed fetches the upstream earthquake feed and the optional fault
// dataset over HTTP.
//
// Both are GeoJSON FeatureCollections. Parsing is defensive: a missing
// magnitude becomes 0, a missing place "Unknown", a missing time 0 and a
// missing url "". Features without an id or a point geometry cannot be
// deduplicated or placed and are skipped.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/models"
)

// maxFeedSize caps the response body. The USGS "all day" feed is a few MB.
const maxFeedSize = 64 << 20

// maxErrorBodySize limits how much of an error response is kept.
const maxErrorBodySize = 4 * 1024

var (
	// ErrUnexpectedStatus is returned for any non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrMalformedFeed is returned when the body is not a FeatureCollection.
	ErrMalformedFeed = errors.New("malformed feed")
)

// Config configures a Client.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Record is one feed entry: the parsed event plus the feature exactly as
// received, which is what live subscribers get.
type Record struct {
	Event models.Event
	Raw   json.RawMessage
}

// Client fetches the feed through a circuit breaker. It is safe for
// concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a feed client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "quakegraph/1.0"
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: eventprocessor.NewCircuitBreaker[[]byte](eventprocessor.DefaultCircuitBreakerConfig("feed")),
	}
}

// Fetch downloads and parses the feed.
func (c *Client) Fetch(ctx context.Context) ([]Record, error) {
	body, err := c.get(ctx, c.cfg.URL)
	if err != nil {
		return nil, err
	}
	return ParseFeed(body)
}

// get performs a bounded GET through the breaker.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	return eventprocessor.ExecuteWithBreaker(c.breaker, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/geo+json, application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			return nil, fmt.Errorf("%w: GET %s returned %d: %s", ErrUnexpectedStatus, url, resp.StatusCode, snippet)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		return body, nil
	})
}

type featureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type quakeFeature struct {
	ID         *string `json:"id"`
	Properties struct {
		Mag   *float64 `json:"mag"`
		Place *string  `json:"place"`
		Time  *float64 `json:"time"`
		URL   *string  `json:"url"`
	} `json:"properties"`
	Geometry *struct {
		Coordinates []*float64 `json:"coordinates"`
	} `json:"geometry"`
}

// ParseFeed decodes a feed body. Features that cannot be decoded or have
// no id are skipped; the rest are returned in feed order.
func ParseFeed(body []byte) ([]Record, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if fc.Features == nil && fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: no features", ErrMalformedFeed)
	}

	records := make([]Record, 0, len(fc.Features))
	skipped := 0
	for _, raw := range fc.Features {
		ev, ok := parseFeature(raw)
		if !ok {
			skipped++
			continue
		}
		records = append(records, Record{Event: ev, Raw: raw})
	}
	if skipped > 0 {
		logging.Debug().Int("skipped", skipped).Msg("skipped feed features without id or geometry")
	}
	return records, nil
}

func parseFeature(raw json.RawMessage) (models.Event, bool) {
	var f quakeFeature
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Event{}, false
	}
	if f.ID == nil || *f.ID == "" {
		return models.Event{}, false
	}

	if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
		return models.Event{}, false
	}
	coords := f.Geometry.Coordinates
	if coords[0] == nil || coords[1] == nil {
		return models.Event{}, false
	}

	ev := models.Event{
		ID:        *f.ID,
		Place:     models.UnknownPlace,
		Longitude: *coords[0],
		Latitude:  *coords[1],
	}
	// depth is null for some reviewed events
	if len(coords) >= 3 && coords[2] != nil {
		ev.Depth = *coords[2]
	}
	p := f.Properties
	if p.Mag != nil {
		ev.Magnitude = *p.Mag
	}
	if p.Place != nil && *p.Place != "" {
		ev.Place = *p.Place
	}
	if p.Time != nil {
		ev.Time = int64(*p.Time)
	}
	if p.URL != nil {
		ev.URL = *p.URL
	}
	return ev, true
}

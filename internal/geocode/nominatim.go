// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/quakegraph/internal/eventprocessor"
)

// NominatimConfig configures the Nominatim client.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string // Required by the Nominatim usage policy
	Language  string
	Timeout   time.Duration
}

// Nominatim is a reverse-geocoding client for the OpenStreetMap Nominatim
// API. It does not rate limit on its own; wrap it in a Geocoder.
type Nominatim struct {
	cfg     NominatimConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
}

// NewNominatim creates a Nominatim client.
func NewNominatim(cfg NominatimConfig) *Nominatim {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "quakegraph/1.0"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Nominatim{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: eventprocessor.NewCircuitBreaker[string](eventprocessor.DefaultCircuitBreakerConfig("nominatim")),
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse returns the display address for a coordinate pair. A location
// Nominatim cannot resolve yields ErrNoAddress, which does not count
// against the circuit breaker.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("accept-language", n.cfg.Language)
	reqURL := n.cfg.BaseURL + "/reverse?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	var missing bool
	addr, err := eventprocessor.ExecuteWithBreaker(n.breaker, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", n.cfg.UserAgent)

		resp, err := n.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("nominatim reverse: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return "", fmt.Errorf("nominatim reverse returned %d: %s", resp.StatusCode, snippet)
		}

		var out reverseResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
			return "", fmt.Errorf("decode nominatim response: %w", err)
		}
		if out.DisplayName == "" {
			missing = true
			return "", nil
		}
		return out.DisplayName, nil
	})
	if err != nil {
		return "", err
	}
	if missing {
		return "", ErrNoAddress
	}
	return addr, nil
}

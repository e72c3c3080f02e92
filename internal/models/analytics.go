// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package models

// MagnitudeBucket counts events whose magnitude falls in [Lower, Lower+1).
// Lower is -1 for magnitudes outside 0..10.
type MagnitudeBucket struct {
	Lower int `json:"lower"`
	Count int `json:"count"`
}

// DailyTrend aggregates events per calendar day (UTC).
type DailyTrend struct {
	Day          string  `json:"day"` // YYYY-MM-DD
	Count        int     `json:"count"`
	AvgMagnitude float64 `json:"avg_magnitude"`
	MaxMagnitude float64 `json:"max_magnitude"`
}

// NearbyEvent is an event with its great-circle distance from a query point.
type NearbyEvent struct {
	Event
	DistanceKm float64 `json:"distance_km"`
}

// HeatCell is one cell of the magnitude-weighted heat map grid.
type HeatCell struct {
	Latitude  float64 `json:"latitude"`  // Cell center
	Longitude float64 `json:"longitude"` // Cell center
	Count     int     `json:"count"`
	Weight    float64 `json:"weight"` // Sum of magnitudes
}

// DepthMagnitude is one point of the depth versus magnitude scatter.
type DepthMagnitude struct {
	Depth     float64 `json:"depth"`
	Magnitude float64 `json:"magnitude"`
	Place     string  `json:"place"`
}

// RegionalRisk scores a region from 0 to 100:
// min(100, avg*10 + recent30d*2 + max*5).
type RegionalRisk struct {
	Region       string  `json:"region"`
	AvgMagnitude float64 `json:"avg_magnitude"`
	MaxMagnitude float64 `json:"max_magnitude"`
	RecentCount  int     `json:"recent_count"`
	RiskScore    float64 `json:"risk_score"`
}

// UnusualActivity flags a region whose last-48h count exceeds five times
// its historical daily average.
type UnusualActivity struct {
	Region             string  `json:"region"`
	RecentCount        int     `json:"recent_count"`
	HistoricalDailyAvg float64 `json:"historical_daily_avg"`
}

// RiskScore applies the regional risk formula.
func RiskScore(avgMag, maxMag float64, recent int) float64 {
	score := avgMag*10 + float64(recent)*2 + maxMag*5
	if score > 100 {
		return 100
	}
	return score
}

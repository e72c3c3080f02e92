// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package models defines the domain types shared by the ingestion
// pipeline, the stores and the inference engines.
package models

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidEvent is returned when an event lacks usable coordinates or time.
var ErrInvalidEvent = errors.New("event missing coordinates or time")

// Event is one seismic occurrence as received from the feed.
// Core fields are immutable once written; ExactAddress, ReadableTime and
// ClusterID are derived and may be rewritten later.
type Event struct {
	ID        string  `json:"id"`        // Source-assigned id, unique
	Magnitude float64 `json:"magnitude"` // 0 when the feed omits it
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Depth     float64 `json:"depth"` // Kilometers
	Time      int64   `json:"time"`  // Epoch milliseconds, 0 when missing
	Place     string  `json:"place"` // Free text, e.g. "10 km NE of Ridgecrest, CA"
	URL       string  `json:"url"`

	ExactAddress string  `json:"exact_address,omitempty"`
	ReadableTime string  `json:"readable_time,omitempty"`
	ClusterID    *string `json:"cluster_id,omitempty"`
	IsAlert      bool    `json:"is_alert,omitempty"`
}

// Valid reports whether the event carries finite coordinates and a time.
func (e *Event) Valid() bool {
	if math.IsNaN(e.Latitude) || math.IsInf(e.Latitude, 0) {
		return false
	}
	if math.IsNaN(e.Longitude) || math.IsInf(e.Longitude, 0) {
		return false
	}
	return e.Time > 0
}

// OccurredAt returns the event time as a UTC time.Time.
func (e *Event) OccurredAt() time.Time {
	return time.UnixMilli(e.Time).UTC()
}

// Alert is published on the alert channel when an event crosses its threshold.
type Alert struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

// EventFilter selects events from the document store.
// Zero values mean "no constraint".
type EventFilter struct {
	MinMagnitude *float64
	MaxMagnitude *float64
	StartTime    int64 // Inclusive, epoch ms
	EndTime      int64 // Inclusive, epoch ms
	Bounds       *BoundingBox
	ClusterID    string
	Region       string // Substring match against place
	Limit        int
	Offset       int
}

// BoundingBox is a geographic rectangle in degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Contains reports whether the point lies inside the box (inclusive).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package database

import (
	"strings"

	"github.com/tomtom215/quakegraph/internal/models"
)

// Query limits.
const (
	DefaultLimit = 100
	MaxLimit     = 5000
)

// clampLimit bounds a caller-supplied limit.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// buildEventWhere turns a filter into a parameterized WHERE clause.
// Conditions combine with AND; the result is "" when the filter is empty.
//
//	WHERE magnitude >= ? AND time_ms >= ? AND latitude BETWEEN ? AND ? ...
func buildEventWhere(f models.EventFilter) (string, []any) {
	var conds []string
	var args []any

	if f.MinMagnitude != nil {
		conds = append(conds, "magnitude >= ?")
		args = append(args, *f.MinMagnitude)
	}
	if f.MaxMagnitude != nil {
		conds = append(conds, "magnitude <= ?")
		args = append(args, *f.MaxMagnitude)
	}
	if f.StartTime > 0 {
		conds = append(conds, "time_ms >= ?")
		args = append(args, f.StartTime)
	}
	if f.EndTime > 0 {
		conds = append(conds, "time_ms <= ?")
		args = append(args, f.EndTime)
	}
	if b := f.Bounds; b != nil {
		conds = append(conds, "latitude BETWEEN ? AND ?")
		args = append(args, b.South, b.North)
		if b.West <= b.East {
			conds = append(conds, "longitude BETWEEN ? AND ?")
		} else {
			// box crosses the antimeridian
			conds = append(conds, "(longitude >= ? OR longitude <= ?)")
		}
		args = append(args, b.West, b.East)
	}
	if f.ClusterID != "" {
		conds = append(conds, "cluster_id = ?")
		args = append(args, f.ClusterID)
	}
	if f.Region != "" {
		conds = append(conds, "contains(lower(place), lower(?))")
		args = append(args, f.Region)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"net/http"
	"time"
)

// MagnitudeDistribution handles GET /api/v1/analytics/magnitudes.
func (h *Handler) MagnitudeDistribution(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	buckets, err := h.docs.MagnitudeDistribution(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(buckets)
}

// DailyTrends handles GET /api/v1/analytics/trends?days=.
func (h *Handler) DailyTrends(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := TrendsRequest{Days: p.int("days", 30)}
	if !decode(rw, p, &req) {
		return
	}

	trends, err := h.docs.DailyTrends(r.Context(), req.Days, h.now())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(trends)
}

// NearestEvents handles GET /api/v1/analytics/nearby?lat=&lon=&radius_km=.
func (h *Handler) NearestEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := NearbyRequest{
		Lat:      p.floatPtr("lat"),
		Lon:      p.floatPtr("lon"),
		RadiusKm: p.float("radius_km", 100),
		Limit:    p.int("limit", 20),
	}
	if !decode(rw, p, &req) {
		return
	}

	events, err := h.docs.NearestEvents(r.Context(), *req.Lat, *req.Lon, req.RadiusKm, req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(events)
}

// HeatGrid handles GET /api/v1/analytics/heatmap?cell=&days=.
func (h *Handler) HeatGrid(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := HeatmapRequest{
		CellDeg: p.float("cell", 1),
		Days:    p.int("days", 30),
	}
	if !decode(rw, p, &req) {
		return
	}

	since := h.now().Add(-time.Duration(req.Days) * 24 * time.Hour).UnixMilli()
	cells, err := h.docs.HeatGrid(r.Context(), req.CellDeg, since)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(cells)
}

// DepthVsMagnitude handles GET /api/v1/analytics/depth.
func (h *Handler) DepthVsMagnitude(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := LimitRequest{Limit: p.int("limit", 1000)}
	if !decode(rw, p, &req) {
		return
	}

	points, err := h.docs.DepthVsMagnitude(r.Context(), req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(points)
}

// RegionalRisk handles GET /api/v1/analytics/risk.
func (h *Handler) RegionalRisk(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := LimitRequest{Limit: p.int("limit", 20)}
	if !decode(rw, p, &req) {
		return
	}

	risks, err := h.docs.RegionalRisk(r.Context(), h.now(), req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(risks)
}

// UnusualActivity handles GET /api/v1/analytics/unusual.
func (h *Handler) UnusualActivity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	spikes, err := h.docs.UnusualActivity(r.Context(), h.now())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(spikes)
}

// HourlyCounts handles GET /api/v1/analytics/hourly?hours=.
func (h *Handler) HourlyCounts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.mirror == nil {
		rw.ServiceUnavailable("Time-series mirror is not enabled")
		return
	}
	p := newQueryParser(r)
	req := HourlyRequest{Hours: p.int("hours", 24)}
	if !decode(rw, p, &req) {
		return
	}

	counts, err := h.mirror.HourlyCounts(r.Context(), req.Hours)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(counts)
}

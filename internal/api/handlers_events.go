// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/quakegraph/internal/database"
	"github.com/tomtom215/quakegraph/internal/models"
	"github.com/tomtom215/quakegraph/internal/validation"
)

// Events handles GET /api/v1/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := EventsRequest{
		MinMagnitude: p.floatPtr("min_magnitude"),
		MaxMagnitude: p.floatPtr("max_magnitude"),
		Start:        p.int64("start", 0),
		End:          p.int64("end", 0),
		BBox:         p.str("bbox"),
		ClusterID:    p.str("cluster_id"),
		Region:       p.str("region"),
		Limit:        p.int("limit", database.DefaultLimit),
		Offset:       p.int("offset", 0),
	}
	if !decode(rw, p, &req) {
		return
	}
	if req.MinMagnitude != nil && req.MaxMagnitude != nil && *req.MinMagnitude > *req.MaxMagnitude {
		rw.BadRequest("min_magnitude is above max_magnitude")
		return
	}
	if req.End > 0 && req.Start > req.End {
		rw.BadRequest("start is after end")
		return
	}

	filter := models.EventFilter{
		MinMagnitude: req.MinMagnitude,
		MaxMagnitude: req.MaxMagnitude,
		StartTime:    req.Start,
		EndTime:      req.End,
		ClusterID:    req.ClusterID,
		Region:       req.Region,
		Limit:        req.Limit,
		Offset:       req.Offset,
	}
	if req.BBox != "" {
		// already validated
		box, _ := validation.ParseBBox(req.BBox)
		filter.Bounds = &box
	}

	events, err := h.docs.QueryEvents(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(events, &PaginationMeta{
		Count:   len(events),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: len(events) == req.Limit,
	})
}

// Event handles GET /api/v1/events/{id}.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	ev, err := h.docs.GetEvent(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Event not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(ev)
}

// Clusters handles GET /api/v1/clusters.
func (h *Handler) Clusters(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	clusters, err := h.docs.ListClusters(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(clusters)
}

// Cluster handles GET /api/v1/clusters/{id}.
func (h *Handler) Cluster(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cluster, err := h.docs.GetCluster(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Cluster not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(cluster)
}

// RecentBuffer handles GET /api/v1/buffer/recent, newest first.
func (h *Handler) RecentBuffer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := LimitRequest{Limit: p.int("limit", database.DefaultLimit)}
	if !decode(rw, p, &req) {
		return
	}

	events, err := h.buffer.Recent(r.Context(), req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(events)
}

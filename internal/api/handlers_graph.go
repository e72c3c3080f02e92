// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/quakegraph/internal/graph"
	"github.com/tomtom215/quakegraph/internal/models"
)

// requireGraph wraps graph routes so they answer 503 when the graph store
// is disabled.
func (h *Handler) requireGraph(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.graph == nil {
			NewResponseWriter(w, r).ServiceUnavailable("Graph store is not enabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EventContext handles GET /api/v1/graph/events/{id}.
func (h *Handler) EventContext(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	out, err := h.graph.EventContext(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, graph.ErrNotFound) {
		rw.NotFound("Earthquake not found in graph")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(out)
}

// Neighbors handles GET /api/v1/graph/neighbors?kind=&key=.
func (h *Handler) Neighbors(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := NeighborsRequest{
		Kind:  p.str("kind"),
		Key:   p.str("key"),
		Limit: p.int("limit", 50),
	}
	if !decode(rw, p, &req) {
		return
	}

	ref := models.NodeRef{Kind: models.NodeKind(req.Kind), Key: req.Key}
	out, err := h.graph.Neighbors(r.Context(), ref, req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(out)
}

// Centrality handles GET /api/v1/graph/centrality?kind=.
func (h *Handler) Centrality(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := CentralityRequest{
		Kind:  p.str("kind"),
		Limit: p.int("limit", 20),
	}
	if !decode(rw, p, &req) {
		return
	}

	out, err := h.graph.Centrality(r.Context(), models.NodeKind(req.Kind), req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(out)
}

// AftershockSequences handles GET /api/v1/graph/aftershocks?min=.
func (h *Handler) AftershockSequences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := AftershocksRequest{
		MinAftershocks: p.int("min", 1),
		Limit:          p.int("limit", 20),
	}
	if !decode(rw, p, &req) {
		return
	}

	out, err := h.graph.AftershockSequences(r.Context(), req.MinAftershocks, req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(out)
}

// CascadeEvents handles GET /api/v1/graph/cascades.
func (h *Handler) CascadeEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p := newQueryParser(r)
	req := LimitRequest{Limit: p.int("limit", 50)}
	if !decode(rw, p, &req) {
		return
	}

	out, err := h.graph.CascadeEvents(r.Context(), req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(out)
}

// GraphStats handles GET /api/v1/graph/stats.
func (h *Handler) GraphStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	out, err := h.graph.Stats(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(out)
}

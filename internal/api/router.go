// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/middleware"
)

// Router builds the chi route tree.
type Router struct {
	handler  *Handler
	chiMw    *ChiMiddleware
	timeout  time.Duration
	opsToken string
}

// NewRouter creates a Router from the server configuration.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.CORSOrigins
	mwCfg.RateLimitRequests = cfg.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.RateLimitWindow

	return &Router{
		handler:  handler,
		chiMw:    NewChiMiddleware(mwCfg),
		timeout:  cfg.Timeout,
		opsToken: cfg.OpsToken,
	}
}

// Setup returns the complete handler.
//
// Global middleware order: request id, real IP, panic recovery, metrics,
// security headers. Streaming routes sit outside the timeout and
// compression groups.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws/live", h.LiveFeed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMw.CORS())
		r.Use(router.chiMw.RateLimit())
		r.Use(chimiddleware.Compress(5, "application/json"))
		if router.timeout > 0 {
			r.Use(chimiddleware.Timeout(router.timeout))
		}

		r.Get("/events", h.Events)
		r.Get("/events/{id}", h.Event)
		r.Get("/clusters", h.Clusters)
		r.Get("/clusters/{id}", h.Cluster)
		r.Get("/buffer/recent", h.RecentBuffer)
		r.Get("/pipeline/stats", h.PipelineStats)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/magnitudes", h.MagnitudeDistribution)
			r.Get("/trends", h.DailyTrends)
			r.Get("/nearby", h.NearestEvents)
			r.Get("/heatmap", h.HeatGrid)
			r.Get("/depth", h.DepthVsMagnitude)
			r.Get("/risk", h.RegionalRisk)
			r.Get("/unusual", h.UnusualActivity)
			r.Get("/hourly", h.HourlyCounts)
		})

		r.Route("/graph", func(r chi.Router) {
			r.Use(h.requireGraph)
			r.Get("/events/{id}", h.EventContext)
			r.Get("/neighbors", h.Neighbors)
			r.Get("/centrality", h.Centrality)
			r.Get("/aftershocks", h.AftershockSequences)
			r.Get("/cascades", h.CascadeEvents)
			r.Get("/stats", h.GraphStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireToken(router.opsToken))
			r.Post("/recluster", h.Recluster)
			r.Post("/backfill/readable-time", h.BackfillReadableTime)
			r.Post("/backfill/addresses", h.BackfillAddresses)
			r.Get("/audit", h.AuditEvents)
			r.Get("/backups", h.ListBackups)
			r.Post("/backups", h.CreateBackup)
		})
	})

	return r
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/quakegraph/internal/validation"
)

// EventsRequest is the query of GET /api/v1/events. Times are epoch ms.
type EventsRequest struct {
	MinMagnitude *float64 `query:"min_magnitude" validate:"omitempty,gte=-2,lte=10"`
	MaxMagnitude *float64 `query:"max_magnitude" validate:"omitempty,gte=-2,lte=10"`
	Start        int64    `query:"start" validate:"gte=0"`
	End          int64    `query:"end" validate:"gte=0"`
	BBox         string   `query:"bbox" validate:"omitempty,bbox"`
	ClusterID    string   `query:"cluster_id" validate:"omitempty,max=128"`
	Region       string   `query:"region" validate:"omitempty,max=128"`
	Limit        int      `query:"limit" validate:"min=1,max=5000"`
	Offset       int      `query:"offset" validate:"min=0,max=1000000"`
}

// LimitRequest is a bare limit.
type LimitRequest struct {
	Limit int `query:"limit" validate:"min=1,max=5000"`
}

// AuditRequest is the query of GET /api/v1/audit.
type AuditRequest struct {
	Type    string `query:"type" validate:"omitempty,oneof=ops.recluster_requested ops.backfill_readable_time ops.backfill_addresses ops.backup_created"`
	Outcome string `query:"outcome" validate:"omitempty,oneof=success failure"`
	Limit   int    `query:"limit" validate:"min=1,max=1000"`
}

// TrendsRequest is the query of GET /api/v1/analytics/trends.
type TrendsRequest struct {
	Days int `query:"days" validate:"min=1,max=365"`
}

// NearbyRequest is the query of GET /api/v1/analytics/nearby.
type NearbyRequest struct {
	Lat      *float64 `query:"lat" validate:"required,latitude"`
	Lon      *float64 `query:"lon" validate:"required,longitude"`
	RadiusKm float64  `query:"radius_km" validate:"gt=0,lte=20000"`
	Limit    int      `query:"limit" validate:"min=1,max=1000"`
}

// HeatmapRequest is the query of GET /api/v1/analytics/heatmap.
type HeatmapRequest struct {
	CellDeg float64 `query:"cell" validate:"gt=0,lte=45"`
	Days    int     `query:"days" validate:"min=1,max=3650"`
}

// HourlyRequest is the query of GET /api/v1/analytics/hourly.
type HourlyRequest struct {
	Hours int `query:"hours" validate:"min=1,max=2160"`
}

// NeighborsRequest is the query of GET /api/v1/graph/neighbors.
type NeighborsRequest struct {
	Kind  string `query:"kind" validate:"required,oneof=Earthquake FaultZone Region City Cluster"`
	Key   string `query:"key" validate:"required,max=256"`
	Limit int    `query:"limit" validate:"min=1,max=1000"`
}

// CentralityRequest is the query of GET /api/v1/graph/centrality.
type CentralityRequest struct {
	Kind  string `query:"kind" validate:"omitempty,oneof=Earthquake FaultZone Region City Cluster"`
	Limit int    `query:"limit" validate:"min=1,max=1000"`
}

// AftershocksRequest is the query of GET /api/v1/graph/aftershocks.
type AftershocksRequest struct {
	MinAftershocks int `query:"min" validate:"min=1,max=10000"`
	Limit          int `query:"limit" validate:"min=1,max=1000"`
}

// queryParser reads typed query parameters and collects parse failures
// so they can be reported with validation failures.
type queryParser struct {
	q    url.Values
	errs []validation.FieldError
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{q: r.URL.Query()}
}

func (p *queryParser) fail(name, kind string) {
	p.errs = append(p.errs, validation.FieldError{
		Field:   name,
		Tag:     "type",
		Message: fmt.Sprintf("%s must be %s", name, kind),
	})
}

func (p *queryParser) str(name string) string {
	return strings.TrimSpace(p.q.Get(name))
}

func (p *queryParser) int(name string, def int) int {
	raw := p.str(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "an integer")
		return def
	}
	return v
}

func (p *queryParser) int64(name string, def int64) int64 {
	raw := p.str(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail(name, "an integer")
		return def
	}
	return v
}

func (p *queryParser) float(name string, def float64) float64 {
	if v := p.floatPtr(name); v != nil {
		return *v
	}
	return def
}

func (p *queryParser) floatPtr(name string) *float64 {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, "a number")
		return nil
	}
	return &v
}

// decode reports parse and validation failures for req. It returns false
// after writing a 400.
func decode(rw *ResponseWriter, p *queryParser, req any) bool {
	if len(p.errs) > 0 {
		rw.ValidationError("Invalid query parameters", p.errs)
		return false
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields())
		return false
	}
	return true
}

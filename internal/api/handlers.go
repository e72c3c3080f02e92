// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/quakegraph/internal/audit"
	"github.com/tomtom215/quakegraph/internal/backup"
	"github.com/tomtom215/quakegraph/internal/consumer"
	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/graph"
	"github.com/tomtom215/quakegraph/internal/models"
	"github.com/tomtom215/quakegraph/internal/timeseries"
	"github.com/tomtom215/quakegraph/internal/websocket"
)

// DocumentStore is the document store as the API reads it.
type DocumentStore interface {
	QueryEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CountEvents(ctx context.Context) (int64, error)
	ListClusters(ctx context.Context) ([]models.Cluster, error)
	GetCluster(ctx context.Context, id string) (*models.Cluster, error)

	MagnitudeDistribution(ctx context.Context) ([]models.MagnitudeBucket, error)
	DailyTrends(ctx context.Context, days int, now time.Time) ([]models.DailyTrend, error)
	NearestEvents(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.NearbyEvent, error)
	HeatGrid(ctx context.Context, cellDeg float64, since int64) ([]models.HeatCell, error)
	DepthVsMagnitude(ctx context.Context, limit int) ([]models.DepthMagnitude, error)
	RegionalRisk(ctx context.Context, now time.Time, limit int) ([]models.RegionalRisk, error)
	UnusualActivity(ctx context.Context, now time.Time) ([]models.UnusualActivity, error)

	BackfillReadableTime(ctx context.Context) (int, error)
	consumer.AddressStore

	Ping(ctx context.Context) error
}

// GraphReader is the graph store as the API reads it.
type GraphReader interface {
	EventContext(ctx context.Context, id string) (*graph.EventContext, error)
	Neighbors(ctx context.Context, ref models.NodeRef, limit int) ([]graph.Neighbor, error)
	Centrality(ctx context.Context, kind models.NodeKind, limit int) ([]graph.NodeDegree, error)
	AftershockSequences(ctx context.Context, minAftershocks, limit int) ([]graph.AftershockSequence, error)
	CascadeEvents(ctx context.Context, limit int) ([]graph.Cascade, error)
	Stats(ctx context.Context) (graph.Stats, error)
	Ping(ctx context.Context) error
}

// RecentReader is the recency buffer.
type RecentReader interface {
	Recent(ctx context.Context, limit int) ([]models.Event, error)
	Len() (int, error)
}

// Publisher publishes on the pub/sub bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// HourlySource reads aggregates from the time-series mirror.
type HourlySource interface {
	HourlyCounts(ctx context.Context, hours int) ([]timeseries.HourlyCount, error)
	Ping(ctx context.Context) error
}

// ConsumerStats reports stream consumer counters.
type ConsumerStats interface {
	Stats() consumer.Stats
}

// LogStats reports the durable log's counters.
type LogStats interface {
	Stats(ctx context.Context) (eventprocessor.LogStats, error)
}

// AuditLog records and reads operator actions.
type AuditLog interface {
	Log(event *audit.Event)
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// Backups takes and lists document store snapshots.
type Backups interface {
	Create(ctx context.Context, trigger backup.Trigger) (*backup.Backup, error)
	List() []backup.Backup
}

// HandlerConfig wires a Handler. Docs, Buffer and Bus are required; the
// rest are optional and their routes answer 503 when absent.
type HandlerConfig struct {
	Docs     DocumentStore
	Graph    GraphReader
	Buffer   RecentReader
	Bus      Publisher
	Mirror   HourlySource
	Enricher consumer.Enricher
	Consumer ConsumerStats
	Log      LogStats
	Hub      *websocket.Hub
	Audit    AuditLog
	Backups  Backups

	// AllowedOrigins for WebSocket upgrades. "*" allows any origin.
	AllowedOrigins []string
}

// Handler serves the API routes.
type Handler struct {
	docs     DocumentStore
	graph    GraphReader
	buffer   RecentReader
	bus      Publisher
	mirror   HourlySource
	enricher consumer.Enricher
	consumer ConsumerStats
	log      LogStats
	hub      *websocket.Hub
	audit    AuditLog
	backups  Backups
	origins  []string

	startTime time.Time
	now       func() time.Time
}

// NewHandler validates cfg and creates a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	switch {
	case cfg.Docs == nil:
		return nil, errors.New("api: document store is required")
	case cfg.Buffer == nil:
		return nil, errors.New("api: recency buffer is required")
	case cfg.Bus == nil:
		return nil, errors.New("api: bus is required")
	}
	return &Handler{
		docs:      cfg.Docs,
		graph:     cfg.Graph,
		buffer:    cfg.Buffer,
		bus:       cfg.Bus,
		mirror:    cfg.Mirror,
		enricher:  cfg.Enricher,
		consumer:  cfg.Consumer,
		log:       cfg.Log,
		hub:       cfg.Hub,
		audit:     cfg.Audit,
		backups:   cfg.Backups,
		origins:   cfg.AllowedOrigins,
		startTime: time.Now(),
		now:       time.Now,
	}, nil
}

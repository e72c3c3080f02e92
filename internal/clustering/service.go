// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package clustering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/inference"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
	"github.com/tomtom215/quakegraph/internal/models"
)

// Run triggers.
const (
	TriggerStartup  = "startup"
	TriggerControl  = "control"
	TriggerConfig   = "config"
	TriggerInterval = "interval"
	TriggerAPI      = "api"
)

// proximityLimit bounds the population scanned for NEAR edges.
const proximityLimit = 1_000_000

// EventStore is the document store side of a run.
type EventStore interface {
	EventsSince(ctx context.Context, since int64, limit int) ([]models.Event, error)
	ClearClusters(ctx context.Context) error
	AssignClusters(ctx context.Context, assignments []models.ClusterAssignment) error
	InsertClusters(ctx context.Context, clusters []models.Cluster) error
}

// GraphStore is the graph side of a run.
type GraphStore interface {
	ReplaceClusters(ctx context.Context, clusters []models.Cluster) error
	ReplaceNearEdges(ctx context.Context, edges []models.Edge) error
}

// Subscriber delivers control-channel messages.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// ParamSource supplies the current clustering configuration. config.Watcher
// implements it.
type ParamSource interface {
	Current() config.ClusteringConfig
	Changes() <-chan struct{}
}

// RunReport summarizes one run.
type RunReport struct {
	Trigger    string        `json:"trigger"`
	Considered int           `json:"considered"`
	Clusters   int           `json:"clusters"`
	Noise      int           `json:"noise"`
	NearEdges  int           `json:"near_edges"`
	Duration   time.Duration `json:"duration_ns"`
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Events    EventStore
	Graph     GraphStore // optional
	Params    ParamSource
	Control   Subscriber // optional
	Topic     string     // defaults to the control topic
	Proximity inference.ProximityRule
}

// Service runs the engine against the stores.
type Service struct {
	engine    *Engine
	events    EventStore
	graph     GraphStore
	params    ParamSource
	control   Subscriber
	topic     string
	proximity inference.ProximityRule

	mu  sync.Mutex // serializes runs
	now func() time.Time
}

// NewService creates a clustering service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Events == nil {
		return nil, errors.New("clustering: event store is required")
	}
	if cfg.Params == nil {
		return nil, errors.New("clustering: parameter source is required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = eventprocessor.TopicControl
	}
	return &Service{
		engine:    NewEngine(),
		events:    cfg.Events,
		graph:     cfg.Graph,
		params:    cfg.Params,
		control:   cfg.Control,
		topic:     topic,
		proximity: cfg.Proximity,
		now:       time.Now,
	}, nil
}

// Recluster recomputes all clusters from the lookback window and replaces
// the stored ones. The document store is cleared before it is rewritten,
// so readers may briefly see no clusters.
func (s *Service) Recluster(ctx context.Context, trigger string) (report RunReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	now := s.now()
	report.Trigger = trigger
	defer func() {
		report.Duration = time.Since(start)
		metrics.RecordClusteringRun(trigger, report.Duration, report.Clusters, report.Noise, err)
	}()

	cfg := s.params.Current()
	since := now.Add(-cfg.Lookback).UnixMilli()
	events, err := s.events.EventsSince(ctx, since, cfg.MaxEvents)
	if err != nil {
		return report, fmt.Errorf("load clustering window: %w", err)
	}

	res := s.engine.Run(events, ParamsFrom(cfg), now)
	report.Considered = res.Considered
	report.Clusters = len(res.Clusters)
	report.Noise = res.Noise

	// An empty window leaves the stored clusters untouched.
	if res.Considered == 0 {
		logging.Info().Str("trigger", trigger).Msg("clustering window empty, nothing to do")
		return report, nil
	}

	if err := s.events.ClearClusters(ctx); err != nil {
		return report, fmt.Errorf("clear clusters: %w", err)
	}
	if err := s.events.AssignClusters(ctx, res.Assignments); err != nil {
		return report, fmt.Errorf("assign clusters: %w", err)
	}
	if err := s.events.InsertClusters(ctx, res.Clusters); err != nil {
		return report, fmt.Errorf("insert clusters: %w", err)
	}

	if s.graph != nil {
		if err := s.graph.ReplaceClusters(ctx, res.Clusters); err != nil {
			return report, fmt.Errorf("replace graph clusters: %w", err)
		}
		all, err := s.events.EventsSince(ctx, 0, proximityLimit)
		if err != nil {
			return report, fmt.Errorf("load proximity population: %w", err)
		}
		near := inference.NearPairs(all, s.proximity)
		if err := s.graph.ReplaceNearEdges(ctx, near); err != nil {
			return report, fmt.Errorf("replace near edges: %w", err)
		}
		report.NearEdges = len(near)
	}

	logging.Info().
		Str("trigger", trigger).
		Int("considered", report.Considered).
		Int("clusters", report.Clusters).
		Int("noise", report.Noise).
		Int("near_edges", report.NearEdges).
		Dur("duration", time.Since(start)).
		Msg("clustering run complete")
	return report, nil
}

// Serve runs once at startup and then on every trigger until ctx ends.
// A failed run is logged and does not stop the service.
func (s *Service) Serve(ctx context.Context) error {
	var control <-chan *message.Message
	if s.control != nil {
		ch, err := s.control.Subscribe(ctx, s.topic)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		control = ch
	}

	s.runLogged(ctx, TriggerStartup)

	var tick <-chan time.Time
	if interval := s.params.Current().Interval; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-control:
			if !ok {
				control = nil
				continue
			}
			payload := string(msg.Payload)
			msg.Ack()
			if payload != eventprocessor.ControlRecluster {
				logging.Debug().Str("payload", payload).Msg("ignoring control message")
				continue
			}
			s.runLogged(ctx, TriggerControl)
		case <-s.params.Changes():
			s.runLogged(ctx, TriggerConfig)
		case <-tick:
			s.runLogged(ctx, TriggerInterval)
		}
	}
}

// String identifies the service in the supervisor tree.
func (s *Service) String() string { return "clustering" }

func (s *Service) runLogged(ctx context.Context, trigger string) {
	if _, err := s.Recluster(ctx, trigger); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Str("trigger", trigger).Msg("clustering run failed")
	}
}

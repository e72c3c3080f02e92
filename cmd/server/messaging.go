// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/logging"
)

// eventLog is the durable log as main needs it: the consumer and poller
// interfaces plus counters for the API.
type eventLog interface {
	eventprocessor.Log
	Stats(ctx context.Context) (eventprocessor.LogStats, error)
}

// messaging holds the log, dedup marker and bus of one backend.
type messaging struct {
	log    eventLog
	marker eventprocessor.Marker
	bus    *eventprocessor.Bus

	broker *eventprocessor.EmbeddedServer // nil unless embedded
	conn   *natsgo.Conn                   // nil for the memory backend
	closer func() error
}

// initMessaging builds the configured backend.
func initMessaging(ctx context.Context, cfg *config.Config) (*messaging, error) {
	if cfg.NATS.Backend == "memory" {
		return initMemoryMessaging(cfg), nil
	}
	return initNATSMessaging(ctx, cfg)
}

func initMemoryMessaging(cfg *config.Config) *messaging {
	log := eventprocessor.NewMemoryLog()
	logging.Warn().Msg("Using in-process event log; entries are lost on restart")
	return &messaging{
		log:    log,
		marker: eventprocessor.NewMemoryMarker(cfg.Poller.DedupTTL),
		bus:    eventprocessor.NewMemoryBus(logging.NewWatermillLogger()),
		closer: log.Close,
	}
}

func initNATSMessaging(ctx context.Context, cfg *config.Config) (m *messaging, err error) {
	m = &messaging{}
	defer func() {
		if err != nil {
			err = errors.Join(err, m.close(ctx))
		}
	}()

	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		m.broker, err = eventprocessor.NewEmbeddedServer(&eventprocessor.ServerConfig{
			Host:              cfg.NATS.Host,
			Port:              cfg.NATS.Port,
			StoreDir:          cfg.NATS.StoreDir,
			JetStreamMaxMem:   cfg.NATS.MaxMemory,
			JetStreamMaxStore: cfg.NATS.MaxStore,
		})
		if err != nil {
			return m, fmt.Errorf("start embedded NATS: %w", err)
		}
		url = m.broker.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	m.conn, err = eventprocessor.Connect(url, "quakegraph")
	if err != nil {
		return m, fmt.Errorf("connect NATS: %w", err)
	}

	log, err := eventprocessor.NewJetStreamLog(m.conn, eventprocessor.StreamConfig{
		Name:          cfg.Stream.Name,
		Subject:       cfg.Stream.Subject,
		DLQName:       cfg.Stream.DLQName,
		DLQSubject:    cfg.Stream.DLQSubject,
		Group:         cfg.Stream.Group,
		MaxAge:        cfg.Stream.MaxAge,
		AckWait:       cfg.Stream.AckWait,
		MaxDeliveries: cfg.Consumer.MaxDeliveries,
	})
	if err != nil {
		return m, err
	}
	m.log = log

	js, err := jetstream.New(m.conn)
	if err != nil {
		return m, fmt.Errorf("create JetStream context: %w", err)
	}
	m.marker, err = eventprocessor.NewKVMarker(ctx, js, cfg.Stream.DedupBucket, cfg.Poller.DedupTTL)
	if err != nil {
		return m, err
	}

	m.bus, err = eventprocessor.NewNATSBus(url, logging.NewWatermillLogger())
	if err != nil {
		return m, err
	}

	logging.Info().
		Str("stream", cfg.Stream.Name).
		Str("group", cfg.Stream.Group).
		Str("dedup_bucket", cfg.Stream.DedupBucket).
		Msg("JetStream messaging ready")
	return m, nil
}

// close releases the backend. The embedded broker goes last.
func (m *messaging) close(ctx context.Context) error {
	var errs []error
	if m.bus != nil {
		errs = append(errs, m.bus.Close())
	}
	if m.closer != nil {
		errs = append(errs, m.closer())
	}
	if m.conn != nil {
		errs = append(errs, m.conn.Drain())
	}
	if m.broker != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		errs = append(errs, m.broker.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}

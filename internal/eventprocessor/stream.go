// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamManager handles JetStream stream lifecycle for the event log and
// its dead-letter log.
type StreamManager struct {
	js     jetstream.JetStream
	config StreamConfig
}

// NewStreamManager creates a stream manager with the given config.
func NewStreamManager(js jetstream.JetStream, cfg StreamConfig) *StreamManager {
	return &StreamManager{js: js, config: cfg}
}

// EnsureStreams creates or updates both streams.
func (m *StreamManager) EnsureStreams(ctx context.Context) error {
	events := jetstream.StreamConfig{
		Name:      m.config.Name,
		Subjects:  []string{m.config.Subject},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    m.config.MaxAge,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}
	if _, err := m.ensureStream(ctx, events); err != nil {
		return err
	}

	// Dead letters are kept until an operator purges them.
	dlq := jetstream.StreamConfig{
		Name:      m.config.DLQName,
		Subjects:  []string{m.config.DLQSubject},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}
	_, err := m.ensureStream(ctx, dlq)
	return err
}

func (m *StreamManager) ensureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	_, err := m.js.Stream(ctx, cfg.Name)
	if err == nil {
		stream, err := m.js.UpdateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		return stream, nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return nil, fmt.Errorf("look up stream %s: %w", cfg.Name, err)
	}

	stream, err := m.js.CreateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// StreamInfo returns current state of the event stream.
func (m *StreamManager) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.config.Name)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream.Info(ctx)
}

// DLQInfo returns current state of the dead-letter stream.
func (m *StreamManager) DLQInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.config.DLQName)
	if err != nil {
		return nil, fmt.Errorf("get dlq stream: %w", err)
	}
	return stream.Info(ctx)
}

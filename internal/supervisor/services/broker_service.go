// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/quakegraph/internal/logging"
)

// ErrBrokerDown is returned when the embedded broker stops running.
var ErrBrokerDown = errors.New("embedded NATS broker is not running")

// Broker is the embedded NATS server's health surface.
type Broker interface {
	IsRunning() bool
	JetStreamEnabled() bool
}

// BrokerWatchdog fails when the embedded broker stops, so the failure
// shows up in supervisor logs. The broker itself is shut down by main
// after the tree has stopped, once nothing publishes to it anymore.
type BrokerWatchdog struct {
	broker   Broker
	interval time.Duration
}

// NewBrokerWatchdog checks broker every interval (5s when <= 0).
func NewBrokerWatchdog(broker Broker, interval time.Duration) *BrokerWatchdog {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &BrokerWatchdog{broker: broker, interval: interval}
}

// Serve implements suture.Service.
func (w *BrokerWatchdog) Serve(ctx context.Context) error {
	if err := w.check(); err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

func (w *BrokerWatchdog) check() error {
	if !w.broker.IsRunning() {
		logging.Error().Msg("Embedded NATS broker stopped")
		return ErrBrokerDown
	}
	if !w.broker.JetStreamEnabled() {
		logging.Error().Msg("Embedded NATS broker lost JetStream")
		return ErrBrokerDown
	}
	return nil
}

func (w *BrokerWatchdog) String() string { return "broker-watchdog" }

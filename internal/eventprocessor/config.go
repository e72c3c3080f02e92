// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"fmt"
	"time"
)

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns production defaults for embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   256 << 20, // 256MB
		JetStreamMaxStore: 4 << 30,   // 4GB
	}
}

// StreamConfig names the event stream, the dead-letter stream and the
// durable consumer group.
type StreamConfig struct {
	Name       string
	Subject    string
	DLQName    string
	DLQSubject string
	Group      string
	MaxAge     time.Duration
	AckWait    time.Duration

	// MaxDeliveries is the consumer's retry limit. JetStream is allowed two
	// deliveries beyond it so the consumer observes the count that
	// exceeds the limit and dead-letters the entry itself.
	MaxDeliveries int
}

// DefaultStreamConfig returns production stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:          "QUAKE_EVENTS",
		Subject:       "quakes.events",
		DLQName:       "QUAKE_DLQ",
		DLQSubject:    "quakes.dlq",
		Group:         "analytics_group",
		MaxAge:        7 * 24 * time.Hour,
		AckWait:       30 * time.Second,
		MaxDeliveries: 5,
	}
}

// Validate checks the fields JetStream rejects late and obscurely.
func (c StreamConfig) Validate() error {
	switch {
	case c.Name == "" || c.DLQName == "":
		return fmt.Errorf("%w: stream names are required", ErrInvalidConfig)
	case c.Subject == "" || c.DLQSubject == "":
		return fmt.Errorf("%w: stream subjects are required", ErrInvalidConfig)
	case c.Subject == c.DLQSubject:
		return fmt.Errorf("%w: event and dead-letter subjects must differ", ErrInvalidConfig)
	case c.Group == "":
		return fmt.Errorf("%w: consumer group is required", ErrInvalidConfig)
	case c.MaxDeliveries <= 0:
		return fmt.Errorf("%w: max deliveries must be positive", ErrInvalidConfig)
	}
	return nil
}

// maxDeliver is the JetStream MaxDeliver for the durable consumer.
func (c StreamConfig) maxDeliver() int {
	return c.MaxDeliveries + 2
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig returns production circuit breaker settings.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

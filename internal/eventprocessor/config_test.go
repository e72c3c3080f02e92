// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultStreamConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultStreamConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Name", cfg.Name, "QUAKE_EVENTS"},
		{"Subject", cfg.Subject, "quakes.events"},
		{"DLQName", cfg.DLQName, "QUAKE_DLQ"},
		{"Group", cfg.Group, "analytics_group"},
		{"AckWait", cfg.AckWait, 30 * time.Second},
		{"MaxDeliveries", cfg.MaxDeliveries, 5},
		{"maxDeliver", cfg.maxDeliver(), 7},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("DefaultStreamConfig().%s = %v, expected %v", tt.name, tt.got, tt.expected)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestStreamConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*StreamConfig)
	}{
		{"missing name", func(c *StreamConfig) { c.Name = "" }},
		{"missing dlq subject", func(c *StreamConfig) { c.DLQSubject = "" }},
		{"shared subject", func(c *StreamConfig) { c.DLQSubject = c.Subject }},
		{"missing group", func(c *StreamConfig) { c.Group = "" }},
		{"zero deliveries", func(c *StreamConfig) { c.MaxDeliveries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultStreamConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

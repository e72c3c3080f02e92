// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package config

import (
	"fmt"
	"sync"

	"github.com/knadh/koanf/providers/file"

	"github.com/tomtom215/quakegraph/internal/logging"
)

// Watcher keeps the clustering section of the configuration current and
// signals when it changes. Everything else in Config is load-once.
type Watcher struct {
	path string

	mu      sync.RWMutex
	current ClusteringConfig

	changes chan struct{}
}

// NewWatcher returns a watcher seeded with the clustering section that was
// loaded at startup. path is the YAML file to observe; it may be empty, in
// which case Start is a no-op and Current never changes.
func NewWatcher(path string, initial ClusteringConfig) *Watcher {
	return &Watcher{
		path:    path,
		current: initial,
		changes: make(chan struct{}, 1),
	}
}

// Current returns the latest valid clustering configuration.
func (w *Watcher) Current() ClusteringConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Changes delivers a token after each reload that altered the clustering
// parameters. Tokens coalesce: at most one is pending at a time.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Start begins watching the file with fsnotify through the koanf file
// provider. The watch lasts for the life of the process.
func (w *Watcher) Start() error {
	if w.path == "" {
		return nil
	}
	err := file.Provider(w.path).Watch(func(_ interface{}, err error) {
		if err != nil {
			logging.Warn().Err(err).Str("path", w.path).Msg("config watch error")
			return
		}
		if _, err := w.Reload(); err != nil {
			logging.Warn().Err(err).Str("path", w.path).Msg("clustering config reload rejected")
		}
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	logging.Info().Str("path", w.path).Msg("watching clustering configuration")
	return nil
}

// Reload re-reads the layered configuration and adopts the clustering
// section if it is valid. It reports whether the parameters changed. An
// invalid section leaves the current parameters in place.
func (w *Watcher) Reload() (bool, error) {
	k, err := newKoanf(w.path)
	if err != nil {
		return false, err
	}
	var next ClusteringConfig
	if err := k.Unmarshal("clustering", &next); err != nil {
		return false, fmt.Errorf("unmarshal clustering: %w", err)
	}
	if err := ValidateClustering(next); err != nil {
		return false, err
	}

	w.mu.Lock()
	changed := next != w.current
	w.current = next
	w.mu.Unlock()

	if changed {
		logging.Info().
			Float64("eps_km", next.EpsKm).
			Float64("time_window_hours", next.TimeWindowHours).
			Int("min_samples", next.MinSamples).
			Msg("clustering parameters changed")
		select {
		case w.changes <- struct{}{}:
		default:
		}
	}
	return changed, nil
}

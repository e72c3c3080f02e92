// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Alerts.RegionalThreshold > c.Alerts.GlobalThreshold {
		return fmt.Errorf("%w: alerts.regional_threshold (%.1f) above alerts.global_threshold (%.1f)",
			ErrInvalidConfig, c.Alerts.RegionalThreshold, c.Alerts.GlobalThreshold)
	}
	if c.Geocode.Enabled && c.Geocode.BaseURL == "" {
		return fmt.Errorf("%w: geocode.base_url is required when geocoding is enabled", ErrInvalidConfig)
	}
	if c.NATS.Backend == "nats" && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required without an embedded server", ErrInvalidConfig)
	}
	if !c.Buffer.InMemory && c.Buffer.Path == "" {
		return fmt.Errorf("%w: buffer.path is required unless buffer.in_memory is set", ErrInvalidConfig)
	}
	return nil
}

// ValidateClustering checks only the hot-reloadable clustering section.
func ValidateClustering(c ClusteringConfig) error {
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: clustering: %v", ErrInvalidConfig, err)
	}
	return nil
}

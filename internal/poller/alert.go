// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package poller

import (
	"math"
	"strconv"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/models"
)

// AlertPolicy decides which events raise an alert. Events whose place
// mentions a high-risk region use the lower regional threshold.
type AlertPolicy struct {
	global   float64
	regional float64
	regions  []string
}

// NewAlertPolicy creates a policy from configuration.
func NewAlertPolicy(cfg config.AlertConfig) AlertPolicy {
	return AlertPolicy{
		global:   cfg.GlobalThreshold,
		regional: cfg.RegionalThreshold,
		regions:  append([]string(nil), cfg.HighRiskRegions...),
	}
}

// Evaluate returns the alert for ev, if any. The returned alert carries a
// copy of ev with IsAlert set.
func (p AlertPolicy) Evaluate(ev models.Event) (models.Alert, bool) {
	regional := models.MatchesAnyRegion(ev.Place, p.regions)
	threshold := p.global
	if regional {
		threshold = p.regional
	}
	if ev.Magnitude < threshold {
		return models.Alert{}, false
	}

	ev.IsAlert = true
	prefix := ""
	if regional {
		prefix = "REGIONAL "
	}
	return models.Alert{
		Event:   ev,
		Message: prefix + "ALERT: Magnitude " + formatMagnitude(ev.Magnitude) + " earthquake detected near " + ev.Place,
	}, true
}

// IsRegional reports whether place falls in a high-risk region.
func (p AlertPolicy) IsRegional(place string) bool {
	return models.MatchesAnyRegion(place, p.regions)
}

// formatMagnitude prints the shortest exact form, keeping one decimal on
// whole numbers: 3.6 → "3.6", 5 → "5.0".
func formatMagnitude(m float64) string {
	s := strconv.FormatFloat(m, 'f', -1, 64)
	if m == math.Trunc(m) && !math.IsInf(m, 0) {
		s += ".0"
	}
	return s
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package inference

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/quakegraph/internal/logging"
)

// ErrInvalidRules is wrapped by every rule validation failure.
var ErrInvalidRules = errors.New("invalid relationship rules")

// Rules holds every threshold used by the inference engine.
type Rules struct {
	Fault      FaultRule      `koanf:"fault" validate:"required"`
	Impact     ImpactRule     `koanf:"impact" validate:"required"`
	Aftershock AftershockRule `koanf:"aftershock" validate:"required"`
	Cascade    CascadeRule    `koanf:"cascade" validate:"required"`
	Proximity  ProximityRule  `koanf:"proximity" validate:"required"`
}

// FaultRule bounds fault association. The same distance is used to pick an
// event's nearest fault for the cascade rule.
type FaultRule struct {
	MaxDistanceKm float64 `koanf:"max_distance_km" validate:"gt=0"`
}

// ImpactBucket maps magnitudes in [Min, Max) to an impact radius.
type ImpactBucket struct {
	Min      float64 `koanf:"min"`
	Max      float64 `koanf:"max" validate:"gtfield=Min"`
	RadiusKm float64 `koanf:"radius_km" validate:"gt=0"`
}

// ImpactRule is the magnitude to radius table. DefaultRadiusKm applies when
// no bucket matches.
type ImpactRule struct {
	DefaultRadiusKm float64        `koanf:"default_radius_km" validate:"gt=0"`
	Buckets         []ImpactBucket `koanf:"buckets" validate:"dive"`
}

// AftershockRule bounds the aftershock/foreshock rule. MinMagnitude applies
// to the other event.
type AftershockRule struct {
	MinMagnitude  float64       `koanf:"min_magnitude"`
	MaxDistanceKm float64       `koanf:"max_distance_km" validate:"gt=0"`
	MaxTimeDelta  time.Duration `koanf:"max_time_delta" validate:"gt=0"`
}

// CascadeRule bounds the cross-fault trigger rule. MinMagnitude applies to
// the triggering event.
type CascadeRule struct {
	MinMagnitude  float64       `koanf:"min_magnitude"`
	MaxDistanceKm float64       `koanf:"max_distance_km" validate:"gt=0"`
	MaxTimeDelta  time.Duration `koanf:"max_time_delta" validate:"gt=0"`
}

// ProximityRule bounds the batch NEAR join.
type ProximityRule struct {
	MaxDistanceKm float64       `koanf:"max_distance_km" validate:"gt=0"`
	MaxTimeDelta  time.Duration `koanf:"max_time_delta" validate:"gt=0"`
}

// DefaultRules returns the compiled-in thresholds.
func DefaultRules() Rules {
	return Rules{
		Fault: FaultRule{MaxDistanceKm: 200},
		Impact: ImpactRule{
			DefaultRadiusKm: 10,
			Buckets: []ImpactBucket{
				{Min: 0, Max: 2.5, RadiusKm: 5},
				{Min: 2.5, Max: 4.5, RadiusKm: 20},
				{Min: 4.5, Max: 6.5, RadiusKm: 100},
				{Min: 6.5, Max: 10.5, RadiusKm: 500},
			},
		},
		Aftershock: AftershockRule{
			MinMagnitude:  5.0,
			MaxDistanceKm: 50,
			MaxTimeDelta:  7 * 24 * time.Hour,
		},
		Cascade: CascadeRule{
			MinMagnitude:  4.0,
			MaxDistanceKm: 200,
			MaxTimeDelta:  48 * time.Hour,
		},
		Proximity: ProximityRule{
			MaxDistanceKm: 50,
			MaxTimeDelta:  48 * time.Hour,
		},
	}
}

// MaxTimeDelta is the widest time bound of the per-event rules. Candidates
// further away in time than this can never produce an edge.
func (r Rules) MaxTimeDelta() time.Duration {
	return max(r.Aftershock.MaxTimeDelta, r.Cascade.MaxTimeDelta)
}

// MaxDistanceKm is the widest distance bound of the per-event event rules.
func (r Rules) MaxDistanceKm() float64 {
	return max(r.Aftershock.MaxDistanceKm, r.Cascade.MaxDistanceKm)
}

// ImpactRadius returns the radius for a magnitude.
func (r Rules) ImpactRadius(magnitude float64) float64 {
	for _, b := range r.Impact.Buckets {
		if magnitude >= b.Min && magnitude < b.Max {
			return b.RadiusKm
		}
	}
	return r.Impact.DefaultRadiusKm
}

var (
	rulesValidator     *validator.Validate
	rulesValidatorOnce sync.Once
)

// Validate checks every threshold.
func (r Rules) Validate() error {
	rulesValidatorOnce.Do(func() {
		rulesValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := rulesValidator.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return nil
}

// ParseRules reads a YAML rule file over the defaults. Sections or fields
// missing from the file keep their default values; a bucket list in the
// file replaces the default table.
func ParseRules(path string) (Rules, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultRules(), "koanf"), nil); err != nil {
		return Rules{}, fmt.Errorf("load default rules: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Rules{}, fmt.Errorf("load rules %s: %w", path, err)
	}

	var r Rules
	if err := k.Unmarshal("", &r); err != nil {
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// LoadRules returns the rules from path, or the defaults when path is
// empty, missing or invalid. It never fails.
func LoadRules(path string) Rules {
	if path == "" {
		return DefaultRules()
	}
	if _, err := os.Stat(path); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("rule file not readable, using default relationship rules")
		return DefaultRules()
	}
	r, err := ParseRules(path)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("rule file rejected, using default relationship rules")
		return DefaultRules()
	}
	logging.Info().Str("path", path).Int("impact_buckets", len(r.Impact.Buckets)).Msg("relationship rules loaded")
	return r
}

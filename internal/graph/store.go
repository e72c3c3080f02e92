// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/inference"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
	"github.com/tomtom215/quakegraph/internal/models"
)

// ErrNotFound is returned when a node does not exist.
var ErrNotFound = errors.New("graph node not found")

const (
	defaultQueryTimeout = 10 * time.Second
	slowQueryThreshold  = 500 * time.Millisecond
	insertBatchSize     = 500
)

// Store is the Postgres-backed graph store.
type Store struct {
	db      *gorm.DB
	engine  *inference.Engine
	places  *inference.Gazetteer
	timeout time.Duration
}

// Open connects to Postgres and configures the connection pool. Call Init
// before use.
func Open(cfg config.GraphConfig, engine *inference.Engine) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logging.NewGormLogger(slowQueryThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("connect graph store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("graph store pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnLifetime)
	}
	return New(db, engine, cfg.QueryTimeout), nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB, engine *inference.Engine, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Store{
		db:      db,
		engine:  engine,
		places:  inference.NewGazetteer(nil, nil),
		timeout: timeout,
	}
}

// Init migrates the schema, merges the given fault zones and loads the
// gazetteer from the stored faults and cities.
func (s *Store) Init(ctx context.Context, faults []models.FaultZone) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&nodeRow{}, &edgeRow{}); err != nil {
		return fmt.Errorf("migrate graph schema: %w", err)
	}
	if err := s.SeedFaults(ctx, faults); err != nil {
		return err
	}

	var rows []nodeRow
	err := s.db.WithContext(ctx).
		Where("kind IN ?", []string{string(models.NodeFaultZone), string(models.NodeCity)}).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("load gazetteer: %w", err)
	}
	for _, row := range rows {
		switch models.NodeKind(row.Kind) {
		case models.NodeFaultZone:
			s.places.AddFault(faultFromNode(row))
		case models.NodeCity:
			s.places.AddCity(placeFromNode(row))
		}
	}

	logging.Info().
		Int("faults", s.places.Faults()).
		Int("cities", s.places.Cities()).
		Msg("graph store initialized")
	return nil
}

// SeedFaults merges fault zones by name. Existing faults keep their
// reference point.
func (s *Store) SeedFaults(ctx context.Context, faults []models.FaultZone) (err error) {
	if len(faults) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("postgres", "seed_faults", time.Since(start), err) }()

	rows := make([]nodeRow, 0, len(faults))
	names := make([]string, 0, len(faults))
	seen := make(map[string]bool, len(faults))
	for _, f := range faults {
		if f.Name == "" || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		rows = append(rows, faultNode(f))
		names = append(names, f.Name)
	}
	if len(rows) == 0 {
		return nil
	}

	db := s.db.WithContext(ctx)
	err = db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("seed fault zones: %w", err)
	}

	// The stored reference point wins over the one just offered.
	var stored []nodeRow
	err = db.Where("kind = ? AND key IN ?", string(models.NodeFaultZone), names).Find(&stored).Error
	if err != nil {
		return fmt.Errorf("reload fault zones: %w", err)
	}
	for _, row := range stored {
		s.places.AddFault(faultFromNode(row))
	}
	logging.Info().Int("faults", len(stored)).Msg("fault zones merged into graph")
	return nil
}

// Places returns the gazetteer of faults and cities known to the store.
func (s *Store) Places() *inference.Gazetteer { return s.places }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// mergeEdges upserts edges; properties are overwritten on conflict.
func mergeEdges(tx *gorm.DB, edges []models.Edge) error {
	rows := dedupEdges(edges)
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "from_kind"}, {Name: "from_key"}, {Name: "type"}, {Name: "to_kind"}, {Name: "to_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"properties", "updated_at"}),
	}).CreateInBatches(&rows, insertBatchSize).Error
}

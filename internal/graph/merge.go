// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package graph

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tomtom215/quakegraph/internal/inference"
	"github.com/tomtom215/quakegraph/internal/metrics"
	"github.com/tomtom215/quakegraph/internal/models"
)

// kmPerDegreeLat bounds the latitude band used to pre-filter candidates.
const kmPerDegreeLat = 111.0

// MergeEvent merges the earthquake node with its region and city, infers
// relationship edges against nearby recent events and merges them. It
// returns the number of inferred edges.
func (s *Store) MergeEvent(ctx context.Context, ev models.Event) (inferred int, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("postgres", "merge_event", time.Since(start), err) }()

	region := models.ExtractRegion(ev.Place)
	city := models.ExtractCity(ev.Place)
	cityPlace := models.Place{Name: city, Region: region, Latitude: ev.Latitude, Longitude: ev.Longitude}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quake := quakeNode(ev)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"props", "updated_at"}),
		}).Create(&quake).Error; err != nil {
			return fmt.Errorf("merge earthquake %s: %w", ev.ID, err)
		}

		// Regions and cities keep the coordinates of the first event seen.
		places := []nodeRow{placeNode(models.NodeRegion, models.Place{
			Name: region, Latitude: ev.Latitude, Longitude: ev.Longitude,
		})}
		structural := []models.Edge{{From: models.Quake(ev.ID), Type: models.RelOccurredIn, To: models.RegionRef(region)}}
		if city != "" {
			places = append(places, placeNode(models.NodeCity, cityPlace))
			structural = append(structural, models.Edge{
				From: models.CityRef(city), Type: models.RelLocatedIn, To: models.RegionRef(region),
			})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&places).Error; err != nil {
			return fmt.Errorf("merge places for %s: %w", ev.ID, err)
		}
		if err := mergeEdges(tx, structural); err != nil {
			return fmt.Errorf("merge structural edges for %s: %w", ev.ID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if city != "" && ev.Valid() {
		s.places.AddCity(cityPlace)
	}
	if !ev.Valid() {
		return 0, nil
	}

	candidates, err := s.candidates(ctx, ev)
	if err != nil {
		return 0, err
	}
	edges := s.engine.Infer(ev, inference.Population{Events: candidates, Places: s.places})
	if len(edges) == 0 {
		return 0, nil
	}
	if err := mergeEdges(s.db.WithContext(ctx), edges); err != nil {
		return 0, fmt.Errorf("merge inferred edges for %s: %w", ev.ID, err)
	}
	for _, e := range edges {
		metrics.RecordRelationship(string(e.Type))
	}
	return len(edges), nil
}

// candidates loads the earthquakes that could relate to ev: within the
// widest rule time bound and a latitude band covering the widest rule
// distance. The engine applies the exact bounds.
func (s *Store) candidates(ctx context.Context, ev models.Event) ([]models.Event, error) {
	rules := s.engine.Rules()
	window := rules.MaxTimeDelta().Milliseconds()
	band := rules.MaxDistanceKm() / kmPerDegreeLat

	var rows []nodeRow
	err := s.db.WithContext(ctx).
		Where("kind = ? AND key <> ?", string(models.NodeEarthquake), ev.ID).
		Where("time_ms BETWEEN ? AND ?", ev.Time-window, ev.Time+window).
		Where("latitude BETWEEN ? AND ?", ev.Latitude-band, ev.Latitude+band).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load candidates for %s: %w", ev.ID, err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, eventFromNode(row))
	}
	return events, nil
}

// ReplaceClusters deletes every cluster node and BELONGS_TO_CLUSTER edge,
// then creates the given clusters, each linked from its strongest member.
func (s *Store) ReplaceClusters(ctx context.Context, clusters []models.Cluster) (err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("postgres", "replace_clusters", time.Since(start), err) }()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("type = ?", string(models.RelBelongsToCluster)).Delete(&edgeRow{}).Error; err != nil {
			return fmt.Errorf("delete cluster edges: %w", err)
		}
		if err := tx.Where("kind = ?", string(models.NodeCluster)).Delete(&nodeRow{}).Error; err != nil {
			return fmt.Errorf("delete cluster nodes: %w", err)
		}
		if len(clusters) == 0 {
			return nil
		}

		nodes := make([]nodeRow, 0, len(clusters))
		links := make([]models.Edge, 0, len(clusters))
		for _, c := range clusters {
			nodes = append(nodes, clusterNode(c))
			links = append(links, models.Edge{
				From:       models.Quake(c.StrongestID),
				Type:       models.RelBelongsToCluster,
				To:         models.ClusterRef(c.ID),
				Properties: map[string]any{"event_count": c.EventCount},
			})
		}
		if err := tx.CreateInBatches(&nodes, insertBatchSize).Error; err != nil {
			return fmt.Errorf("create cluster nodes: %w", err)
		}
		if err := mergeEdges(tx, links); err != nil {
			return fmt.Errorf("link cluster members: %w", err)
		}
		return nil
	})
}

// ReplaceNearEdges swaps the whole NEAR edge set for the given one.
func (s *Store) ReplaceNearEdges(ctx context.Context, edges []models.Edge) (err error) {
	// The proximity set can be large; allow a longer statement budget.
	ctx, cancel := context.WithTimeout(ctx, 6*s.timeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("postgres", "replace_near_edges", time.Since(start), err) }()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("type = ?", string(models.RelNear)).Delete(&edgeRow{}).Error; err != nil {
			return fmt.Errorf("delete near edges: %w", err)
		}
		if err := mergeEdges(tx, edges); err != nil {
			return fmt.Errorf("create near edges: %w", err)
		}
		return nil
	})
}

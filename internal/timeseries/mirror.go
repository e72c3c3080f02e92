// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package timeseries mirrors persisted events into InfluxDB, where each
// event is a point in the "earthquake" measurement at its origin time.
package timeseries

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/metrics"
	"github.com/tomtom215/quakegraph/internal/models"
)

const measurement = "earthquake"

// HourlyCount is one bucket of the hourly activity series.
type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// Mirror writes events to InfluxDB and reads back aggregates.
type Mirror struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

// New connects to InfluxDB and checks its health.
func New(ctx context.Context, cfg config.InfluxDBConfig) (*Mirror, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	logging.Info().
		Str("url", cfg.URL).
		Str("org", cfg.Org).
		Str("bucket", cfg.Bucket).
		Msg("InfluxDB connection established")

	return &Mirror{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}, nil
}

// WriteEvent writes one point. Rewriting the same event overwrites the
// point since tags and timestamp are identical.
func (m *Mirror) WriteEvent(ctx context.Context, ev models.Event) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("influxdb", "write_event", time.Since(start), err) }()

	p, ok := eventPoint(ev)
	if !ok {
		return nil
	}
	if err := m.writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("write point %s: %w", ev.ID, err)
	}
	return nil
}

// HourlyCounts returns per-hour event counts for the last hours hours.
func (m *Mirror) HourlyCounts(ctx context.Context, hours int) (out []HourlyCount, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("influxdb", "hourly_counts", time.Since(start), err) }()

	result, err := m.queryAPI.Query(ctx, hourlyQuery(m.bucket, hours))
	if err != nil {
		return nil, fmt.Errorf("query InfluxDB: %w", err)
	}
	defer result.Close()

	out = make([]HourlyCount, 0)
	for result.Next() {
		rec := result.Record()
		var n int64
		switch v := rec.Value().(type) {
		case int64:
			n = v
		case float64:
			n = int64(v)
		}
		out = append(out, HourlyCount{Hour: rec.Time().UTC(), Count: n})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("read query result: %w", result.Err())
	}
	return out, nil
}

// Ping reports whether the server is healthy.
func (m *Mirror) Ping(ctx context.Context) error {
	ok, err := m.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("influxdb not ready")
	}
	return nil
}

// Close releases the client.
func (m *Mirror) Close() {
	m.client.Close()
	logging.Info().Msg("InfluxDB client closed")
}

// eventPoint maps an event to a point. Events without a time or valid
// coordinates are not mirrored.
func eventPoint(ev models.Event) (*write.Point, bool) {
	if !ev.Valid() {
		return nil, false
	}
	return influxdb2.NewPoint(
		measurement,
		map[string]string{
			"event_id": ev.ID,
			"region":   models.ExtractRegion(ev.Place),
			"alert":    strconv.FormatBool(ev.IsAlert),
		},
		map[string]interface{}{
			"magnitude": ev.Magnitude,
			"depth":     ev.Depth,
			"latitude":  ev.Latitude,
			"longitude": ev.Longitude,
		},
		ev.OccurredAt(),
	), true
}

func hourlyQuery(bucket string, hours int) string {
	hours = min(max(hours, 1), 24*90)
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dh)
  |> filter(fn: (r) => r._measurement == %q and r._field == "magnitude")
  |> group()
  |> aggregateWindow(every: 1h, fn: count, createEmpty: true)
  |> sort(columns: ["_time"])`, bucket, hours, measurement)
}

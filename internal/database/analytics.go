// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package database

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tomtom215/quakegraph/internal/models"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// Analytics windows and thresholds.
const (
	riskRecentWindow   = 30 * 24 * time.Hour
	unusualWindow      = 48 * time.Hour
	unusualSpikeFactor = 5.0
	unusualMaxResults  = 20
	magnitudeBuckets   = 10
)

// MagnitudeDistribution counts events per integer magnitude bucket
// [n, n+1) for n = 0..9. Every bucket is present, empty ones with 0.
// Magnitudes outside [0, 10) are not counted.
func (db *DB) MagnitudeDistribution(ctx context.Context) (buckets []models.MagnitudeBucket, err error) {
	start := time.Now()
	defer func() { observe("magnitude_distribution", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT CAST(floor(magnitude) AS INTEGER) AS bucket, COUNT(*)
		FROM events
		WHERE magnitude >= 0 AND magnitude < 10
		GROUP BY bucket`)
	if err != nil {
		return nil, fmt.Errorf("magnitude distribution: %w", err)
	}
	defer closeWithLog(rows, "rows")

	buckets = make([]models.MagnitudeBucket, magnitudeBuckets)
	for i := range buckets {
		buckets[i].Lower = i
	}
	for rows.Next() {
		var lower, count int
		if err := rows.Scan(&lower, &count); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		if lower >= 0 && lower < magnitudeBuckets {
			buckets[lower].Count = count
		}
	}
	return buckets, rows.Err()
}

// DailyTrends returns per-day count, mean and max magnitude for the last
// days days before now, oldest first. Days without events are omitted.
func (db *DB) DailyTrends(ctx context.Context, days int, now time.Time) (trends []models.DailyTrend, err error) {
	start := time.Now()
	defer func() { observe("daily_trends", start, err) }()

	if days <= 0 {
		days = 30
	}
	since := now.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT CAST(floor(time_ms / ?) AS BIGINT) AS day, COUNT(*), AVG(magnitude), MAX(magnitude)
		FROM events
		WHERE time_ms >= ?
		GROUP BY day
		ORDER BY day`, float64(msPerDay), since)
	if err != nil {
		return nil, fmt.Errorf("daily trends: %w", err)
	}
	defer closeWithLog(rows, "rows")

	trends = make([]models.DailyTrend, 0)
	for rows.Next() {
		var day int64
		var t models.DailyTrend
		if err := rows.Scan(&day, &t.Count, &t.AvgMagnitude, &t.MaxMagnitude); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		t.Day = time.UnixMilli(day * msPerDay).UTC().Format("2006-01-02")
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

// NearestEvents returns events within radiusKm of the point, nearest first.
// A latitude band prefilter keeps the haversine off most rows.
func (db *DB) NearestEvents(ctx context.Context, lat, lon, radiusKm float64, limit int) (out []models.NearbyEvent, err error) {
	start := time.Now()
	defer func() { observe("nearest_events", start, err) }()

	band := radiusKm / 111.0
	rows, err := db.conn.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+eventColumns+`,
				2 * ? * asin(least(1.0, sqrt(
					pow(sin(radians(latitude - ?) / 2), 2) +
					cos(radians(?)) * cos(radians(latitude)) * pow(sin(radians(longitude - ?) / 2), 2)
				))) AS distance_km
			FROM events
			WHERE latitude BETWEEN ? AND ?
		) AS nearby
		WHERE distance_km <= ?
		ORDER BY distance_km, id
		LIMIT ?`,
		models.EarthRadiusKm, lat, lat, lon, lat-band, lat+band, radiusKm, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("nearest events: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out = make([]models.NearbyEvent, 0)
	for rows.Next() {
		var n models.NearbyEvent
		ev, err := scanEvent(scanWithDistance{rows, &n.DistanceKm})
		if err != nil {
			return nil, fmt.Errorf("scan nearby event: %w", err)
		}
		n.Event = ev
		out = append(out, n)
	}
	return out, rows.Err()
}

// scanWithDistance appends the trailing distance column to an event scan.
type scanWithDistance struct {
	row      rowScanner
	distance *float64
}

func (s scanWithDistance) Scan(dest ...any) error {
	return s.row.Scan(append(dest, s.distance)...)
}

// HeatGrid aggregates events since the given time into square cells of
// cellDeg degrees. Weight is the sum of magnitudes.
func (db *DB) HeatGrid(ctx context.Context, cellDeg float64, since int64) (cells []models.HeatCell, err error) {
	start := time.Now()
	defer func() { observe("heat_grid", start, err) }()

	if cellDeg <= 0 {
		cellDeg = 1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT CAST(floor(latitude / ?) AS BIGINT) AS y, CAST(floor(longitude / ?) AS BIGINT) AS x,
			COUNT(*), SUM(magnitude)
		FROM events
		WHERE time_ms >= ?
		GROUP BY y, x
		ORDER BY 4 DESC`, cellDeg, cellDeg, since)
	if err != nil {
		return nil, fmt.Errorf("heat grid: %w", err)
	}
	defer closeWithLog(rows, "rows")

	cells = make([]models.HeatCell, 0)
	for rows.Next() {
		var y, x int64
		var c models.HeatCell
		if err := rows.Scan(&y, &x, &c.Count, &c.Weight); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.Latitude = (float64(y) + 0.5) * cellDeg
		c.Longitude = (float64(x) + 0.5) * cellDeg
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// DepthVsMagnitude returns scatter points for the most recent events.
func (db *DB) DepthVsMagnitude(ctx context.Context, limit int) (points []models.DepthMagnitude, err error) {
	start := time.Now()
	defer func() { observe("depth_vs_magnitude", start, err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT depth, magnitude, place FROM events ORDER BY time_ms DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("depth vs magnitude: %w", err)
	}
	defer closeWithLog(rows, "rows")

	points = make([]models.DepthMagnitude, 0)
	for rows.Next() {
		var p models.DepthMagnitude
		if err := rows.Scan(&p.Depth, &p.Magnitude, &p.Place); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// RegionalRisk scores every region and returns the limit highest. The
// recent count covers the 30 days before now.
func (db *DB) RegionalRisk(ctx context.Context, now time.Time, limit int) (risks []models.RegionalRisk, err error) {
	start := time.Now()
	defer func() { observe("regional_risk", start, err) }()

	recentSince := now.Add(-riskRecentWindow).UnixMilli()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT region, AVG(magnitude), MAX(magnitude),
			CAST(SUM(CASE WHEN time_ms >= ? THEN 1 ELSE 0 END) AS BIGINT)
		FROM events
		GROUP BY region`, recentSince)
	if err != nil {
		return nil, fmt.Errorf("regional risk: %w", err)
	}
	defer closeWithLog(rows, "rows")

	risks = make([]models.RegionalRisk, 0)
	for rows.Next() {
		var r models.RegionalRisk
		if err := rows.Scan(&r.Region, &r.AvgMagnitude, &r.MaxMagnitude, &r.RecentCount); err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}
		r.RiskScore = models.RiskScore(r.AvgMagnitude, r.MaxMagnitude, r.RecentCount)
		risks = append(risks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].RiskScore != risks[j].RiskScore {
			return risks[i].RiskScore > risks[j].RiskScore
		}
		return risks[i].Region < risks[j].Region
	})
	if limit <= 0 {
		limit = 10
	}
	if len(risks) > limit {
		risks = risks[:limit]
	}
	return risks, nil
}

// UnusualActivity returns regions whose event count in the 48 hours before
// now is more than five times their historical daily average. The average
// is the region's total count over max(1, days since its first event).
func (db *DB) UnusualActivity(ctx context.Context, now time.Time) (spikes []models.UnusualActivity, err error) {
	start := time.Now()
	defer func() { observe("unusual_activity", start, err) }()

	nowMs := now.UnixMilli()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT region, COUNT(*), MIN(time_ms),
			CAST(SUM(CASE WHEN time_ms >= ? THEN 1 ELSE 0 END) AS BIGINT)
		FROM events
		GROUP BY region`, now.Add(-unusualWindow).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("unusual activity: %w", err)
	}
	defer closeWithLog(rows, "rows")

	spikes = make([]models.UnusualActivity, 0)
	for rows.Next() {
		var region string
		var total, recent int
		var firstSeen int64
		if err := rows.Scan(&region, &total, &firstSeen, &recent); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		days := math.Max(1, float64(nowMs-firstSeen)/float64(msPerDay))
		avg := float64(total) / days
		if recent > 0 && float64(recent) > avg*unusualSpikeFactor {
			spikes = append(spikes, models.UnusualActivity{Region: region, RecentCount: recent, HistoricalDailyAvg: avg})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(spikes, func(i, j int) bool {
		if spikes[i].RecentCount != spikes[j].RecentCount {
			return spikes[i].RecentCount > spikes[j].RecentCount
		}
		return spikes[i].Region < spikes[j].Region
	})
	if len(spikes) > unusualMaxResults {
		spikes = spikes[:unusualMaxResults]
	}
	return spikes, nil
}

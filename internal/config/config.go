// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package config loads QuakeGraph configuration with Koanf v2.
//
// Loading order (later layers win):
//  1. Defaults compiled into defaultConfig()
//  2. An optional YAML file (CONFIG_PATH or one of DefaultConfigPaths)
//  3. Environment variables, including those from an optional .env file
//
// Config is immutable after LoadWithKoanf returns. The only parameters that
// change at runtime are the clustering parameters, which are observed
// through a Watcher.
package config

import (
	"errors"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Feed       FeedConfig       `koanf:"feed"`
	Poller     PollerConfig     `koanf:"poller"`
	Alerts     AlertConfig      `koanf:"alerts"`
	Buffer     BufferConfig     `koanf:"buffer"`
	NATS       NATSConfig       `koanf:"nats"`
	Stream     StreamConfig     `koanf:"stream"`
	Consumer   ConsumerConfig   `koanf:"consumer"`
	Database   DatabaseConfig   `koanf:"database"`
	Graph      GraphConfig      `koanf:"graph"`
	Geocode    GeocodeConfig    `koanf:"geocode"`
	Clustering ClusteringConfig `koanf:"clustering"`
	Rules      RulesConfig      `koanf:"rules"`
	InfluxDB   InfluxDBConfig   `koanf:"influxdb"`
	Audit      AuditConfig      `koanf:"audit"`
	Backup     BackupConfig     `koanf:"backup"`
	WAL        WALConfig        `koanf:"wal"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`

	// path of the YAML file that was loaded, "" when none
	sourcePath string
}

// SourcePath returns the config file the configuration was loaded from.
func (c *Config) SourcePath() string { return c.sourcePath }

// FeedConfig configures the upstream earthquake feed.
type FeedConfig struct {
	URL              string        `koanf:"url" validate:"required,url"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	FaultsDatasetURL string        `koanf:"faults_dataset_url" validate:"omitempty,url"`
	UserAgent        string        `koanf:"user_agent"`
}

// PollerConfig configures the feed poller.
type PollerConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	DedupTTL time.Duration `koanf:"dedup_ttl" validate:"gt=0"`
}

// AlertConfig holds the alert policy.
type AlertConfig struct {
	GlobalThreshold   float64  `koanf:"global_threshold"`
	RegionalThreshold float64  `koanf:"regional_threshold"`
	HighRiskRegions   []string `koanf:"high_risk_regions"`
}

// BufferConfig configures the badger-backed recency buffer.
type BufferConfig struct {
	Path     string `koanf:"path"`
	Capacity int    `koanf:"capacity" validate:"gt=0"`
	InMemory bool   `koanf:"in_memory"`
}

// NATSConfig configures the NATS connection and the optional embedded server.
type NATSConfig struct {
	// Backend selects "nats" or "memory". The memory backend runs the log,
	// dedup marker and pub/sub in-process and is meant for single-node
	// development.
	Backend        string `koanf:"backend" validate:"oneof=nats memory"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// StreamConfig names the durable log, its consumer group and the DLQ.
type StreamConfig struct {
	Name        string        `koanf:"name" validate:"required"`
	Subject     string        `koanf:"subject" validate:"required"`
	DLQName     string        `koanf:"dlq_name" validate:"required"`
	DLQSubject  string        `koanf:"dlq_subject" validate:"required"`
	Group       string        `koanf:"group" validate:"required"`
	MaxAge      time.Duration `koanf:"max_age"`
	AckWait     time.Duration `koanf:"ack_wait" validate:"gt=0"`
	DedupBucket string        `koanf:"dedup_bucket" validate:"required"`
}

// ConsumerConfig configures the stream consumer loop.
type ConsumerConfig struct {
	Name           string        `koanf:"name"`
	BatchSize      int           `koanf:"batch_size" validate:"gt=0"`
	Block          time.Duration `koanf:"block" validate:"gt=0"`
	MaxDeliveries  int           `koanf:"max_deliveries" validate:"gt=0"`
	ProcessTimeout time.Duration `koanf:"process_timeout" validate:"gt=0"`
}

// DatabaseConfig configures the DuckDB document store.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// GraphConfig configures the Postgres-backed graph store.
type GraphConfig struct {
	Enabled      bool          `koanf:"enabled"`
	DSN          string        `koanf:"dsn" validate:"required_if=Enabled true"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	ConnLifetime time.Duration `koanf:"conn_lifetime"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// GeocodeConfig configures reverse geocoding.
type GeocodeConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BaseURL   string        `koanf:"base_url" validate:"omitempty,url"`
	UserAgent string        `koanf:"user_agent"`
	Language  string        `koanf:"language"`
	Rate      float64       `koanf:"rate" validate:"gt=0"`
	CacheTTL  time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	CacheSize int           `koanf:"cache_size" validate:"gt=0"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ClusteringConfig holds the clustering window, trigger schedule and the
// hot-reloadable parameters.
type ClusteringConfig struct {
	Interval        time.Duration `koanf:"interval"`
	Lookback        time.Duration `koanf:"lookback" validate:"gt=0"`
	MaxEvents       int           `koanf:"max_events" validate:"gt=0"`
	EpsKm           float64       `koanf:"eps_km" validate:"gt=0"`
	TimeWindowHours float64       `koanf:"time_window_hours" validate:"gt=0"`
	MinSamples      int           `koanf:"min_samples" validate:"gt=0"`
	Watch           bool          `koanf:"watch"`
}

// RulesConfig points at the relationship rule file.
type RulesConfig struct {
	Path string `koanf:"path"`
}

// InfluxDBConfig configures the optional time-series mirror.
type InfluxDBConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true"`
	Token   string `koanf:"token"`
	Org     string `koanf:"org"`
	Bucket  string `koanf:"bucket"`
}

// AuditConfig configures the operations audit trail.
type AuditConfig struct {
	Enabled       bool `koanf:"enabled"`
	RetentionDays int  `koanf:"retention_days" validate:"gte=0"`
	BufferSize    int  `koanf:"buffer_size" validate:"gte=0"`
}

// BackupConfig configures document store snapshots. An Interval of zero
// disables scheduled snapshots; the API can still take them.
type BackupConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Dir      string        `koanf:"dir" validate:"required_if=Enabled true"`
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
	Keep     int           `koanf:"keep" validate:"gte=0"`
	Compress bool          `koanf:"compress"`
}

// WALConfig configures the spool for event log appends that failed.
type WALConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory      bool          `koanf:"in_memory"`
	SyncWrites    bool          `koanf:"sync_writes"`
	EntryTTL      time.Duration `koanf:"entry_ttl" validate:"gte=0"`
	MaxRetries    int           `koanf:"max_retries" validate:"gte=0"`
	RetryInterval time.Duration `koanf:"retry_interval" validate:"gte=0"`
	RetryBackoff  time.Duration `koanf:"retry_backoff" validate:"gte=0"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lt=65536"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// OpsToken guards the recluster, backfill, backup and audit routes.
	// Callers send it as a bearer token. Empty leaves them open.
	OpsToken string `koanf:"ops_token"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/quakegraph/config.yaml",
	"/etc/quakegraph/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the process environment, if present, before
// environment variables are read.
var DotEnvFile = ".env"

func defaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:       "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson",
			Timeout:   15 * time.Second,
			UserAgent: "quakegraph/1.0",
		},
		Poller: PollerConfig{
			Interval: 30 * time.Second,
			DedupTTL: 24 * time.Hour,
		},
		Alerts: AlertConfig{
			GlobalThreshold:   5.0,
			RegionalThreshold: 3.5,
			HighRiskRegions:   []string{"California", "Alaska", "Japan", "Indonesia", "Chile", "Turkey"},
		},
		Buffer: BufferConfig{
			Path:     "/data/buffer",
			Capacity: 1000,
		},
		NATS: NATSConfig{
			Backend:        "nats",
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      256 << 20, // 256MB
			MaxStore:       4 << 30,   // 4GB
		},
		Stream: StreamConfig{
			Name:        "QUAKE_EVENTS",
			Subject:     "quakes.events",
			DLQName:     "QUAKE_DLQ",
			DLQSubject:  "quakes.dlq",
			Group:       "analytics_group",
			MaxAge:      7 * 24 * time.Hour,
			AckWait:     30 * time.Second,
			DedupBucket: "quake-dedup",
		},
		Consumer: ConsumerConfig{
			BatchSize:      10,
			Block:          5 * time.Second,
			MaxDeliveries:  5,
			ProcessTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/quakegraph.duckdb",
			MaxMemory: "1GB",
		},
		Graph: GraphConfig{
			Enabled:      false,
			MaxOpenConns: 10,
			MaxIdleConns: 10,
			ConnLifetime: 30 * time.Minute,
			QueryTimeout: 10 * time.Second,
		},
		Geocode: GeocodeConfig{
			Enabled:   true,
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "quakegraph/1.0",
			Language:  "en",
			Rate:      1,
			CacheTTL:  24 * time.Hour,
			CacheSize: 10000,
			Timeout:   10 * time.Second,
		},
		Clustering: ClusteringConfig{
			Interval:        0, // startup, control channel and config changes only
			Lookback:        7 * 24 * time.Hour,
			MaxEvents:       5000,
			EpsKm:           50,
			TimeWindowHours: 48,
			MinSamples:      3,
			Watch:           true,
		},
		InfluxDB: InfluxDBConfig{
			Org:    "quakegraph",
			Bucket: "earthquakes",
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 90,
			BufferSize:    256,
		},
		Backup: BackupConfig{
			Dir:      "./data/backups",
			Interval: 24 * time.Hour,
			Keep:     7,
			Compress: true,
		},
		WAL: WALConfig{
			Enabled:       true,
			Path:          "./data/wal",
			SyncWrites:    true,
			EntryTTL:      24 * time.Hour,
			MaxRetries:    100,
			RetryInterval: 10 * time.Second,
			RetryBackoff:  time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration from defaults, the optional config file
// and the environment, then validates it.
func LoadWithKoanf() (*Config, error) {
	// A missing .env file is the normal case.
	_ = godotenv.Load(DotEnvFile)

	path := findConfigFile()
	k, err := newKoanf(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.sourcePath = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// newKoanf builds the layered koanf instance shared by LoadWithKoanf and
// the clustering Watcher.
func newKoanf(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	return k, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when they come
// from the environment.
var sliceConfigPaths = []string{
	"alerts.high_risk_regions",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak
// into the configuration.
var envMappings = map[string]string{
	"feed_url":                 "feed.url",
	"feed_timeout":             "feed.timeout",
	"feed_user_agent":          "feed.user_agent",
	"faults_dataset_url":       "feed.faults_dataset_url",
	"fetch_interval":           "poller.interval",
	"dedup_ttl":                "poller.dedup_ttl",
	"alert_threshold":          "alerts.global_threshold",
	"regional_alert_threshold": "alerts.regional_threshold",
	"high_risk_regions":        "alerts.high_risk_regions",
	"buffer_path":              "buffer.path",
	"buffer_size":              "buffer.capacity",
	"buffer_in_memory":         "buffer.in_memory",

	"messaging_backend": "nats.backend",
	"nats_url":          "nats.url",
	"nats_embedded":     "nats.embedded_server",
	"nats_host":         "nats.host",
	"nats_port":         "nats.port",
	"nats_store_dir":    "nats.store_dir",
	"nats_max_memory":   "nats.max_memory",
	"nats_max_store":    "nats.max_store",

	"stream_name":     "stream.name",
	"stream_subject":  "stream.subject",
	"dlq_stream_name": "stream.dlq_name",
	"dlq_subject":     "stream.dlq_subject",
	"consumer_group":  "stream.group",
	"stream_max_age":  "stream.max_age",
	"stream_ack_wait": "stream.ack_wait",
	"dedup_bucket":    "stream.dedup_bucket",
	"consumer_name":   "consumer.name",
	"consumer_batch":  "consumer.batch_size",
	"consumer_block":  "consumer.block",
	"max_deliveries":  "consumer.max_deliveries",
	"process_timeout": "consumer.process_timeout",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"graph_enabled":        "graph.enabled",
	"graph_dsn":            "graph.dsn",
	"database_url":         "graph.dsn",
	"graph_max_open_conns": "graph.max_open_conns",
	"graph_query_timeout":  "graph.query_timeout",

	"geocode_enabled":    "geocode.enabled",
	"geocode_base_url":   "geocode.base_url",
	"geocode_user_agent": "geocode.user_agent",
	"geocode_rate":       "geocode.rate",
	"geocode_cache_ttl":  "geocode.cache_ttl",
	"geocode_cache_size": "geocode.cache_size",

	"clustering_interval":          "clustering.interval",
	"clustering_lookback":          "clustering.lookback",
	"clustering_max_events":        "clustering.max_events",
	"clustering_distance_km":       "clustering.eps_km",
	"clustering_time_window_hours": "clustering.time_window_hours",
	"clustering_min_samples":       "clustering.min_samples",
	"clustering_watch":             "clustering.watch",

	"rules_path": "rules.path",

	"influxdb_enabled": "influxdb.enabled",
	"influxdb_url":     "influxdb.url",
	"influxdb_token":   "influxdb.token",
	"influxdb_org":     "influxdb.org",
	"influxdb_bucket":  "influxdb.bucket",

	"audit_enabled":        "audit.enabled",
	"audit_retention_days": "audit.retention_days",
	"audit_buffer_size":    "audit.buffer_size",

	"backup_enabled":  "backup.enabled",
	"backup_dir":      "backup.dir",
	"backup_interval": "backup.interval",
	"backup_keep":     "backup.keep",

	"wal_enabled":        "wal.enabled",
	"wal_path":           "wal.path",
	"wal_in_memory":      "wal.in_memory",
	"wal_sync_writes":    "wal.sync_writes",
	"wal_entry_ttl":      "wal.entry_ttl",
	"wal_max_retries":    "wal.max_retries",
	"wal_retry_interval": "wal.retry_interval",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"ops_token":           "server.ops_token",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps FEED_URL to feed.url and so on. It returns "" for
// variables that are not part of the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/quakegraph/internal/api"
	"github.com/tomtom215/quakegraph/internal/audit"
	"github.com/tomtom215/quakegraph/internal/backup"
	"github.com/tomtom215/quakegraph/internal/buffer"
	"github.com/tomtom215/quakegraph/internal/clustering"
	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/consumer"
	"github.com/tomtom215/quakegraph/internal/database"
	"github.com/tomtom215/quakegraph/internal/enrich"
	"github.com/tomtom215/quakegraph/internal/feed"
	"github.com/tomtom215/quakegraph/internal/geocode"
	"github.com/tomtom215/quakegraph/internal/graph"
	"github.com/tomtom215/quakegraph/internal/inference"
	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/poller"
	"github.com/tomtom215/quakegraph/internal/supervisor"
	"github.com/tomtom215/quakegraph/internal/supervisor/services"
	"github.com/tomtom215/quakegraph/internal/timeseries"
	"github.com/tomtom215/quakegraph/internal/wal"
	"github.com/tomtom215/quakegraph/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("feed", cfg.Feed.URL).
		Str("backend", cfg.NATS.Backend).
		Bool("graph", cfg.Graph.Enabled).
		Bool("geocode", cfg.Geocode.Enabled).
		Bool("influxdb", cfg.InfluxDB.Enabled).
		Msg("Starting QuakeGraph")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("QuakeGraph exited with error")
	}
	logging.Info().Msg("QuakeGraph stopped")
}

// closer is a named shutdown step. Steps run in reverse order of
// registration.
type closer struct {
	name string
	fn   func() error
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			c := closers[i]
			if cerr := c.fn(); cerr != nil {
				logging.Warn().Err(cerr).Str("component", c.name).Msg("Error during shutdown")
			}
		}
	}()

	// Data layer
	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	closers = append(closers, closer{"database", db.Close})

	auditStore := audit.NewDuckDBStore(db.Conn())
	if err := auditStore.CreateTable(ctx); err != nil {
		return err
	}
	auditLog := audit.NewLogger(auditStore, audit.Config{
		Enabled:       cfg.Audit.Enabled,
		RetentionDays: cfg.Audit.RetentionDays,
		BufferSize:    cfg.Audit.BufferSize,
	})

	n, err := db.BackfillReadableTime(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Readable-time backfill failed")
	} else if n > 0 {
		logging.Info().Int("updated", n).Msg("Backfilled readable event times")
	}
	startup := &audit.Event{
		Type:    audit.EventTypeBackfillReadableTime,
		Outcome: audit.OutcomeSuccess,
		Actor:   audit.SystemActor(),
		Source:  audit.Source{IPAddress: "127.0.0.1"},
		Action:  "startup_backfill",
	}
	if err != nil {
		startup.Outcome = audit.OutcomeFailure
		startup.Description = err.Error()
	} else {
		startup.Metadata = audit.MustJSON(map[string]int{"updated": n})
	}
	auditLog.Log(startup)

	var backups *backup.Manager
	if cfg.Backup.Enabled {
		backups, err = backup.NewManager(backup.Config{
			Dir:      cfg.Backup.Dir,
			Interval: cfg.Backup.Interval,
			Keep:     cfg.Backup.Keep,
			Compress: cfg.Backup.Compress,
		}, db)
		switch {
		case errors.Is(err, backup.ErrNoDatabaseFile):
			logging.Warn().Msg("Backups disabled for the in-memory document store")
			backups = nil
		case err != nil:
			return fmt.Errorf("create backup manager: %w", err)
		}
	}

	buf, err := buffer.Open(buffer.Config{
		Path:     cfg.Buffer.Path,
		Capacity: cfg.Buffer.Capacity,
		InMemory: cfg.Buffer.InMemory,
	})
	if err != nil {
		return fmt.Errorf("open recency buffer: %w", err)
	}
	closers = append(closers, closer{"recency-buffer", buf.Close})

	rules := inference.LoadRules(cfg.Rules.Path)
	engine := inference.NewEngine(rules)

	feedClient := feed.NewClient(feed.Config{
		URL:       cfg.Feed.URL,
		Timeout:   cfg.Feed.Timeout,
		UserAgent: cfg.Feed.UserAgent,
	})

	var graphStore *graph.Store
	if cfg.Graph.Enabled {
		graphStore, err = initGraph(ctx, cfg, engine, feedClient)
		if err != nil {
			return err
		}
		closers = append(closers, closer{"graph", graphStore.Close})
	}

	var mirror *timeseries.Mirror
	if cfg.InfluxDB.Enabled {
		mirror, err = timeseries.New(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("open InfluxDB mirror: %w", err)
		}
		closers = append(closers, closer{"influxdb", func() error { mirror.Close(); return nil }})
	}

	var reverser geocode.Reverser
	if cfg.Geocode.Enabled {
		reverser = geocode.New(geocode.NewNominatim(geocode.NominatimConfig{
			BaseURL:   cfg.Geocode.BaseURL,
			UserAgent: cfg.Geocode.UserAgent,
			Language:  cfg.Geocode.Language,
			Timeout:   cfg.Geocode.Timeout,
		}), geocode.Config{
			Rate:      cfg.Geocode.Rate,
			CacheTTL:  cfg.Geocode.CacheTTL,
			CacheSize: cfg.Geocode.CacheSize,
		})
	}
	enricher := enrich.New(reverser)

	// Messaging layer
	msg, err := initMessaging(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"messaging", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return msg.close(shutdownCtx)
	}})

	consumerCfg := consumer.Config{
		Log:      msg.log,
		Docs:     db,
		Enricher: enricher,
		Settings: cfg.Consumer,
	}
	if consumerCfg.Settings.Name == "" {
		consumerCfg.Settings.Name = "consumer-" + uuid.NewString()[:8]
	}
	if graphStore != nil {
		consumerCfg.Graph = graphStore
	}
	if mirror != nil {
		consumerCfg.Mirror = mirror
	}
	streamConsumer, err := consumer.New(consumerCfg)
	if err != nil {
		return fmt.Errorf("create stream consumer: %w", err)
	}
	// The group must exist before the poller's first append.
	if err := streamConsumer.Init(ctx); err != nil {
		return err
	}

	pollerCfg := poller.Config{
		Feed:     feedClient,
		Marker:   msg.marker,
		Buffer:   buf,
		Log:      msg.log,
		Bus:      msg.bus,
		Alerts:   poller.NewAlertPolicy(cfg.Alerts),
		Interval: cfg.Poller.Interval,
	}
	var retryLoop *wal.RetryLoop
	if cfg.WAL.Enabled {
		spool, err := wal.Open(wal.Config{
			Path:          cfg.WAL.Path,
			InMemory:      cfg.WAL.InMemory,
			SyncWrites:    cfg.WAL.SyncWrites,
			EntryTTL:      cfg.WAL.EntryTTL,
			MaxRetries:    cfg.WAL.MaxRetries,
			RetryInterval: cfg.WAL.RetryInterval,
			RetryBackoff:  cfg.WAL.RetryBackoff,
		})
		if err != nil {
			return fmt.Errorf("open WAL: %w", err)
		}
		closers = append(closers, closer{"wal", spool.Close})
		pollerCfg.Spool = spool
		retryLoop = wal.NewRetryLoop(spool, msg.log)
	}
	feedPoller, err := poller.New(pollerCfg)
	if err != nil {
		return fmt.Errorf("create poller: %w", err)
	}

	watcher := config.NewWatcher(cfg.SourcePath(), cfg.Clustering)
	if cfg.Clustering.Watch {
		if err := watcher.Start(); err != nil {
			logging.Warn().Err(err).Msg("Clustering config hot reload disabled")
		}
	}
	clusterCfg := clustering.ServiceConfig{
		Events:    db,
		Params:    watcher,
		Control:   msg.bus,
		Proximity: rules.Proximity,
	}
	if graphStore != nil {
		clusterCfg.Graph = graphStore
	}
	clusterService, err := clustering.NewService(clusterCfg)
	if err != nil {
		return fmt.Errorf("create clustering service: %w", err)
	}

	// API layer
	hub := websocket.NewHub()
	handlerCfg := api.HandlerConfig{
		Docs:           db,
		Buffer:         buf,
		Bus:            msg.bus,
		Consumer:       streamConsumer,
		Log:            msg.log,
		Hub:            hub,
		AllowedOrigins: cfg.Server.CORSOrigins,
	}
	if graphStore != nil {
		handlerCfg.Graph = graphStore
	}
	if mirror != nil {
		handlerCfg.Mirror = mirror
	}
	if reverser != nil {
		handlerCfg.Enricher = enricher
	}
	if cfg.Audit.Enabled {
		handlerCfg.Audit = auditLog
	}
	if backups != nil {
		handlerCfg.Backups = backups
	}
	handler, err := api.NewHandler(handlerCfg)
	if err != nil {
		return fmt.Errorf("create API handler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, cfg.Server).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(buf)
	tree.AddDataService(auditLog)
	if backups != nil {
		tree.AddDataService(backups)
	}
	if msg.broker != nil {
		tree.AddDataService(services.NewBrokerWatchdog(msg.broker, 0))
	}
	tree.AddMessagingService(feedPoller)
	if retryLoop != nil {
		tree.AddMessagingService(retryLoop)
	}
	tree.AddMessagingService(streamConsumer)
	tree.AddMessagingService(clusterService)
	tree.AddAPIService(hub)
	tree.AddAPIService(websocket.NewBridge(hub, msg.bus))
	tree.AddAPIService(services.NewHTTPServerService(server, addr, 10*time.Second))

	logging.Info().Str("addr", addr).Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	return nil
}

// initGraph opens the relationship graph and seeds fault zones. A failed
// fault download leaves the graph usable without them.
func initGraph(ctx context.Context, cfg *config.Config, engine *inference.Engine, client *feed.Client) (*graph.Store, error) {
	store, err := graph.Open(cfg.Graph, engine)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}

	faults := client.KnownFaultZones(ctx, cfg.Feed.FaultsDatasetURL)
	if err := store.Init(ctx, faults); err != nil {
		return nil, errors.Join(fmt.Errorf("initialize graph: %w", err), store.Close())
	}
	logging.Info().Int("faults", len(faults)).Msg("Relationship graph ready")
	return store, nil
}

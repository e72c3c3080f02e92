// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

// Package testinfra provides container-backed infrastructure for
// integration tests.
//
// Everything here is built only with the integration tag and needs a
// reachable Docker daemon. Tests call SkipIfNoDocker first so that
// `go test -tags integration` still passes on machines without Docker.
//
// # PostgreSQL
//
// NewPostgresContainer starts a throwaway PostgreSQL server for the graph
// store:
//
//	pg, err := testinfra.NewPostgresContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, pg)
//
//	store, err := graph.Open(config.GraphConfig{DSN: pg.DSN}, engine)
package testinfra

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

/*
Package middleware provides the HTTP middleware shared by the ops API.

  - RequestID: accepts or generates an X-Request-ID and seeds the logging
    context with it and a fresh correlation id.
  - PrometheusMetrics: counts requests and observes latency, labelled by
    the chi route pattern so path parameters do not explode cardinality.

Both are chi-style func(http.Handler) http.Handler values:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"net/http"
	"slices"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/quakegraph/internal/logging"
	"github.com/tomtom215/quakegraph/internal/websocket"
)

func (h *Handler) upgrader() *gorillaws.Upgrader {
	return &gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin rejects requests without an Origin header unless every
// origin is allowed.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if slices.Contains(h.origins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	return slices.Contains(h.origins, origin)
}

// LiveFeed handles GET /ws/live. Clients receive every live and alert
// message published after they connect.
func (h *Handler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Live feed is not enabled")
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	if !client.Start(r.Context()) {
		logging.Ctx(r.Context()).Debug().Msg("WebSocket client closed before registration")
		return
	}
	logging.Ctx(r.Context()).Debug().
		Uint64("client_id", client.ID()).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket client connected")
}

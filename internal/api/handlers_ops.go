// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/quakegraph/internal/audit"
	"github.com/tomtom215/quakegraph/internal/backup"
	"github.com/tomtom215/quakegraph/internal/consumer"
	"github.com/tomtom215/quakegraph/internal/eventprocessor"
	"github.com/tomtom215/quakegraph/internal/logging"
)

const healthCheckTimeout = 3 * time.Second

// Recluster handles POST /api/v1/recluster. The run happens asynchronously
// in the clustering service.
func (h *Handler) Recluster(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	err := h.bus.Publish(r.Context(), eventprocessor.TopicControl, []byte(eventprocessor.ControlRecluster))
	h.record(r, audit.EventTypeReclusterRequested, "recluster", err, nil)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to publish recluster request")
		rw.ServiceUnavailable("Could not request a clustering run")
		return
	}
	logging.Ctx(r.Context()).Info().Msg("Clustering run requested")
	rw.Accepted(map[string]string{"requested": eventprocessor.ControlRecluster})
}

// BackfillReadableTime handles POST /api/v1/backfill/readable-time.
func (h *Handler) BackfillReadableTime(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	updated, err := h.docs.BackfillReadableTime(r.Context())
	h.record(r, audit.EventTypeBackfillReadableTime, "backfill_readable_time", err, map[string]int{"updated": updated})
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	logging.Ctx(r.Context()).Info().Int("updated", updated).Msg("Readable time backfill finished")
	rw.Success(map[string]int{"updated": updated})
}

// BackfillAddresses handles POST /api/v1/backfill/addresses?limit=.
func (h *Handler) BackfillAddresses(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.enricher == nil {
		rw.ServiceUnavailable("Geocoding is not enabled")
		return
	}
	p := newQueryParser(r)
	req := LimitRequest{Limit: p.int("limit", 50)}
	if !decode(rw, p, &req) {
		return
	}

	res, err := consumer.BackfillAddresses(r.Context(), h.docs, h.enricher, req.Limit)
	h.record(r, audit.EventTypeBackfillAddresses, "backfill_addresses", err, res)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Int("scanned", res.Scanned).
		Int("updated", res.Updated).
		Msg("Address backfill finished")
	rw.Success(res)
}

// CreateBackup handles POST /api/v1/backups. The snapshot is taken
// synchronously.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.backups == nil {
		rw.ServiceUnavailable("Backups are not enabled")
		return
	}
	b, err := h.backups.Create(r.Context(), backup.TriggerManual)
	var meta any
	if b != nil {
		meta = map[string]any{"id": b.ID, "size_bytes": b.SizeBytes}
	}
	h.record(r, audit.EventTypeBackupCreated, "backup", err, meta)
	if err != nil {
		rw.InternalError("Backup failed")
		return
	}
	rw.Success(b)
}

// ListBackups handles GET /api/v1/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.backups == nil {
		rw.ServiceUnavailable("Backups are not enabled")
		return
	}
	rw.Success(h.backups.List())
}

// record hands an operator action to the audit log, if one is configured.
func (h *Handler) record(r *http.Request, eventType audit.EventType, action string, err error, meta any) {
	if h.audit == nil {
		return
	}
	e := &audit.Event{
		Type:      eventType,
		Outcome:   audit.OutcomeSuccess,
		Actor:     audit.ActorFromRequest(r),
		Source:    audit.SourceFromRequest(r),
		Action:    action,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
	if err != nil {
		e.Outcome = audit.OutcomeFailure
		e.Description = err.Error()
	}
	if meta != nil {
		e.Metadata = audit.MustJSON(meta)
	}
	h.audit.Log(e)
}

// AuditEvents handles GET /api/v1/audit?type=&outcome=&limit=.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.audit == nil {
		rw.ServiceUnavailable("Audit log is not enabled")
		return
	}
	p := newQueryParser(r)
	req := AuditRequest{
		Type:    p.str("type"),
		Outcome: p.str("outcome"),
		Limit:   p.int("limit", audit.DefaultQueryLimit),
	}
	if !decode(rw, p, &req) {
		return
	}

	filter := audit.QueryFilter{Outcome: audit.Outcome(req.Outcome), Limit: req.Limit}
	if req.Type != "" {
		filter.Types = []audit.EventType{audit.EventType(req.Type)}
	}
	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	rw.Success(events)
}

// PipelineStats is the body of GET /api/v1/pipeline/stats.
type PipelineStats struct {
	Consumer  *consumer.Stats          `json:"consumer,omitempty"`
	Log       *eventprocessor.LogStats `json:"log,omitempty"`
	BufferLen int                      `json:"buffer_len"`
	Clients   int                      `json:"websocket_clients"`
}

// PipelineStats handles GET /api/v1/pipeline/stats.
func (h *Handler) PipelineStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var out PipelineStats
	if h.consumer != nil {
		s := h.consumer.Stats()
		out.Consumer = &s
	}
	if h.log != nil {
		s, err := h.log.Stats(r.Context())
		if err != nil {
			rw.DatabaseError(err)
			return
		}
		out.Log = &s
	}
	n, err := h.buffer.Len()
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	out.BufferLen = n
	if h.hub != nil {
		out.Clients = h.hub.ClientCount()
	}
	rw.Success(out)
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	EventCount int64             `json:"event_count"`
	Checks     map[string]string `json:"checks"`
}

// Health handles GET /healthz. It answers 503 when the document store is
// unreachable; optional stores only degrade the status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	out := HealthStatus{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		Checks: map[string]string{},
	}
	check := func(name string, err error) bool {
		if err != nil {
			out.Checks[name] = err.Error()
			return false
		}
		out.Checks[name] = "ok"
		return true
	}

	docsOK := check("document_store", h.docs.Ping(ctx))
	if docsOK {
		if n, err := h.docs.CountEvents(ctx); err == nil {
			out.EventCount = n
		}
	}
	_, bufErr := h.buffer.Len()
	healthy := check("recency_buffer", bufErr)
	if h.graph != nil {
		healthy = check("graph_store", h.graph.Ping(ctx)) && healthy
	}
	if h.mirror != nil {
		healthy = check("timeseries", h.mirror.Ping(ctx)) && healthy
	}

	switch {
	case !docsOK:
		out.Status = "unhealthy"
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Document store unreachable", out)
		return
	case !healthy:
		out.Status = "degraded"
	}
	rw.Success(out)
}

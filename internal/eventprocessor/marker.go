// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package eventprocessor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Marker records that an id has been seen. MarkNew is an atomic
// set-if-absent: exactly one caller observes true for a given id within the
// marker's TTL.
type Marker interface {
	MarkNew(ctx context.Context, id string) (bool, error)
}

var (
	_ Marker = (*KVMarker)(nil)
	_ Marker = (*MemoryMarker)(nil)
)

// KVMarker stores markers in a JetStream KeyValue bucket. The bucket TTL
// expires markers, so the dedup horizon is a bucket property.
type KVMarker struct {
	kv jetstream.KeyValue
}

// NewKVMarker creates or updates the bucket and returns a marker over it.
func NewKVMarker(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*KVMarker, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "feed record dedup markers",
		TTL:         ttl,
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create dedup bucket %s: %w", bucket, err)
	}
	return &KVMarker{kv: kv}, nil
}

// MarkNew creates the key. An existing key means the id was already seen.
func (m *KVMarker) MarkNew(ctx context.Context, id string) (bool, error) {
	_, err := m.kv.Create(ctx, markerKey(id), []byte{1})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return false, nil
	}
	return false, fmt.Errorf("mark %s: %w", id, err)
}

// markerKey maps an id to a valid KV key. Ids made only of key-safe
// characters are used as-is; anything else is hex encoded under a prefix
// that cannot collide with a plain id.
func markerKey(id string) string {
	if id != "" && keySafe(id) {
		return "seen." + id
	}
	return "hex." + hex.EncodeToString([]byte(id))
}

func keySafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// MemoryMarker is an in-process Marker with per-key expiry.
type MemoryMarker struct {
	mu    sync.Mutex
	ttl   time.Duration
	seen  map[string]time.Time
	clock func() time.Time
}

// NewMemoryMarker creates a marker whose entries expire after ttl.
func NewMemoryMarker(ttl time.Duration) *MemoryMarker {
	return &MemoryMarker{
		ttl:   ttl,
		seen:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// MarkNew reports whether id was absent or expired, and marks it.
func (m *MemoryMarker) MarkNew(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if exp, ok := m.seen[id]; ok && now.Before(exp) {
		return false, nil
	}
	m.seen[id] = now.Add(m.ttl)

	// Opportunistic sweep keeps the map bounded by the ids of one horizon.
	if len(m.seen)%1024 == 0 {
		for k, exp := range m.seen {
			if !now.Before(exp) {
				delete(m.seen, k)
			}
		}
	}
	return true, nil
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/quakegraph/internal/config"
	"github.com/tomtom215/quakegraph/internal/database"
)

type fakeDB struct {
	path          string
	checkpointErr error
	checkpoints   int
}

func (f *fakeDB) Path() string { return f.path }

func (f *fakeDB) Checkpoint(context.Context) error {
	f.checkpoints++
	return f.checkpointErr
}

func (f *fakeDB) CountEvents(context.Context) (int64, error) { return 42, nil }

func newFakeDB(t *testing.T, withWAL bool) *fakeDB {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "quakegraph.duckdb")
	if err := os.WriteFile(path, []byte("duckdb file contents"), 0o600); err != nil {
		t.Fatal(err)
	}
	if withWAL {
		if err := os.WriteFile(path+".wal", []byte("wal"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return &fakeDB{path: path}
}

// archiveEntries lists the entry names of a tar or tar.gz archive.
func archiveEntries(t *testing.T, path string, compressed bool) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		defer gz.Close()
		r = gz
	}
	tr := tar.NewReader(r)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read archive: %v", err)
		}
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		db      Database
		wantErr error
	}{
		{"nil database", Config{Dir: t.TempDir()}, nil, nil},
		{"in-memory", Config{Dir: t.TempDir()}, &fakeDB{path: ":memory:"}, ErrNoDatabaseFile},
		{"no dir", Config{}, &fakeDB{path: "/tmp/x.duckdb"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewManager(tt.cfg, tt.db)
			if err == nil {
				t.Fatal("NewManager() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("NewManager() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		compress bool
		wal      bool
		want     []string
	}{
		{"compressed", true, false, []string{"backup-metadata.json", "database/quakegraph.duckdb"}},
		{"plain with wal", false, true, []string{
			"backup-metadata.json", "database/quakegraph.duckdb", "database/quakegraph.duckdb.wal",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := newFakeDB(t, tt.wal)
			m, err := NewManager(Config{Dir: t.TempDir(), Compress: tt.compress}, db)
			if err != nil {
				t.Fatalf("NewManager() error = %v", err)
			}

			b, err := m.Create(context.Background(), TriggerManual)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if db.checkpoints != 1 {
				t.Errorf("checkpoints = %d, want 1", db.checkpoints)
			}
			if b.EventCount != 42 || b.WAL != tt.wal || b.Trigger != TriggerManual {
				t.Errorf("Create() = %+v", b)
			}
			if b.SizeBytes == 0 || len(b.Checksum) != 64 {
				t.Errorf("size = %d, checksum = %q", b.SizeBytes, b.Checksum)
			}

			got := archiveEntries(t, b.FilePath, tt.compress)
			if len(got) != len(tt.want) {
				t.Fatalf("entries = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("entries[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}

			if err := m.Validate(b.ID); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestCreate_CheckpointFailureStillSnapshots(t *testing.T) {
	t.Parallel()

	db := newFakeDB(t, false)
	db.checkpointErr = errors.New("database is locked")
	m, err := NewManager(Config{Dir: t.TempDir(), Compress: true}, db)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := m.Create(context.Background(), TriggerManual); err != nil {
		t.Errorf("Create() error = %v", err)
	}
}

func TestCreate_MissingDatabaseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir}, &fakeDB{path: filepath.Join(t.TempDir(), "gone.duckdb")})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if _, err := m.Create(context.Background(), TriggerManual); err == nil {
		t.Fatal("Create() error = nil, want error")
	}
	if n := len(m.List()); n != 0 {
		t.Errorf("List() len = %d, want 0", n)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "quakegraph-*"))
	if len(matches) != 0 {
		t.Errorf("partial archives left behind: %v", matches)
	}
}

func TestValidate_DetectsCorruption(t *testing.T) {
	t.Parallel()

	m, err := NewManager(Config{Dir: t.TempDir()}, newFakeDB(t, false))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	b, err := m.Create(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := os.WriteFile(b.FilePath, []byte("tampered"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := m.Validate(b.ID); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Validate() error = %v, want ErrChecksumMismatch", err)
	}
	if err := m.Validate("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Validate(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRetentionAndIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := newFakeDB(t, false)
	m, err := NewManager(Config{Dir: dir, Keep: 2, Compress: true}, db)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	var created []*Backup
	for i := 0; i < 3; i++ {
		b, err := m.Create(context.Background(), TriggerScheduled)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		created = append(created, b)
		clock = clock.Add(time.Hour)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
	if list[0].ID != created[2].ID || list[1].ID != created[1].ID {
		t.Errorf("List() order = [%s %s], want newest first", list[0].ID, list[1].ID)
	}
	if fileExists(created[0].FilePath) {
		t.Error("expired archive was not removed")
	}

	reopened, err := NewManager(Config{Dir: dir, Keep: 2}, db)
	if err != nil {
		t.Fatalf("NewManager() reopen error = %v", err)
	}
	if got := reopened.List(); len(got) != 2 || got[0].ID != created[2].ID {
		t.Errorf("reloaded index = %d entries, want the same 2", len(got))
	}
}

func TestServe_NoInterval(t *testing.T) {
	t.Parallel()

	m, err := NewManager(Config{Dir: t.TempDir()}, newFakeDB(t, false))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want deadline exceeded", err)
	}
	if len(m.List()) != 0 {
		t.Error("Serve without interval should not take snapshots")
	}
}

func TestCreate_DuckDB(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quakegraph.duckdb")
	db, err := database.New(config.DatabaseConfig{Path: path, MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	m, err := NewManager(Config{Dir: t.TempDir(), Compress: true}, db)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	b, err := m.Create(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if b.EventCount != 0 {
		t.Errorf("EventCount = %d, want 0", b.EventCount)
	}
	entries := archiveEntries(t, b.FilePath, true)
	found := false
	for _, e := range entries {
		if e == "database/quakegraph.duckdb" {
			found = true
		}
	}
	if !found {
		t.Errorf("entries = %v, want database/quakegraph.duckdb", entries)
	}
}

// QuakeGraph - Seismic Event Ingestion and Relationship Graph
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakegraph

package backup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
)

const metadataEntry = "backup-metadata.json"

// archiveWriter stacks file -> gzip -> tar.
type archiveWriter struct {
	tw      *tar.Writer
	closers []io.Closer
}

//nolint:gosec // G304: path is built from the configured backup directory
func newArchiveWriter(path string, compress bool) (*archiveWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	aw := &archiveWriter{closers: []io.Closer{f}}

	var dest io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		aw.closers = append(aw.closers, gz)
		dest = gz
	}
	aw.tw = tar.NewWriter(dest)
	aw.closers = append(aw.closers, aw.tw)
	return aw, nil
}

// Close closes the writers in reverse order and returns the first error.
func (aw *archiveWriter) Close() error {
	var first error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

//nolint:gosec // G304: src is the configured database path
func (aw *archiveWriter) addFile(src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o640,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := aw.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(aw.tw, f); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

func (aw *archiveWriter) addJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o640,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := aw.tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = aw.tw.Write(data)
	return err
}

// fileChecksum returns the hex SHA-256 and size of a file.
//
//nolint:gosec // G304: path comes from the backup index
func fileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

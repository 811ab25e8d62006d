// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package dtbfile loads and saves FDT blobs from disk and drives the
// grow-and-retry protocol overlay-merge needs when a blob's headroom
// turns out to be too small for a merge.
package dtbfile

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

// Loaded is an in-memory FDT blob read from disk, tagged with a
// per-load id so --verbose logging can correlate reload attempts
// against the same on-disk path.
type Loaded struct {
	Path string
	ID   uuid.UUID
	Blob *fdtblob.Blob
}

// Read loads path into a buffer with extraHeadroom spare bytes of
// capacity beyond the blob's own totalsize, and validates its header.
func Read(path string, extraHeadroom int) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(data), len(data)+extraHeadroom)
	copy(buf, data)

	blob, err := fdtblob.New(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &Loaded{Path: path, ID: uuid.New(), Blob: blob}, nil
}

// Write writes blob's data to path, truncating any existing file.
func Write(path string, blob *fdtblob.Blob) error {
	return os.WriteFile(path, blob.Data, 0o644)
}

// growBlob reopens blob into a larger buffer with extra additional
// bytes of headroom, the same operation fdt_open_into performs in
// grow_blob.
func growBlob(blob *fdtblob.Blob, extra int) error {
	if extra <= 0 {
		return nil
	}
	buf := make([]byte, len(blob.Data), len(blob.Data)+extra)
	return blob.OpenInto(buf)
}

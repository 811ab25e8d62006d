// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdt

import "github.com/mbrt/fdtoverlay/internal/fdtblob"

// Blob wraps a flattened device tree image held entirely in memory.
// Data's length always equals the blob's own header-reported totalsize;
// any extra capacity is headroom available to in-place growth during
// Apply or Merge.
type Blob = fdtblob.Blob

// New validates data's FDT header and wraps it in a Blob. data is not
// copied: callers that want spare headroom for Apply/Merge must size
// data's capacity (e.g. via a slice with cap(data) > len(data)) before
// calling New.
func New(data []byte) (*Blob, error) {
	return fdtblob.New(data)
}

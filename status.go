// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdt

import "github.com/mbrt/fdtoverlay/internal/fdtblob"

// Status is the error type returned by every operation in this
// package. It is comparable with errors.Is against the Err* constants
// below.
type Status = fdtblob.Status

// Sentinel statuses, mirroring libfdt's FDT_ERR_* space.
const (
	ErrBadMagic     = fdtblob.StatusBadMagic
	ErrBadVersion   = fdtblob.StatusBadVersion
	ErrBadState     = fdtblob.StatusBadState
	ErrBadStructure = fdtblob.StatusBadStructure
	ErrBadValue     = fdtblob.StatusBadValue
	ErrBadOffset    = fdtblob.StatusBadOffset
	ErrBadPath      = fdtblob.StatusBadPath
	ErrBadPhandle   = fdtblob.StatusBadPhandle
	ErrBadOverlay   = fdtblob.StatusBadOverlay
	ErrNoPhandles   = fdtblob.StatusNoPhandles
	ErrNoSpace      = fdtblob.StatusNoSpace
	ErrNotFound     = fdtblob.StatusNotFound
	ErrExists       = fdtblob.StatusExists
	ErrInternal     = fdtblob.StatusInternal
)

// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package fdt manipulates Flattened Device Tree (FDT) binary blobs.
//
// It implements the two overlay-processing operations a device tree
// bootloader or build system needs:
//
//   - Apply takes a base blob and an overlay blob, resolves the overlay's
//     external phandle references against the base, and grafts the
//     overlay's fragments into the base.
//   - Merge takes two overlay blobs and produces a single combined
//     overlay whose semantics equal applying them in order onto any
//     compatible base.
//
// Both operations share the same internal pipeline: phandle renumbering,
// local-reference rewriting, fixup resolution, fragment application and
// symbol-table update. On any error past the header checks, both input
// blobs are left with their magic word overwritten so a damaged blob
// can never be mistaken for a valid one. The one exception is a NOSPACE
// from Merge's fragment-renaming step, which leaves both blobs intact
// so the caller can grow the second overlay and retry.
//
// The low-level blob primitives (header parsing, node/property
// navigation, in-place resize) live in internal/fdtblob; each pipeline
// stage lives in its own internal package. This package only sequences
// them.
package fdt

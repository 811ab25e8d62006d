// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package dtbfile

import (
	"errors"
	"fmt"

	fdt "github.com/mbrt/fdtoverlay"
)

// growIncrement is the number of extra headroom bytes requested per
// retry, matching fdtoverlaymerge's own grow step.
const growIncrement = 512

// MergeAll folds overlayPaths onto basePath in order, producing a
// single combined blob. verbose (nil is accepted and treated as a
// no-op) is called with a log line before each overlay is merged and
// whenever a NOSPACE retry forces a reload.
//
// This implements fdtoverlaymerge's grow/reload/restart protocol: a
// NOSPACE confined to one overlay only reloads and regrows that
// overlay; a NOSPACE anywhere else restarts the whole sequence with a
// larger base.
func MergeAll(basePath string, overlayPaths []string, verbose func(format string, args ...any)) (*fdt.Blob, error) {
	if verbose == nil {
		verbose = func(string, ...any) {}
	}

	extraOverlayLen := make([]int, len(overlayPaths))
	extraBaseLen := 0

	for {
		base, overlays, err := loadAll(basePath, overlayPaths, extraBaseLen, extraOverlayLen)
		if err != nil {
			return nil, err
		}

		restart, err := mergeSequence(base, overlays, extraOverlayLen, &extraBaseLen, verbose)
		if err != nil {
			return nil, err
		}
		if !restart {
			return base.Blob, nil
		}
	}
}

func loadAll(basePath string, overlayPaths []string, extraBaseLen int, extraOverlayLen []int) (*Loaded, []*Loaded, error) {
	base, err := Read(basePath, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("reading base %s: %w", basePath, err)
	}

	overlays := make([]*Loaded, len(overlayPaths))
	total := extraBaseLen
	for i, p := range overlayPaths {
		ov, err := Read(p, extraOverlayLen[i])
		if err != nil {
			return nil, nil, fmt.Errorf("reading overlay %s: %w", p, err)
		}
		overlays[i] = ov
		total += len(ov.Blob.Data)
	}

	// Grow the base to the worst case up front: every overlay's entire
	// content could end up copied into it.
	if err := growBlob(base.Blob, total); err != nil {
		return nil, nil, fmt.Errorf("growing base %s: %w", basePath, err)
	}
	return base, overlays, nil
}

func mergeSequence(base *Loaded, overlays []*Loaded, extraOverlayLen []int, extraBaseLen *int, verbose func(string, ...any)) (restart bool, err error) {
	for i, ov := range overlays {
		for {
			verbose("merging overlay blob %s (load %s)", ov.Path, ov.ID)
			nospace, mergeErr := fdt.Merge(base.Blob, ov.Blob)
			if mergeErr == nil {
				break
			}
			if !errors.Is(mergeErr, fdt.ErrNoSpace) {
				return false, fmt.Errorf("merging %s: %w", ov.Path, mergeErr)
			}

			if nospace {
				extraOverlayLen[i] += growIncrement
				verbose("reloading overlay blob %s (load %s)", ov.Path, ov.ID)
				reloaded, rerr := Read(ov.Path, extraOverlayLen[i])
				if rerr != nil {
					return false, fmt.Errorf("reloading overlay %s: %w", ov.Path, rerr)
				}
				overlays[i] = reloaded
				ov = reloaded
				continue
			}

			*extraBaseLen += growIncrement
			verbose("reloading all blobs")
			return true, nil
		}
	}
	return false, nil
}

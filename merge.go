// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdt

import (
	"errors"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
	"github.com/mbrt/fdtoverlay/internal/fixup"
	"github.com/mbrt/fdtoverlay/internal/fragment"
	"github.com/mbrt/fdtoverlay/internal/phandlerenum"
	"github.com/mbrt/fdtoverlay/internal/rename"
	"github.com/mbrt/fdtoverlay/internal/symbols"
)

// Merge folds second into base, producing a single combined overlay
// whose effect on any compatible target is equal to applying base then
// second in sequence. base is the accumulator: it is mutated in place
// and is the blob callers keep using for further merges or for a final
// Apply.
//
// If second's fragments need more room than its own headroom provides
// to be renumbered, Merge returns (true, ErrNoSpace) without damaging
// either blob: callers are expected to reallocate second with more
// headroom and retry the merge, exactly as fdtoverlaymerge's
// grow-and-retry loop does.
//
// A header check failure returns before either blob is touched. On any
// other error both blobs are damaged. On success second is damaged;
// base remains a valid, larger combined overlay.
func Merge(base, second *Blob) (nospaceInSecond bool, err error) {
	if err := base.CheckHeader(); err != nil {
		return false, err
	}
	if err := second.CheckHeader(); err != nil {
		return false, err
	}

	if err := rename.Rename(base, second); err != nil {
		if errors.Is(err, fdtblob.StatusNoSpace) {
			return true, err
		}
		base.Damage()
		second.Damage()
		return false, err
	}

	if err := mergePipeline(base, second); err != nil {
		base.Damage()
		second.Damage()
		return false, err
	}

	second.Damage()
	return false, nil
}

func mergePipeline(base, second *Blob) error {
	delta, err := base.MaxPhandle()
	if err != nil {
		return err
	}

	if err := phandlerenum.Renumber(second, delta); err != nil {
		return err
	}
	if err := fixup.Resolve(base, second, true); err != nil {
		return err
	}
	if err := fragment.Apply(base, second, true); err != nil {
		return err
	}
	if err := symbols.Update(base, second, true); err != nil {
		return err
	}

	if err := fragment.CopyNodeByName(base, second, "__fixups__"); err != nil {
		return err
	}
	if err := fragment.CopyNodeByName(base, second, "__symbols__"); err != nil && !errors.Is(err, fdtblob.StatusNotFound) {
		return err
	}
	if err := fragment.CopyNodeByName(base, second, "__local_fixups__"); err != nil && !errors.Is(err, fdtblob.StatusNotFound) {
		return err
	}
	return nil
}

// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdt

import (
	"github.com/mbrt/fdtoverlay/internal/fixup"
	"github.com/mbrt/fdtoverlay/internal/fragment"
	"github.com/mbrt/fdtoverlay/internal/phandlerenum"
	"github.com/mbrt/fdtoverlay/internal/symbols"
)

// Apply grafts overlay's fragments into base, resolving overlay's
// external phandle references (recorded in /__fixups__) against base's
// /__symbols__ table first.
//
// On success overlay is left damaged: its fragments, symbols and
// fixups nodes have been consumed and it is no longer a usable
// standalone overlay. On any error after both headers have validated,
// both base and overlay are damaged, since a partially-applied overlay
// cannot be trusted either way; a header check failure returns before
// either blob is touched.
func Apply(base, overlay *Blob) error {
	if err := base.CheckHeader(); err != nil {
		return err
	}
	if err := overlay.CheckHeader(); err != nil {
		return err
	}

	if err := applyPipeline(base, overlay); err != nil {
		base.Damage()
		overlay.Damage()
		return err
	}

	overlay.Damage()
	return nil
}

func applyPipeline(base, overlay *Blob) error {
	maxPhandle, err := base.MaxPhandle()
	if err != nil {
		return err
	}
	delta := maxPhandle + 1

	if err := phandlerenum.Renumber(overlay, delta); err != nil {
		return err
	}
	if err := fixup.Resolve(base, overlay, false); err != nil {
		return err
	}
	if err := fragment.Apply(base, overlay, false); err != nil {
		return err
	}
	return symbols.Update(base, overlay, false)
}

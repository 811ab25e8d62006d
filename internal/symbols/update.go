// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package symbols rewrites an overlay's /__symbols__ entries into
// absolute paths within the combined tree, after the fragments they
// point into have been (or are about to be) applied.
package symbols

import (
	"errors"
	"strings"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
	"github.com/mbrt/fdtoverlay/internal/fragment"
)

const overlayMarker = "__overlay__"

// Update rewrites every /__symbols__ entry in overlay to the absolute
// path it resolves to once its owning fragment lands in base, writing
// the result into base's own /__symbols__ (created if absent).
//
// In merge mode, an entry whose fragment was itself copied forward
// unresolved (StatusBadPhandle from the fragment applier) is left for
// a later Apply to resolve, and a successfully rewritten entry is
// deleted from overlay's /__symbols__ since it has now been folded
// into base's.
func Update(base, overlay *fdtblob.Blob, merge bool) error {
	ovSym, err := overlay.NodeOffsetByPath("/__symbols__")
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rootSym, err := base.NodeOffsetByPath("/__symbols__")
	if errors.Is(err, fdtblob.StatusNotFound) {
		rootSym, err = base.AddSubnode(base.Root(), "__symbols__")
	}
	if err != nil {
		return err
	}

	prop, perr := overlay.FirstProperty(ovSym)
	for perr == nil {
		nextProp, nextErr := overlay.NextProperty(prop)
		if nextErr != nil && !errors.Is(nextErr, fdtblob.StatusNotFound) {
			return nextErr
		}

		name, value, verr := overlay.PropertyNameAndValue(prop)
		if verr != nil {
			return verr
		}

		consumed, uerr := updateOne(base, overlay, rootSym, ovSym, name, value, merge)
		switch {
		case uerr != nil && merge && errors.Is(uerr, fdtblob.StatusBadPhandle):
			// owning fragment copied forward unresolved
		case uerr != nil:
			return uerr
		case merge && consumed:
			if errors.Is(nextErr, fdtblob.StatusNotFound) {
				return nil
			}
			rootSym, err = base.NodeOffsetByPath("/__symbols__")
			if err != nil {
				return err
			}
			continue
		}

		if errors.Is(nextErr, fdtblob.StatusNotFound) {
			return nil
		}
		prop, perr = nextProp, nil
	}
	if errors.Is(perr, fdtblob.StatusNotFound) {
		return nil
	}
	return perr
}

func updateOne(base, overlay *fdtblob.Blob, rootSym, ovSym int, name string, value []byte, merge bool) (bool, error) {
	path := fdtblob.CString(value)
	if path == "" || path[0] != '/' {
		return false, fdtblob.StatusBadValue
	}

	rest := path[1:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		// No fragment/rest split: this symbol doesn't name anything
		// that ends up in the target tree.
		return false, nil
	}
	fragName := rest[:slash]
	afterFrag := rest[slash:] // starts with '/'

	var relPath string
	switch {
	case strings.HasPrefix(afterFrag, "/"+overlayMarker+"/"):
		relPath = afterFrag[len(overlayMarker)+2:]
	case afterFrag == "/"+overlayMarker:
		relPath = ""
	default:
		return false, nil
	}

	fragmentOff, err := overlay.ChildByName(overlay.Root(), fragName)
	if err != nil {
		return false, fdtblob.StatusBadOverlay
	}
	if _, err := overlay.ChildByName(fragmentOff, overlayMarker); err != nil {
		return false, fdtblob.StatusBadOverlay
	}

	target, err := fragment.TargetOffset(base, overlay, fragmentOff)
	if err != nil {
		return false, err
	}

	targetPath, err := base.Path(target)
	if err != nil {
		return false, err
	}

	var combined string
	switch {
	case targetPath == "/":
		combined = "/" + relPath
	case relPath == "":
		combined = targetPath
	default:
		combined = targetPath + "/" + relPath
	}

	if err := base.SetProperty(rootSym, name, append([]byte(combined), 0)); err != nil {
		return false, err
	}

	if !merge {
		return false, nil
	}
	if err := overlay.DeleteProperty(ovSym, name); err != nil {
		return false, err
	}
	return true, nil
}

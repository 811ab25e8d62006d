// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package fragment resolves each overlay fragment's target node in the
// base tree and deep-merges the fragment's __overlay__ payload into
// it. In merge mode, a fragment whose target cannot yet be resolved is
// copied forward verbatim into the combined blob instead.
package fragment

import (
	"encoding/binary"
	"errors"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

// Apply walks every fragment@N child of overlay's root and applies it
// to base.
func Apply(base, overlay *fdtblob.Blob, merge bool) error {
	child, err := overlay.FirstChild(overlay.Root())
	for err == nil {
		if e := applyFragment(base, overlay, child, merge); e != nil {
			return e
		}
		child, err = overlay.NextSibling(child)
	}
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	return err
}

func applyFragment(base, overlay *fdtblob.Blob, fragmentOff int, merge bool) error {
	overlayNode, err := overlay.ChildByName(fragmentOff, "__overlay__")
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	target, err := TargetOffset(base, overlay, fragmentOff)
	if err != nil {
		if merge && errors.Is(err, fdtblob.StatusBadPhandle) {
			_, cerr := copyNode(base, base.Root(), overlay, fragmentOff)
			return cerr
		}
		return err
	}

	return mergeNode(base, target, overlay, overlayNode)
}

// TargetOffset resolves the node in base that fragmentOff's target
// (or target-path) property points to.
func TargetOffset(base, overlay *fdtblob.Blob, fragmentOff int) (int, error) {
	phandle, err := targetPhandle(overlay, fragmentOff)
	if err != nil {
		return 0, err
	}

	if phandle == fdtblob.NoPhandle {
		path, err := overlay.GetProperty(fragmentOff, "target-path")
		if errors.Is(err, fdtblob.StatusNotFound) {
			return 0, fdtblob.StatusBadOverlay
		}
		if err != nil {
			return 0, err
		}
		return base.NodeOffsetByPath(fdtblob.CString(path))
	}

	return base.NodeOffsetByPhandle(phandle)
}

func targetPhandle(overlay *fdtblob.Blob, fragmentOff int) (uint32, error) {
	val, err := overlay.GetProperty(fragmentOff, "target")
	if errors.Is(err, fdtblob.StatusNotFound) {
		return fdtblob.NoPhandle, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 4 {
		return 0, fdtblob.StatusBadPhandle
	}
	v := binary.BigEndian.Uint32(val)
	if v == fdtblob.AllPhandle {
		return 0, fdtblob.StatusBadPhandle
	}
	return v, nil
}

// mergeNode deep-merges overlayNode (in overlay) into targetNode (in
// base): properties overwrite, children are matched by name (created
// if absent) and recursed into.
func mergeNode(base *fdtblob.Blob, targetNode int, overlay *fdtblob.Blob, overlayNode int) error {
	prop, err := overlay.FirstProperty(overlayNode)
	for err == nil {
		name, val, e := overlay.PropertyNameAndValue(prop)
		if e != nil {
			return e
		}
		if e := base.SetProperty(targetNode, name, val); e != nil {
			return e
		}
		prop, err = overlay.NextProperty(prop)
	}
	if !errors.Is(err, fdtblob.StatusNotFound) {
		return err
	}

	child, err := overlay.FirstChild(overlayNode)
	for err == nil {
		name, e := overlay.Name(child)
		if e != nil {
			return e
		}
		targetChild, e := base.ChildByName(targetNode, name)
		if errors.Is(e, fdtblob.StatusNotFound) {
			targetChild, e = base.AddSubnode(targetNode, name)
		}
		if e != nil {
			return e
		}
		if e := mergeNode(base, targetChild, overlay, child); e != nil {
			return e
		}
		child, err = overlay.NextSibling(child)
	}
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	return err
}

// copyNode deep-copies srcNode (in src) as a child of dstParent (in
// dst), merging with any existing same-named child: colliding
// properties are concatenated rather than overwritten, matching a
// verbatim structural copy rather than an overlay merge.
func copyNode(dst *fdtblob.Blob, dstParent int, src *fdtblob.Blob, srcNode int) (int, error) {
	name, err := src.Name(srcNode)
	if err != nil {
		return 0, err
	}

	dstNode, err := dst.ChildByName(dstParent, name)
	if errors.Is(err, fdtblob.StatusNotFound) {
		dstNode, err = dst.AddSubnode(dstParent, name)
	}
	if err != nil {
		return 0, err
	}

	child, err := src.FirstChild(srcNode)
	for err == nil {
		if _, e := copyNode(dst, dstNode, src, child); e != nil {
			return 0, e
		}
		child, err = src.NextSibling(child)
	}
	if !errors.Is(err, fdtblob.StatusNotFound) {
		return 0, err
	}

	prop, err := src.FirstProperty(srcNode)
	for err == nil {
		pname, val, e := src.PropertyNameAndValue(prop)
		if e != nil {
			return 0, e
		}
		newVal := val
		if cur, cerr := dst.GetProperty(dstNode, pname); cerr == nil {
			newVal = append(append([]byte{}, cur...), val...)
		} else if !errors.Is(cerr, fdtblob.StatusNotFound) {
			return 0, cerr
		}
		if e := dst.SetProperty(dstNode, pname, newVal); e != nil {
			return 0, e
		}
		prop, err = src.NextProperty(prop)
	}
	if !errors.Is(err, fdtblob.StatusNotFound) {
		return 0, err
	}

	return dstNode, nil
}

// CopyNodeByName copies src's top-level child named name into dst's
// root, merging with dst's existing same-named child if one exists.
// Used by the merge driver to fold /__fixups__, /__symbols__ and
// /__local_fixups__ from the second overlay into the combined blob.
func CopyNodeByName(dst, src *fdtblob.Blob, name string) error {
	srcNode, err := src.ChildByName(src.Root(), name)
	if err != nil {
		return err
	}
	_, err = copyNode(dst, dst.Root(), src, srcNode)
	return err
}

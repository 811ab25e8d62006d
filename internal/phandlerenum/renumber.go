// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package phandlerenum shifts every phandle in an overlay by a fixed
// delta so it cannot collide with a phandle already used in the base
// tree it will be applied or merged onto, and keeps the overlay's own
// internal references (recorded in /__local_fixups__) in sync with
// the shift.
package phandlerenum

import (
	"encoding/binary"
	"errors"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

// Renumber adds delta to every phandle/linux,phandle property in
// overlay, then rewrites every local phandle reference recorded under
// /__local_fixups__ by the same delta.
func Renumber(overlay *fdtblob.Blob, delta uint32) error {
	if delta == 0 {
		return nil
	}
	if err := adjustNodePhandles(overlay, overlay.Root(), delta); err != nil {
		return err
	}
	return updateLocalReferences(overlay, delta)
}

func adjustNodePhandles(b *fdtblob.Blob, node int, delta uint32) error {
	if err := addOffset(b, node, "phandle", delta); err != nil {
		return err
	}
	if err := addOffset(b, node, "linux,phandle", delta); err != nil {
		return err
	}
	child, err := b.FirstChild(node)
	for err == nil {
		if e := adjustNodePhandles(b, child, delta); e != nil {
			return e
		}
		child, err = b.NextSibling(child)
	}
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	return err
}

func addOffset(b *fdtblob.Blob, node int, name string, delta uint32) error {
	val, err := b.GetProperty(node, name)
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(val) != 4 {
		return fdtblob.StatusBadPhandle
	}
	cur := binary.BigEndian.Uint32(val)
	adj := cur + delta
	if adj < cur || adj == fdtblob.AllPhandle {
		return fdtblob.StatusNoPhandles
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, adj)
	off, err := b.PropertyOffsetByName(node, name)
	if err != nil {
		return err
	}
	return b.SetPropertyInplace(off, buf)
}

// updateLocalReferences walks /__local_fixups__ in lockstep with the
// real tree, rewriting each recorded phandle slot by delta.
func updateLocalReferences(b *fdtblob.Blob, delta uint32) error {
	fixups, err := b.NodeOffsetByPath("/__local_fixups__")
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return updateNodeReferences(b, b.Root(), fixups, delta)
}

func updateNodeReferences(b *fdtblob.Blob, treeNode, fixupNode int, delta uint32) error {
	prop, err := b.FirstProperty(fixupNode)
	for err == nil {
		name, val, e := b.PropertyNameAndValue(prop)
		if e != nil {
			return e
		}
		if len(val)%4 != 0 {
			return fdtblob.StatusBadOverlay
		}
		treePropOff, e := b.PropertyOffsetByName(treeNode, name)
		if errors.Is(e, fdtblob.StatusNotFound) {
			return fdtblob.StatusBadOverlay
		}
		if e != nil {
			return e
		}
		for i := 0; i+4 <= len(val); i += 4 {
			poffset := int(binary.BigEndian.Uint32(val[i : i+4]))
			_, treeVal, e := b.PropertyNameAndValue(treePropOff)
			if e != nil {
				return e
			}
			if poffset < 0 || poffset+4 > len(treeVal) {
				return fdtblob.StatusBadOverlay
			}
			cur := binary.BigEndian.Uint32(treeVal[poffset : poffset+4])
			adj := make([]byte, 4)
			binary.BigEndian.PutUint32(adj, cur+delta)
			if e := b.SetPropertyInplaceAt(treePropOff, poffset, adj); e != nil {
				return e
			}
		}
		prop, err = b.NextProperty(prop)
	}
	if !errors.Is(err, fdtblob.StatusNotFound) {
		return err
	}

	child, err := b.FirstChild(fixupNode)
	for err == nil {
		name, e := b.Name(child)
		if e != nil {
			return e
		}
		treeChild, e := b.ChildByName(treeNode, name)
		if errors.Is(e, fdtblob.StatusNotFound) {
			return fdtblob.StatusBadOverlay
		}
		if e != nil {
			return e
		}
		if e := updateNodeReferences(b, treeChild, child, delta); e != nil {
			return e
		}
		child, err = b.NextSibling(child)
	}
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	return err
}

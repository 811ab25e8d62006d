// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package fdtblob implements the low-level Flattened Device Tree blob
// primitives: header parsing, the structure-block token stream,
// node/property navigation, and in-place byte-slice resize. Every
// higher pipeline stage (phandle renumbering, fixup resolution,
// fragment application, symbol update, fragment renaming) is built
// only on top of the operations in this package.
//
// A Blob's Data slice always has length equal to its own totalsize
// header field; any spare capacity beyond that is headroom available
// for growth without a caller-supplied reallocation. Operations that
// would need more room than the current headroom provides return
// StatusNoSpace instead of growing Data themselves.
package fdtblob

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	// Magic is the FDT blob magic value at byte offset 0.
	Magic = uint32(0xd00dfeed)

	// DamagedMagic overwrites Magic on any operation failure, so a
	// partially-mutated blob is never mistaken for a valid one.
	DamagedMagic = uint32(0xffffffff)

	// Version is the minimum supported header version field.
	Version = uint32(17)

	lastCompVersionMax = uint32(16)

	headerSize = 40

	tagBeginNode = uint32(1)
	tagEndNode   = uint32(2)
	tagProp      = uint32(3)
	tagNop       = uint32(4)
	tagEnd       = uint32(9)

	// NoPhandle is the sentinel meaning "this node has no phandle".
	NoPhandle = uint32(0)

	// AllPhandle is the reserved "all/none" phandle sentinel
	// (0xffffffff); a property holding this value never names a real
	// node.
	AllPhandle = uint32(0xffffffff)
)

// Blob is a mutable in-memory FDT buffer: header, memory-reservation
// block, structure block and strings block back to back, in that
// header order.
type Blob struct {
	Data []byte
}

// New wraps data as a Blob after validating its header.
func New(data []byte) (*Blob, error) {
	b := &Blob{Data: data}
	if err := b.CheckHeader(); err != nil {
		return nil, err
	}
	return b, nil
}

// Root returns the offset of the root node's BEGIN_NODE tag.
func (b *Blob) Root() int {
	return int(b.offStruct())
}

// Damage overwrites the blob's magic word with DamagedMagic. Called on
// any pipeline error so the blob can never again pass CheckHeader.
func (b *Blob) Damage() {
	if len(b.Data) >= 4 {
		binary.BigEndian.PutUint32(b.Data[0:4], DamagedMagic)
	}
}

// CheckHeader validates the header fields and that the structure and
// strings blocks fit within totalsize.
func (b *Blob) CheckHeader() error {
	if len(b.Data) < headerSize {
		return StatusBadStructure
	}
	if b.magic() != Magic {
		return StatusBadMagic
	}
	if int(b.totalSize()) > len(b.Data) {
		return StatusBadStructure
	}
	if b.version() < Version {
		return StatusBadVersion
	}
	if b.lastCompVersion() > lastCompVersionMax {
		return StatusBadVersion
	}
	structEnd := int(b.offStruct() + b.sizeStruct())
	stringsEnd := int(b.offStrings() + b.sizeStrings())
	if structEnd > int(b.totalSize()) || stringsEnd > int(b.totalSize()) {
		return StatusBadStructure
	}
	return nil
}

// MaxPhandle returns the largest phandle/linux,phandle value present
// anywhere in the tree, or 0 if none is set.
func (b *Blob) MaxPhandle() (uint32, error) {
	return b.maxPhandleFrom(b.Root())
}

func (b *Blob) maxPhandleFrom(node int) (uint32, error) {
	max := uint32(0)
	ph, err := b.GetPhandle(node)
	if err == nil {
		if ph != NoPhandle && ph != AllPhandle && ph > max {
			max = ph
		}
	} else if !errors.Is(err, StatusNotFound) {
		return 0, err
	}

	child, err := b.FirstChild(node)
	for err == nil {
		childMax, e := b.maxPhandleFrom(child)
		if e != nil {
			return 0, e
		}
		if childMax > max {
			max = childMax
		}
		child, err = b.NextSibling(child)
	}
	if !errors.Is(err, StatusNotFound) {
		return 0, err
	}
	return max, nil
}

// GetPhandle returns the node's phandle, checking "phandle" and then
// the legacy "linux,phandle" name.
func (b *Blob) GetPhandle(node int) (uint32, error) {
	val, err := b.GetProperty(node, "phandle")
	if errors.Is(err, StatusNotFound) {
		val, err = b.GetProperty(node, "linux,phandle")
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 4 {
		return 0, StatusBadStructure
	}
	return binary.BigEndian.Uint32(val), nil
}

// CString returns the leading NUL-terminated string within b, or all
// of b if it contains no NUL.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func align4(n int) int { return (n + 3) &^ 3 }

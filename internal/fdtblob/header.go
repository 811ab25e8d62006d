// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdtblob

import "encoding/binary"

// Header field byte offsets, per the FDT header layout.
const (
	offMagic           = 0
	offTotalSize       = 4
	offOffDtStruct     = 8
	offOffDtStrings    = 12
	offOffMemRsvmap    = 16
	offVersion         = 20
	offLastCompVersion = 24
	offBootCPUIDPhys   = 28
	offSizeDtStrings   = 32
	offSizeDtStruct    = 36
)

func (b *Blob) u32At(off int) uint32 {
	return binary.BigEndian.Uint32(b.Data[off : off+4])
}

func (b *Blob) setU32At(off int, v uint32) {
	binary.BigEndian.PutUint32(b.Data[off:off+4], v)
}

func (b *Blob) magic() uint32            { return b.u32At(offMagic) }
func (b *Blob) totalSize() uint32        { return b.u32At(offTotalSize) }
func (b *Blob) offStruct() uint32        { return b.u32At(offOffDtStruct) }
func (b *Blob) offStrings() uint32       { return b.u32At(offOffDtStrings) }
func (b *Blob) version() uint32          { return b.u32At(offVersion) }
func (b *Blob) lastCompVersion() uint32  { return b.u32At(offLastCompVersion) }
func (b *Blob) sizeStrings() uint32      { return b.u32At(offSizeDtStrings) }
func (b *Blob) sizeStruct() uint32       { return b.u32At(offSizeDtStruct) }

func (b *Blob) setTotalSize(v uint32)   { b.setU32At(offTotalSize, v) }
func (b *Blob) setOffStrings(v uint32)  { b.setU32At(offOffDtStrings, v) }
func (b *Blob) setSizeStrings(v uint32) { b.setU32At(offSizeDtStrings, v) }
func (b *Blob) setSizeStruct(v uint32)  { b.setU32At(offSizeDtStruct, v) }

// OffMemRsvmap returns the byte offset of the memory-reservation block.
func (b *Blob) OffMemRsvmap() int { return int(b.u32At(offOffMemRsvmap)) }

// BootCPUIDPhys returns the header's boot_cpuid_phys field.
func (b *Blob) BootCPUIDPhys() uint32 { return b.u32At(offBootCPUIDPhys) }

// TotalSize returns the blob's own declared size, which is always
// len(b.Data); any extra slice capacity is headroom, not part of the
// blob proper.
func (b *Blob) TotalSize() int { return int(b.totalSize()) }

func (b *Blob) headroom() int { return cap(b.Data) - len(b.Data) }

// OpenInto copies the blob's contents into buf, which must be at
// least as large as the blob's current length, and adopts buf as the
// new backing storage. Any extra length in buf becomes headroom.
func (b *Blob) OpenInto(buf []byte) error {
	if len(buf) < len(b.Data) {
		return StatusNoSpace
	}
	n := copy(buf, b.Data)
	b.Data = buf[:n]
	return nil
}

// insertStruct opens an n-byte zeroed gap at absolute offset off,
// which must lie within the structure block, shifting the structure
// and strings blocks right and growing totalsize/size_dt_struct by n.
func (b *Blob) insertStruct(off, n int) error {
	if n == 0 {
		return nil
	}
	if b.headroom() < n {
		return StatusNoSpace
	}
	old := len(b.Data)
	b.Data = b.Data[:old+n]
	copy(b.Data[off+n:old+n], b.Data[off:old])
	for i := off; i < off+n; i++ {
		b.Data[i] = 0
	}
	b.setSizeStruct(b.sizeStruct() + uint32(n))
	b.setOffStrings(b.offStrings() + uint32(n))
	b.setTotalSize(b.totalSize() + uint32(n))
	return nil
}

// deleteStruct removes the n bytes at absolute offset off, which must
// lie within the structure block, shifting everything after it left.
func (b *Blob) deleteStruct(off, n int) error {
	if n == 0 {
		return nil
	}
	old := len(b.Data)
	copy(b.Data[off:old-n], b.Data[off+n:old])
	b.Data = b.Data[:old-n]
	b.setSizeStruct(b.sizeStruct() - uint32(n))
	b.setOffStrings(b.offStrings() - uint32(n))
	b.setTotalSize(b.totalSize() - uint32(n))
	return nil
}

// appendStringRaw appends s plus a NUL to the end of the strings
// block (always the tail of Data) and returns its offset relative to
// the strings block's start.
func (b *Blob) appendStringRaw(s string) (uint32, error) {
	raw := append([]byte(s), 0)
	n := len(raw)
	if b.headroom() < n {
		return 0, StatusNoSpace
	}
	relOff := b.sizeStrings()
	old := len(b.Data)
	b.Data = b.Data[:old+n]
	copy(b.Data[old:old+n], raw)
	b.setSizeStrings(b.sizeStrings() + uint32(n))
	b.setTotalSize(b.totalSize() + uint32(n))
	return relOff, nil
}

func (b *Blob) findString(name string) (uint32, bool) {
	base := int(b.offStrings())
	limit := base + int(b.sizeStrings())
	off := base
	for off < limit {
		end := off
		for end < limit && b.Data[end] != 0 {
			end++
		}
		if string(b.Data[off:end]) == name {
			return uint32(off - base), true
		}
		off = end + 1
	}
	return 0, false
}

func (b *Blob) getOrAddString(name string) (uint32, error) {
	if off, ok := b.findString(name); ok {
		return off, nil
	}
	return b.appendStringRaw(name)
}

func (b *Blob) stringAt(relOff uint32) (string, error) {
	base := int(b.offStrings())
	off := base + int(relOff)
	limit := base + int(b.sizeStrings())
	if off < base || off >= limit {
		return "", StatusBadOffset
	}
	end := off
	for end < limit && b.Data[end] != 0 {
		end++
	}
	return string(b.Data[off:end]), nil
}

// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdtblob

import (
	"encoding/binary"
	"errors"
)

// SetPropertyInplace overwrites a property's value without changing
// its length. val must be exactly as long as the current value.
func (b *Blob) SetPropertyInplace(propOffset int, val []byte) error {
	_, cur, valOff, err := b.propNameAndValue(propOffset)
	if err != nil {
		return err
	}
	if len(val) != len(cur) {
		return StatusBadValue
	}
	copy(b.Data[valOff:valOff+len(val)], val)
	return nil
}

// SetPropertyInplaceAt overwrites val at byteOffset within a
// property's existing value, which must have room for it. Used for
// unaligned, partial writes such as rewriting one phandle slot inside
// a larger fixups array.
func (b *Blob) SetPropertyInplaceAt(propOffset, byteOffset int, val []byte) error {
	_, cur, valOff, err := b.propNameAndValue(propOffset)
	if err != nil {
		return err
	}
	if byteOffset < 0 || byteOffset+len(val) > len(cur) {
		return StatusBadOffset
	}
	copy(b.Data[valOff+byteOffset:valOff+byteOffset+len(val)], val)
	return nil
}

// ResizePropertyValue grows or shrinks a property's value to newLen,
// preserving existing bytes up to min(oldLen, newLen) and leaving the
// property at the same offset; new bytes are left zeroed.
func (b *Blob) ResizePropertyValue(propOffset, newLen int) error {
	_, cur, _, err := b.propNameAndValue(propOffset)
	if err != nil {
		return err
	}
	oldPadded := align4(len(cur))
	newPadded := align4(newLen)
	diff := newPadded - oldPadded
	valOff := propOffset + 12
	if diff > 0 {
		if err := b.insertStruct(valOff+oldPadded, diff); err != nil {
			return err
		}
	} else if diff < 0 {
		if err := b.deleteStruct(valOff+newPadded, -diff); err != nil {
			return err
		}
	}
	b.setU32At(propOffset+4, uint32(newLen))
	return nil
}

// SetPropertyValueBytes replaces a property's whole value, resizing in
// place (same offset) as needed.
func (b *Blob) SetPropertyValueBytes(propOffset int, val []byte) error {
	if err := b.ResizePropertyValue(propOffset, len(val)); err != nil {
		return err
	}
	valOff := propOffset + 12
	copy(b.Data[valOff:valOff+len(val)], val)
	for i := valOff + len(val); i < valOff+align4(len(val)); i++ {
		b.Data[i] = 0
	}
	return nil
}

// AppendPropertyU32 appends one big-endian uint32 to the named
// property on nodeOffset, creating it if absent.
func (b *Blob) AppendPropertyU32(nodeOffset int, name string, v uint32) error {
	off, err := b.PropertyOffsetByName(nodeOffset, name)
	if errors.Is(err, StatusNotFound) {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, v)
		return b.SetProperty(nodeOffset, name, buf)
	}
	if err != nil {
		return err
	}
	_, cur, _, err := b.propNameAndValue(off)
	if err != nil {
		return err
	}
	newVal := make([]byte, len(cur)+4)
	copy(newVal, cur)
	binary.BigEndian.PutUint32(newVal[len(cur):], v)
	return b.SetPropertyValueBytes(off, newVal)
}

// DeleteProperty removes the named property from nodeOffset.
func (b *Blob) DeleteProperty(nodeOffset int, name string) error {
	off, err := b.PropertyOffsetByName(nodeOffset, name)
	if err != nil {
		return err
	}
	end, err := b.propEnd(off)
	if err != nil {
		return err
	}
	return b.deleteStruct(off, end-off)
}

// propertyInsertionPoint returns the offset where a new property
// should be inserted: after existing properties (and NOPs), before
// the first child node or the node's END_NODE tag.
func (b *Blob) propertyInsertionPoint(nodeOffset int) (int, error) {
	_, off, err := b.nodeName(nodeOffset)
	if err != nil {
		return 0, err
	}
	for {
		tag, err := b.readTag(off)
		if err != nil {
			return 0, err
		}
		switch tag {
		case tagProp:
			next, e := b.propEnd(off)
			if e != nil {
				return 0, e
			}
			off = next
		case tagNop:
			off += 4
		default:
			return off, nil
		}
	}
}

// childInsertionPoint returns the offset where a new child node
// should be appended: after every existing property and child, right
// before the node's END_NODE tag.
func (b *Blob) childInsertionPoint(nodeOffset int) (int, error) {
	_, off, err := b.nodeName(nodeOffset)
	if err != nil {
		return 0, err
	}
	for {
		tag, err := b.readTag(off)
		if err != nil {
			return 0, err
		}
		switch tag {
		case tagProp:
			next, e := b.propEnd(off)
			if e != nil {
				return 0, e
			}
			off = next
		case tagNop:
			off += 4
		case tagBeginNode:
			end, e := b.endOfNode(off)
			if e != nil {
				return 0, e
			}
			off = end
		default:
			return off, nil
		}
	}
}

func (b *Blob) insertProperty(off int, name string, val []byte) error {
	nameOff, err := b.getOrAddString(name)
	if err != nil {
		return err
	}
	padded := align4(len(val))
	total := 12 + padded
	if err := b.insertStruct(off, total); err != nil {
		return err
	}
	b.setU32At(off, tagProp)
	b.setU32At(off+4, uint32(len(val)))
	b.setU32At(off+8, nameOff)
	copy(b.Data[off+12:off+12+len(val)], val)
	return nil
}

// SetProperty sets a node's property to val, creating it if absent
// and resizing in place if it already exists with a different length.
func (b *Blob) SetProperty(nodeOffset int, name string, val []byte) error {
	off, err := b.PropertyOffsetByName(nodeOffset, name)
	if err == nil {
		_, cur, _, e := b.propNameAndValue(off)
		if e != nil {
			return e
		}
		if len(cur) == len(val) {
			return b.SetPropertyInplace(off, val)
		}
		return b.SetPropertyValueBytes(off, val)
	}
	if !errors.Is(err, StatusNotFound) {
		return err
	}
	insertOff, e := b.propertyInsertionPoint(nodeOffset)
	if e != nil {
		return e
	}
	return b.insertProperty(insertOff, name, val)
}

// AddSubnode adds an empty child node named name to nodeOffset,
// returning StatusExists if one is already present.
func (b *Blob) AddSubnode(nodeOffset int, name string) (int, error) {
	_, err := b.ChildByName(nodeOffset, name)
	if err == nil {
		return 0, StatusExists
	}
	if !errors.Is(err, StatusNotFound) {
		return 0, err
	}

	insertOff, err := b.childInsertionPoint(nodeOffset)
	if err != nil {
		return 0, err
	}
	nameBytes := append([]byte(name), 0)
	nameLen := align4(len(nameBytes))
	total := 4 + nameLen + 4
	if err := b.insertStruct(insertOff, total); err != nil {
		return 0, err
	}
	b.setU32At(insertOff, tagBeginNode)
	copy(b.Data[insertOff+4:insertOff+4+len(nameBytes)], nameBytes)
	b.setU32At(insertOff+4+nameLen, tagEndNode)
	return insertOff, nil
}

// RenameNode changes a node's own name, resizing in place as needed.
func (b *Blob) RenameNode(nodeOffset int, newName string) error {
	_, oldEnd, err := b.nodeName(nodeOffset)
	if err != nil {
		return err
	}
	oldNameLen := align4(oldEnd - (nodeOffset + 4))
	newBytes := append([]byte(newName), 0)
	newNameLen := align4(len(newBytes))
	diff := newNameLen - oldNameLen
	if diff > 0 {
		if err := b.insertStruct(nodeOffset+4+oldNameLen, diff); err != nil {
			return err
		}
	} else if diff < 0 {
		if err := b.deleteStruct(nodeOffset+4+newNameLen, -diff); err != nil {
			return err
		}
	}
	for i := 0; i < newNameLen; i++ {
		b.Data[nodeOffset+4+i] = 0
	}
	copy(b.Data[nodeOffset+4:nodeOffset+4+len(newBytes)], newBytes)
	return nil
}

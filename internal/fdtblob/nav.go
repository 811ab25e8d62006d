// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdtblob

import "errors"

func (b *Blob) readTag(off int) (uint32, error) {
	if off < 0 || off+4 > len(b.Data) {
		return 0, StatusBadOffset
	}
	return b.u32At(off), nil
}

// nodeName reads the node name starting at the BEGIN_NODE tag at
// nodeOffset and returns it along with the 4-byte-aligned offset of
// whatever follows the name.
func (b *Blob) nodeName(nodeOffset int) (string, int, error) {
	tag, err := b.readTag(nodeOffset)
	if err != nil {
		return "", 0, err
	}
	if tag != tagBeginNode {
		return "", 0, StatusBadStructure
	}
	nameOff := nodeOffset + 4
	limit := int(b.offStrings())
	end := nameOff
	for end < limit && b.Data[end] != 0 {
		end++
	}
	if end >= limit {
		return "", 0, StatusBadStructure
	}
	return string(b.Data[nameOff:end]), align4(end + 1), nil
}

// Name returns a node's own name (without path separators).
func (b *Blob) Name(nodeOffset int) (string, error) {
	name, _, err := b.nodeName(nodeOffset)
	return name, err
}

func (b *Blob) propEnd(off int) (int, error) {
	tag, err := b.readTag(off)
	if err != nil {
		return 0, err
	}
	if tag != tagProp {
		return 0, StatusBadStructure
	}
	length, err := b.readTag(off + 4)
	if err != nil {
		return 0, err
	}
	next := off + 12 + align4(int(length))
	if next > len(b.Data) {
		return 0, StatusBadStructure
	}
	return next, nil
}

func (b *Blob) propNameAndValue(off int) (string, []byte, int, error) {
	tag, err := b.readTag(off)
	if err != nil {
		return "", nil, 0, err
	}
	if tag != tagProp {
		return "", nil, 0, StatusBadStructure
	}
	length, err := b.readTag(off + 4)
	if err != nil {
		return "", nil, 0, err
	}
	nameRelOff, err := b.readTag(off + 8)
	if err != nil {
		return "", nil, 0, err
	}
	name, err := b.stringAt(nameRelOff)
	if err != nil {
		return "", nil, 0, err
	}
	valOff := off + 12
	valEnd := valOff + int(length)
	if valEnd > len(b.Data) {
		return "", nil, 0, StatusBadStructure
	}
	return name, b.Data[valOff:valEnd], valOff, nil
}

// PropertyNameAndValue returns a property's name and current value.
func (b *Blob) PropertyNameAndValue(propOffset int) (string, []byte, error) {
	name, val, _, err := b.propNameAndValue(propOffset)
	return name, val, err
}

// endOfNode returns the offset just past the END_NODE tag that closes
// the node starting at nodeOffset.
func (b *Blob) endOfNode(nodeOffset int) (int, error) {
	_, off, err := b.nodeName(nodeOffset)
	if err != nil {
		return 0, err
	}
	depth := 1
	for depth > 0 {
		tag, err := b.readTag(off)
		if err != nil {
			return 0, err
		}
		switch tag {
		case tagBeginNode:
			_, next, err := b.nodeName(off)
			if err != nil {
				return 0, err
			}
			off = next
			depth++
		case tagEndNode:
			off += 4
			depth--
		case tagProp:
			next, err := b.propEnd(off)
			if err != nil {
				return 0, err
			}
			off = next
		case tagNop:
			off += 4
		default:
			return 0, StatusBadStructure
		}
	}
	return off, nil
}

// FirstProperty returns the offset of a node's first property.
func (b *Blob) FirstProperty(nodeOffset int) (int, error) {
	_, off, err := b.nodeName(nodeOffset)
	if err != nil {
		return 0, err
	}
	return b.skipToPropOrStop(off)
}

// NextProperty returns the offset of the property following the one
// at propOffset.
func (b *Blob) NextProperty(propOffset int) (int, error) {
	off, err := b.propEnd(propOffset)
	if err != nil {
		return 0, err
	}
	return b.skipToPropOrStop(off)
}

func (b *Blob) skipToPropOrStop(off int) (int, error) {
	for {
		tag, err := b.readTag(off)
		if err != nil {
			return 0, err
		}
		switch tag {
		case tagProp:
			return off, nil
		case tagNop:
			off += 4
		default:
			return 0, StatusNotFound
		}
	}
}

// FirstChild returns the offset of a node's first child node.
func (b *Blob) FirstChild(nodeOffset int) (int, error) {
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
		case tagBeginNode:
			return off, nil
		case tagProp:
			next, err := b.propEnd(off)
			if err != nil {
				return 0, err
			}
			off = next
		case tagNop:
			off += 4
		default:
			return 0, StatusNotFound
		}
	}
}

// NextSibling returns the offset of the node following nodeOffset
// among its parent's children.
func (b *Blob) NextSibling(nodeOffset int) (int, error) {
	off, err := b.endOfNode(nodeOffset)
	if err != nil {
		return 0, err
	}
	for {
		tag, err := b.readTag(off)
		if err != nil {
			return 0, err
		}
		switch tag {
		case tagBeginNode:
			return off, nil
		case tagNop:
			off += 4
		default:
			return 0, StatusNotFound
		}
	}
}

// ChildByName returns the offset of the direct child of nodeOffset
// named name, or StatusNotFound.
func (b *Blob) ChildByName(nodeOffset int, name string) (int, error) {
	child, err := b.FirstChild(nodeOffset)
	for err == nil {
		cname, e := b.Name(child)
		if e != nil {
			return 0, e
		}
		if cname == name {
			return child, nil
		}
		child, err = b.NextSibling(child)
	}
	return 0, err
}

// PropertyOffsetByName returns the offset of the property named name
// on the node at nodeOffset, or StatusNotFound.
func (b *Blob) PropertyOffsetByName(nodeOffset int, name string) (int, error) {
	off, err := b.FirstProperty(nodeOffset)
	for err == nil {
		pname, _, _, e := b.propNameAndValue(off)
		if e != nil {
			return 0, e
		}
		if pname == name {
			return off, nil
		}
		off, err = b.NextProperty(off)
	}
	return 0, err
}

// GetProperty returns the value of the property named name on the
// node at nodeOffset.
func (b *Blob) GetProperty(nodeOffset int, name string) ([]byte, error) {
	off, err := b.PropertyOffsetByName(nodeOffset, name)
	if err != nil {
		return nil, err
	}
	_, val, _, err := b.propNameAndValue(off)
	return val, err
}

// Path returns the absolute path of the node at nodeOffset.
func (b *Blob) Path(nodeOffset int) (string, error) {
	root := b.Root()
	if nodeOffset == root {
		return "/", nil
	}
	segs, ok, err := b.findPath(root, nodeOffset)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", StatusBadOffset
	}
	path := "/"
	for i, s := range segs {
		if i > 0 {
			path += "/"
		}
		path += s
	}
	return path, nil
}

func (b *Blob) findPath(nodeOffset, target int) ([]string, bool, error) {
	if nodeOffset == target {
		return nil, true, nil
	}
	child, err := b.FirstChild(nodeOffset)
	for err == nil {
		name, e := b.Name(child)
		if e != nil {
			return nil, false, e
		}
		segs, ok, e := b.findPath(child, target)
		if e != nil {
			return nil, false, e
		}
		if ok {
			return append([]string{name}, segs...), true, nil
		}
		child, err = b.NextSibling(child)
	}
	if errors.Is(err, StatusNotFound) {
		return nil, false, nil
	}
	return nil, false, err
}

// NodeOffsetByPath resolves a '/'-separated absolute path to a node
// offset.
func (b *Blob) NodeOffsetByPath(path string) (int, error) {
	off := b.Root()
	start := 0
	if len(path) > 0 && path[0] == '/' {
		start = 1
	}
	for start <= len(path) {
		end := start
		for end < len(path) && path[end] != '/' {
			end++
		}
		if end > start {
			child, err := b.ChildByName(off, path[start:end])
			if err != nil {
				return 0, err
			}
			off = child
		}
		if end >= len(path) {
			break
		}
		start = end + 1
	}
	return off, nil
}

// NodeOffsetByPhandle searches the whole tree for the node whose
// phandle equals phandle.
func (b *Blob) NodeOffsetByPhandle(phandle uint32) (int, error) {
	if phandle == NoPhandle || phandle == AllPhandle {
		return 0, StatusNotFound
	}
	return b.searchPhandle(b.Root(), phandle)
}

func (b *Blob) searchPhandle(nodeOffset int, phandle uint32) (int, error) {
	ph, err := b.GetPhandle(nodeOffset)
	if err == nil && ph == phandle {
		return nodeOffset, nil
	}
	if err != nil && !errors.Is(err, StatusNotFound) {
		return 0, err
	}
	child, err := b.FirstChild(nodeOffset)
	for err == nil {
		found, e := b.searchPhandle(child, phandle)
		if e == nil {
			return found, nil
		}
		if !errors.Is(e, StatusNotFound) {
			return 0, e
		}
		child, err = b.NextSibling(child)
	}
	if errors.Is(err, StatusNotFound) {
		return 0, StatusNotFound
	}
	return 0, err
}

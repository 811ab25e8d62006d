// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdtblob

import "encoding/binary"

// Node is an in-memory FDT tree builder, grounded on the same
// begin-node/property/end-node assembly other FDT encoders use. It
// exists so every package's tests can build exact, minimal blobs
// without shipping binary .dtb fixtures.
type Node struct {
	name     string
	props    []nodeProp
	children []*Node
}

type nodeProp struct {
	name string
	val  []byte
}

// NewNode starts a node named name. The outermost Node passed to
// Build is treated as the tree root; its own name is not encoded.
func NewNode(name string) *Node { return &Node{name: name} }

// Prop attaches a raw property value.
func (n *Node) Prop(name string, val []byte) *Node {
	n.props = append(n.props, nodeProp{name, val})
	return n
}

// PropU32 attaches a single big-endian uint32 property, e.g. phandle.
func (n *Node) PropU32(name string, v uint32) *Node {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return n.Prop(name, buf)
}

// PropStr attaches a NUL-terminated string property.
func (n *Node) PropStr(name, s string) *Node {
	return n.Prop(name, append([]byte(s), 0))
}

// Child attaches a subnode.
func (n *Node) Child(c *Node) *Node {
	n.children = append(n.children, c)
	return n
}

// Build serializes the tree into a complete FDT blob with extraHeadroom
// spare bytes of capacity beyond totalsize, and parses it into a Blob.
func (n *Node) Build(extraHeadroom int) (*Blob, error) {
	return New(n.bytes(extraHeadroom))
}

func (n *Node) bytes(extraHeadroom int) []byte {
	var strings []byte
	stringOff := map[string]uint32{}
	internString := func(s string) uint32 {
		if off, ok := stringOff[s]; ok {
			return off
		}
		off := uint32(len(strings))
		strings = append(strings, s...)
		strings = append(strings, 0)
		stringOff[s] = off
		return off
	}

	var structBlock []byte
	writeU32 := func(v uint32) {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], v)
		structBlock = append(structBlock, buf[:]...)
	}
	pad4 := func() {
		for len(structBlock)%4 != 0 {
			structBlock = append(structBlock, 0)
		}
	}
	var writeNode func(*Node)
	writeNode = func(nd *Node) {
		writeU32(tagBeginNode)
		structBlock = append(structBlock, nd.name...)
		structBlock = append(structBlock, 0)
		pad4()
		for _, p := range nd.props {
			writeU32(tagProp)
			writeU32(uint32(len(p.val)))
			writeU32(internString(p.name))
			structBlock = append(structBlock, p.val...)
			pad4()
		}
		for _, c := range nd.children {
			writeNode(c)
		}
		writeU32(tagEndNode)
	}
	writeNode(n)
	writeU32(tagEnd)

	const rsvmapSize = 8 // one terminating all-zero entry
	structOff := headerSize + rsvmapSize
	stringsOff := structOff + len(structBlock)
	total := stringsOff + len(strings)

	data := make([]byte, total, total+extraHeadroom)
	binary.BigEndian.PutUint32(data[0:4], Magic)
	binary.BigEndian.PutUint32(data[4:8], uint32(total))
	binary.BigEndian.PutUint32(data[8:12], uint32(structOff))
	binary.BigEndian.PutUint32(data[12:16], uint32(stringsOff))
	binary.BigEndian.PutUint32(data[16:20], uint32(headerSize))
	binary.BigEndian.PutUint32(data[20:24], Version)
	binary.BigEndian.PutUint32(data[24:28], lastCompVersionMax)
	binary.BigEndian.PutUint32(data[28:32], 0)
	binary.BigEndian.PutUint32(data[32:36], uint32(len(strings)))
	binary.BigEndian.PutUint32(data[36:40], uint32(len(structBlock)))
	copy(data[structOff:stringsOff], structBlock)
	copy(data[stringsOff:total], strings)
	return data
}

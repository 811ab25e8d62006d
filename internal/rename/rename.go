// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package rename renumbers an overlay's fragment@N nodes above the
// highest fragment index already used in a base (combined) overlay,
// so that merging the two overlays' fragments cannot collide.
package rename

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

const fragmentPrefix = "fragment@"
const fragmentWord = "fragment"

// Rename shifts every fragment@N node (and the matching
// "fragment@N" references recorded in /__fixups__, /__symbols__ and
// /__local_fixups__) in overlay above the highest fragment index found
// in base. It is a no-op if base has no fragment@N/__overlay__
// children.
func Rename(base, overlay *fdtblob.Blob) error {
	maxIdx, found, err := maxFragmentIndex(base)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	delta := maxIdx + 1

	if err := renameNodes(overlay, overlay.Root(), delta); err != nil {
		return err
	}
	if err := renameInNode(overlay, "/__fixups__", delta); err != nil && !errors.Is(err, fdtblob.StatusNotFound) {
		return err
	}
	if err := renameInNode(overlay, "/__symbols__", delta); err != nil && !errors.Is(err, fdtblob.StatusNotFound) {
		return err
	}
	if local, err := overlay.NodeOffsetByPath("/__local_fixups__"); err == nil {
		return renameNodes(overlay, local, delta)
	} else if !errors.Is(err, fdtblob.StatusNotFound) {
		return err
	}
	return nil
}

func maxFragmentIndex(b *fdtblob.Blob) (uint64, bool, error) {
	var max uint64
	found := false
	child, err := b.FirstChild(b.Root())
	for err == nil {
		name, nerr := b.Name(child)
		if nerr != nil {
			return 0, false, nerr
		}
		if idx, ok := fragmentIndex(name); ok {
			if _, operr := b.ChildByName(child, "__overlay__"); operr == nil {
				found = true
				if idx > max {
					max = idx
				}
			} else if !errors.Is(operr, fdtblob.StatusNotFound) {
				return 0, false, operr
			}
		}
		child, err = b.NextSibling(child)
	}
	if !errors.Is(err, fdtblob.StatusNotFound) {
		return 0, false, err
	}
	return max, found, nil
}

func fragmentIndex(name string) (uint64, bool) {
	if !strings.HasPrefix(name, fragmentPrefix) {
		return 0, false
	}
	idx, err := strconv.ParseUint(name[len(fragmentPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// renameNodes renumbers every direct fragment@N child of parent whose
// first subnode is literally named "__overlay__" (which is how both a
// real overlay root and a /__local_fixups__ mirror subtree identify a
// fragment node).
func renameNodes(b *fdtblob.Blob, parent int, delta uint64) error {
	child, err := b.FirstChild(parent)
	for err == nil {
		name, nerr := b.Name(child)
		if nerr != nil {
			return nerr
		}
		if idx, ok := fragmentIndex(name); ok {
			hasOverlay, herr := firstChildNamed(b, child, "__overlay__")
			if herr != nil {
				return herr
			}
			if hasOverlay {
				newIdx := idx + delta
				if newIdx < idx {
					return fdtblob.StatusBadValue
				}
				if err := b.RenameNode(child, fragmentPrefix+strconv.FormatUint(newIdx, 10)); err != nil {
					return err
				}
			}
		}
		child, err = b.NextSibling(child)
	}
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	return err
}

func firstChildNamed(b *fdtblob.Blob, node int, name string) (bool, error) {
	first, err := b.FirstChild(node)
	if errors.Is(err, fdtblob.StatusNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	fname, err := b.Name(first)
	if err != nil {
		return false, err
	}
	return fname == name, nil
}

func renameInNode(b *fdtblob.Blob, path string, delta uint64) error {
	node, err := b.NodeOffsetByPath(path)
	if err != nil {
		return err
	}
	prop, perr := b.FirstProperty(node)
	for perr == nil {
		if err := renameInProperty(b, prop, delta); err != nil {
			return err
		}
		prop, perr = b.NextProperty(prop)
	}
	if errors.Is(perr, fdtblob.StatusNotFound) {
		return nil
	}
	return perr
}

func renameInProperty(b *fdtblob.Blob, propOffset int, delta uint64) error {
	_, val, err := b.PropertyNameAndValue(propOffset)
	if err != nil {
		return err
	}
	out, changed, err := rewriteFragmentRefs(val, delta)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return b.SetPropertyValueBytes(propOffset, out)
}

// rewriteFragmentRefs scans val for "fragment@<digits>" occurrences
// (the 8 bytes immediately before '@' must spell "fragment") and
// rewrites each digit run by adding delta.
func rewriteFragmentRefs(val []byte, delta uint64) ([]byte, bool, error) {
	var out []byte
	changed := false
	i := 0
	for i < len(val) {
		at := bytes.IndexByte(val[i:], '@')
		if at < 0 {
			out = append(out, val[i:]...)
			break
		}
		at += i

		if at < len(fragmentWord) || string(val[at-len(fragmentWord):at]) != fragmentWord {
			out = append(out, val[i:at+1]...)
			i = at + 1
			continue
		}

		digitsStart := at + 1
		j := digitsStart
		for j < len(val) && val[j] >= '0' && val[j] <= '9' {
			j++
		}
		if j == digitsStart {
			out = append(out, val[i:at+1]...)
			i = at + 1
			continue
		}

		idx, err := strconv.ParseUint(string(val[digitsStart:j]), 10, 64)
		if err != nil {
			return nil, false, fdtblob.StatusBadValue
		}
		newIdx := idx + delta
		if newIdx < idx {
			return nil, false, fdtblob.StatusBadValue
		}

		out = append(out, val[i:at+1]...)
		out = append(out, []byte(strconv.FormatUint(newIdx, 10))...)
		changed = true
		i = j
	}
	return out, changed, nil
}

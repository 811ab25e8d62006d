// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Package fixup resolves an overlay's /__fixups__ entries against a
// base tree's /__symbols__ labels, writing the resolved phandle into
// each recorded slot. In merge mode it also mirrors each resolved
// fixup slot into the combined blob's /__local_fixups__ so a later
// Apply can still adjust it.
package fixup

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

type triple struct {
	path   string
	prop   string
	offset int
}

// Resolve processes /__fixups__ in overlay. Each entry is a
// NUL-separated list of "<path>:<property>:<offset>" triples; each
// triple's offset slot in overlay is rewritten to the phandle that
// base's /__symbols__ entry (named for the fixup's property key)
// resolves to.
//
// In merge mode, a fully-processed entry is additionally mirrored into
// base's /__local_fixups__ (skipping the single-component "target*"
// pointer fixups that identify a fragment's own target) and then
// deleted from overlay; an entry that fails to resolve only because
// its label isn't in base's symbol table yet is left untouched rather
// than treated as fatal, since the fragment that needs it may still be
// copied forward unresolved by the fragment applier.
func Resolve(base, overlay *fdtblob.Blob, merge bool) error {
	fixupsOff, err := overlay.NodeOffsetByPath("/__fixups__")
	if errors.Is(err, fdtblob.StatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	symbolsOff, symErr := base.NodeOffsetByPath("/__symbols__")
	if symErr != nil && !errors.Is(symErr, fdtblob.StatusNotFound) {
		return symErr
	}

	prop, perr := overlay.FirstProperty(fixupsOff)
	for perr == nil {
		nextProp, nextErr := overlay.NextProperty(prop)
		if nextErr != nil && !errors.Is(nextErr, fdtblob.StatusNotFound) {
			return nextErr
		}

		label, value, verr := overlay.PropertyNameAndValue(prop)
		if verr != nil {
			return verr
		}

		consumed, rerr := resolveProperty(base, overlay, symbolsOff, symErr, label, value, fixupsOff, merge)
		switch {
		case rerr != nil && merge && errors.Is(rerr, fdtblob.StatusNotFound):
			// Label not yet in base's symbol table: tolerated in
			// merge mode, the owning fragment is copied forward.
		case rerr != nil:
			return rerr
		case merge && consumed:
			if errors.Is(nextErr, fdtblob.StatusNotFound) {
				return nil
			}
			symbolsOff, symErr = base.NodeOffsetByPath("/__symbols__")
			if symErr != nil && !errors.Is(symErr, fdtblob.StatusNotFound) {
				return symErr
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

func resolveProperty(base, overlay *fdtblob.Blob, symbolsOff int, symErr error, label string, value []byte, fixupsOff int, merge bool) (bool, error) {
	triples, err := parseTriples(value)
	if err != nil {
		return false, err
	}

	for _, tr := range triples {
		if err := resolveOne(base, overlay, symbolsOff, symErr, label, tr); err != nil {
			return false, err
		}
	}

	if !merge {
		return false, nil
	}

	for _, tr := range triples {
		if isSkippedTargetFixup(tr) {
			continue
		}
		if err := recordLocalFixup(base, tr); err != nil {
			return false, err
		}
	}

	if err := overlay.DeleteProperty(fixupsOff, label); err != nil {
		return false, err
	}
	return true, nil
}

func resolveOne(base, overlay *fdtblob.Blob, symbolsOff int, symErr error, label string, tr triple) error {
	if symErr != nil {
		return symErr
	}

	symPath, err := base.GetProperty(symbolsOff, label)
	if err != nil {
		return err
	}
	targetOff, err := base.NodeOffsetByPath(fdtblob.CString(symPath))
	if err != nil {
		return err
	}
	phandle, err := base.GetPhandle(targetOff)
	if err != nil {
		return err
	}

	fixupOff, err := overlay.NodeOffsetByPath(tr.path)
	if errors.Is(err, fdtblob.StatusNotFound) {
		return fdtblob.StatusBadOverlay
	}
	if err != nil {
		return err
	}
	propOff, err := overlay.PropertyOffsetByName(fixupOff, tr.prop)
	if err != nil {
		return err
	}

	buf := make([]byte, 4)
	buf[0] = byte(phandle >> 24)
	buf[1] = byte(phandle >> 16)
	buf[2] = byte(phandle >> 8)
	buf[3] = byte(phandle)
	return overlay.SetPropertyInplaceAt(propOff, tr.offset, buf)
}

// isSkippedTargetFixup reports whether tr identifies a fragment's own
// "target"-prefixed pointer property: single path component, property
// name starting with "target". Those are recomputed by the fragment
// applier and never belong in /__local_fixups__.
func isSkippedTargetFixup(tr triple) bool {
	p := strings.TrimPrefix(tr.path, "/")
	return !strings.Contains(p, "/") && strings.HasPrefix(tr.prop, "target")
}

func recordLocalFixup(base *fdtblob.Blob, tr triple) error {
	root, err := base.NodeOffsetByPath("/__local_fixups__")
	if errors.Is(err, fdtblob.StatusNotFound) {
		root, err = base.AddSubnode(base.Root(), "__local_fixups__")
	}
	if err != nil {
		return err
	}

	node := root
	for _, seg := range splitPath(tr.path) {
		child, e := base.ChildByName(node, seg)
		if errors.Is(e, fdtblob.StatusNotFound) {
			child, e = base.AddSubnode(node, seg)
		}
		if e != nil {
			return e
		}
		node = child
	}

	return base.AppendPropertyU32(node, tr.prop, uint32(tr.offset))
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func parseTriples(value []byte) ([]triple, error) {
	var triples []triple
	start := 0
	for start < len(value) {
		end := bytes.IndexByte(value[start:], 0)
		if end < 0 {
			return nil, fdtblob.StatusBadOverlay
		}
		end += start
		tr, err := parseTriple(string(value[start:end]))
		if err != nil {
			return nil, err
		}
		triples = append(triples, tr)
		start = end + 1
	}
	return triples, nil
}

func parseTriple(s string) (triple, error) {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return triple{}, fdtblob.StatusBadOverlay
	}
	rest := s[i+1:]
	j := strings.IndexByte(rest, ':')
	if j <= 0 {
		return triple{}, fdtblob.StatusBadOverlay
	}

	offStr := rest[j+1:]
	if offStr == "" {
		return triple{}, fdtblob.StatusBadOverlay
	}
	for _, c := range offStr {
		if c < '0' || c > '9' {
			return triple{}, fdtblob.StatusBadOverlay
		}
	}
	off, err := strconv.Atoi(offStr)
	if err != nil {
		return triple{}, fdtblob.StatusBadOverlay
	}

	return triple{path: s[:i], prop: rest[:j], offset: off}, nil
}

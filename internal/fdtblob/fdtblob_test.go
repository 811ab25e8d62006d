// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdtblob

import (
	"errors"
	"testing"
)

func TestCheckHeaderRejectsDamaged(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").Build(0)
	if err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}
	b.Damage()
	if err := b.CheckHeader(); !errors.Is(err, StatusBadMagic) {
		t.Fatalf("damaged header: got %v, want StatusBadMagic", err)
	}
}

func TestNavigation(t *testing.T) {
	t.Parallel()
	tree := NewNode("").
		PropU32("phandle", 1).
		Child(NewNode("a").PropStr("foo", "bar")).
		Child(NewNode("b").PropU32("phandle", 2))
	b, err := tree.Build(0)
	if err != nil {
		t.Fatal(err)
	}

	a, err := b.ChildByName(b.Root(), "a")
	if err != nil {
		t.Fatalf("ChildByName(a): %v", err)
	}
	val, err := b.GetProperty(a, "foo")
	if err != nil || string(val) != "bar\x00" {
		t.Fatalf("GetProperty(a, foo) = %q, %v", val, err)
	}

	bb, err := b.ChildByName(b.Root(), "b")
	if err != nil {
		t.Fatalf("ChildByName(b): %v", err)
	}
	ph, err := b.GetPhandle(bb)
	if err != nil || ph != 2 {
		t.Fatalf("GetPhandle(b) = %d, %v", ph, err)
	}

	if _, err := b.ChildByName(b.Root(), "missing"); !errors.Is(err, StatusNotFound) {
		t.Fatalf("ChildByName(missing) = %v, want StatusNotFound", err)
	}

	path, err := b.Path(a)
	if err != nil || path != "/a" {
		t.Fatalf("Path(a) = %q, %v", path, err)
	}

	off, err := b.NodeOffsetByPath("/b")
	if err != nil || off != bb {
		t.Fatalf("NodeOffsetByPath(/b) = %d, %v, want %d", off, err, bb)
	}

	found, err := b.NodeOffsetByPhandle(2)
	if err != nil || found != bb {
		t.Fatalf("NodeOffsetByPhandle(2) = %d, %v, want %d", found, err, bb)
	}
}

func TestSetPropertyGrowsAndShrinks(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").PropStr("name", "short").Build(64)
	if err != nil {
		t.Fatal(err)
	}

	if err := b.SetProperty(b.Root(), "name", []byte("a much longer replacement value\x00")); err != nil {
		t.Fatalf("grow SetProperty: %v", err)
	}
	val, err := b.GetProperty(b.Root(), "name")
	if err != nil || string(val) != "a much longer replacement value\x00" {
		t.Fatalf("after grow, GetProperty = %q, %v", val, err)
	}
	if err := b.CheckHeader(); err != nil {
		t.Fatalf("header invalid after grow: %v", err)
	}

	if err := b.SetProperty(b.Root(), "name", []byte("x\x00")); err != nil {
		t.Fatalf("shrink SetProperty: %v", err)
	}
	val, err = b.GetProperty(b.Root(), "name")
	if err != nil || string(val) != "x\x00" {
		t.Fatalf("after shrink, GetProperty = %q, %v", val, err)
	}

	if err := b.SetProperty(b.Root(), "new-prop", []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("create SetProperty: %v", err)
	}
	val, err = b.GetProperty(b.Root(), "new-prop")
	if err != nil || len(val) != 4 {
		t.Fatalf("after create, GetProperty = %v, %v", val, err)
	}
}

func TestSetPropertyNoSpace(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").PropStr("name", "short").Build(0)
	if err != nil {
		t.Fatal(err)
	}
	err = b.SetProperty(b.Root(), "name", []byte("a much longer value that needs room\x00"))
	if !errors.Is(err, StatusNoSpace) {
		t.Fatalf("SetProperty without headroom = %v, want StatusNoSpace", err)
	}
}

func TestDeletePropertyShiftsSubsequentOffsets(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").
		PropStr("first", "one").
		PropStr("second", "two").
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	firstOff, err := b.PropertyOffsetByName(b.Root(), "first")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.DeleteProperty(b.Root(), "first"); err != nil {
		t.Fatalf("DeleteProperty: %v", err)
	}
	name, _, err := b.PropertyNameAndValue(firstOff)
	if err != nil || name != "second" {
		t.Fatalf("after delete, property at old offset = %q, %v, want second", name, err)
	}
	if err := b.CheckHeader(); err != nil {
		t.Fatalf("header invalid after delete: %v", err)
	}
}

func TestAddSubnodeRejectsDuplicate(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").Child(NewNode("a")).Build(64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddSubnode(b.Root(), "a"); !errors.Is(err, StatusExists) {
		t.Fatalf("AddSubnode(a) = %v, want StatusExists", err)
	}
	c, err := b.AddSubnode(b.Root(), "c")
	if err != nil {
		t.Fatalf("AddSubnode(c): %v", err)
	}
	if name, err := b.Name(c); err != nil || name != "c" {
		t.Fatalf("Name(c) = %q, %v", name, err)
	}
}

func TestRenameNodeResizes(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").
		Child(NewNode("fragment@0").PropU32("x", 1)).
		Child(NewNode("fragment@1").PropU32("y", 2)).
		Build(64)
	if err != nil {
		t.Fatal(err)
	}
	f0, err := b.ChildByName(b.Root(), "fragment@0")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.RenameNode(f0, "fragment@100"); err != nil {
		t.Fatalf("RenameNode: %v", err)
	}
	if name, err := b.Name(f0); err != nil || name != "fragment@100" {
		t.Fatalf("Name after rename = %q, %v", name, err)
	}
	f1, err := b.ChildByName(b.Root(), "fragment@1")
	if err != nil {
		t.Fatalf("sibling lookup after rename: %v", err)
	}
	val, err := b.GetProperty(f1, "y")
	if err != nil || len(val) != 4 || val[3] != 2 {
		t.Fatalf("sibling property after rename = %v, %v", val, err)
	}
}

func TestMaxPhandle(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").
		Child(NewNode("a").PropU32("phandle", 5)).
		Child(NewNode("b").PropU32("phandle", 9).
			Child(NewNode("c").PropU32("linux,phandle", 3))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}
	max, err := b.MaxPhandle()
	if err != nil || max != 9 {
		t.Fatalf("MaxPhandle = %d, %v, want 9", max, err)
	}
}

func TestAppendPropertyU32(t *testing.T) {
	t.Parallel()
	b, err := NewNode("").Build(64)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AppendPropertyU32(b.Root(), "list", 1); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := b.AppendPropertyU32(b.Root(), "list", 2); err != nil {
		t.Fatalf("append second: %v", err)
	}
	val, err := b.GetProperty(b.Root(), "list")
	if err != nil || len(val) != 8 {
		t.Fatalf("GetProperty(list) = %v, %v, want 8 bytes", val, err)
	}
	if val[3] != 1 || val[7] != 2 {
		t.Fatalf("GetProperty(list) = %v, want [.. 1 .. 2]", val)
	}
}

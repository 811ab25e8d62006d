// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package phandlerenum

import (
	"testing"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

func TestRenumberShiftsPhandlesAndLocalFixups(t *testing.T) {
	t.Parallel()

	// consumer's "ref" property holds placeholder phandle 1 at byte
	// offset 0; /__local_fixups__ records that slot so it tracks the
	// node-phandle renumber too.
	overlay, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			Child(fdtblob.NewNode("__overlay__").
				Child(fdtblob.NewNode("led").PropU32("phandle", 1)).
				Child(fdtblob.NewNode("consumer").PropU32("ref", 1)))).
		Child(fdtblob.NewNode("__local_fixups__").
			Child(fdtblob.NewNode("fragment@0").
				Child(fdtblob.NewNode("__overlay__").
					Child(fdtblob.NewNode("consumer").PropU32("ref", 0))))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := Renumber(overlay, 100); err != nil {
		t.Fatalf("Renumber: %v", err)
	}

	led, err := overlay.NodeOffsetByPath("/fragment@0/__overlay__/led")
	if err != nil {
		t.Fatalf("NodeOffsetByPath(led): %v", err)
	}
	ph, err := overlay.GetPhandle(led)
	if err != nil || ph != 101 {
		t.Fatalf("phandle after renumber = %d, %v, want 101", ph, err)
	}

	consumer, err := overlay.NodeOffsetByPath("/fragment@0/__overlay__/consumer")
	if err != nil {
		t.Fatalf("NodeOffsetByPath(consumer): %v", err)
	}
	ref, err := overlay.GetProperty(consumer, "ref")
	if err != nil || len(ref) != 4 {
		t.Fatalf("GetProperty(ref) = %v, %v", ref, err)
	}
	got := uint32(ref[0])<<24 | uint32(ref[1])<<16 | uint32(ref[2])<<8 | uint32(ref[3])
	if got != 101 {
		t.Fatalf("ref after renumber = %d, want 101", got)
	}
}

func TestRenumberNoOpWithoutDelta(t *testing.T) {
	t.Parallel()
	overlay, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("a").PropU32("phandle", 7)).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := Renumber(overlay, 0); err != nil {
		t.Fatalf("Renumber(0): %v", err)
	}
	a, err := overlay.ChildByName(overlay.Root(), "a")
	if err != nil {
		t.Fatal(err)
	}
	ph, err := overlay.GetPhandle(a)
	if err != nil || ph != 7 {
		t.Fatalf("phandle = %d, %v, want unchanged 7", ph, err)
	}
}

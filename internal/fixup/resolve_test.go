// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fixup

import (
	"errors"
	"testing"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func TestResolveApplyMode(t *testing.T) {
	t.Parallel()

	base, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("led").PropU32("phandle", 7)).
		Child(fdtblob.NewNode("__symbols__").PropStr("led0", "/led")).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	overlay, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			Child(fdtblob.NewNode("__overlay__").
				Child(fdtblob.NewNode("consumer").PropU32("ref", 0xffffffff)))).
		Child(fdtblob.NewNode("__fixups__").
			Prop("led0", []byte("/fragment@0/__overlay__/consumer:ref:0\x00"))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := Resolve(base, overlay, false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	consumer, err := overlay.NodeOffsetByPath("/fragment@0/__overlay__/consumer")
	if err != nil {
		t.Fatal(err)
	}
	ref, err := overlay.GetProperty(consumer, "ref")
	if err != nil || len(ref) != 4 {
		t.Fatalf("GetProperty(ref) = %v, %v", ref, err)
	}
	if got := uint32(ref[0])<<24 | uint32(ref[1])<<16 | uint32(ref[2])<<8 | uint32(ref[3]); got != 7 {
		t.Fatalf("ref = %d, want 7", got)
	}

	// /__fixups__ is left untouched in apply mode.
	if _, err := overlay.NodeOffsetByPath("/__fixups__"); err != nil {
		t.Fatalf("__fixups__ should survive apply mode: %v", err)
	}
}

func TestResolveMergeModeRecordsLocalFixupsAndDeletesEntry(t *testing.T) {
	t.Parallel()

	base, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("led").PropU32("phandle", 7)).
		Child(fdtblob.NewNode("__symbols__").PropStr("led0", "/led")).
		Build(128)
	if err != nil {
		t.Fatal(err)
	}

	overlay, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			Child(fdtblob.NewNode("__overlay__").
				Child(fdtblob.NewNode("consumer").PropU32("ref", 0xffffffff)))).
		Child(fdtblob.NewNode("__fixups__").
			Prop("led0", []byte("/fragment@0/__overlay__/consumer:ref:0\x00"))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := Resolve(base, overlay, true); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	fixupsOff, err := overlay.NodeOffsetByPath("/__fixups__")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := overlay.GetProperty(fixupsOff, "led0"); !errors.Is(err, fdtblob.StatusNotFound) {
		t.Fatalf("consumed fixup property should be deleted, got err=%v", err)
	}

	local, err := base.NodeOffsetByPath("/__local_fixups__/fragment@0/__overlay__/consumer")
	if err != nil {
		t.Fatalf("expected mirrored local fixup: %v", err)
	}
	val, err := base.GetProperty(local, "ref")
	if err != nil || len(val) != 4 {
		t.Fatalf("local fixup ref = %v, %v", val, err)
	}
}

func TestResolveMergeModeToleratesUnknownLabel(t *testing.T) {
	t.Parallel()

	base, err := fdtblob.NewNode("").Build(0)
	if err != nil {
		t.Fatal(err)
	}

	overlay, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			Child(fdtblob.NewNode("__overlay__").
				Child(fdtblob.NewNode("consumer").PropU32("ref", 0xffffffff)))).
		Child(fdtblob.NewNode("__fixups__").
			Prop("missing", []byte("/fragment@0/__overlay__/consumer:ref:0\x00"))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := Resolve(base, overlay, true); err != nil {
		t.Fatalf("Resolve with unresolved label should be tolerated in merge mode: %v", err)
	}

	// Left unconsumed: the property should still exist.
	fixupsOff, err := overlay.NodeOffsetByPath("/__fixups__")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := overlay.GetProperty(fixupsOff, "missing"); err != nil {
		t.Fatalf("unresolved fixup entry should remain: %v", err)
	}
}

func TestResolveApplyModePropagatesUnknownLabel(t *testing.T) {
	t.Parallel()

	base, err := fdtblob.NewNode("").Build(0)
	if err != nil {
		t.Fatal(err)
	}
	overlay, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			Child(fdtblob.NewNode("__overlay__").
				Child(fdtblob.NewNode("consumer").PropU32("ref", 0xffffffff)))).
		Child(fdtblob.NewNode("__fixups__").
			Prop("missing", []byte("/fragment@0/__overlay__/consumer:ref:0\x00"))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := Resolve(base, overlay, false); !errors.Is(err, fdtblob.StatusNotFound) {
		t.Fatalf("Resolve non-merge with unknown label = %v, want StatusNotFound", err)
	}
}

// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

package fdt

import (
	"errors"
	"testing"

	"github.com/mbrt/fdtoverlay/internal/fdtblob"
)

func TestMergeCombinesTwoOverlays(t *testing.T) {
	t.Parallel()

	base, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			PropStr("target-path", "/").
			Child(fdtblob.NewNode("__overlay__").
				Child(fdtblob.NewNode("node_a")))).
		Child(fdtblob.NewNode("__fixups__")).
		Build(256)
	if err != nil {
		t.Fatal(err)
	}

	// second's target is an unresolved placeholder phandle, so Merge
	// carries its (renamed) fragment forward into base.
	second, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			PropU32("target", 0xffffffff).
			Child(fdtblob.NewNode("__overlay__").
				Child(fdtblob.NewNode("node_b")))).
		Child(fdtblob.NewNode("__fixups__")).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	nospace, err := Merge(base, second)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if nospace {
		t.Fatal("unexpected nospace signal")
	}

	if _, err := base.NodeOffsetByPath("/fragment@0"); err != nil {
		t.Fatalf("base fragment@0 should survive: %v", err)
	}
	if _, err := base.NodeOffsetByPath("/fragment@1"); err != nil {
		t.Fatalf("second's fragment@0 should have been renamed to fragment@1: %v", err)
	}

	if err := second.CheckHeader(); !errors.Is(err, fdtblob.StatusBadMagic) {
		t.Fatalf("second should be damaged after a successful Merge, CheckHeader = %v", err)
	}
	if err := base.CheckHeader(); err != nil {
		t.Fatalf("base should remain valid after a successful Merge: %v", err)
	}
}

func TestMergeReportsNoSpaceWithoutDamagingEither(t *testing.T) {
	t.Parallel()

	base, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@999").
			PropStr("target-path", "/").
			Child(fdtblob.NewNode("__overlay__"))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	second, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			PropStr("target-path", "/").
			Child(fdtblob.NewNode("__overlay__"))).
		Build(0) // zero headroom: renaming fragment@0 to fragment@1000 crosses a 4-byte alignment boundary
	if err != nil {
		t.Fatal(err)
	}

	nospace, err := Merge(base, second)
	if !errors.Is(err, fdtblob.StatusNoSpace) {
		t.Fatalf("Merge err = %v, want StatusNoSpace", err)
	}
	if !nospace {
		t.Fatal("expected nospace=true")
	}

	if err := base.CheckHeader(); err != nil {
		t.Fatalf("base should remain undamaged on a nospace rename failure: %v", err)
	}
	if err := second.CheckHeader(); err != nil {
		t.Fatalf("second should remain undamaged on a nospace rename failure: %v", err)
	}
}

func TestMergeDamagesBothOnOtherErrors(t *testing.T) {
	t.Parallel()

	base, err := fdtblob.NewNode("").Build(0)
	if err != nil {
		t.Fatal(err)
	}

	second, err := fdtblob.NewNode("").
		Child(fdtblob.NewNode("fragment@0").
			PropStr("target-path", "/no/such/node").
			Child(fdtblob.NewNode("__overlay__"))).
		Build(0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Merge(base, second); err == nil {
		t.Fatal("expected Merge to fail against an unresolvable target-path")
	}

	if err := base.CheckHeader(); !errors.Is(err, fdtblob.StatusBadMagic) {
		t.Fatalf("base should be damaged on a non-nospace Merge error: %v", err)
	}
	if err := second.CheckHeader(); !errors.Is(err, fdtblob.StatusBadMagic) {
		t.Fatalf("second should be damaged on a non-nospace Merge error: %v", err)
	}
}

// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Command apply-tool applies a single overlay to a base blob and
// reports how long the operation took.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	fdt "github.com/mbrt/fdtoverlay"
	"github.com/mbrt/fdtoverlay/internal/dtbfile"
)

func main() {
	log.SetFlags(log.Lmicroseconds)

	cmd := &cobra.Command{
		Use:   "apply-tool <base> <overlay> <out>",
		Short: "Apply one overlay onto a base device tree blob",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(args[0], args[1], args[2])
		},
		SilenceUsage: true,
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runApply(basePath, overlayPath, outPath string) error {
	base, err := dtbfile.Read(basePath, 0)
	if err != nil {
		return fmt.Errorf("reading %s: %w", basePath, err)
	}
	// Applying an overlay can only grow base: struct/strings entries are
	// added, never removed. Size the headroom against the overlay's own
	// footprint, which bounds how much content it can graft in.
	overlay, err := dtbfile.Read(overlayPath, 0)
	if err != nil {
		return fmt.Errorf("reading %s: %w", overlayPath, err)
	}
	if err := base.Blob.OpenInto(make([]byte, len(base.Blob.Data), len(base.Blob.Data)+len(overlay.Blob.Data))); err != nil {
		return fmt.Errorf("growing %s: %w", basePath, err)
	}

	start := time.Now()
	if err := fdt.Apply(base.Blob, overlay.Blob); err != nil {
		return fmt.Errorf("applying %s onto %s: %w", overlayPath, basePath, err)
	}
	elapsed := time.Since(start)

	if err := dtbfile.Write(outPath, base.Blob); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Printf("applied in %s\n", elapsed)
	return nil
}

// Copyright (c) 2025 FDT Overlay Authors
// SPDX-License-Identifier: MIT

// Command overlay-merge folds a sequence of device tree overlays into
// a single combined overlay blob.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mbrt/fdtoverlay/internal/dtbfile"
)

func main() {
	log.SetFlags(log.Lmicroseconds)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "overlay-merge <overlay.dtbo>...",
		Short: "Merge one or more device tree overlays into a combined blob",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(v, args)
		},
	}

	flags := cmd.Flags()
	bindFlags(flags)

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("OVERLAY_MERGE")
	v.AutomaticEnv()

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cfg := v.GetString("config"); cfg != "" {
			v.SetConfigFile(cfg)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config %s: %w", cfg, err)
			}
		}
		if v.GetString("input") == "" {
			return fmt.Errorf("--input is required")
		}
		if v.GetString("output") == "" {
			return fmt.Errorf("--output is required")
		}
		return nil
	}

	return cmd
}

// bindFlags declares the flag set on its own pflag.FlagSet, kept
// separate from cobra's command construction so it can be unit tested
// (and reused by a future config-driven entry point) independent of
// the command tree.
func bindFlags(flags *pflag.FlagSet) {
	flags.StringP("input", "i", "", "base overlay or device tree to merge into (required)")
	flags.StringP("output", "o", "", "path to write the combined blob to (required)")
	flags.BoolP("verbose", "v", false, "log each overlay as it is folded in")
	flags.String("config", "", "optional config file with input/output/verbose defaults")
}

func runMerge(v *viper.Viper, overlayPaths []string) error {
	verbose := v.GetBool("verbose")
	logf := func(string, ...any) {}
	if verbose {
		logf = func(format string, args ...any) { log.Printf(format, args...) }
	}

	combined, err := dtbfile.MergeAll(v.GetString("input"), overlayPaths, logf)
	if err != nil {
		return fmt.Errorf("merging overlays: %w", err)
	}

	if err := dtbfile.Write(v.GetString("output"), combined); err != nil {
		return fmt.Errorf("writing %s: %w", v.GetString("output"), err)
	}

	logf("wrote combined overlay to %s", v.GetString("output"))
	return nil
}

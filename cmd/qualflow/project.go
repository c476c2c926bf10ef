package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"qualflow/internal/checker"
	"qualflow/internal/checkers/nullness"
	"qualflow/internal/config"
	"qualflow/internal/driver"
)

// project is the checker registry and manifest governing one input.
type project struct {
	manifest *config.Manifest
	registry *checker.Registry
}

// loadProject registers the bundled checkers and those declared by the
// qualflow.toml found above input, if any.
func loadProject(input string) (*project, error) {
	reg := checker.NewRegistry()
	if err := nullness.Register(reg); err != nil {
		return nil, err
	}
	m, _, err := config.Discover(input)
	if err != nil {
		return nil, err
	}
	if m != nil {
		if err := m.Register(reg); err != nil {
			return nil, err
		}
	}
	return &project{manifest: m, registry: reg}, nil
}

// addAnalysisFlags registers the flags shared by commands that run the
// analysis.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("checker", nullness.Name, "checker to run")
	cmd.Flags().Int("jobs", 0, "max parallel method analyses (0=auto)")
	cmd.Flags().Int("max-block-visits", 0, "per-block visit bound before the analysis gives up (0=derived)")
	cmd.Flags().StringSlice("lint", nil, "enable optional checks (\"all\" for every one)")
}

// driverOptions merges flags over the manifest: an explicitly set flag wins,
// then a key written in qualflow.toml, then the flag default.
func (p *project) driverOptions(cmd *cobra.Command) (driver.Options, error) {
	opts := driver.Options{Registry: p.registry}
	m := p.manifest
	var err error

	if opts.Checker, err = cmd.Flags().GetString("checker"); err != nil {
		return opts, fmt.Errorf("failed to get checker flag: %w", err)
	}
	if !cmd.Flags().Changed("checker") && m.Defined("check.checker") {
		opts.Checker = m.Check.Checker
	}
	if opts.Jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return opts, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if !cmd.Flags().Changed("jobs") && m.Defined("check.jobs") {
		opts.Jobs = m.Check.Jobs
	}
	if opts.MaxBlockVisits, err = cmd.Flags().GetInt("max-block-visits"); err != nil {
		return opts, fmt.Errorf("failed to get max-block-visits flag: %w", err)
	}
	if !cmd.Flags().Changed("max-block-visits") && m.Defined("check.max_block_visits") {
		opts.MaxBlockVisits = m.Check.MaxBlockVisits
	}
	if opts.Lints, err = cmd.Flags().GetStringSlice("lint"); err != nil {
		return opts, fmt.Errorf("failed to get lint flag: %w", err)
	}
	if !cmd.Flags().Changed("lint") && m.Defined("check.lint") {
		opts.Lints = slices.Clone(m.Check.Lint)
	}
	if opts.Jobs < 0 || opts.MaxBlockVisits < 0 {
		return opts, fmt.Errorf("--jobs and --max-block-visits must not be negative")
	}

	if opts.MaxDiagnostics, err = cmd.Root().PersistentFlags().GetInt("max-diagnostics"); err != nil {
		return opts, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if opts.EnableTimings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return opts, fmt.Errorf("failed to get timings flag: %w", err)
	}

	if m != nil {
		opts.Classpath = m.ClasspathFiles()
		if slices.Contains(m.HierarchyNames(), opts.Checker) {
			// custom checkers are defined by the manifest text
			content, err := os.ReadFile(m.Path)
			if err != nil {
				return opts, fmt.Errorf("failed to read manifest: %w", err)
			}
			opts.CacheSalt = content
		}
	}
	return opts, nil
}

// cacheEnabled reports whether the disk cache is on: the --disk-cache flag
// when given, else [cache] enabled when written in the manifest.
func (p *project) cacheEnabled(cmd *cobra.Command) (bool, error) {
	enabled, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return false, fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	if !cmd.Flags().Changed("disk-cache") && p.manifest.Defined("cache.enabled") {
		enabled = p.manifest.Cache.Enabled
	}
	return enabled, nil
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"qualflow/internal/diag"
	"qualflow/internal/diagfmt"
	"qualflow/internal/driver"
	"qualflow/internal/resultdb"
	"qualflow/internal/source"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [flags] <program.yaml>",
		Short: "Check a program against a qualifier checker",
		Long:  `Run a checker over every method of a YAML program and report qualifier errors`,
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	addAnalysisFlags(cmd)
	cmd.Flags().String("format", "pretty", "output format (pretty|json|short)")
	cmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	cmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	cmd.Flags().Bool("disk-cache", false, "reuse diagnostics of unchanged inputs from the user cache directory")
	cmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	cmd.Flags().String("export-db", "", "write per-node analysis results to a SQLite database")
	cmd.Flags().Bool("no-warnings", false, "ignore warnings in diagnostics")
	cmd.Flags().Bool("warnings-as-errors", false, "treat warnings as errors")
	cmd.Flags().String("fail-on", "error", "lowest severity that makes the exit status 1 (error|warning|info)")
	return cmd
}

// runCheck executes "check": it runs the driver, prints diagnostics in the
// chosen format and exits with status 1 when any of them reaches --fail-on.
func runCheck(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()
	input := args[0]

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	switch format {
	case "pretty", "json", "short":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	exportPath, err := cmd.Flags().GetString("export-db")
	if err != nil {
		return fmt.Errorf("failed to get export-db flag: %w", err)
	}

	noWarnings, err := cmd.Flags().GetBool("no-warnings")
	if err != nil {
		return fmt.Errorf("failed to get no-warnings flag: %w", err)
	}
	warningsAsErrors, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}
	if noWarnings && warningsAsErrors {
		return fmt.Errorf("no-warnings and warnings-as-errors flags cannot be used together")
	}
	failOnFlag, err := cmd.Flags().GetString("fail-on")
	if err != nil {
		return fmt.Errorf("failed to get fail-on flag: %w", err)
	}
	failOn, ok := diag.ParseSeverity(failOnFlag)
	if !ok {
		return fmt.Errorf("invalid --fail-on value %q (expected error|warning|info)", failOnFlag)
	}

	proj, err := loadProject(input)
	if err != nil {
		return err
	}
	opts, err := proj.driverOptions(cmd)
	if err != nil {
		return err
	}
	opts.IgnoreWarnings = noWarnings
	opts.WarningsAsErrors = warningsAsErrors
	useCache, err := proj.cacheEnabled(cmd)
	if err != nil {
		return err
	}
	if useCache {
		if opts.Cache, err = driver.OpenDiskCache("qualflow"); err != nil {
			return fmt.Errorf("failed to open disk cache: %w", err)
		}
	}
	opts.KeepResults = exportPath != ""

	fs := source.NewFileSet()
	var res *driver.Result
	if shouldUseTUI(mode) && !quiet && format == "pretty" {
		res, err = runCheckWithUI(cmd.Context(), "checking "+input, fs, input, opts)
	} else {
		res, err = driver.Check(cmd.Context(), fs, input, opts)
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	out := cmd.OutOrStdout()
	switch format {
	case "pretty":
		diagfmt.Pretty(out, res.Bag, res.FileSet, diagfmt.PrettyOpts{
			Color:     useColor(cmd),
			Context:   2,
			PathMode:  pathMode,
			ShowNotes: withNotes,
		})
		if !quiet {
			printSummary(cmd.ErrOrStderr(), res)
		}
	case "short":
		if err := diagfmt.Short(out, res.Bag, res.FileSet, pathMode); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	case "json":
		jsonOpts := diagfmt.JSONOpts{IncludePositions: true, PathMode: pathMode, IncludeNotes: withNotes}
		if err := diagfmt.JSON(out, res.Bag, res.FileSet, jsonOpts); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	}

	if exportPath != "" {
		counts, err := resultdb.Write(exportPath, res)
		if err != nil {
			return fmt.Errorf("failed to export results: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d methods, %d nodes, %d stores, %d diagnostics to %s\n",
				counts.Methods, counts.Nodes, counts.Stores, counts.Diagnostics, exportPath)
		}
	}

	if hasFindings(res.Bag, failOn) {
		return &exitError{code: 1}
	}
	return nil
}

// hasFindings reports diagnostics of at least sev other than the timings
// report.
func hasFindings(bag *diag.Bag, sev diag.Severity) bool {
	for _, d := range bag.Items() {
		if d.Severity >= sev && d.Code != diag.ObsTimings {
			return true
		}
	}
	return false
}

// printSummary writes "N errors, M warnings" with the cache state.
func printSummary(w io.Writer, res *driver.Result) {
	var errs, warns int
	for _, d := range res.Bag.Items() {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}
	}
	parts := []string{plural(errs, "error"), plural(warns, "warning")}
	if res.CacheHit {
		parts = append(parts, "cached")
	}
	if res.Bag.Len() >= res.Bag.Cap() && res.Bag.Cap() > 0 {
		parts = append(parts, "output truncated by --max-diagnostics")
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

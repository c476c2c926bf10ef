package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"qualflow/internal/version"
)

// exitError carries a process exit code through cobra without printing a
// message; diagnostics have been written already.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// cli is one invocation: the command tree and the teardown of what its
// persistent pre-run started.
type cli struct {
	root     *cobra.Command
	cleanups []func()
}

// execute runs the command and then the cleanups, which cobra skips when a
// command fails.
func (c *cli) execute() error {
	defer func() {
		for i := len(c.cleanups) - 1; i >= 0; i-- {
			c.cleanups[i]()
		}
		c.cleanups = nil
	}()
	return c.root.Execute()
}

// newCLI builds the command tree. Each call returns fresh flag state.
func newCLI() *cli {
	c := &cli{}
	root := &cobra.Command{
		Use:           "qualflow",
		Short:         "Pluggable type qualifier checker",
		Long:          `qualflow checks annotated programs against qualifier hierarchies using flow-sensitive type refinement`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupColor(cmd); err != nil {
				return err
			}
			stopProfiles, err := setupProfiling(cmd)
			if err != nil {
				return err
			}
			c.cleanups = append(c.cleanups, stopProfiles)
			stopTrace, err := setupTracing(cmd)
			if err != nil {
				return err
			}
			c.cleanups = append(c.cleanups, stopTrace)
			return nil
		},
	}
	c.root = root

	root.AddCommand(newCheckCmd())
	root.AddCommand(newCFGCmd())
	root.AddCommand(newTypesCmd())
	root.AddCommand(newHierarchyCmd())
	root.AddCommand(newVersionCmd())

	root.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	root.PersistentFlags().Bool("timings", false, "show timing information")
	root.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show (0 - unlimited)")
	addTraceFlags(root)
	addProfileFlags(root)
	return c
}

// main runs the root command. Command errors exit with status 1 after
// printing; an exitError exits with its code silently.
func main() {
	if err := newCLI().execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "qualflow: %v\n", err)
		os.Exit(1)
	}
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func useColor(cmd *cobra.Command) bool {
	return !color.NoColor && cmd.OutOrStdout() == os.Stdout
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"qualflow/internal/checker"
)

func newHierarchyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hierarchy [checker]",
		Short: "Print the qualifier hierarchies of a checker, or list checkers",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHierarchy,
	}
	cmd.Flags().String("dir", ".", "directory whose qualflow.toml declares custom checkers")
	return cmd
}

func runHierarchy(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return fmt.Errorf("failed to get dir flag: %w", err)
	}
	proj, err := loadProject(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	title := lipgloss.NewStyle().Bold(true)
	faint := lipgloss.NewStyle().Faint(true)
	if !useColor(cmd) {
		title, faint = lipgloss.NewStyle(), lipgloss.NewStyle()
	}

	if len(args) == 0 {
		for _, name := range proj.registry.Names() {
			fmt.Fprintf(out, "%s  %s\n", title.Render(name), faint.Render(proj.registry.Description(name)))
		}
		return nil
	}
	c, err := proj.registry.New(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, title.Render("checker "+c.Name()))
	if l, ok := c.(checker.Linter); ok && len(l.Lints()) > 0 {
		fmt.Fprintln(out, faint.Render("lints: "+strings.Join(l.Lints(), ", ")))
	}
	return c.Hierarchy().Format(out)
}

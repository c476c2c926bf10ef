package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"qualflow/internal/atype"
	"qualflow/internal/cfg"
	"qualflow/internal/diagfmt"
	"qualflow/internal/driver"
	"qualflow/internal/source"
)

func newCFGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cfg [flags] <program.yaml>",
		Short: "Print the control flow graph of each method",
		Args:  cobra.ExactArgs(1),
		RunE:  runCFG,
	}
	addAnalysisFlags(cmd)
	cmd.Flags().String("method", "", "only print the method with this qualified name (Class.method)")
	return cmd
}

func newTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types [flags] <program.yaml>",
		Short: "Print declared annotated types and refined values",
		Long:  `Print the annotated type of every declaration after defaulting and, with --flow, the refined value of each reached node`,
		Args:  cobra.ExactArgs(1),
		RunE:  runTypes,
	}
	addAnalysisFlags(cmd)
	cmd.Flags().String("method", "", "only print flow values of the method with this qualified name (Class.method)")
	cmd.Flags().Bool("flow", false, "print refined values per node")
	return cmd
}

// inspect runs the analysis keeping results and reports diagnostics to
// stderr in short form.
func inspect(cmd *cobra.Command, input string) (*driver.Result, error) {
	proj, err := loadProject(input)
	if err != nil {
		return nil, err
	}
	opts, err := proj.driverOptions(cmd)
	if err != nil {
		return nil, err
	}
	opts.KeepResults = true
	res, err := driver.Check(cmd.Context(), source.NewFileSet(), input, opts)
	if err != nil {
		return nil, fmt.Errorf("check failed: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if !quiet || res.HasErrors() {
		if err := diagfmt.Short(cmd.ErrOrStderr(), res.Bag, res.FileSet, diagfmt.PathModeAuto); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// selected returns the methods matching the --method flag, all when unset.
func selected(cmd *cobra.Command, res *driver.Result) ([]*driver.MethodResult, error) {
	name, err := cmd.Flags().GetString("method")
	if err != nil {
		return nil, fmt.Errorf("failed to get method flag: %w", err)
	}
	if name == "" {
		return res.Methods, nil
	}
	mr, ok := res.Method(name)
	if !ok {
		return nil, fmt.Errorf("no method body %s", name)
	}
	return []*driver.MethodResult{mr}, nil
}

func runCFG(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()
	res, err := inspect(cmd, args[0])
	if err != nil {
		return err
	}
	methods, err := selected(cmd, res)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printed := 0
	for _, mr := range methods {
		if mr.Graph == nil {
			continue
		}
		if printed > 0 {
			fmt.Fprintln(out)
		}
		printed++
		if err := cfg.Print(out, mr.Graph, res.Interner); err != nil {
			return err
		}
	}
	if res.HasErrors() {
		return &exitError{code: 1}
	}
	return nil
}

func runTypes(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()
	withFlow, err := cmd.Flags().GetBool("flow")
	if err != nil {
		return fmt.Errorf("failed to get flow flag: %w", err)
	}
	res, err := inspect(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Types != nil {
		res.Types.Declarations(func(element string, _ source.Span, at *atype.AnnotatedType) {
			fmt.Fprintf(out, "%s: %s\n", element, at)
		})
	}
	if withFlow {
		methods, err := selected(cmd, res)
		if err != nil {
			return err
		}
		for _, mr := range methods {
			printFlow(out, res, mr)
		}
	}
	if res.HasErrors() {
		return &exitError{code: 1}
	}
	return nil
}

// printFlow writes the value of every reached node of mr, block by block:
//
//	Node.guarded:
//	  bb1 n4 3:12 this.next: {@NonNull, @Initialized}
func printFlow(w io.Writer, res *driver.Result, mr *driver.MethodResult) {
	name := mr.Method.QualifiedName()
	if mr.Flow == nil {
		fmt.Fprintf(w, "\n%s: not analyzed\n", name)
		return
	}
	fmt.Fprintf(w, "\n%s:\n", name)
	h := res.Checker.Hierarchy()
	g := mr.Graph
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		for _, id := range bb.Nodes {
			v, ok := mr.Flow.Value(id)
			if !ok || v.IsEmpty() {
				continue
			}
			start, _ := res.FileSet.Resolve(g.Nodes.Get(id).Span)
			fmt.Fprintf(w, "  bb%d n%d %d:%d %s: %s\n", bb.ID, id, start.Line, start.Col, g.Nodes.String(id, res.Interner), v.Format(h))
		}
	}
}

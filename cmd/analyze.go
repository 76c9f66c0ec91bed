package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
)

func newAnalyzeCmd() *cobra.Command {
	var taskFile string
	var preset string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze task dependencies",
		Long:  "Build the dependency graph for a task file and report edges, levels, the critical path, and any cycles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTaskFile(taskFile); err != nil {
				return err
			}

			mgr, err := loadEngine(taskFile, preset)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			ctx, cancel := commandContext()
			defer cancel()

			prog := progress()
			prog.Start(fmt.Sprintf("analyzing %d tasks", mgr.TaskCount()))
			analysis, err := mgr.Analyze(ctx)
			if err != nil {
				prog.Fail("analysis failed")
				return err
			}
			prog.Done(fmt.Sprintf("analyzed %d tasks", len(analysis.Nodes)))

			return renderer().Render(analysis, func(w io.Writer) error {
				return renderAnalysis(w, analysis)
			})
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "", "Task descriptor file (YAML or JSON)")
	cmd.Flags().StringVar(&preset, "preset", "", "Configuration preset: high_performance, comprehensive, resource_optimized, quality_focused")
	return cmd
}

func renderAnalysis(w io.Writer, analysis *dag.Analysis) error {
	fmt.Fprintf(w, "Tasks:\t%d\n", len(analysis.Nodes))
	fmt.Fprintf(w, "Edges:\t%d\n", len(analysis.Edges))
	for _, kind := range []dag.EdgeKind{dag.EdgeExplicit, dag.EdgeImplicit, dag.EdgeResource, dag.EdgeTemporal} {
		if n := analysis.EdgeCounts[kind]; n > 0 {
			fmt.Fprintf(w, "  %s:\t%d\n", kind, n)
		}
	}
	fmt.Fprintf(w, "Levels:\t%d\n", analysis.MaxLevel+1)
	fmt.Fprintf(w, "Critical path:\t%s (%s)\n", strings.Join(analysis.CriticalPath, " -> "), analysis.CriticalPathDuration)
	fmt.Fprintf(w, "Critical tasks:\t%s\n", strings.Join(analysis.CriticalTasks, ", "))
	fmt.Fprintf(w, "Independent:\t%s\n", strings.Join(analysis.IndependentTasks, ", "))

	if len(analysis.CircularChains) > 0 {
		fmt.Fprintln(w, "Circular chains:")
		for _, chain := range analysis.CircularChains {
			fmt.Fprintf(w, "  %s\n", strings.Join(chain, " -> "))
		}
	}
	for _, issue := range analysis.Errors {
		fmt.Fprintf(w, "Error:\t[%s] %s\n", issue.Kind, issue.Message)
	}
	for _, warning := range analysis.Warnings {
		fmt.Fprintf(w, "Warning:\t%s\n", warning)
	}
	return nil
}

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge-cli/internal/config"
	"github.com/taskforge/taskforge-cli/internal/engine/dag"
)

func newPlanCmd() *cobra.Command {
	var taskFile string
	var preset string
	var strategy string
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Produce an execution plan",
		Long:  "Sequence tasks into ordered parallel groups under the selected strategy, reporting the critical path and conflicts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTaskFile(taskFile); err != nil {
				return err
			}

			mgr, err := loadEngine(taskFile, preset, func(c *config.Config) {
				if strategy != "" {
					c.Strategy = dag.Strategy(strategy)
				}
				if maxConcurrent > 0 {
					c.MaxConcurrentTasks = maxConcurrent
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			ctx, cancel := commandContext()
			defer cancel()

			prog := progress()
			prog.Start(fmt.Sprintf("planning %d tasks", mgr.TaskCount()))
			plan, conflicts, err := mgr.Plan(ctx)
			if err != nil {
				prog.Fail("planning failed")
				return err
			}
			prog.Done(fmt.Sprintf("planned %d groups", len(plan.Groups)))

			summary := dag.AnalyzePlan(plan, plan.MaxConcurrency)
			result := struct {
				Plan      *dag.Plan         `json:"plan" yaml:"plan"`
				Summary   *dag.PlanAnalysis `json:"summary" yaml:"summary"`
				Conflicts []dag.Conflict    `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
			}{plan, summary, conflicts}

			return renderer().Render(result, func(w io.Writer) error {
				return renderPlan(w, plan, summary, conflicts)
			})
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "", "Task descriptor file (YAML or JSON)")
	cmd.Flags().StringVar(&preset, "preset", "", "Configuration preset")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Planning strategy: fifo, priority, critical_path, resource_optimal, dependency_aware")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum tasks per parallel group")
	return cmd
}

func renderPlan(w io.Writer, plan *dag.Plan, summary *dag.PlanAnalysis, conflicts []dag.Conflict) error {
	fmt.Fprintf(w, "Strategy:\t%s\n", plan.Strategy)
	fmt.Fprintf(w, "Groups:\t%d\n", len(plan.Groups))
	fmt.Fprintf(w, "Max concurrency:\t%d\n", plan.MaxConcurrency)
	fmt.Fprintf(w, "Estimated duration:\t%s\n", plan.EstimatedDuration)
	fmt.Fprintf(w, "Critical path:\t%s\n", strings.Join(plan.CriticalPath, " -> "))
	if summary != nil {
		fmt.Fprintf(w, "Parallelization:\t%.2f avg tasks/group (efficiency %.0f%%)\n",
			summary.ParallelizationFactor, summary.Efficiency*100)
	}

	for i, g := range plan.Groups {
		fmt.Fprintf(w, "Group %d:\t%s\t(%s)\n", i+1, strings.Join(g.Tasks, ", "), g.EstimatedDuration)
	}

	if len(conflicts) > 0 {
		fmt.Fprintln(w, "Conflicts:")
		for _, c := range conflicts {
			fmt.Fprintf(w, "  [%s/%s]\t%s\n", c.Kind, c.Severity, c.Message)
		}
	}
	return nil
}

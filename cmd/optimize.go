package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge-cli/internal/config"
	"github.com/taskforge/taskforge-cli/internal/engine/dag"
)

func newOptimizeCmd() *cobra.Command {
	var taskFile string
	var preset string
	var strategy string
	var batching string
	var maxBatchSize int

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Emit optimization recommendations for a plan",
		Long:  "Run one optimizer pass against the planned task file and report ordered recommendations with impact estimates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTaskFile(taskFile); err != nil {
				return err
			}

			mgr, err := loadEngine(taskFile, preset, func(c *config.Config) {
				if strategy != "" {
					c.OptimizationStrategy = dag.OptimizationStrategy(strategy)
				}
				if batching != "" {
					c.BatchingStrategy = dag.BatchingStrategy(batching)
				}
				if maxBatchSize > 0 {
					c.MaxBatchSize = maxBatchSize
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			ctx, cancel := commandContext()
			defer cancel()

			prog := progress()
			prog.Start(fmt.Sprintf("optimizing %d tasks", mgr.TaskCount()))
			result, err := mgr.Optimize(ctx)
			if err != nil {
				prog.Fail("optimization failed")
				return err
			}
			prog.Done(fmt.Sprintf("%d recommendations", len(result.Recommendations)))

			return renderer().Render(result, func(w io.Writer) error {
				return renderOptimization(w, result)
			})
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "", "Task descriptor file (YAML or JSON)")
	cmd.Flags().StringVar(&preset, "preset", "", "Configuration preset")
	cmd.Flags().StringVar(&strategy, "optimization-strategy", "", "Objective: throughput_maximization, latency_minimization, resource_efficiency, deadline_optimization")
	cmd.Flags().StringVar(&batching, "batching-strategy", "", "Batching: similar_tasks, resource_optimization, temporal")
	cmd.Flags().IntVar(&maxBatchSize, "max-batch-size", 0, "Maximum tasks per recommended batch")
	return cmd
}

func renderOptimization(w io.Writer, result *dag.OptimizationResult) error {
	fmt.Fprintf(w, "Strategy:\t%s\n", result.Strategy)
	fmt.Fprintf(w, "Recommendations:\t%d\n", len(result.Recommendations))
	for _, rec := range result.Recommendations {
		fmt.Fprintf(w, "  %s\n", rec)
	}
	if result.RewrittenPlan != nil {
		fmt.Fprintf(w, "Rewritten plan:\t%d groups, %s\n",
			len(result.RewrittenPlan.Groups), result.RewrittenPlan.EstimatedDuration)
	}
	for _, id := range result.ResourceWarnings {
		fmt.Fprintf(w, "Resource warning:\t%s exceeds budget\n", id)
	}
	return nil
}

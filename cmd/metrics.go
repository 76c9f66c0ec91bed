package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
	"github.com/taskforge/taskforge-cli/internal/types"
)

func newMetricsCmd() *cobra.Command {
	var taskFile string
	var eventsFile string
	var preset string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Report execution metrics and system health",
		Long:  "Replay recorded execution events from a file and report the rolling aggregates, bottlenecks, and health classification.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadEngine(taskFile, preset)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			if eventsFile != "" {
				events, err := loadEvents(eventsFile)
				if err != nil {
					return err
				}
				for _, ev := range events {
					if err := mgr.RecordExecution(ev); err != nil {
						return err
					}
				}
			}

			result := struct {
				Metrics     *dag.ExecutionMetrics `json:"metrics" yaml:"metrics"`
				Bottlenecks []dag.Bottleneck      `json:"bottlenecks,omitempty" yaml:"bottlenecks,omitempty"`
				Health      dag.SystemHealth      `json:"health" yaml:"health"`
			}{mgr.Metrics(), mgr.Bottlenecks(), mgr.Health()}

			return renderer().Render(result, func(w io.Writer) error {
				return renderMetrics(w, result.Metrics, result.Bottlenecks, result.Health)
			})
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "", "Task descriptor file (YAML or JSON)")
	cmd.Flags().StringVar(&eventsFile, "events", "", "Execution event file to replay (YAML or JSON)")
	cmd.Flags().StringVar(&preset, "preset", "", "Configuration preset")
	return cmd
}

// loadEvents reads recorded task events from a YAML or JSON file using
// the same descriptor conventions as task files.
func loadEvents(path string) ([]dag.TaskEvent, error) {
	var events []dag.TaskEvent
	if err := types.LoadInto(path, &events); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return events, nil
}

func renderMetrics(w io.Writer, metrics *dag.ExecutionMetrics, bottlenecks []dag.Bottleneck, health dag.SystemHealth) error {
	fmt.Fprintf(w, "Total tasks:\t%d\n", metrics.TotalTasks)
	fmt.Fprintf(w, "Running:\t%d\n", metrics.RunningTasks)
	fmt.Fprintf(w, "Completed:\t%d\n", metrics.CompletedTasks)
	fmt.Fprintf(w, "Failed:\t%d\n", metrics.FailedTasks)
	fmt.Fprintf(w, "Retries:\t%d\n", metrics.TotalRetries)
	fmt.Fprintf(w, "Success rate:\t%.0f%%\n", metrics.SuccessRate*100)
	fmt.Fprintf(w, "Avg execution:\t%s\n", metrics.AverageExecutionTime)
	fmt.Fprintf(w, "Health:\toverall=%s memory=%s performance=%s reliability=%s\n",
		health.Overall, health.Memory, health.Performance, health.Reliability)

	for _, b := range bottlenecks {
		fmt.Fprintf(w, "Bottleneck:\t[%s/%s]\t%s\n", b.Kind, b.Severity, b.Message)
	}
	return nil
}

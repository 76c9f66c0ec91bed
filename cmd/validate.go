package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
)

func newValidateCmd() *cobra.Command {
	var taskFile string
	var preset string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a task file",
		Long:  "Check a task file for missing dependency targets and circular chains. The full error list is always reported.",
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

			result, err := mgr.Validate(ctx)
			if err != nil {
				return err
			}

			if err := renderer().Render(result, func(w io.Writer) error {
				return renderValidation(w, result)
			}); err != nil {
				return err
			}
			if !result.IsValid {
				return fmt.Errorf("validation failed with %d errors", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "", "Task descriptor file (YAML or JSON)")
	cmd.Flags().StringVar(&preset, "preset", "", "Configuration preset")
	return cmd
}

func renderValidation(w io.Writer, result *dag.ValidationResult) error {
	if result.IsValid {
		fmt.Fprintln(w, "Valid:\ttrue")
	} else {
		fmt.Fprintln(w, "Valid:\tfalse")
	}
	for _, issue := range result.Errors {
		fmt.Fprintf(w, "Error:\t[%s]\t%s\n", issue.Kind, issue.Message)
	}
	if len(result.MissingDependencies) > 0 {
		fmt.Fprintf(w, "Missing:\t%s\n", strings.Join(result.MissingDependencies, ", "))
	}
	for _, chain := range result.CircularDependencies {
		fmt.Fprintf(w, "Cycle:\t%s\n", strings.Join(chain, " -> "))
	}
	return nil
}

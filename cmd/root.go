package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/config"
	"github.com/taskforge/taskforge-cli/internal/logging"
)

var (
	verbose    bool
	quiet      bool
	configPath string
	logFormat  string

	// Keep references for global flags.
	outputFmt  string
	timeoutDur time.Duration

	// Build information
	appVersion string
	appCommit  string
	appDate    string

	logger *zap.Logger
	cfg    *config.Config

	rootCmd = &cobra.Command{
		Use:          "taskforge",
		Short:        "Dependency-aware task planning and scheduling",
		Long:         "taskforge analyzes task dependencies, scores priorities, and produces optimized execution plans.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(&logging.Config{
				Format:  logFormat,
				Quiet:   quiet,
				Verbose: verbose,
			})
			if err != nil {
				return err
			}

			cfg, err = config.Load(cmd, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger.Debug("root command initialization completed",
				zap.Bool("verbose", verbose),
				zap.Bool("quiet", quiet),
				zap.String("log_format", logFormat),
				zap.String("config_path", configPath))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logger != nil {
				logger.Debug("command execution completed", zap.String("command", cmd.Name()))
				_ = logger.Sync()
			}
			return nil
		},
	}
)

// Execute runs the taskforge root command.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if logger != nil {
			logger.Error("command execution failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.AddCommand(newMetricsCmd())

	// Logging and observability options
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging with detailed output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format: text, json")

	// Configuration discovery
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $HOME/.taskforge/config.yaml)")

	// Global formatting and runtime options
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", string(config.OutputTable), "Output format: table, text, json, yaml")
	rootCmd.PersistentFlags().DurationVar(&timeoutDur, "timeout", config.DefaultTimeout, "Context timeout (e.g., 30s, 1m)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("taskforge version: %s\n", appVersion)
			fmt.Printf("Build time: %s\n", appDate)
			fmt.Printf("Git commit: %s\n", appCommit)
			return nil
		},
	}
	rootCmd.AddCommand(versionCmd)
}

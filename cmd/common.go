package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/config"
	"github.com/taskforge/taskforge-cli/internal/engine"
	"github.com/taskforge/taskforge-cli/internal/output"
	"github.com/taskforge/taskforge-cli/internal/types"
	"github.com/taskforge/taskforge-cli/internal/ui"
)

// loadEngine builds a manager from the merged configuration (optionally
// replaced by a preset, then adjusted by per-command flag overrides) and
// registers the tasks read from path.
func loadEngine(path, preset string, overrides ...func(*config.Config)) (*engine.Manager, error) {
	base := *cfg
	if preset != "" {
		p, err := config.Preset(preset)
		if err != nil {
			return nil, err
		}
		base = *p
	}
	for _, override := range overrides {
		override(&base)
	}

	mgr, err := engine.NewManager(&base, logger)
	if err != nil {
		return nil, err
	}

	if path != "" {
		tasks, loadErrs, err := types.LoadTasks(path)
		if err != nil {
			return nil, err
		}
		for _, le := range loadErrs {
			logger.Warn("skipped task descriptor", zap.String("reason", le.Error()))
		}
		if err := mgr.AddTasks(tasks...); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// commandContext returns the context for one invocation. Interrupt and
// terminate signals cancel it, and the global --timeout flag bounds it.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeoutDur > 0 {
		ctx, cancel := context.WithTimeout(ctx, timeoutDur)
		return ctx, func() {
			cancel()
			stop()
		}
	}
	return ctx, stop
}

// progress returns the spinner for long engine passes. It stays silent in
// quiet mode and when stderr is not a terminal.
func progress() *ui.Progress {
	return ui.NewProgress(os.Stderr, !quiet && output.IsTerminal(os.Stderr))
}

// renderer builds the output renderer for the global --output flag.
func renderer() *output.Renderer {
	return output.NewRenderer(os.Stdout, output.Format(outputFmt))
}

// requireTaskFile validates the -f flag before doing any work.
func requireTaskFile(path string) error {
	if path == "" {
		return fmt.Errorf("a task file is required (use -f tasks.yaml)")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("task file: %w", err)
	}
	return nil
}

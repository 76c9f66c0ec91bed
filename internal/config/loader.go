package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Load constructs a new *Config by merging (in increasing precedence
// order):
//  1. built-in defaults (see New())
//  2. YAML config file (default $HOME/.taskforge/config.yaml, override
//     via --config / TASKFORGE_CONFIG_FILE)
//  3. environment variables prefixed with TASKFORGE_ (a .env file in the
//     working directory is loaded first if present)
//  4. command-line flags bound on the provided *cobra.Command
//
// The resulting configuration is validated before being returned.
//
// Pass nil for cmd if you do not wish to bind flags (e.g., in tests).
func Load(cmd *cobra.Command, explicitPath string) (*Config, error) {
	cfg := New()

	v := viper.New()

	// ---------- 1. Defaults ----------
	v.SetDefault("strategy", string(cfg.Strategy))
	v.SetDefault("optimizationStrategy", string(cfg.OptimizationStrategy))
	v.SetDefault("batchingStrategy", string(cfg.BatchingStrategy))
	v.SetDefault("optimizationInterval", cfg.OptimizationInterval)
	v.SetDefault("enableBatching", cfg.EnableBatching)
	v.SetDefault("maxBatchSize", cfg.MaxBatchSize)
	v.SetDefault("autoDependencyLearning", cfg.AutoDependencyLearning)
	v.SetDefault("performanceMonitoring", cfg.PerformanceMonitoring)
	v.SetDefault("maxConcurrentTasks", cfg.MaxConcurrentTasks)
	v.SetDefault("defaultTimeout", cfg.DefaultTimeout)
	v.SetDefault("defaultMaxRetries", cfg.DefaultMaxRetries)
	v.SetDefault("cacheSize", cfg.CacheSize)
	v.SetDefault("implicitAnalysis", cfg.ImplicitAnalysis)
	v.SetDefault("output", string(cfg.Output))
	v.SetDefault("timeout", cfg.Timeout)

	// ---------- 2. Config file ----------
	if explicitPath == "" {
		if envPath := os.Getenv("TASKFORGE_CONFIG_FILE"); envPath != "" {
			explicitPath = envPath
		}
	}

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir, DefaultConfigDir))
	}

	if err := v.ReadInConfig(); err != nil {
		// If the file is missing we continue with env + defaults. Any other
		// error is fatal.
		if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// ---------- 3. Environment variables ----------
	// A local .env is merged into the process environment first; missing
	// files are fine.
	_ = gotenv.Load()

	v.SetEnvPrefix("TASKFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("strategy", "TASKFORGE_STRATEGY")
	_ = v.BindEnv("optimizationStrategy", "TASKFORGE_OPTIMIZATION_STRATEGY")
	_ = v.BindEnv("batchingStrategy", "TASKFORGE_BATCHING_STRATEGY")
	_ = v.BindEnv("maxConcurrentTasks", "TASKFORGE_MAX_CONCURRENT_TASKS")
	_ = v.BindEnv("cacheSize", "TASKFORGE_CACHE_SIZE")

	// ---------- 4. Flags ----------
	if cmd != nil {
		_ = v.BindPFlags(cmd.Flags())
		_ = v.BindPFlags(cmd.PersistentFlags())

		// Map dashed flag names to camelCase keys expected in struct tags.
		bind := func(key string, name string) {
			if f := cmd.Flags().Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
		bind("strategy", "strategy")
		bind("optimizationStrategy", "optimization-strategy")
		bind("batchingStrategy", "batching-strategy")
		bind("maxConcurrentTasks", "max-concurrent")
		bind("maxBatchSize", "max-batch-size")
	}

	// ---------- Unmarshal ----------
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

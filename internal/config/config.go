// Package config defines the runtime configuration model and helpers.
package config

import (
	"fmt"
	"time"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
)

// OutputFormat represents the supported output serialization formats.
type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputText  OutputFormat = "text"
	OutputJSON  OutputFormat = "json"
	OutputYAML  OutputFormat = "yaml"
)

// DefaultTimeout is the fallback duration applied when the user does not
// specify `--timeout`, `TASKFORGE_TIMEOUT`, or the `timeout` YAML key.
const DefaultTimeout = 30 * time.Second

// DefaultConfigDir is the default directory under the user's home for
// taskforge config files.
const DefaultConfigDir = ".taskforge"

// ResourceConstraint bounds one named resource.
type ResourceConstraint struct {
	MaxUnits float64 `mapstructure:"maxUnits" yaml:"maxUnits" json:"maxUnits"`
}

// PriorityThresholds holds the numeric score bounds per priority band.
type PriorityThresholds struct {
	Critical float64 `mapstructure:"critical" yaml:"critical" json:"critical"`
	High     float64 `mapstructure:"high" yaml:"high" json:"high"`
	Medium   float64 `mapstructure:"medium" yaml:"medium" json:"medium"`
	Low      float64 `mapstructure:"low" yaml:"low" json:"low"`
}

// Config is the fully-resolved runtime configuration for one invocation.
//
// All fields have zero-value semantics that mean "not set" so the
// precedence resolver can tell whether a value came from a lower tier
// (YAML) or a higher one (env/flag). Env variables use the TASKFORGE_
// prefix.
type Config struct {
	// Engine behaviour
	Strategy                   dag.Strategy                  `mapstructure:"strategy" yaml:"strategy"`
	OptimizationStrategy       dag.OptimizationStrategy      `mapstructure:"optimizationStrategy" yaml:"optimizationStrategy"`
	BatchingStrategy           dag.BatchingStrategy          `mapstructure:"batchingStrategy" yaml:"batchingStrategy"`
	ResourceConstraints        map[string]ResourceConstraint `mapstructure:"resourceConstraints" yaml:"resourceConstraints"`
	OptimizationInterval       time.Duration                 `mapstructure:"optimizationInterval" yaml:"optimizationInterval"`
	EnableBatching             bool                          `mapstructure:"enableBatching" yaml:"enableBatching"`
	EnableParallelOptimization bool                          `mapstructure:"enableParallelOptimization" yaml:"enableParallelOptimization"`
	MaxBatchSize               int                           `mapstructure:"maxBatchSize" yaml:"maxBatchSize"`
	PriorityThresholds         PriorityThresholds            `mapstructure:"priorityThresholds" yaml:"priorityThresholds"`
	AutoDependencyLearning     bool                          `mapstructure:"autoDependencyLearning" yaml:"autoDependencyLearning"`
	PerformanceMonitoring      bool                          `mapstructure:"performanceMonitoring" yaml:"performanceMonitoring"`
	MaxConcurrentTasks         int                           `mapstructure:"maxConcurrentTasks" yaml:"maxConcurrentTasks"`
	DefaultTimeout             time.Duration                 `mapstructure:"defaultTimeout" yaml:"defaultTimeout"`
	DefaultMaxRetries          int                           `mapstructure:"defaultMaxRetries" yaml:"defaultMaxRetries"`
	CacheSize                  int                           `mapstructure:"cacheSize" yaml:"cacheSize"`

	// Analyzer thresholds
	ImplicitAnalysis bool    `mapstructure:"implicitAnalysis" yaml:"implicitAnalysis"`
	MinConfidence    float64 `mapstructure:"minConfidence" yaml:"minConfidence"`

	// Generic CLI behaviour
	Output  OutputFormat  `mapstructure:"output" yaml:"output"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// New returns a Config populated with builtin defaults. Callers should
// subsequently merge flag/env/YAML values on top.
func New() *Config {
	return &Config{
		Strategy:               dag.StrategyDependencyAware,
		OptimizationStrategy:   dag.OptimizeThroughput,
		BatchingStrategy:       dag.BatchSimilarTasks,
		OptimizationInterval:   time.Minute,
		EnableBatching:         true,
		MaxBatchSize:           5,
		AutoDependencyLearning: true,
		PerformanceMonitoring:  true,
		MaxConcurrentTasks:     4,
		DefaultTimeout:         DefaultTimeout,
		DefaultMaxRetries:      3,
		CacheSize:              64,
		ImplicitAnalysis:       true,
		PriorityThresholds: PriorityThresholds{
			Critical: 300,
			High:     225,
			Medium:   150,
			Low:      75,
		},
		Output:  OutputTable,
		Timeout: DefaultTimeout,
	}
}

// ResourceBudget flattens the constraints into the demand-vector form the
// engine consumes.
func (c *Config) ResourceBudget() map[string]float64 {
	if len(c.ResourceConstraints) == 0 {
		return nil
	}
	budget := make(map[string]float64, len(c.ResourceConstraints))
	for name, rc := range c.ResourceConstraints {
		budget[name] = rc.MaxUnits
	}
	return budget
}

// Validate performs sanity checks after the full precedence merge.
// Invalid configuration is rejected here, before any engine is built.
func (c *Config) Validate() error {
	if c.Strategy != "" && !dag.ValidStrategy(c.Strategy) {
		return fmt.Errorf("unknown strategy: %s", c.Strategy)
	}
	if c.OptimizationStrategy != "" && !dag.ValidOptimizationStrategy(c.OptimizationStrategy) {
		return fmt.Errorf("unknown optimization strategy: %s", c.OptimizationStrategy)
	}
	if c.BatchingStrategy != "" && !dag.ValidBatchingStrategy(c.BatchingStrategy) {
		return fmt.Errorf("unknown batching strategy: %s", c.BatchingStrategy)
	}
	for name, rc := range c.ResourceConstraints {
		if rc.MaxUnits < 0 {
			return fmt.Errorf("resource %q: maxUnits cannot be negative", name)
		}
	}
	if c.MaxConcurrentTasks < 1 {
		return fmt.Errorf("maxConcurrentTasks must be at least 1, got %d", c.MaxConcurrentTasks)
	}
	if c.DefaultMaxRetries < 0 {
		return fmt.Errorf("defaultMaxRetries cannot be negative")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("minConfidence must be within [0,1]")
	}

	switch c.Output {
	case OutputTable, OutputText, OutputJSON, OutputYAML, "":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

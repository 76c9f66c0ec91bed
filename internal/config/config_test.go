package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, dag.StrategyDependencyAware, cfg.Strategy)
	assert.Equal(t, 4, cfg.MaxConcurrentTasks)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range []string{"", "high_performance", "comprehensive", "resource_optimized", "quality_focused"} {
		cfg, err := Preset(name)
		require.NoError(t, err, "preset %q", name)
		assert.NoError(t, cfg.Validate(), "preset %q", name)
	}

	_, err := Preset("turbo")
	assert.Error(t, err)
}

func TestPresetShapes(t *testing.T) {
	hp := HighPerformance()
	assert.False(t, hp.ImplicitAnalysis)
	assert.Equal(t, 256, hp.CacheSize)

	ro := ResourceOptimized()
	assert.Equal(t, dag.StrategyResourceOptimal, ro.Strategy)
	assert.Equal(t, dag.OptimizeResourceEfficiency, ro.OptimizationStrategy)

	qf := QualityFocused()
	assert.Equal(t, 0.7, qf.MinConfidence)
	assert.Equal(t, 1, qf.MaxConcurrentTasks)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Strategy = "random_walk" }},
		{"unknown optimization strategy", func(c *Config) { c.OptimizationStrategy = "vibes" }},
		{"unknown batching strategy", func(c *Config) { c.BatchingStrategy = "yolo" }},
		{"negative resource limit", func(c *Config) {
			c.ResourceConstraints = map[string]ResourceConstraint{"cpu": {MaxUnits: -1}}
		}},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentTasks = 0 }},
		{"negative retries", func(c *Config) { c.DefaultMaxRetries = -1 }},
		{"confidence above one", func(c *Config) { c.MinConfidence = 1.5 }},
		{"unsupported output", func(c *Config) { c.Output = "xml" }},
		{"non-positive timeout", func(c *Config) { c.Timeout = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResourceBudget(t *testing.T) {
	cfg := New()
	assert.Nil(t, cfg.ResourceBudget(), "no constraints means an unbounded budget")

	cfg.ResourceConstraints = map[string]ResourceConstraint{
		"cpu":    {MaxUnits: 8},
		"memory": {MaxUnits: 2048},
	}
	budget := cfg.ResourceBudget()
	assert.Equal(t, map[string]float64{"cpu": 8, "memory": 2048}, budget)
}

func TestZeroResourceLimitAllowed(t *testing.T) {
	cfg := New()
	cfg.ResourceConstraints = map[string]ResourceConstraint{"gpu": {MaxUnits: 0}}
	assert.NoError(t, cfg.Validate(), "a zero limit disables a resource without being invalid")
}

func TestTimeoutDefault(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultTimeout)
}

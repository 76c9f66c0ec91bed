package config

import (
	"fmt"

	"github.com/taskforge/taskforge-cli/internal/engine/dag"
)

// HighPerformance favors cache hits and cheap analysis: implicit edge
// discovery is disabled and the cache is sized generously.
func HighPerformance() *Config {
	cfg := New()
	cfg.ImplicitAnalysis = false
	cfg.CacheSize = 256
	cfg.EnableParallelOptimization = true
	cfg.MaxConcurrentTasks = 8
	return cfg
}

// Comprehensive enables every edge kind and keeps the confidence floor at
// zero so no discovered edge is dropped.
func Comprehensive() *Config {
	cfg := New()
	cfg.ImplicitAnalysis = true
	cfg.MinConfidence = 0
	cfg.OptimizationStrategy = dag.OptimizeLatency
	return cfg
}

// ResourceOptimized plans with bin packing and optimizes for budget
// utilization.
func ResourceOptimized() *Config {
	cfg := New()
	cfg.Strategy = dag.StrategyResourceOptimal
	cfg.OptimizationStrategy = dag.OptimizeResourceEfficiency
	cfg.BatchingStrategy = dag.BatchResourceOptimization
	return cfg
}

// QualityFocused raises the confidence floor so only strongly supported
// implicit edges survive, and validates sequentially.
func QualityFocused() *Config {
	cfg := New()
	cfg.MinConfidence = 0.7
	cfg.EnableParallelOptimization = false
	cfg.MaxConcurrentTasks = 1
	return cfg
}

// Preset resolves a preset by name.
func Preset(name string) (*Config, error) {
	switch name {
	case "high_performance":
		return HighPerformance(), nil
	case "comprehensive":
		return Comprehensive(), nil
	case "resource_optimized":
		return ResourceOptimized(), nil
	case "quality_focused":
		return QualityFocused(), nil
	case "":
		return New(), nil
	}
	return nil, fmt.Errorf("unknown preset: %s", name)
}

package dag

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/types"
)

// EventKind names one observed task lifecycle transition.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventRetried   EventKind = "retried"
)

// ValidEventKind reports whether k names a known lifecycle event.
func ValidEventKind(k EventKind) bool {
	switch k {
	case EventStarted, EventCompleted, EventFailed, EventCancelled, EventRetried:
		return true
	}
	return false
}

// TaskEvent is one observed execution event.
type TaskEvent struct {
	TaskID    string         `json:"taskId" yaml:"taskId"`
	Kind      EventKind      `json:"kind" yaml:"kind"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration  `json:"duration,omitempty" yaml:"duration,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	MemoryMB  float64        `json:"memoryMb,omitempty" yaml:"memoryMb,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ExecutionMetrics is the monitor's rolling aggregate view.
type ExecutionMetrics struct {
	TotalTasks           int                    `json:"totalTasks"`
	RunningTasks         int                    `json:"runningTasks"`
	CompletedTasks       int                    `json:"completedTasks"`
	FailedTasks          int                    `json:"failedTasks"`
	CancelledTasks       int                    `json:"cancelledTasks"`
	TotalRetries         int                    `json:"totalRetries"`
	AverageExecutionTime time.Duration          `json:"averageExecutionTime"`
	SuccessRate          float64                `json:"successRate"`
	MemoryHighWaterMB    float64                `json:"memoryHighWaterMb"`
	ByCategory           map[types.Category]int `json:"byCategory"`
	ByPriority           map[types.Priority]int `json:"byPriority"`
	ByComplexity         map[string]int         `json:"byComplexity"`
}

// BottleneckKind names one aggregate condition exceeding its threshold.
type BottleneckKind string

const (
	BottleneckSlowExecution  BottleneckKind = "slow_execution"
	BottleneckMemoryPressure BottleneckKind = "memory_pressure"
	BottleneckReliability    BottleneckKind = "reliability"
)

// Bottleneck is one detected aggregate problem.
type Bottleneck struct {
	Kind           BottleneckKind `json:"kind"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	Recommendation string         `json:"recommendation"`
}

// HealthState classifies one health dimension.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthCritical HealthState = "critical"
)

// SystemHealth grades the system on four dimensions.
type SystemHealth struct {
	Overall     HealthState `json:"overall"`
	Memory      HealthState `json:"memory"`
	Performance HealthState `json:"performance"`
	Reliability HealthState `json:"reliability"`
}

// MonitorOptions tunes bottleneck thresholds.
type MonitorOptions struct {
	SlowExecutionThreshold time.Duration
	MemoryThresholdMB      float64
	RetryRateThreshold     float64
}

// DefaultMonitorOptions returns production thresholds.
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		SlowExecutionThreshold: 15 * time.Minute,
		MemoryThresholdMB:      512,
		RetryRateThreshold:     0.10,
	}
}

// Monitor records task lifecycle events and maintains rolling aggregates.
// Recorded durations and outcomes feed back into the Scorer through the
// engine façade.
type Monitor struct {
	mu sync.RWMutex

	opts MonitorOptions

	events       []TaskEvent
	running      map[string]bool
	completed    int
	failed       int
	cancelled    int
	retries      int
	attempts     int
	totalRuntime time.Duration
	runtimeCount int
	memoryPeakMB float64

	byCategory   map[types.Category]int
	byPriority   map[types.Priority]int
	byComplexity map[string]int

	logger *zap.Logger
}

// NewMonitor creates a monitor. A nil logger falls back to a no-op.
func NewMonitor(opts MonitorOptions, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SlowExecutionThreshold <= 0 {
		opts.SlowExecutionThreshold = 15 * time.Minute
	}
	if opts.MemoryThresholdMB <= 0 {
		opts.MemoryThresholdMB = 512
	}
	if opts.RetryRateThreshold <= 0 {
		opts.RetryRateThreshold = 0.10
	}
	return &Monitor{
		opts:         opts,
		running:      make(map[string]bool),
		byCategory:   make(map[types.Category]int),
		byPriority:   make(map[types.Priority]int),
		byComplexity: make(map[string]int),
		logger:       logger,
	}
}

// Record folds one event into the aggregates. The task pointer may be nil
// when the event references work the engine has not registered; counts
// still update.
func (m *Monitor) Record(event TaskEvent, task *types.Task) error {
	if event.TaskID == "" {
		return fmt.Errorf("event task id cannot be empty")
	}
	if !ValidEventKind(event.Kind) {
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)

	switch event.Kind {
	case EventStarted:
		m.running[event.TaskID] = true
		m.attempts++
		if task != nil {
			m.byCategory[task.Category]++
			m.byPriority[task.Priority]++
			m.byComplexity[complexityBucket(task.EffectiveDuration())]++
		}
	case EventCompleted:
		delete(m.running, event.TaskID)
		m.completed++
		if event.Duration > 0 {
			m.totalRuntime += event.Duration
			m.runtimeCount++
		}
	case EventFailed:
		delete(m.running, event.TaskID)
		m.failed++
		if event.Duration > 0 {
			m.totalRuntime += event.Duration
			m.runtimeCount++
		}
	case EventCancelled:
		delete(m.running, event.TaskID)
		m.cancelled++
	case EventRetried:
		m.retries++
		m.attempts++
	}

	if event.MemoryMB > m.memoryPeakMB {
		m.memoryPeakMB = event.MemoryMB
	}

	m.logger.Debug("task event recorded",
		zap.String("task", event.TaskID),
		zap.String("kind", string(event.Kind)))
	return nil
}

// Metrics returns a snapshot of the rolling aggregates.
func (m *Monitor) Metrics() *ExecutionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := &ExecutionMetrics{
		TotalTasks:        m.completed + m.failed + m.cancelled + len(m.running),
		RunningTasks:      len(m.running),
		CompletedTasks:    m.completed,
		FailedTasks:       m.failed,
		CancelledTasks:    m.cancelled,
		TotalRetries:      m.retries,
		MemoryHighWaterMB: m.memoryPeakMB,
		ByCategory:        make(map[types.Category]int, len(m.byCategory)),
		ByPriority:        make(map[types.Priority]int, len(m.byPriority)),
		ByComplexity:      make(map[string]int, len(m.byComplexity)),
	}
	for k, v := range m.byCategory {
		metrics.ByCategory[k] = v
	}
	for k, v := range m.byPriority {
		metrics.ByPriority[k] = v
	}
	for k, v := range m.byComplexity {
		metrics.ByComplexity[k] = v
	}

	if m.runtimeCount > 0 {
		metrics.AverageExecutionTime = m.totalRuntime / time.Duration(m.runtimeCount)
	}
	if finished := m.completed + m.failed; finished > 0 {
		metrics.SuccessRate = float64(m.completed) / float64(finished)
	} else {
		metrics.SuccessRate = 1.0
	}
	return metrics
}

// Bottlenecks evaluates the thresholds against current aggregates.
func (m *Monitor) Bottlenecks() []Bottleneck {
	metrics := m.Metrics()
	out := make([]Bottleneck, 0)

	if metrics.AverageExecutionTime > m.opts.SlowExecutionThreshold {
		severity := SeverityMedium
		if metrics.AverageExecutionTime > 2*m.opts.SlowExecutionThreshold {
			severity = SeverityHigh
		}
		out = append(out, Bottleneck{
			Kind:           BottleneckSlowExecution,
			Severity:       severity,
			Message:        fmt.Sprintf("average execution time %s exceeds %s", metrics.AverageExecutionTime, m.opts.SlowExecutionThreshold),
			Recommendation: "split long tasks or raise concurrency for independent work",
		})
	}

	if metrics.MemoryHighWaterMB > m.opts.MemoryThresholdMB {
		severity := SeverityMedium
		if metrics.MemoryHighWaterMB > 2*m.opts.MemoryThresholdMB {
			severity = SeverityCritical
		}
		out = append(out, Bottleneck{
			Kind:           BottleneckMemoryPressure,
			Severity:       severity,
			Message:        fmt.Sprintf("memory high-water %.0f MB exceeds %.0f MB", metrics.MemoryHighWaterMB, m.opts.MemoryThresholdMB),
			Recommendation: "lower concurrency or stagger memory-heavy tasks",
		})
	}

	m.mu.RLock()
	attempts := m.attempts
	retries := m.retries
	m.mu.RUnlock()
	if attempts > 0 {
		rate := float64(retries) / float64(attempts)
		if rate > m.opts.RetryRateThreshold {
			severity := SeverityMedium
			if rate > 2*m.opts.RetryRateThreshold {
				severity = SeverityHigh
			}
			out = append(out, Bottleneck{
				Kind:           BottleneckReliability,
				Severity:       severity,
				Message:        fmt.Sprintf("retry rate %.0f%% exceeds %.0f%%", rate*100, m.opts.RetryRateThreshold*100),
				Recommendation: "inspect failing tasks and their recorded errors",
			})
		}
	}
	return out
}

// Health classifies the four health dimensions from current aggregates.
func (m *Monitor) Health() SystemHealth {
	metrics := m.Metrics()

	health := SystemHealth{
		Memory:      grade(metrics.MemoryHighWaterMB, m.opts.MemoryThresholdMB, 2*m.opts.MemoryThresholdMB),
		Performance: grade(float64(metrics.AverageExecutionTime), float64(m.opts.SlowExecutionThreshold), float64(2*m.opts.SlowExecutionThreshold)),
	}

	switch {
	case metrics.SuccessRate < 0.5:
		health.Reliability = HealthCritical
	case metrics.SuccessRate < 0.9:
		health.Reliability = HealthDegraded
	default:
		health.Reliability = HealthHealthy
	}

	health.Overall = worstHealth(health.Memory, health.Performance, health.Reliability)
	return health
}

// History returns recorded events for one task, oldest first. An empty id
// returns every event.
func (m *Monitor) History(taskID string) []TaskEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TaskEvent, 0)
	for _, e := range m.events {
		if taskID == "" || e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// ObservedTasks returns the ids of every task with at least one event.
func (m *Monitor) ObservedTasks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, e := range m.events {
		seen[e.TaskID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// complexityBucket bins estimated durations into coarse complexity labels.
func complexityBucket(d time.Duration) string {
	switch {
	case d <= time.Minute:
		return "trivial"
	case d <= 10*time.Minute:
		return "simple"
	case d <= time.Hour:
		return "moderate"
	default:
		return "complex"
	}
}

// grade maps a value onto healthy, degraded, or critical thresholds.
func grade(value, degraded, critical float64) HealthState {
	switch {
	case value > critical:
		return HealthCritical
	case value > degraded:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

func worstHealth(states ...HealthState) HealthState {
	worst := HealthHealthy
	for _, s := range states {
		if s == HealthCritical {
			return HealthCritical
		}
		if s == HealthDegraded {
			worst = HealthDegraded
		}
	}
	return worst
}

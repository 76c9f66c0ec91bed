package dag

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/types"
)

// Weights controls the contribution of each score component.
type Weights struct {
	Priority    float64 `json:"priority" yaml:"priority"`
	Urgency     float64 `json:"urgency" yaml:"urgency"`
	Impact      float64 `json:"impact" yaml:"impact"`
	Duration    float64 `json:"duration" yaml:"duration"`
	Resources   float64 `json:"resources" yaml:"resources"`
	SuccessRate float64 `json:"successRate" yaml:"successRate"`
}

// DefaultWeights weights declared priority heaviest, then urgency and
// impact.
func DefaultWeights() Weights {
	return Weights{
		Priority:    3,
		Urgency:     2,
		Impact:      2,
		Duration:    1,
		Resources:   1,
		SuccessRate: 1,
	}
}

// ScorerOptions tunes the scoring model.
type ScorerOptions struct {
	Weights Weights

	// AgingWindow is the age at which the age contribution saturates.
	AgingWindow time.Duration

	// ReferenceDuration normalizes the duration factor.
	ReferenceDuration time.Duration
}

// DefaultScorerOptions returns production defaults.
func DefaultScorerOptions() ScorerOptions {
	return ScorerOptions{
		Weights:           DefaultWeights(),
		AgingWindow:       24 * time.Hour,
		ReferenceDuration: time.Minute,
	}
}

// Score is one task's composite priority with its components exposed for
// inspection.
type Score struct {
	TaskID               string  `json:"taskId"`
	Total                float64 `json:"total"`
	BasePriority         float64 `json:"basePriority"`
	Urgency              float64 `json:"urgency"`
	Impact               float64 `json:"impact"`
	DurationFactor       float64 `json:"durationFactor"`
	ResourceAvailability float64 `json:"resourceAvailability"`
	SuccessRate          float64 `json:"successRate"`
	AgingBoost           float64 `json:"agingBoost,omitempty"`
}

// executionStats is a commutative rolling aggregate: only sums and counts,
// so the result is independent of recording order.
type executionStats struct {
	attempts      int
	successes     int
	totalDuration time.Duration
}

func (s executionStats) successRate() float64 {
	if s.attempts == 0 {
		return 1.0
	}
	return float64(s.successes) / float64(s.attempts)
}

func (s executionStats) meanDuration() time.Duration {
	if s.attempts == 0 {
		return 0
	}
	return s.totalDuration / time.Duration(s.attempts)
}

// Scorer computes composite priority scores. It owns the observed
// execution stats and the current system-load view; both feed into the
// score components.
type Scorer struct {
	mu sync.RWMutex

	opts      ScorerOptions
	available types.ResourceDemand
	budget    types.ResourceDemand
	stats     map[string]executionStats
	boosts    map[string]float64
	logger    *zap.Logger
}

// NewScorer creates a scorer. A nil logger falls back to a no-op.
func NewScorer(opts ScorerOptions, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AgingWindow <= 0 {
		opts.AgingWindow = 24 * time.Hour
	}
	if opts.ReferenceDuration <= 0 {
		opts.ReferenceDuration = time.Minute
	}
	return &Scorer{
		opts:   opts,
		stats:  make(map[string]executionStats),
		boosts: make(map[string]float64),
		logger: logger,
	}
}

// Weights returns the scorer's current weight set.
func (s *Scorer) Weights() Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Weights
}

// SetWeights replaces the weight set. Used by the self-tuning loop.
func (s *Scorer) SetWeights(w Weights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Weights = w
}

// UpdateSystemLoad records the current resource availability against the
// configured budget. Scores computed afterwards scale their resource
// component accordingly.
func (s *Scorer) UpdateSystemLoad(available, budget types.ResourceDemand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available.Clone()
	s.budget = budget.Clone()
}

// RecordExecution folds one observed attempt into the task's rolling
// stats. The aggregate is a sum, so any recording order yields the same
// stats.
func (s *Scorer) RecordExecution(taskID string, rec types.ExecutionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats[taskID]
	st.attempts++
	if rec.Success {
		st.successes++
	}
	st.totalDuration += rec.Duration
	s.stats[taskID] = st
}

// ApplyAgingBoost adds a fixed additive boost to a task's total score.
// Boosts accumulate until cleared.
func (s *Scorer) ApplyAgingBoost(taskID string, boost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boosts[taskID] += boost
}

// ClearAgingBoost removes any accumulated boost for the task.
func (s *Scorer) ClearAgingBoost(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boosts, taskID)
}

// ObservedDuration returns the rolling-mean execution duration, or zero
// when no attempts were recorded.
func (s *Scorer) ObservedDuration(taskID string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats[taskID].meanDuration()
}

// ScoreTask computes the composite score for one task. The graph supplies
// impact inputs (dependents, critical-path membership); now anchors age
// and deadline math so repeated calls with a fixed clock are identical.
func (s *Scorer) ScoreTask(task *types.Task, graph *Graph, analysis *Analysis, now time.Time) Score {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score := Score{
		TaskID:       task.ID,
		BasePriority: task.Priority.BaseScore(),
	}

	// Urgency: saturating age plus deadline proximity, equally weighted.
	ageFactor := math.Min(1, float64(task.Age(now))/float64(s.opts.AgingWindow))
	deadlineFactor := 0.0
	if task.Deadline != nil {
		remaining := task.Deadline.Sub(now)
		est := task.EffectiveDuration()
		deadlineFactor = clamp01(1 - float64(remaining)/float64(est))
	}
	score.Urgency = 0.5*ageFactor + 0.5*deadlineFactor

	// Impact: transitive dependents (log-damped) plus critical-path bonus.
	dependents := 0
	onCP := false
	if graph != nil {
		dependents = len(graph.TransitiveDependents(task.ID))
	}
	if analysis != nil {
		onCP = analysis.OnCriticalPath(task.ID)
	}
	score.Impact = math.Log1p(float64(dependents))
	if onCP {
		score.Impact++
	}

	score.DurationFactor = 1 / (1 + float64(task.EffectiveDuration())/float64(s.opts.ReferenceDuration))

	score.ResourceAvailability = s.resourceAvailabilityLocked(task)

	if st, ok := s.stats[task.ID]; ok {
		score.SuccessRate = st.successRate()
	} else {
		score.SuccessRate = task.SuccessRate()
	}

	score.AgingBoost = s.boosts[task.ID]

	w := s.opts.Weights
	total := w.Priority*score.BasePriority +
		w.Urgency*score.Urgency +
		w.Impact*score.Impact +
		w.Duration*score.DurationFactor +
		w.Resources*score.ResourceAvailability +
		w.SuccessRate*score.SuccessRate +
		score.AgingBoost
	// Round to a fixed precision so equal inputs compare bit-equal across
	// runs regardless of summation noise.
	score.Total = math.Round(total*1e6) / 1e6

	return score
}

// ScoreAll scores every task in the graph and returns results sorted by
// descending total, ties broken by id.
func (s *Scorer) ScoreAll(graph *Graph, analysis *Analysis, now time.Time) []Score {
	ids := graph.TaskIDs()
	scores := make([]Score, 0, len(ids))
	for _, id := range ids {
		scores = append(scores, s.ScoreTask(graph.Task(id), graph, analysis, now))
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Total != scores[j].Total {
			return scores[i].Total > scores[j].Total
		}
		return scores[i].TaskID < scores[j].TaskID
	})
	return scores
}

// resourceAvailabilityLocked returns the worst-case fraction of the task's
// demand that is currently satisfiable. Tasks with no demand score 1.
func (s *Scorer) resourceAvailabilityLocked(task *types.Task) float64 {
	if len(task.Resources) == 0 {
		return 1
	}
	worst := 1.0
	for _, name := range task.Resources.Names() {
		demand := task.Resources[name]
		if demand <= 0 {
			continue
		}
		avail, ok := s.available[name]
		if !ok {
			// Unknown resources are assumed fully available.
			continue
		}
		frac := clamp01(avail / demand)
		if frac < worst {
			worst = frac
		}
	}
	return worst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package dag

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskforge/taskforge-cli/internal/types"
)

// ErrCycleDetected is returned when a plan is requested for a graph with
// circular dependencies. Cycles are reported through validation; the
// planner never breaks them silently.
var ErrCycleDetected = errors.New("cannot plan: circular dependencies detected")

// PlannerOptions tunes plan construction.
type PlannerOptions struct {
	Strategy Strategy

	// MaxConcurrent caps the size of each parallel group.
	MaxConcurrent int

	// ResourceBudget is the per-resource capacity available to one group.
	// Empty means unconstrained.
	ResourceBudget types.ResourceDemand
}

// DefaultPlannerOptions returns production defaults.
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{
		Strategy:      StrategyDependencyAware,
		MaxConcurrent: 4,
	}
}

// Planner turns an analyzed graph into an ordered execution plan.
type Planner struct {
	opts   PlannerOptions
	logger *zap.Logger
}

// NewPlanner creates a planner. A nil logger falls back to a no-op.
func NewPlanner(opts PlannerOptions, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyDependencyAware
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Planner{opts: opts, logger: logger}
}

// BuildPlan constructs a plan level by level: a task never appears in a
// group before every one of its predecessors has appeared in an earlier
// group. Exclusive capability claims force claimants into separate groups.
func (p *Planner) BuildPlan(graph *Graph, analysis *Analysis, scores []Score, now time.Time) (*Plan, error) {
	if analysis.HasCycles() {
		return nil, fmt.Errorf("%w: %d chains", ErrCycleDetected, len(analysis.CircularChains))
	}

	scoreByID := make(map[string]float64, len(scores))
	for _, s := range scores {
		scoreByID[s.TaskID] = s.Total
	}

	levels := analysis.Levels
	byLevel := make(map[int][]string)
	for id, lvl := range levels {
		byLevel[lvl] = append(byLevel[lvl], id)
	}

	plan := &Plan{
		ID:           uuid.NewString(),
		Strategy:     p.opts.Strategy,
		CriticalPath: append([]string(nil), analysis.CriticalPath...),
		Metadata: PlanMetadata{
			Algorithm:   string(p.opts.Strategy),
			Factors:     p.strategyFactors(),
			Constraints: p.constraints(),
			GeneratedAt: now,
		},
	}

	for lvl := 0; lvl <= analysis.MaxLevel; lvl++ {
		ids := byLevel[lvl]
		if len(ids) == 0 {
			continue
		}
		p.orderLevel(ids, graph, analysis, scoreByID)

		var groups []Group
		if p.opts.Strategy == StrategyResourceOptimal && len(p.opts.ResourceBudget) > 0 {
			groups = p.packByResources(ids, graph, scoreByID)
		} else {
			groups = p.packByCount(ids, graph, scoreByID)
		}
		groups = p.splitExclusiveClaims(groups, graph, scoreByID)
		plan.Groups = append(plan.Groups, groups...)
	}

	for _, g := range plan.Groups {
		plan.EstimatedDuration += g.EstimatedDuration
		if len(g.Tasks) > plan.MaxConcurrency {
			plan.MaxConcurrency = len(g.Tasks)
		}
	}

	p.logger.Debug("plan built",
		zap.String("strategy", string(p.opts.Strategy)),
		zap.Int("groups", len(plan.Groups)),
		zap.Int("tasks", plan.TaskCount()),
		zap.Duration("estimatedDuration", plan.EstimatedDuration))

	return plan, nil
}

// orderLevel sorts the ids of one level according to the strategy.
func (p *Planner) orderLevel(ids []string, graph *Graph, analysis *Analysis, scoreByID map[string]float64) {
	switch p.opts.Strategy {
	case StrategyFIFO:
		sort.Slice(ids, func(i, j int) bool {
			ti, tj := graph.Task(ids[i]), graph.Task(ids[j])
			if !ti.CreatedAt.Equal(tj.CreatedAt) {
				return ti.CreatedAt.Before(tj.CreatedAt)
			}
			return ids[i] < ids[j]
		})
	case StrategyPriority:
		sort.Slice(ids, func(i, j int) bool {
			si, sj := scoreByID[ids[i]], scoreByID[ids[j]]
			if si != sj {
				return si > sj
			}
			ti, tj := graph.Task(ids[i]), graph.Task(ids[j])
			if !ti.CreatedAt.Equal(tj.CreatedAt) {
				return ti.CreatedAt.Before(tj.CreatedAt)
			}
			return ids[i] < ids[j]
		})
	case StrategyCriticalPath:
		sort.Slice(ids, func(i, j int) bool {
			ci, cj := analysis.OnCriticalPath(ids[i]), analysis.OnCriticalPath(ids[j])
			if ci != cj {
				return ci
			}
			si, sj := scoreByID[ids[i]], scoreByID[ids[j]]
			if si != sj {
				return si > sj
			}
			return ids[i] < ids[j]
		})
	case StrategyResourceOptimal:
		// Largest total demand first for first-fit-decreasing packing.
		sort.Slice(ids, func(i, j int) bool {
			di, dj := totalDemand(graph.Task(ids[i])), totalDemand(graph.Task(ids[j]))
			if di != dj {
				return di > dj
			}
			return ids[i] < ids[j]
		})
	default: // StrategyDependencyAware
		sort.Slice(ids, func(i, j int) bool {
			si, sj := scoreByID[ids[i]], scoreByID[ids[j]]
			if si != sj {
				return si > sj
			}
			return ids[i] < ids[j]
		})
	}
}

// packByCount chunks an ordered level into groups of at most MaxConcurrent
// tasks.
func (p *Planner) packByCount(ids []string, graph *Graph, scoreByID map[string]float64) []Group {
	groups := make([]Group, 0)
	for start := 0; start < len(ids); start += p.opts.MaxConcurrent {
		end := start + p.opts.MaxConcurrent
		if end > len(ids) {
			end = len(ids)
		}
		groups = append(groups, p.makeGroup(ids[start:end], graph, scoreByID))
	}
	return groups
}

// packByResources bin-packs an ordered level first-fit-decreasing: each
// group's summed demand stays within the per-resource budget, and group
// size stays within MaxConcurrent. A task whose individual demand exceeds
// the budget still gets a group of its own.
func (p *Planner) packByResources(ids []string, graph *Graph, scoreByID map[string]float64) []Group {
	type bin struct {
		ids  []string
		used types.ResourceDemand
	}
	bins := make([]*bin, 0)

	for _, id := range ids {
		task := graph.Task(id)
		placed := false
		for _, b := range bins {
			if len(b.ids) >= p.opts.MaxConcurrent {
				continue
			}
			if !fitsBudget(b.used, task.Resources, p.opts.ResourceBudget) {
				continue
			}
			b.ids = append(b.ids, id)
			for name, units := range task.Resources {
				b.used[name] += units
			}
			placed = true
			break
		}
		if !placed {
			used := make(types.ResourceDemand)
			for name, units := range task.Resources {
				used[name] = units
			}
			bins = append(bins, &bin{ids: []string{id}, used: used})
		}
	}

	groups := make([]Group, 0, len(bins))
	for _, b := range bins {
		groups = append(groups, p.makeGroup(b.ids, graph, scoreByID))
	}
	return groups
}

// fitsBudget reports whether adding demand to used stays within budget for
// every resource the budget names.
func fitsBudget(used, demand, budget types.ResourceDemand) bool {
	for name, max := range budget {
		if used[name]+demand[name] > max {
			return false
		}
	}
	return true
}

// splitExclusiveClaims breaks up any group in which two tasks claim the
// same capability: a capability is an exclusive claim, so claimants are
// serialized into separate groups.
func (p *Planner) splitExclusiveClaims(groups []Group, graph *Graph, scoreByID map[string]float64) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		claimed := make(map[string]bool)
		kept := make([]string, 0, len(g.Tasks))
		deferred := make([]string, 0)
		for _, id := range g.Tasks {
			task := graph.Task(id)
			conflict := false
			for _, cap := range task.Capabilities {
				if claimed[cap] {
					conflict = true
					break
				}
			}
			if conflict {
				deferred = append(deferred, id)
				continue
			}
			for _, cap := range task.Capabilities {
				claimed[cap] = true
			}
			kept = append(kept, id)
		}
		out = append(out, p.makeGroup(kept, graph, scoreByID))
		if len(deferred) > 0 {
			out = append(out, p.splitExclusiveClaims([]Group{p.makeGroup(deferred, graph, scoreByID)}, graph, scoreByID)...)
		}
	}
	return out
}

// makeGroup assembles one parallel group: duration is the slowest member,
// priority the highest member score.
func (p *Planner) makeGroup(ids []string, graph *Graph, scoreByID map[string]float64) Group {
	g := Group{
		Tasks:          append([]string(nil), ids...),
		MaxConcurrency: len(ids),
	}
	for _, id := range ids {
		task := graph.Task(id)
		if d := task.EffectiveDuration(); d > g.EstimatedDuration {
			g.EstimatedDuration = d
		}
		if s := scoreByID[id]; s > g.Priority {
			g.Priority = s
		}
	}
	return g
}

func (p *Planner) strategyFactors() []string {
	switch p.opts.Strategy {
	case StrategyFIFO:
		return []string{"creation_time"}
	case StrategyPriority:
		return []string{"priority_score", "task_age"}
	case StrategyCriticalPath:
		return []string{"critical_path", "priority_score"}
	case StrategyResourceOptimal:
		return []string{"resource_demand", "bin_packing"}
	default:
		return []string{"dependency_levels", "priority_score"}
	}
}

func (p *Planner) constraints() []string {
	constraints := []string{fmt.Sprintf("max_concurrent=%d", p.opts.MaxConcurrent)}
	if len(p.opts.ResourceBudget) > 0 {
		constraints = append(constraints, "resource_budget")
	}
	return constraints
}

func totalDemand(task *types.Task) float64 {
	total := 0.0
	for _, units := range task.Resources {
		total += units
	}
	return total
}

// DetectConflicts scans a plan and its analysis for obstructions. Every
// conflict is enumerated; nothing short-circuits.
func (p *Planner) DetectConflicts(graph *Graph, analysis *Analysis, plan *Plan) []Conflict {
	conflicts := make([]Conflict, 0)

	for _, issue := range analysis.Errors {
		switch issue.Kind {
		case IssueMissingDependency:
			conflicts = append(conflicts, Conflict{
				Kind:       IssueMissingDependency,
				TaskIDs:    issue.TaskIDs,
				Severity:   SeverityHigh,
				Message:    issue.Message,
				Resolution: "register the missing task or mark the reference optional",
			})
		case IssueCircularDependency:
			conflicts = append(conflicts, Conflict{
				Kind:       IssueCircularDependency,
				TaskIDs:    issue.TaskIDs,
				Severity:   SeverityCritical,
				Message:    issue.Message,
				Resolution: "remove one dependency in the chain to break the cycle",
			})
		}
	}

	if plan != nil {
		conflicts = append(conflicts, p.contentionConflicts(graph, plan)...)
	}
	conflicts = append(conflicts, p.inversionConflicts(graph)...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		return severityRank(conflicts[i].Severity) > severityRank(conflicts[j].Severity)
	})
	return conflicts
}

// contentionConflicts reports pairs within one group claiming the same
// capability.
func (p *Planner) contentionConflicts(graph *Graph, plan *Plan) []Conflict {
	conflicts := make([]Conflict, 0)
	for _, g := range plan.Groups {
		claims := make(map[string]string)
		for _, id := range g.Tasks {
			task := graph.Task(id)
			if task == nil {
				continue
			}
			for _, cap := range task.Capabilities {
				if holder, taken := claims[cap]; taken {
					conflicts = append(conflicts, Conflict{
						Kind:       IssueResourceContention,
						TaskIDs:    []string{holder, id},
						Severity:   SeverityMedium,
						Message:    fmt.Sprintf("tasks %s and %s claim capability %q in the same group", holder, id, cap),
						Resolution: "move one claimant to a later group",
					})
					continue
				}
				claims[cap] = id
			}
		}
	}
	return conflicts
}

// inversionConflicts reports edges where a lower-priority task blocks a
// higher-priority one. Severity scales with the rank gap.
func (p *Planner) inversionConflicts(graph *Graph) []Conflict {
	conflicts := make([]Conflict, 0)
	for _, e := range graph.Edges() {
		from, to := graph.Task(e.From), graph.Task(e.To)
		if from == nil || to == nil {
			continue
		}
		gap := to.Priority.Rank() - from.Priority.Rank()
		if gap <= 0 {
			continue
		}
		severity := SeverityLow
		if gap >= 2 {
			severity = SeverityMedium
		}
		conflicts = append(conflicts, Conflict{
			Kind:       IssuePriorityInversion,
			TaskIDs:    []string{e.From, e.To},
			Severity:   severity,
			Message:    fmt.Sprintf("%s priority task %s blocks %s priority task %s", from.Priority, e.From, to.Priority, e.To),
			Resolution: fmt.Sprintf("consider raising the priority of %s", e.From),
		})
	}
	return conflicts
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Validate checks the analysis for missing dependencies and cycles and
// returns the complete error list.
func (p *Planner) Validate(analysis *Analysis) *ValidationResult {
	result := &ValidationResult{
		IsValid:              true,
		Errors:               make([]IssueRecord, 0),
		MissingDependencies:  make([]string, 0),
		CircularDependencies: make([][]string, 0),
	}

	for _, issue := range analysis.Errors {
		result.Errors = append(result.Errors, issue)
		switch issue.Kind {
		case IssueMissingDependency:
			result.IsValid = false
			if len(issue.TaskIDs) == 2 {
				result.MissingDependencies = append(result.MissingDependencies, issue.TaskIDs[1])
			}
		case IssueCircularDependency:
			result.IsValid = false
		}
	}
	for _, chain := range analysis.CircularChains {
		result.CircularDependencies = append(result.CircularDependencies, append([]string(nil), chain...))
	}

	sort.Strings(result.MissingDependencies)
	return result
}

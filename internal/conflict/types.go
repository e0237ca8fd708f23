package conflict

import (
	"maps"
	"slices"
	"time"

	"github.com/specialistvlad/taskgrid/internal/graph"
)

// Type classifies a conflict.
type Type string

const (
	TypeResource   Type = "RESOURCE"
	TypeDeadline   Type = "DEADLINE"
	TypePriority   Type = "PRIORITY"
	TypeDependency Type = "DEPENDENCY"
	TypeCycle      Type = "CYCLE"
	TypeScheduling Type = "SCHEDULING"
	TypeConstraint Type = "CONSTRAINT"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is the lifecycle state of a conflict.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResolving Status = "resolving"
	// StatusRetryable marks a conflict whose last attempt failed with attempts
	// left. Batch resolution picks it up again.
	StatusRetryable Status = "retryable"
	StatusResolved  Status = "resolved"
	StatusEscalated Status = "escalated"
)

// Terminal reports whether no further automatic transition can happen.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusEscalated
}

func (s Status) resolvable() bool {
	return s == StatusPending || s == StatusRetryable
}

// Conflict is one detected problem. Conflicts are only mutated by the Engine;
// every accessor returns a copy.
type Conflict struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Tasks      []string       `json:"involvedTasks"`
	Severity   Severity       `json:"severity"`
	Details    map[string]any `json:"details,omitempty"`
	Status     Status         `json:"status"`
	Attempts   int            `json:"resolutionAttempts"`
	LastError  string         `json:"lastError,omitempty"`
	Resolution *Resolution    `json:"resolution,omitempty"`
	DetectedAt time.Time      `json:"detectedAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Resolution is attached to a conflict once a plan succeeded.
type Resolution struct {
	PlanID          string        `json:"planId"`
	Strategy        StrategyName  `json:"strategy"`
	ExpectedOutcome string        `json:"expectedOutcome"`
	Actions         []Action      `json:"actions"`
	Log             []LogEntry    `json:"log"`
	Duration        time.Duration `json:"duration"`
	ResolvedAt      time.Time     `json:"resolvedAt"`
}

func (c *Conflict) clone() Conflict {
	out := *c
	out.Tasks = slices.Clone(c.Tasks)
	out.Details = maps.Clone(c.Details)
	if c.Resolution != nil {
		r := *c.Resolution
		r.Actions = cloneActions(r.Actions)
		r.Log = slices.Clone(r.Log)
		out.Resolution = &r
	}
	return out
}

// target is the task a deadline conflict is about.
func (c *Conflict) target() string {
	if id, ok := c.Details["task"].(string); ok && id != "" {
		return id
	}
	if len(c.Tasks) == 0 {
		return ""
	}
	return c.Tasks[len(c.Tasks)-1]
}

// ActionKind tags an Action. The executor interprets each kind.
type ActionKind string

const (
	// ActionSerializeTasks chains Params.Tasks so each one depends on the one
	// before it.
	ActionSerializeTasks ActionKind = "serialize_tasks"
	// ActionMarkDelayed flags Params.Tasks as delayed with Params.Reason.
	ActionMarkDelayed ActionKind = "mark_delayed"
	// ActionExtendDeadline pushes the deadline of Params.Tasks forward by
	// Params.Extension.
	ActionExtendDeadline ActionKind = "extend_deadline"
	// ActionMarkParallelizable flags Params.Tasks as parallelizable and sets
	// their optimistic duration to estimate * Params.Factor.
	ActionMarkParallelizable ActionKind = "mark_parallelizable"
	// ActionRemoveNonCriticalEdges drops every dependency edge of Params.Tasks
	// whose dependency is not critical. The criticality of the dependent task
	// itself does not protect its edges.
	ActionRemoveNonCriticalEdges ActionKind = "remove_noncritical_edges"
)

// Action is one step of a plan.
type Action struct {
	Kind        ActionKind   `json:"kind"`
	Description string       `json:"description"`
	Params      ActionParams `json:"params"`
}

type ActionParams struct {
	Tasks     []string      `json:"tasks,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Extension time.Duration `json:"extension,omitempty"`
	Factor    float64       `json:"factor,omitempty"`
}

func cloneActions(in []Action) []Action {
	if in == nil {
		return nil
	}
	out := make([]Action, len(in))
	for i, a := range in {
		a.Params.Tasks = slices.Clone(a.Params.Tasks)
		out[i] = a
	}
	return out
}

type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// Plan is an ordered list of actions built for one resolution attempt.
type Plan struct {
	ID              string       `json:"id"`
	ConflictID      string       `json:"conflictId"`
	Strategy        StrategyName `json:"strategy"`
	Actions         []Action     `json:"actions"`
	ExpectedOutcome string       `json:"expectedOutcome"`
	Log             []LogEntry   `json:"log"`
	Status          PlanStatus   `json:"status"`
}

// tasks returns every task id the plan touches, sorted.
func (p *Plan) tasks(extra []string) []string {
	ids := slices.Clone(extra)
	for _, a := range p.Actions {
		ids = append(ids, a.Params.Tasks...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// LogEntry records the outcome of one executed action.
type LogEntry struct {
	Action int        `json:"action"`
	Kind   ActionKind `json:"kind"`
	Result string     `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
	At     time.Time  `json:"at"`
}

// Store is the view of the task graph the engine works against. It is
// satisfied by *resolver.Resolver, which keeps its plan cache coherent with
// every mutation made here.
type Store interface {
	Task(id string) (graph.Node, bool)
	Tasks() []graph.Node
	ReadyTasks() []graph.Node
	Dependencies(id string) ([]string, error)
	HasDependency(taskID, dependsOn string) bool
	DependsOn(taskID, ancestor string) bool
	LongestChains(weight graph.Weight) (*graph.Chains, error)
	DetectCycles() [][]string

	AddDependency(taskID, dependsOn string) error
	RemoveDependency(taskID, dependsOn string) error
	UpdateTask(id string, fn func(*graph.TaskData)) error
}

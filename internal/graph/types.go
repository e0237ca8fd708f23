package graph

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// State is the lifecycle state of a task.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"

	// StateReady is never stored. It names the derived condition reported by
	// IsReady and ReadyNodes: pending with every dependency completed.
	StateReady State = "ready"
)

// ParseState converts a user supplied string into a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if err := st.check(); err != nil {
		return "", err
	}
	return st, nil
}

func (s State) check() error {
	switch {
	case s == StateReady:
		return fmt.Errorf("%w: %q is derived from dependencies and cannot be set", ErrInvalidState, s)
	case !s.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return nil
}

// Valid reports whether s is a state a task can hold.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateInProgress, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// TaskData is the payload carried by every task.
type TaskData struct {
	Priority          float64        `json:"priority"`
	EstimatedDuration time.Duration  `json:"estimatedDuration"`
	RequiredResources []string       `json:"requiredResources,omitempty"`
	Deadline          *time.Time     `json:"deadline,omitempty"`
	Critical          bool           `json:"critical,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`

	// Set by conflict resolution.
	Delayed            bool          `json:"delayed,omitempty"`
	DelayReason        string        `json:"delayReason,omitempty"`
	Parallelizable     bool          `json:"parallelizable,omitempty"`
	OptimisticDuration time.Duration `json:"optimisticDuration,omitempty"`
}

// Clone returns a deep copy of the payload. Resources are deduplicated and
// sorted because they are a set.
func (d TaskData) Clone() TaskData {
	out := d
	out.RequiredResources = normalizeResources(d.RequiredResources)
	if d.Deadline != nil {
		deadline := *d.Deadline
		out.Deadline = &deadline
	}
	if d.Extra != nil {
		out.Extra = maps.Clone(d.Extra)
	}
	return out
}

func normalizeResources(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Node is a read-only snapshot of a task vertex.
type Node struct {
	ID           string    `json:"id"`
	Data         TaskData  `json:"data"`
	State        State     `json:"state"`
	Dependencies []string  `json:"dependencies"`
	Dependents   []string  `json:"dependents"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// vertex is the internal, mutable representation of a task. It is unexported
// so all edge mutation goes through the Graph API.
type vertex struct {
	id    string
	data  TaskData
	state State

	// dependencies holds the ids this task needs completed first.
	dependencies map[string]struct{}
	// dependents holds the ids that need this task completed first.
	dependents map[string]struct{}

	createdAt time.Time
	updatedAt time.Time
}

func (v *vertex) snapshot() Node {
	return Node{
		ID:           v.id,
		Data:         v.data.Clone(),
		State:        v.state,
		Dependencies: sortedKeys(v.dependencies),
		Dependents:   sortedKeys(v.dependents),
		CreatedAt:    v.createdAt,
		UpdatedAt:    v.updatedAt,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

package conflict

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/specialistvlad/taskgrid/internal/graph"
)

// Rule inspects the store and reports conflicts. Rules are stateless and
// read-only; the engine assigns identity and lifecycle to what they return.
type Rule interface {
	Name() string
	Detect(s Store, now time.Time) ([]*Conflict, error)
}

// DefaultRules returns the resource, deadline, priority and cycle rules.
func DefaultRules() []Rule {
	return []Rule{ResourceRule{}, DeadlineRule{}, PriorityRule{}, CycleRule{}}
}

// ResourceRule reports every resource required by more than one ready task.
type ResourceRule struct{}

func (ResourceRule) Name() string { return "resource" }

func (ResourceRule) Detect(s Store, _ time.Time) ([]*Conflict, error) {
	holders := make(map[string][]graph.Node)
	for _, n := range s.ReadyTasks() {
		for _, r := range n.Data.RequiredResources {
			holders[r] = append(holders[r], n)
		}
	}

	var out []*Conflict
	for _, resource := range slices.Sorted(maps.Keys(holders)) {
		nodes := holders[resource]
		if len(nodes) < 2 {
			continue
		}
		ids := make([]string, 0, len(nodes))
		var sum float64
		for _, n := range nodes {
			ids = append(ids, n.ID)
			sum += n.Data.Priority
		}
		slices.Sort(ids)
		avg := sum / float64(len(nodes))
		out = append(out, &Conflict{
			Type:     TypeResource,
			Tasks:    ids,
			Severity: prioritySeverity(avg),
			Details: map[string]any{
				"resource":        resource,
				"averagePriority": avg,
			},
		})
	}
	return out, nil
}

func prioritySeverity(avg float64) Severity {
	switch {
	case avg >= 8:
		return SeverityCritical
	case avg >= 6:
		return SeverityHigh
	case avg >= 4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// DeadlineRule reports tasks whose heaviest remaining dependency chain needs
// more time than is left until their deadline. Completed tasks weigh nothing.
type DeadlineRule struct{}

func (DeadlineRule) Name() string { return "deadline" }

func (DeadlineRule) Detect(s Store, now time.Time) ([]*Conflict, error) {
	chains, err := s.LongestChains(graph.RemainingDuration)
	if err != nil {
		return nil, fmt.Errorf("deadline rule: %w", err)
	}

	var out []*Conflict
	for _, n := range s.Tasks() {
		if n.Data.Deadline == nil || n.State == graph.StateCompleted {
			continue
		}
		remaining := n.Data.Deadline.Sub(now)
		chain := chains.To(n.ID)
		if chain.Duration <= remaining {
			continue
		}
		out = append(out, &Conflict{
			Type:     TypeDeadline,
			Tasks:    chain.Tasks,
			Severity: deadlineSeverity(remaining),
			Details: map[string]any{
				"task":      n.ID,
				"deadline":  *n.Data.Deadline,
				"required":  chain.Duration,
				"remaining": remaining,
			},
		})
	}
	return out, nil
}

func deadlineSeverity(remaining time.Duration) Severity {
	switch {
	case remaining < time.Minute:
		return SeverityCritical
	case remaining < time.Hour:
		return SeverityHigh
	case remaining < 24*time.Hour:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PriorityRule compares adjacent ready tasks by descending priority and
// reports a pair when the higher-priority task transitively depends on the
// lower-priority one. Blocked tasks are never considered.
type PriorityRule struct{}

func (PriorityRule) Name() string { return "priority" }

func (PriorityRule) Detect(s Store, _ time.Time) ([]*Conflict, error) {
	ready := s.ReadyTasks()
	var out []*Conflict
	for i := 1; i < len(ready); i++ {
		high, low := ready[i-1], ready[i]
		if high.Data.Priority <= low.Data.Priority || !s.DependsOn(high.ID, low.ID) {
			continue
		}
		gap := high.Data.Priority - low.Data.Priority
		severity := SeverityMedium
		if gap >= 5 {
			severity = SeverityHigh
		}
		out = append(out, &Conflict{
			Type:     TypePriority,
			Tasks:    []string{high.ID, low.ID},
			Severity: severity,
			Details: map[string]any{
				"blocked":  high.ID,
				"blocking": low.ID,
				"gap":      gap,
			},
		})
	}
	return out, nil
}

// CycleRule reports every strongly connected component. The graph refuses
// cyclic edges, so this only fires if that guarantee was bypassed.
type CycleRule struct{}

func (CycleRule) Name() string { return "cycle" }

func (CycleRule) Detect(s Store, _ time.Time) ([]*Conflict, error) {
	var out []*Conflict
	for _, cycle := range s.DetectCycles() {
		out = append(out, &Conflict{
			Type:     TypeCycle,
			Tasks:    cycle,
			Severity: SeverityCritical,
			Details:  map[string]any{"size": len(cycle)},
		})
	}
	return out, nil
}

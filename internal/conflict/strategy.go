package conflict

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/specialistvlad/taskgrid/internal/graph"
)

// StrategyName identifies a resolution strategy.
type StrategyName string

const (
	StrategyPriorityOverride        StrategyName = "priority_override"
	StrategyResourceReallocation    StrategyName = "resource_reallocation"
	StrategyDeadlineAdjustment      StrategyName = "deadline_adjustment"
	StrategyDependencyRestructuring StrategyName = "dependency_restructuring"
)

// Strategy turns a conflict into the actions that repair it. Plan must not
// mutate the store.
type Strategy interface {
	Name() StrategyName
	Plan(c Conflict, s Store) (actions []Action, expectedOutcome string, err error)
}

func defaultStrategies(cfg Config) map[Type]Strategy {
	restructure := DependencyRestructuring{}
	return map[Type]Strategy{
		TypePriority:   PriorityOverride{},
		TypeResource:   ResourceReallocation{},
		TypeDeadline:   DeadlineAdjustment{AllowExtension: cfg.AllowDeadlineExtension, Buffer: cfg.DeadlineBuffer, Factor: cfg.OptimisticFactor},
		TypeDependency: restructure,
		TypeCycle:      restructure,
	}
}

// byPriority returns the snapshots of ids by descending priority, ties by id.
func byPriority(s Store, ids []string) ([]graph.Node, error) {
	nodes := make([]graph.Node, 0, len(ids))
	for _, id := range ids {
		n, ok := s.Task(id)
		if !ok {
			return nil, &graph.NotFoundError{Kind: "task", ID: id}
		}
		nodes = append(nodes, n)
	}
	slices.SortStableFunc(nodes, func(a, b graph.Node) int {
		if c := cmp.Compare(b.Data.Priority, a.Data.Priority); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return nodes, nil
}

// PriorityOverride delays every involved task except the one with the highest
// priority. It is also the fallback for types without a dedicated strategy.
type PriorityOverride struct{}

func (PriorityOverride) Name() StrategyName { return StrategyPriorityOverride }

func (PriorityOverride) Plan(c Conflict, s Store) ([]Action, string, error) {
	nodes, err := byPriority(s, c.Tasks)
	if err != nil {
		return nil, "", err
	}
	if len(nodes) == 0 {
		return nil, "", fmt.Errorf("conflict %s involves no tasks", c.ID)
	}
	top := nodes[0]
	var actions []Action
	for _, n := range nodes[1:] {
		actions = append(actions, Action{
			Kind:        ActionMarkDelayed,
			Description: fmt.Sprintf("Delay %s in favour of %s", n.ID, top.ID),
			Params: ActionParams{
				Tasks:  []string{n.ID},
				Reason: fmt.Sprintf("yields to %s (priority %g over %g)", top.ID, top.Data.Priority, n.Data.Priority),
			},
		})
	}
	return actions, fmt.Sprintf("%s runs first, %d task(s) delayed", top.ID, len(actions)), nil
}

// ResourceReallocation serializes tasks competing for a resource, highest
// priority first, by chaining them with dependency edges.
type ResourceReallocation struct{}

func (ResourceReallocation) Name() StrategyName { return StrategyResourceReallocation }

func (ResourceReallocation) Plan(c Conflict, s Store) ([]Action, string, error) {
	nodes, err := byPriority(s, c.Tasks)
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	resource, _ := c.Details["resource"].(string)
	action := Action{
		Kind:        ActionSerializeTasks,
		Description: fmt.Sprintf("Serialize %s on %q", strings.Join(ids, " -> "), resource),
		Params:      ActionParams{Tasks: ids, Reason: resource},
	}
	return []Action{action}, fmt.Sprintf("%d tasks use %q one after another", len(ids), resource), nil
}

// DeadlineAdjustment extends the deadline of the late task when allowed and
// always marks the chain parallelizable with an optimistic estimate.
type DeadlineAdjustment struct {
	AllowExtension bool
	Buffer         time.Duration
	Factor         float64
}

func (DeadlineAdjustment) Name() StrategyName { return StrategyDeadlineAdjustment }

func (d DeadlineAdjustment) Plan(c Conflict, s Store) ([]Action, string, error) {
	task := c.target()
	if _, ok := s.Task(task); !ok {
		return nil, "", &graph.NotFoundError{Kind: "task", ID: task}
	}
	chains, err := s.LongestChains(graph.RemainingDuration)
	if err != nil {
		return nil, "", err
	}
	required := chains.To(task).Duration

	var actions []Action
	outcome := "chain marked parallelizable"
	if d.AllowExtension {
		extension := required + d.Buffer
		actions = append(actions, Action{
			Kind:        ActionExtendDeadline,
			Description: fmt.Sprintf("Extend deadline of %s by %s", task, extension),
			Params:      ActionParams{Tasks: []string{task}, Extension: extension},
		})
		outcome = fmt.Sprintf("deadline of %s extended by %s, %s", task, extension, outcome)
	}
	actions = append(actions, Action{
		Kind:        ActionMarkParallelizable,
		Description: fmt.Sprintf("Mark %s parallelizable", strings.Join(c.Tasks, ", ")),
		Params:      ActionParams{Tasks: slices.Clone(c.Tasks), Factor: d.Factor},
	})
	return actions, outcome, nil
}

// DependencyRestructuring drops the non-critical dependency edges of the
// involved tasks.
type DependencyRestructuring struct{}

func (DependencyRestructuring) Name() StrategyName { return StrategyDependencyRestructuring }

func (DependencyRestructuring) Plan(c Conflict, s Store) ([]Action, string, error) {
	for _, id := range c.Tasks {
		if _, ok := s.Task(id); !ok {
			return nil, "", &graph.NotFoundError{Kind: "task", ID: id}
		}
	}
	action := Action{
		Kind:        ActionRemoveNonCriticalEdges,
		Description: fmt.Sprintf("Remove non-critical dependencies of %s", strings.Join(c.Tasks, ", ")),
		Params:      ActionParams{Tasks: slices.Clone(c.Tasks)},
	}
	return []Action{action}, "only critical dependency edges remain", nil
}

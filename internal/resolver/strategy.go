package resolver

import (
	"cmp"
	"maps"
	"slices"

	"github.com/specialistvlad/taskgrid/internal/graph"
)

// Result is an execution plan. ExecutionOrder is Levels flattened, except for
// the topological strategy which returns the plain topological order.
type Result struct {
	Strategy       Strategy   `json:"strategy"`
	ExecutionOrder []string   `json:"executionOrder"`
	Levels         [][]string `json:"levels"`
	NodeCount      int        `json:"nodeCount"`

	// Critical path strategy only.
	CriticalPath *graph.Path `json:"criticalPath,omitempty"`

	// Resource aware strategy only. ResourceUsage maps a resource to the tasks
	// that need it, ResourceConflicts lists resources shared inside a level.
	ResourceUsage     map[string][]string `json:"resourceUsage,omitempty"`
	ResourceConflicts []ResourceConflict  `json:"resourceConflicts,omitempty"`
}

// ResourceConflict is a resource wanted by more than one task of a level.
type ResourceConflict struct {
	Level    int      `json:"level"`
	Resource string   `json:"resource"`
	Tasks    []string `json:"tasks"`
}

func (r *Result) clone() *Result {
	out := *r
	out.ExecutionOrder = slices.Clone(r.ExecutionOrder)
	out.Levels = cloneLevels(r.Levels)
	if r.CriticalPath != nil {
		p := *r.CriticalPath
		p.Tasks = slices.Clone(p.Tasks)
		out.CriticalPath = &p
	}
	if r.ResourceUsage != nil {
		out.ResourceUsage = make(map[string][]string, len(r.ResourceUsage))
		for k, v := range r.ResourceUsage {
			out.ResourceUsage[k] = slices.Clone(v)
		}
	}
	if r.ResourceConflicts != nil {
		out.ResourceConflicts = make([]ResourceConflict, len(r.ResourceConflicts))
		for i, c := range r.ResourceConflicts {
			c.Tasks = slices.Clone(c.Tasks)
			out.ResourceConflicts[i] = c
		}
	}
	return &out
}

func cloneLevels(levels [][]string) [][]string {
	if levels == nil {
		return nil
	}
	out := make([][]string, len(levels))
	for i, l := range levels {
		out[i] = slices.Clone(l)
	}
	return out
}

type strategyFunc func(g *graph.Graph) (*Result, error)

var strategyFuncs = map[Strategy]strategyFunc{
	StrategyTopological:    topological,
	StrategyPriorityBased:  priorityBased,
	StrategyResourceAware:  resourceAware,
	StrategyDeadlineDriven: deadlineDriven,
	StrategyCriticalPath:   criticalPath,
}

func topological(g *graph.Graph) (*Result, error) {
	l, err := g.Layout()
	if err != nil {
		return nil, err
	}
	return &Result{
		Strategy:       StrategyTopological,
		ExecutionOrder: l.Order,
		Levels:         l.Levels,
		NodeCount:      len(l.Order),
	}, nil
}

// entry is one task as seen by a level comparator.
type entry struct {
	id       string
	data     graph.TaskData
	critical bool
}

// leveled orders every level of l with less and flattens the result. Levels
// come out of the graph sorted by id, the stable sort keeps that as
// tie-breaker.
func leveled(s Strategy, l *graph.Layout, onPath map[string]bool, less func(a, b *entry) int) *Result {
	res := &Result{Strategy: s, Levels: l.Levels, NodeCount: len(l.Order)}
	if len(l.Order) > 0 {
		res.ExecutionOrder = make([]string, 0, len(l.Order))
	}
	var entries []entry
	for _, level := range l.Levels {
		entries = entries[:0]
		for _, id := range level {
			entries = append(entries, entry{id: id, data: l.Data[id], critical: onPath[id]})
		}
		slices.SortStableFunc(entries, func(a, b entry) int { return less(&a, &b) })
		for i := range entries {
			level[i] = entries[i].id
		}
		res.ExecutionOrder = append(res.ExecutionOrder, level...)
	}
	return res
}

func priorityBased(g *graph.Graph) (*Result, error) {
	l, err := g.Layout()
	if err != nil {
		return nil, err
	}
	return leveled(StrategyPriorityBased, l, nil, func(a, b *entry) int {
		return cmpDesc(a.data.Priority, b.data.Priority)
	}), nil
}

func resourceAware(g *graph.Graph) (*Result, error) {
	l, err := g.Layout()
	if err != nil {
		return nil, err
	}
	res := leveled(StrategyResourceAware, l, nil, func(a, b *entry) int {
		return cmp.Compare(len(a.data.RequiredResources), len(b.data.RequiredResources))
	})

	usage := make(map[string][]string)
	for _, id := range res.ExecutionOrder {
		for _, resource := range l.Data[id].RequiredResources {
			usage[resource] = append(usage[resource], id)
		}
	}
	res.ResourceUsage = usage

	for i, level := range res.Levels {
		inLevel := make(map[string][]string)
		for _, id := range level {
			for _, resource := range l.Data[id].RequiredResources {
				inLevel[resource] = append(inLevel[resource], id)
			}
		}
		for _, resource := range slices.Sorted(maps.Keys(inLevel)) {
			if tasks := inLevel[resource]; len(tasks) > 1 {
				res.ResourceConflicts = append(res.ResourceConflicts, ResourceConflict{
					Level:    i,
					Resource: resource,
					Tasks:    tasks,
				})
			}
		}
	}
	return res, nil
}

func deadlineDriven(g *graph.Graph) (*Result, error) {
	l, err := g.Layout()
	if err != nil {
		return nil, err
	}
	return leveled(StrategyDeadlineDriven, l, nil, func(a, b *entry) int {
		switch da, db := a.data.Deadline, b.data.Deadline; {
		case da == nil && db == nil:
			return 0
		case da == nil:
			return 1
		case db == nil:
			return -1
		default:
			return da.Compare(*db)
		}
	}), nil
}

func criticalPath(g *graph.Graph) (*Result, error) {
	l, err := g.Layout()
	if err != nil {
		return nil, err
	}
	path, err := g.CriticalPath()
	if err != nil {
		return nil, err
	}
	onPath := make(map[string]bool, len(path.Tasks))
	for _, id := range path.Tasks {
		onPath[id] = true
	}
	res := leveled(StrategyCriticalPath, l, onPath, func(a, b *entry) int {
		switch {
		case a.critical && b.critical:
			return cmp.Compare(b.data.EstimatedDuration, a.data.EstimatedDuration)
		case a.critical:
			return -1
		case b.critical:
			return 1
		default:
			return 0
		}
	})
	res.CriticalPath = &path
	return res, nil
}

func cmpDesc[T cmp.Ordered](a, b T) int {
	return cmp.Compare(b, a)
}

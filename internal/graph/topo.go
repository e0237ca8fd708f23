package graph

import (
	"slices"
	"time"
)

const (
	unvisited uint8 = iota
	visiting
	visited
)

type sortFrame struct {
	v   int
	pos int
}

// Sort returns a topological order in which every task appears after all of
// its dependencies. Ties are broken by id so the result is deterministic.
//
// The store already refuses cyclic edges; reaching a task that is still being
// visited is reported as a *CycleError regardless.
func (g *Graph) Sort() ([]string, error) {
	g.mutex.RLock()
	x := g.indexLocked()
	g.mutex.RUnlock()

	order, err := x.sort()
	if err != nil {
		return nil, err
	}
	return x.names(order), nil
}

// sort is a three-colour depth-first walk over the dependencies relation.
// Roots and dependencies are taken in ascending id order.
func (x *index) sort() ([]int, error) {
	color := make([]uint8, len(x.ids))
	order := make([]int, 0, len(x.ids))

	var stack []sortFrame
	for root := range x.ids {
		if color[root] != unvisited {
			continue
		}
		color[root] = visiting
		stack = append(stack[:0], sortFrame{v: root})
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if next := x.deps[f.v]; f.pos < len(next) {
				dep := next[f.pos]
				f.pos++
				switch color[dep] {
				case visiting:
					return nil, &CycleError{Cycles: [][]string{x.cycleFromStack(stack, dep)}}
				case unvisited:
					color[dep] = visiting
					stack = append(stack, sortFrame{v: dep})
				}
				continue
			}
			color[f.v] = visited
			order = append(order, f.v)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}

func (x *index) cycleFromStack(stack []sortFrame, start int) []string {
	var cycle []string
	for i, f := range stack {
		if f.v == start {
			for _, rest := range stack[i:] {
				cycle = append(cycle, x.ids[rest.v])
			}
			break
		}
	}
	return append(cycle, x.ids[start])
}

// levels buckets tasks by the length of their longest dependency chain,
// given a topological order. Buckets are sorted by id.
func (x *index) levels(order []int) [][]string {
	level := make([]int, len(x.ids))
	var buckets [][]int
	for _, v := range order {
		lvl := 0
		for _, dep := range x.deps[v] {
			lvl = max(lvl, level[dep]+1)
		}
		level[v] = lvl
		for len(buckets) <= lvl {
			buckets = append(buckets, nil)
		}
		buckets[lvl] = append(buckets[lvl], v)
	}
	var out [][]string
	for _, bucket := range buckets {
		slices.Sort(bucket)
		out = append(out, x.names(bucket))
	}
	return out
}

// ExecutionLevels groups tasks by the length of their longest dependency
// chain: level 0 has no dependencies, otherwise a task sits one level above
// its deepest dependency. Buckets are sorted by id.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	layout, err := g.Layout()
	if err != nil {
		return nil, err
	}
	return layout.Levels, nil
}

// Layout is a topological order and the execution levels of one graph state,
// computed from a single traversal.
type Layout struct {
	Order  []string
	Levels [][]string
	// Data holds the payload of every task. Payload slices and maps are shared
	// with the store and must not be modified.
	Data map[string]TaskData
}

// Layout returns Sort and ExecutionLevels together with every payload.
func (g *Graph) Layout() (*Layout, error) {
	g.mutex.RLock()
	x := g.indexLocked()
	data := make(map[string]TaskData, len(x.ids))
	for i, v := range x.verts {
		data[x.ids[i]] = v.data
	}
	g.mutex.RUnlock()

	order, err := x.sort()
	if err != nil {
		return nil, err
	}
	return &Layout{Order: x.names(order), Levels: x.levels(order), Data: data}, nil
}

// Weight returns the cost a task contributes to a chain.
type Weight func(data TaskData, state State) time.Duration

// EstimatedDuration weighs every task by its estimated duration.
func EstimatedDuration(data TaskData, _ State) time.Duration {
	return data.EstimatedDuration
}

// RemainingDuration is EstimatedDuration except that completed tasks cost
// nothing.
func RemainingDuration(data TaskData, state State) time.Duration {
	if state == StateCompleted {
		return 0
	}
	return data.EstimatedDuration
}

// Path is a dependency chain ordered from its first task to its last.
type Path struct {
	Tasks    []string      `json:"tasks"`
	Duration time.Duration `json:"duration"`
}

// Chains holds the heaviest chain ending at every task.
type Chains struct {
	x     *index
	order []int
	dist  []time.Duration
	// prev is the heaviest dependency of each task, -1 for none.
	prev []int
}

// LongestChains computes, for every task, the heaviest chain of dependencies
// ending at that task (the task's own weight included). Ties between
// dependencies go to the smallest id.
func (g *Graph) LongestChains(weight Weight) (*Chains, error) {
	g.mutex.RLock()
	x := g.indexLocked()
	weights := make([]time.Duration, len(x.verts))
	for i, v := range x.verts {
		weights[i] = weight(v.data, v.state)
	}
	g.mutex.RUnlock()

	order, err := x.sort()
	if err != nil {
		return nil, err
	}
	c := &Chains{
		x:     x,
		order: order,
		dist:  make([]time.Duration, len(x.ids)),
		prev:  make([]int, len(x.ids)),
	}
	for _, v := range order {
		best, bestDep := time.Duration(0), -1
		for _, dep := range x.deps[v] {
			if d := c.dist[dep]; bestDep < 0 || d > best {
				best, bestDep = d, dep
			}
		}
		c.dist[v] = best + weights[v]
		c.prev[v] = bestDep
	}
	return c, nil
}

// To returns the heaviest chain ending at id.
func (c *Chains) To(id string) Path {
	v, ok := c.x.pos[id]
	if !ok {
		return Path{}
	}
	return c.path(v)
}

func (c *Chains) path(v int) Path {
	var tasks []string
	for cur := v; cur >= 0; cur = c.prev[cur] {
		tasks = append(tasks, c.x.ids[cur])
	}
	slices.Reverse(tasks)
	return Path{Tasks: tasks, Duration: c.dist[v]}
}

// Critical returns the heaviest chain in the whole graph. Ties go to the task
// that appears first in topological order.
func (c *Chains) Critical() Path {
	end := -1
	var best time.Duration
	for _, v := range c.order {
		if d := c.dist[v]; end < 0 || d > best {
			end, best = v, d
		}
	}
	if end < 0 {
		return Path{}
	}
	return c.path(end)
}

// CriticalPath is shorthand for LongestChains(EstimatedDuration).Critical().
func (g *Graph) CriticalPath() (Path, error) {
	chains, err := g.LongestChains(EstimatedDuration)
	if err != nil {
		return Path{}, err
	}
	return chains.Critical(), nil
}

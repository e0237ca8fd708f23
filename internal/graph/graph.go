package graph

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Graph is a directed acyclic graph of tasks. All operations are
// concurrency-safe; every mutation runs to completion under the write lock.
type Graph struct {
	// mutex protects every field below.
	mutex sync.RWMutex
	nodes map[string]*vertex
	// forward maps an id to its dependents and reverse maps an id to its
	// dependencies. Both alias the vertex-level sets.
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
	edges   int

	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Graph {
	ts := now()
	return &Graph{
		nodes:     make(map[string]*vertex),
		forward:   make(map[string]map[string]struct{}),
		reverse:   make(map[string]map[string]struct{}),
		createdAt: ts,
		updatedAt: ts,
		now:       now,
	}
}

// AddNode inserts a pending task. Ids must be non-empty and unique.
func (g *Graph) AddNode(id string, data TaskData) error {
	if id == "" {
		return fmt.Errorf("graph: task id must not be empty")
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("task %q %w", id, ErrDuplicate)
	}

	ts := g.now()
	v := &vertex{
		id:           id,
		data:         data.Clone(),
		state:        StatePending,
		dependencies: make(map[string]struct{}),
		dependents:   make(map[string]struct{}),
		createdAt:    ts,
		updatedAt:    ts,
	}
	g.nodes[id] = v
	g.forward[id] = v.dependents
	g.reverse[id] = v.dependencies
	g.updatedAt = ts
	return nil
}

// RemoveNode deletes a task and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return taskNotFound(id)
	}

	ts := g.now()
	for depID := range v.dependencies {
		dep := g.nodes[depID]
		delete(dep.dependents, id)
		dep.updatedAt = ts
		g.edges--
	}
	for childID := range v.dependents {
		child := g.nodes[childID]
		delete(child.dependencies, id)
		child.updatedAt = ts
		g.edges--
	}
	delete(g.nodes, id)
	delete(g.forward, id)
	delete(g.reverse, id)
	g.updatedAt = ts
	return nil
}

// AddDependency records that taskID depends on dependsOn. The edge is rejected
// with a *CycleError, before any mutation, if it would close a cycle. Adding an
// edge that already exists is a no-op.
func (g *Graph) AddDependency(taskID, dependsOn string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	task, ok := g.nodes[taskID]
	if !ok {
		return taskNotFound(taskID)
	}
	dep, ok := g.nodes[dependsOn]
	if !ok {
		return taskNotFound(dependsOn)
	}
	if taskID == dependsOn {
		return &CycleError{From: taskID, To: dependsOn, Cycles: [][]string{{taskID, taskID}}}
	}
	if _, exists := task.dependencies[dependsOn]; exists {
		return nil
	}

	// With the candidate edge taskID -> dependsOn in place, a walk from taskID
	// returns to taskID exactly when dependsOn already reaches taskID. Only a
	// task with dependents can be reached.
	if len(task.dependents) > 0 {
		if path := g.pathLocked(dependsOn, taskID); path != nil {
			cycle := append([]string{taskID}, path...)
			return &CycleError{From: taskID, To: dependsOn, Cycles: [][]string{cycle}}
		}
	}

	ts := g.now()
	task.dependencies[dependsOn] = struct{}{}
	dep.dependents[taskID] = struct{}{}
	task.updatedAt = ts
	dep.updatedAt = ts
	g.edges++
	g.updatedAt = ts
	return nil
}

// RemoveDependency deletes the edge taskID -> dependsOn.
func (g *Graph) RemoveDependency(taskID, dependsOn string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	task, ok := g.nodes[taskID]
	if !ok {
		return taskNotFound(taskID)
	}
	dep, ok := g.nodes[dependsOn]
	if !ok {
		return taskNotFound(dependsOn)
	}
	if _, exists := task.dependencies[dependsOn]; !exists {
		return &NotFoundError{Kind: "dependency", ID: taskID + " -> " + dependsOn}
	}

	ts := g.now()
	delete(task.dependencies, dependsOn)
	delete(dep.dependents, taskID)
	task.updatedAt = ts
	dep.updatedAt = ts
	g.edges--
	g.updatedAt = ts
	return nil
}

// HasDependency reports whether taskID directly depends on dependsOn.
func (g *Graph) HasDependency(taskID, dependsOn string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	deps, ok := g.reverse[taskID]
	if !ok {
		return false
	}
	_, ok = deps[dependsOn]
	return ok
}

// DependsOn reports whether taskID depends on ancestor directly or through
// any chain of dependencies.
func (g *Graph) DependsOn(taskID, ancestor string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if taskID == ancestor {
		return false
	}
	return g.pathLocked(taskID, ancestor) != nil
}

// pathLocked walks the dependencies relation from start and returns the path
// to target (inclusive), or nil when target is unreachable.
func (g *Graph) pathLocked(start, target string) []string {
	if _, ok := g.nodes[start]; !ok {
		return nil
	}
	parent := map[string]string{start: ""}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			var path []string
			for cur := id; cur != ""; cur = parent[cur] {
				path = append(path, cur)
			}
			slices.Reverse(path)
			return path
		}
		for next := range g.reverse[id] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = id
			stack = append(stack, next)
		}
	}
	return nil
}

// Dependencies returns the sorted ids the given task depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	deps, ok := g.reverse[id]
	if !ok {
		return nil, taskNotFound(id)
	}
	return sortedKeys(deps), nil
}

// Dependents returns the sorted ids that depend on the given task.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	dependents, ok := g.forward[id]
	if !ok {
		return nil, taskNotFound(id)
	}
	return sortedKeys(dependents), nil
}

// Node returns a snapshot of a single task.
func (g *Graph) Node(id string) (Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return v.snapshot(), true
}

// Nodes returns snapshots of every task ordered by id.
func (g *Graph) Nodes() []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]Node, 0, len(g.nodes))
	for _, id := range g.idsLocked() {
		out = append(out, g.nodes[id].snapshot())
	}
	return out
}

// IDs returns every task id in sorted order.
func (g *Graph) IDs() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.idsLocked()
}

func (g *Graph) idsLocked() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.edges
}

// SetState moves a task to a new lifecycle state. StateReady is rejected
// because readiness is derived.
func (g *Graph) SetState(id string, state State) error {
	if err := state.check(); err != nil {
		return err
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return taskNotFound(id)
	}
	ts := g.now()
	v.state = state
	v.updatedAt = ts
	g.updatedAt = ts
	return nil
}

// UpdateData applies fn to a task's payload under the write lock.
func (g *Graph) UpdateData(id string, fn func(*TaskData)) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return taskNotFound(id)
	}
	data := v.data.Clone()
	fn(&data)
	ts := g.now()
	v.data = data.Clone()
	v.updatedAt = ts
	g.updatedAt = ts
	return nil
}

// Restore overwrites the lifecycle fields of a task. It exists for snapshot
// import and does not touch edges.
func (g *Graph) Restore(id string, state State, createdAt, updatedAt time.Time) error {
	if err := state.check(); err != nil {
		return err
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return taskNotFound(id)
	}
	v.state = state
	if !createdAt.IsZero() {
		v.createdAt = createdAt
	}
	if !updatedAt.IsZero() {
		v.updatedAt = updatedAt
	}
	return nil
}

// IsReady reports whether the task is pending with every dependency completed.
func (g *Graph) IsReady(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	return ok && g.readyLocked(v)
}

func (g *Graph) readyLocked(v *vertex) bool {
	if v.state != StatePending {
		return false
	}
	for depID := range v.dependencies {
		if g.nodes[depID].state != StateCompleted {
			return false
		}
	}
	return true
}

// ReadyNodes returns snapshots of all ready tasks ordered by id.
func (g *Graph) ReadyNodes() []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out []Node
	for _, id := range g.idsLocked() {
		if v := g.nodes[id]; g.readyLocked(v) {
			out = append(out, v.snapshot())
		}
	}
	return out
}

// CreatedAt returns when the graph was created.
func (g *Graph) CreatedAt() time.Time {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.createdAt
}

// UpdatedAt returns the time of the last structural mutation.
func (g *Graph) UpdatedAt() time.Time {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.updatedAt
}

package resolver

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/graph"
	"github.com/specialistvlad/taskgrid/internal/metrics"
)

// Operation names recorded into the metrics ring.
const (
	OpResolve       = "resolve"
	OpDetectCycles  = "detect_cycles"
	OpAddTask       = "add_task"
	OpAddDependency = "add_dependency"
)

// Resolver owns a task graph and computes execution plans from it.
// It is safe for concurrent use.
type Resolver struct {
	cfg   Config
	graph *graph.Graph

	// mu guards strategy, cache and generation. Every mutation clears the
	// whole cache, so results are keyed by strategy alone. generation is
	// bumped by every invalidation so a Resolve that raced with a mutation
	// never stores its result.
	mu         sync.Mutex
	strategy   Strategy
	cache      map[Strategy]*Result
	generation uint64

	metrics *metrics.Recorder
	now     func() time.Time
}

// New creates an empty Resolver.
func New(cfg Config) (*Resolver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Resolver{
		cfg:      cfg,
		graph:    graph.New(),
		strategy: cfg.Strategy,
		cache:    make(map[Strategy]*Result),
		metrics:  metrics.NewRecorder(cfg.MetricsWindow),
		now:      time.Now,
	}, nil
}

// Config returns the construction settings. Strategy reflects the value given
// at construction, see Strategy for the active one.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Invalidate drops every cached result.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked()
}

func (r *Resolver) invalidateLocked() {
	clear(r.cache)
	r.generation++
}

// mutate runs fn and clears the cache when it succeeds.
func (r *Resolver) mutate(fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	r.Invalidate()
	return nil
}

// AddTask inserts a pending task.
func (r *Resolver) AddTask(id string, data graph.TaskData) error {
	start := r.now()
	err := r.mutate(func() error { return r.graph.AddNode(id, data) })
	r.observe(OpAddTask, start, 1)
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	return nil
}

// RemoveTask deletes a task together with every edge touching it.
func (r *Resolver) RemoveTask(id string) error {
	return r.mutate(func() error { return r.graph.RemoveNode(id) })
}

// UpdateTask applies fn to the payload of a task.
func (r *Resolver) UpdateTask(id string, fn func(*graph.TaskData)) error {
	return r.mutate(func() error { return r.graph.UpdateData(id, fn) })
}

// UpdateTaskState reports progress of a task.
func (r *Resolver) UpdateTaskState(id string, state graph.State) error {
	return r.mutate(func() error { return r.graph.SetState(id, state) })
}

// AddDependency records that taskID needs dependsOn completed first. Edges
// that would close a cycle are rejected with a *graph.CycleError and leave the
// graph unchanged.
func (r *Resolver) AddDependency(taskID, dependsOn string) error {
	start := r.now()
	err := r.mutate(func() error { return r.graph.AddDependency(taskID, dependsOn) })
	r.observe(OpAddDependency, start, 1)
	return err
}

// RemoveDependency deletes the edge taskID -> dependsOn.
func (r *Resolver) RemoveDependency(taskID, dependsOn string) error {
	return r.mutate(func() error { return r.graph.RemoveDependency(taskID, dependsOn) })
}

func (r *Resolver) HasDependency(taskID, dependsOn string) bool {
	return r.graph.HasDependency(taskID, dependsOn)
}

// DependsOn reports whether taskID transitively depends on ancestor.
func (r *Resolver) DependsOn(taskID, ancestor string) bool {
	return r.graph.DependsOn(taskID, ancestor)
}

func (r *Resolver) Dependencies(id string) ([]string, error) {
	return r.graph.Dependencies(id)
}

func (r *Resolver) Dependents(id string) ([]string, error) {
	return r.graph.Dependents(id)
}

// Task returns a snapshot of one task.
func (r *Resolver) Task(id string) (graph.Node, bool) {
	return r.graph.Node(id)
}

// Tasks returns snapshots of every task ordered by id.
func (r *Resolver) Tasks() []graph.Node {
	return r.graph.Nodes()
}

// LongestChains exposes the weighted chain computation of the graph.
func (r *Resolver) LongestChains(weight graph.Weight) (*graph.Chains, error) {
	return r.graph.LongestChains(weight)
}

// DetectCycles returns every cycle in the graph, empty when healthy.
func (r *Resolver) DetectCycles() [][]string {
	start := r.now()
	cycles := r.graph.DetectCycles()
	r.observe(OpDetectCycles, start, r.graph.Len())
	return cycles
}

func (r *Resolver) HasCycles() bool {
	return len(r.DetectCycles()) > 0
}

// ReadyTasks returns the ready tasks by descending priority, ties by id.
func (r *Resolver) ReadyTasks() []graph.Node {
	ready := r.graph.ReadyNodes()
	slices.SortStableFunc(ready, func(a, b graph.Node) int {
		return cmpDesc(a.Data.Priority, b.Data.Priority)
	})
	return ready
}

// SetStrategy changes the active strategy.
func (r *Resolver) SetStrategy(s Strategy) error {
	if !s.Valid() {
		return &InvalidStrategyError{Strategy: string(s)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategy = s
	return nil
}

// Strategy returns the active strategy.
func (r *Resolver) Strategy() Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.strategy
}

// Resolve computes the execution plan with the active strategy.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	return r.ResolveWith(ctx, r.Strategy())
}

// ResolveWith computes the execution plan with the given strategy without
// changing the active one.
func (r *Resolver) ResolveWith(ctx context.Context, s Strategy) (*Result, error) {
	if !s.Valid() {
		return nil, &InvalidStrategyError{Strategy: string(s)}
	}
	logger := ctxlog.FromContext(ctx)
	start := r.now()

	nodeCount := r.graph.Len()

	r.mu.Lock()
	cached, hit := r.cache[s]
	generation := r.generation
	r.mu.Unlock()

	var res *Result
	var err error
	if hit {
		res = cached
	} else {
		res, err = r.compute(s)
	}

	elapsed := r.now().Sub(start)
	r.observe(OpResolve, start, nodeCount)
	if r.cfg.MaxResolutionTime > 0 && elapsed > r.cfg.MaxResolutionTime {
		logger.Warn("Resolution exceeded time budget.",
			"duration", elapsed,
			"budget", r.cfg.MaxResolutionTime,
			"strategy", s,
			"node_count", nodeCount,
		)
	}
	if err != nil {
		return nil, err
	}

	if !hit {
		r.mu.Lock()
		if r.generation == generation {
			r.cache[s] = res
		}
		r.mu.Unlock()
	}
	logger.Debug("Resolved execution plan.", "strategy", s, "node_count", nodeCount, "cached", hit, "duration", elapsed)
	return res.clone(), nil
}

func (r *Resolver) compute(s Strategy) (*Result, error) {
	if r.cfg.EnableCycleDetection {
		if cycles := r.DetectCycles(); len(cycles) > 0 {
			return nil, &graph.CycleError{Cycles: cycles}
		}
	}
	return strategyFuncs[s](r.graph)
}

func (r *Resolver) observe(op string, start time.Time, nodeCount int) {
	if !r.cfg.EnableMetrics {
		return
	}
	r.metrics.Record(op, r.now().Sub(start), nodeCount)
}

// Stats summarises the graph for observability.
type Stats struct {
	Nodes        int                 `json:"nodes"`
	Edges        int                 `json:"edges"`
	States       map[graph.State]int `json:"states"`
	Ready        int                 `json:"ready"`
	Strategy     Strategy            `json:"strategy"`
	CacheEntries int                 `json:"cacheEntries"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Stats returns node and edge counts plus a per-state histogram.
func (r *Resolver) Stats() Stats {
	st := Stats{
		Nodes:     r.graph.Len(),
		Edges:     r.graph.EdgeCount(),
		States:    make(map[graph.State]int),
		Ready:     len(r.graph.ReadyNodes()),
		CreatedAt: r.graph.CreatedAt(),
		UpdatedAt: r.graph.UpdatedAt(),
	}
	for _, n := range r.graph.Nodes() {
		st.States[n.State]++
	}
	r.mu.Lock()
	st.Strategy = r.strategy
	st.CacheEntries = len(r.cache)
	r.mu.Unlock()
	return st
}

// Metrics returns per-operation timing statistics.
func (r *Resolver) Metrics() map[string]metrics.OperationStats {
	return r.metrics.Snapshot()
}

// PublishMetrics exposes Metrics through expvar under name.
func (r *Resolver) PublishMetrics(name string) {
	r.metrics.Publish(name)
}

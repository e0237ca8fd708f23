package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/graph"
	"github.com/specialistvlad/taskgrid/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Operation names recorded into the metrics ring.
const (
	OpDetect  = "detect_conflicts"
	OpResolve = "resolve_conflict"
)

// Engine detects conflicts in a Store and drives their resolution.
// It is safe for concurrent use.
type Engine struct {
	cfg        Config
	store      Store
	rules      []Rule
	strategies map[Type]Strategy
	fallback   Strategy
	executor   Executor
	sink       EventSink
	locks      *taskLocks
	metrics    *metrics.Recorder
	now        func() time.Time

	// mu guards everything below.
	mu        sync.Mutex
	conflicts map[string]*Conflict
	order     []string
	history   []HistoryEntry
	counters  counters
	seq       struct{ conflict, plan uint64 }
}

type counters struct {
	detected       int
	resolved       int
	failed         int
	escalated      int
	strategyUsage  map[StrategyName]int
	resolutionTime time.Duration
}

// Option customises an Engine.
type Option func(*Engine)

// WithExecutor replaces the action executor.
func WithExecutor(x Executor) Option {
	return func(e *Engine) { e.executor = x }
}

// WithEventSink sends lifecycle events to sink.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithRules replaces the detection rules.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithStrategy registers s for conflicts of type t, replacing the default.
func WithStrategy(t Type, s Strategy) Option {
	return func(e *Engine) { e.strategies[t] = s }
}

// NewEngine creates an engine working on store.
func NewEngine(store Store, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("conflict: store must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		store:      store,
		rules:      DefaultRules(),
		strategies: defaultStrategies(cfg),
		fallback:   PriorityOverride{},
		executor:   NewActionExecutor(),
		sink:       discardSink{},
		locks:      newTaskLocks(),
		metrics:    metrics.NewRecorder(0),
		now:        time.Now,
		conflicts:  make(map[string]*Conflict),
		counters:   counters{strategyUsage: make(map[StrategyName]int)},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RegisterStrategy registers s for conflicts of type t.
func (e *Engine) RegisterStrategy(t Type, s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[t] = s
}

// DetectConflicts runs every rule, registers the findings as pending
// conflicts and returns them. With AutoResolve set the new conflicts are
// resolved before returning and the returned copies reflect that.
//
// Detection is a snapshot: a resolution running concurrently may already
// have changed the graph.
func (e *Engine) DetectConflicts(ctx context.Context) ([]Conflict, error) {
	logger := ctxlog.FromContext(ctx)
	start := e.now()
	now := start

	var found []*Conflict
	for _, rule := range e.rules {
		cs, err := rule.Detect(e.store, now)
		if err != nil {
			return nil, fmt.Errorf("detect conflicts: rule %s: %w", rule.Name(), err)
		}
		found = append(found, cs...)
	}

	e.mu.Lock()
	ids := make([]string, 0, len(found))
	events := make([]Event, 0, len(found))
	for _, c := range found {
		e.seq.conflict++
		c.ID = fmt.Sprintf("conflict-%d", e.seq.conflict)
		c.Status = StatusPending
		c.DetectedAt = now
		c.UpdatedAt = now
		e.conflicts[c.ID] = c
		e.order = append(e.order, c.ID)
		e.counters.detected++
		ids = append(ids, c.ID)
		events = append(events, Event{Type: EventDetected, Conflict: c.clone(), At: now})
	}
	e.mu.Unlock()

	e.observe(OpDetect, start, len(found))
	logger.Info("Conflict detection finished.", "found", len(found))
	for _, ev := range events {
		logger.Debug("Conflict detected.", "conflict", ev.Conflict.ID, "type", ev.Conflict.Type, "severity", ev.Conflict.Severity, "tasks", ev.Conflict.Tasks)
		e.publish(ctx, ev)
	}

	if e.cfg.AutoResolve && len(ids) > 0 {
		batch := e.ResolveAllConflicts(ctx)
		logger.Info("Auto-resolution finished.", "resolved", batch.Resolved, "total", batch.Total)
	}
	return e.copies(ids), nil
}

// Result is the outcome of one ResolveConflict call.
type Result struct {
	ConflictID string        `json:"conflictId"`
	Success    bool          `json:"success"`
	Status     Status        `json:"status"`
	PlanID     string        `json:"planId,omitempty"`
	Strategy   StrategyName  `json:"strategy,omitempty"`
	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"duration"`
	// Reason explains a refused or failed attempt.
	Reason string `json:"reason,omitempty"`
}

// ResolveConflict runs one resolution attempt. A conflict that is not pending
// or retryable is left alone and reported through a Result with Success false
// and a nil error. A failed attempt returns both the Result and the cause.
func (e *Engine) ResolveConflict(ctx context.Context, id string) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("conflict", id)
	start := e.now()

	e.mu.Lock()
	c, ok := e.conflicts[id]
	if !ok {
		e.mu.Unlock()
		return nil, &graph.NotFoundError{Kind: "conflict", ID: id}
	}
	if !c.Status.resolvable() {
		res := &Result{ConflictID: id, Status: c.Status, Attempts: c.Attempts, Reason: fmt.Sprintf("conflict is %s", c.Status)}
		e.mu.Unlock()
		logger.Debug("Conflict not resolvable in its current status.", "status", res.Status)
		return res, nil
	}
	c.Status = StatusResolving
	c.UpdatedAt = start
	snapshot := c.clone()
	strategy, ok := e.strategies[c.Type]
	if !ok {
		strategy = e.fallback
	}
	e.seq.plan++
	plan := &Plan{
		ID:         fmt.Sprintf("plan-%d", e.seq.plan),
		ConflictID: id,
		Strategy:   strategy.Name(),
		Status:     PlanPending,
	}
	e.mu.Unlock()

	logger = logger.With("plan", plan.ID, "strategy", plan.Strategy)
	logger.Debug("Resolving conflict.", "type", snapshot.Type, "attempt", snapshot.Attempts+1)

	actions, outcome, err := strategy.Plan(snapshot, e.store)
	if err == nil {
		plan.Actions = actions
		plan.ExpectedOutcome = outcome
		plan.Status = PlanExecuting
		err = e.run(ctxlog.WithLogger(ctx, logger), plan, snapshot.Tasks)
	}
	elapsed := e.now().Sub(start)
	e.observe(OpResolve, start, len(snapshot.Tasks))

	if err != nil {
		plan.Status = PlanFailed
		return e.fail(ctx, logger, id, plan, elapsed, err)
	}
	plan.Status = PlanCompleted
	return e.succeed(ctx, logger, id, plan, elapsed), nil
}

// run executes plan under the resolution timeout. Execution happens in its
// own goroutine holding the task locks; on timeout the caller stops waiting
// and the executor stops at its next action boundary.
func (e *Engine) run(ctx context.Context, plan *Plan, involved []string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ResolutionTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		release, err := e.locks.acquire(ctx, plan.tasks(involved))
		if err != nil {
			done <- err
			return
		}
		defer release()
		done <- e.executor.Execute(ctx, e.store, plan)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ResolutionTimeoutError{ConflictID: plan.ConflictID, PlanID: plan.ID, Timeout: e.cfg.ResolutionTimeout}
	}
	return err
}

func (e *Engine) succeed(ctx context.Context, logger *slog.Logger, id string, plan *Plan, elapsed time.Duration) *Result {
	now := e.now()

	e.mu.Lock()
	c := e.conflicts[id]
	c.Status = StatusResolved
	c.Attempts++
	c.LastError = ""
	c.UpdatedAt = now
	c.Resolution = &Resolution{
		PlanID:          plan.ID,
		Strategy:        plan.Strategy,
		ExpectedOutcome: plan.ExpectedOutcome,
		Actions:         cloneActions(plan.Actions),
		Log:             slices.Clone(plan.Log),
		Duration:        elapsed,
		ResolvedAt:      now,
	}
	e.counters.resolved++
	e.counters.strategyUsage[plan.Strategy]++
	e.counters.resolutionTime += elapsed
	e.history = append(e.history, historyEntry(c, plan, elapsed, "", now))
	ev := Event{Type: EventResolved, Conflict: c.clone(), At: now}
	res := &Result{ConflictID: id, Success: true, Status: c.Status, PlanID: plan.ID, Strategy: plan.Strategy, Attempts: c.Attempts, Duration: elapsed}
	e.mu.Unlock()

	logger.Info("Conflict resolved.", "duration", elapsed, "actions", len(plan.Actions))
	e.publish(ctx, ev)
	return res
}

func (e *Engine) fail(ctx context.Context, logger *slog.Logger, id string, plan *Plan, elapsed time.Duration, cause error) (*Result, error) {
	now := e.now()

	e.mu.Lock()
	c := e.conflicts[id]
	c.Attempts++
	c.LastError = cause.Error()
	c.UpdatedAt = now
	evType := EventFailed
	if c.Attempts >= e.cfg.MaxAttempts {
		c.Status = StatusEscalated
		evType = EventEscalated
		e.counters.escalated++
	} else {
		c.Status = StatusRetryable
	}
	e.counters.failed++
	// On timeout the plan may still be running, so its log is not read.
	var entry HistoryEntry
	if errors.Is(cause, ErrResolutionTimeout) {
		entry = historyEntry(c, &Plan{ID: plan.ID, Strategy: plan.Strategy, Actions: plan.Actions}, elapsed, cause.Error(), now)
	} else {
		entry = historyEntry(c, plan, elapsed, cause.Error(), now)
	}
	e.history = append(e.history, entry)
	ev := Event{Type: evType, Conflict: c.clone(), Error: cause.Error(), At: now}
	res := &Result{ConflictID: id, Status: c.Status, PlanID: plan.ID, Strategy: plan.Strategy, Attempts: c.Attempts, Duration: elapsed, Reason: cause.Error()}
	e.mu.Unlock()

	if res.Status == StatusEscalated {
		logger.Error("Conflict escalated after exhausting resolution attempts.", "attempts", res.Attempts, "error", cause)
	} else {
		logger.Warn("Conflict resolution attempt failed.", "attempts", res.Attempts, "max_attempts", e.cfg.MaxAttempts, "error", cause)
	}
	e.publish(ctx, ev)
	return res, fmt.Errorf("resolve conflict %s: %w", id, cause)
}

// BatchResult aggregates one ResolveAllConflicts run.
type BatchResult struct {
	Total    int      `json:"total"`
	Resolved int      `json:"resolved"`
	Failed   int      `json:"failed"`
	Results  []Result `json:"results"`
}

// ResolveAllConflicts resolves every pending or retryable conflict in batches
// of MaxConcurrentResolutions. A batch starts only after the previous one has
// settled. Failures are contained in the per-conflict results.
func (e *Engine) ResolveAllConflicts(ctx context.Context) BatchResult {
	logger := ctxlog.FromContext(ctx)

	e.mu.Lock()
	var ids []string
	for _, id := range e.order {
		if e.conflicts[id].Status.resolvable() {
			ids = append(ids, id)
		}
	}
	e.mu.Unlock()

	results := make([]Result, len(ids))
	size := e.cfg.MaxConcurrentResolutions
	processed := 0
	for lo := 0; lo < len(ids); lo += size {
		if ctx.Err() != nil {
			logger.Warn("Batch resolution cancelled.", "processed", processed, "total", len(ids), "error", ctx.Err())
			break
		}
		hi := min(lo+size, len(ids))
		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				res, err := e.ResolveConflict(ctx, ids[i])
				switch {
				case res != nil:
					results[i] = *res
				case err != nil:
					results[i] = Result{ConflictID: ids[i], Reason: err.Error()}
				}
				return nil
			})
		}
		_ = g.Wait()
		processed = hi
		logger.Debug("Resolution batch settled.", "from", lo, "to", hi)
	}

	batch := BatchResult{Total: processed, Results: results[:processed]}
	for _, r := range batch.Results {
		if r.Success {
			batch.Resolved++
		} else {
			batch.Failed++
		}
	}
	return batch
}

// Conflict returns a copy of one conflict.
func (e *Engine) Conflict(id string) (Conflict, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conflicts[id]
	if !ok {
		return Conflict{}, false
	}
	return c.clone(), true
}

// Conflicts returns copies of every conflict in detection order.
func (e *Engine) Conflicts() []Conflict {
	e.mu.Lock()
	ids := slices.Clone(e.order)
	e.mu.Unlock()
	return e.copies(ids)
}

func (e *Engine) copies(ids []string) []Conflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Conflict, 0, len(ids))
	for _, id := range ids {
		if c, ok := e.conflicts[id]; ok {
			out = append(out, c.clone())
		}
	}
	return out
}

// CleanupResolved forgets resolved conflicts and returns how many were
// dropped. History is kept.
func (e *Engine) CleanupResolved() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.order[:0]
	removed := 0
	for _, id := range e.order {
		if e.conflicts[id].Status == StatusResolved {
			delete(e.conflicts, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	e.order = kept
	return removed
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	if err := e.sink.Publish(ctx, ev); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to publish conflict event.", "event", ev.Type, "conflict", ev.Conflict.ID, "error", err)
	}
}

func (e *Engine) observe(op string, start time.Time, n int) {
	if !e.cfg.EnableMetrics {
		return
	}
	e.metrics.Record(op, e.now().Sub(start), n)
}

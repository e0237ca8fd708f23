package conflict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/graph"
)

// Executor runs the actions of a plan in order against a store, appending one
// LogEntry per executed action to plan.Log. The first failing action stops the
// plan and is reported as a *PlanExecutionError.
type Executor interface {
	Execute(ctx context.Context, s Store, plan *Plan) error
}

// ActionExecutor is the default Executor. It checks ctx between actions, so
// a plan that timed out stops at the next action boundary.
type ActionExecutor struct {
	now func() time.Time
}

func NewActionExecutor() *ActionExecutor {
	return &ActionExecutor{now: time.Now}
}

func (x *ActionExecutor) Execute(ctx context.Context, s Store, plan *Plan) error {
	logger := ctxlog.FromContext(ctx)
	for i, action := range plan.Actions {
		entry := LogEntry{Action: i, Kind: action.Kind, At: x.now()}
		err := ctx.Err()
		if err == nil {
			entry.Result, err = x.apply(ctx, s, action)
		}
		if err != nil {
			entry.Error = err.Error()
			plan.Log = append(plan.Log, entry)
			return &PlanExecutionError{
				PlanID: plan.ID,
				Action: i,
				Kind:   action.Kind,
				Cause:  err,
				Log:    append([]LogEntry(nil), plan.Log...),
			}
		}
		plan.Log = append(plan.Log, entry)
		logger.Debug("Executed plan action.", "action", i, "kind", action.Kind, "result", entry.Result)
	}
	return nil
}

func (x *ActionExecutor) apply(ctx context.Context, s Store, a Action) (string, error) {
	p := a.Params
	switch a.Kind {
	case ActionSerializeTasks:
		return serialize(ctx, s, p.Tasks)

	case ActionMarkDelayed:
		for _, id := range p.Tasks {
			err := s.UpdateTask(id, func(d *graph.TaskData) {
				d.Delayed = true
				d.DelayReason = p.Reason
			})
			if err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("delayed %d task(s)", len(p.Tasks)), nil

	case ActionExtendDeadline:
		extended := 0
		for _, id := range p.Tasks {
			err := s.UpdateTask(id, func(d *graph.TaskData) {
				if d.Deadline == nil {
					return
				}
				next := d.Deadline.Add(p.Extension)
				d.Deadline = &next
				extended++
			})
			if err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("extended %d deadline(s) by %s", extended, p.Extension), nil

	case ActionMarkParallelizable:
		for _, id := range p.Tasks {
			err := s.UpdateTask(id, func(d *graph.TaskData) {
				d.Parallelizable = true
				d.OptimisticDuration = time.Duration(math.Round(float64(d.EstimatedDuration) * p.Factor))
			})
			if err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("marked %d task(s) parallelizable", len(p.Tasks)), nil

	case ActionRemoveNonCriticalEdges:
		return removeNonCritical(s, p.Tasks)

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
}

// serialize makes tasks[i] depend on tasks[i-1]. Edges that already exist or
// would close a cycle are skipped.
func serialize(ctx context.Context, s Store, tasks []string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	added, skipped := 0, 0
	for i := 1; i < len(tasks); i++ {
		task, dep := tasks[i], tasks[i-1]
		if s.HasDependency(task, dep) {
			logger.Warn("Skipping existing dependency edge.", "task", task, "depends_on", dep)
			skipped++
			continue
		}
		if err := s.AddDependency(task, dep); err != nil {
			if errors.Is(err, graph.ErrCycle) {
				logger.Warn("Skipping dependency edge that would close a cycle.", "task", task, "depends_on", dep)
				skipped++
				continue
			}
			return "", err
		}
		added++
	}
	return fmt.Sprintf("added %d edge(s), skipped %d", added, skipped), nil
}

func removeNonCritical(s Store, tasks []string) (string, error) {
	removed, kept := 0, 0
	for _, id := range tasks {
		if _, ok := s.Task(id); !ok {
			return "", &graph.NotFoundError{Kind: "task", ID: id}
		}
		deps, err := s.Dependencies(id)
		if err != nil {
			return "", err
		}
		for _, depID := range deps {
			dep, ok := s.Task(depID)
			if ok && dep.Data.Critical {
				kept++
				continue
			}
			if err := s.RemoveDependency(id, depID); err != nil {
				return "", err
			}
			removed++
		}
	}
	return fmt.Sprintf("removed %d edge(s), kept %d critical", removed, kept), nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/taskgrid/internal/conflict"
	"github.com/specialistvlad/taskgrid/internal/graph"
	"github.com/specialistvlad/taskgrid/internal/resolver"
)

// Model is the unified representation of one or more grid files.
type Model struct {
	Resolver  *ResolverSettings
	Conflicts *ConflictSettings
	Publisher *PublisherSettings
	Tasks     []*Task
}

// ResolverSettings mirrors the `resolver {}` block.
type ResolverSettings struct {
	Strategy             *string
	EnableCycleDetection *bool
	EnableMetrics        *bool
	MaxResolutionTime    *time.Duration
}

// ConflictSettings mirrors the `conflicts {}` block.
type ConflictSettings struct {
	AutoResolve              *bool
	MaxConcurrentResolutions *int
	ResolutionTimeout        *time.Duration
	EnableMetrics            *bool
	MaxAttempts              *int
	AllowDeadlineExtension   *bool
	DeadlineBuffer           *time.Duration
	OptimisticFactor         *float64
}

// PublisherSettings mirrors the `publisher {}` block.
type PublisherSettings struct {
	URL                string
	Namespace          string
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// Task mirrors a `task "<id>" {}` block.
type Task struct {
	ID        string
	Priority  float64
	Duration  time.Duration
	Resources []string
	Deadline  *time.Time
	Critical  bool
	DependsOn []string
	State     string
	Extra     map[string]any
	// Source is the file the task was declared in.
	Source string
}

// Data converts the task into the graph payload.
func (t *Task) Data() graph.TaskData {
	return graph.TaskData{
		Priority:          t.Priority,
		EstimatedDuration: t.Duration,
		RequiredResources: t.Resources,
		Deadline:          t.Deadline,
		Critical:          t.Critical,
		Extra:             t.Extra,
	}
}

// Merge folds other into m. Settings blocks may appear only once across all
// files.
func (m *Model) Merge(other *Model) error {
	if other.Resolver != nil {
		if m.Resolver != nil {
			return errors.New("duplicate resolver block")
		}
		m.Resolver = other.Resolver
	}
	if other.Conflicts != nil {
		if m.Conflicts != nil {
			return errors.New("duplicate conflicts block")
		}
		m.Conflicts = other.Conflicts
	}
	if other.Publisher != nil {
		if m.Publisher != nil {
			return errors.New("duplicate publisher block")
		}
		m.Publisher = other.Publisher
	}
	m.Tasks = append(m.Tasks, other.Tasks...)
	return nil
}

// Validate checks ids and states. Edges are validated when they are inserted
// into the graph.
func (m *Model) Validate() error {
	var errs []error
	seen := make(map[string]string, len(m.Tasks))
	for _, t := range m.Tasks {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("%s: task id must not be empty", t.Source))
			continue
		}
		if prev, dup := seen[t.ID]; dup {
			errs = append(errs, fmt.Errorf("task %q declared in both %s and %s", t.ID, prev, t.Source))
		}
		seen[t.ID] = t.Source
		if t.State != "" {
			if _, err := graph.ParseState(t.State); err != nil {
				errs = append(errs, fmt.Errorf("task %q: %w", t.ID, err))
			}
		}
		if t.Duration < 0 {
			errs = append(errs, fmt.Errorf("task %q: duration must not be negative", t.ID))
		}
	}
	return errors.Join(errs...)
}

// ResolverConfig lays the resolver block over base.
func (m *Model) ResolverConfig(base resolver.Config) (resolver.Config, error) {
	s := m.Resolver
	if s == nil {
		return base, nil
	}
	if s.Strategy != nil {
		strategy, err := resolver.ParseStrategy(*s.Strategy)
		if err != nil {
			return base, err
		}
		base.Strategy = strategy
	}
	set(&base.EnableCycleDetection, s.EnableCycleDetection)
	set(&base.EnableMetrics, s.EnableMetrics)
	set(&base.MaxResolutionTime, s.MaxResolutionTime)
	return base, nil
}

// ConflictConfig lays the conflicts block over base.
func (m *Model) ConflictConfig(base conflict.Config) conflict.Config {
	s := m.Conflicts
	if s == nil {
		return base
	}
	set(&base.AutoResolve, s.AutoResolve)
	set(&base.MaxConcurrentResolutions, s.MaxConcurrentResolutions)
	set(&base.ResolutionTimeout, s.ResolutionTimeout)
	set(&base.EnableMetrics, s.EnableMetrics)
	set(&base.MaxAttempts, s.MaxAttempts)
	set(&base.AllowDeadlineExtension, s.AllowDeadlineExtension)
	set(&base.DeadlineBuffer, s.DeadlineBuffer)
	set(&base.OptimisticFactor, s.OptimisticFactor)
	return base
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Populate inserts every task, then every edge through the cycle-checked
// AddDependency, then the declared states.
func (m *Model) Populate(r *resolver.Resolver) error {
	for _, t := range m.Tasks {
		if err := r.AddTask(t.ID, t.Data()); err != nil {
			return fmt.Errorf("%s: %w", t.Source, err)
		}
	}
	for _, t := range m.Tasks {
		for _, dep := range t.DependsOn {
			if err := r.AddDependency(t.ID, dep); err != nil {
				return fmt.Errorf("%s: task %q depends_on %q: %w", t.Source, t.ID, dep, err)
			}
		}
	}
	for _, t := range m.Tasks {
		if t.State == "" {
			continue
		}
		state, err := graph.ParseState(t.State)
		if err != nil {
			return fmt.Errorf("%s: task %q: %w", t.Source, t.ID, err)
		}
		if err := r.UpdateTaskState(t.ID, state); err != nil {
			return fmt.Errorf("%s: %w", t.Source, err)
		}
	}
	return nil
}

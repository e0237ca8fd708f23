package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/taskgrid/internal/config"
	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every .hcl file under paths and merges them into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &config.Model{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		part, err := translate(file, &root)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.", "files", len(files), "tasks", len(model.Tasks))
	return model, nil
}

// translate converts the HCL-specific schema into the agnostic model.
func translate(file string, root *fileRoot) (*config.Model, error) {
	m := &config.Model{}
	var err error

	if b := root.Resolver; b != nil {
		s := &config.ResolverSettings{
			Strategy:             b.Strategy,
			EnableCycleDetection: b.EnableCycleDetection,
			EnableMetrics:        b.EnableMetrics,
		}
		if s.MaxResolutionTime, err = parseDuration(b.MaxResolutionTime, "max_resolution_time"); err != nil {
			return nil, fmt.Errorf("%s: resolver: %w", file, err)
		}
		m.Resolver = s
	}

	if b := root.Conflicts; b != nil {
		s := &config.ConflictSettings{
			AutoResolve:              b.AutoResolve,
			MaxConcurrentResolutions: b.MaxConcurrentResolutions,
			EnableMetrics:            b.EnableMetrics,
			MaxAttempts:              b.MaxAttempts,
			AllowDeadlineExtension:   b.AllowDeadlineExtension,
			OptimisticFactor:         b.OptimisticFactor,
		}
		if s.ResolutionTimeout, err = parseDuration(b.ResolutionTimeout, "resolution_timeout"); err != nil {
			return nil, fmt.Errorf("%s: conflicts: %w", file, err)
		}
		if s.DeadlineBuffer, err = parseDuration(b.DeadlineBuffer, "deadline_buffer"); err != nil {
			return nil, fmt.Errorf("%s: conflicts: %w", file, err)
		}
		m.Conflicts = s
	}

	if b := root.Publisher; b != nil {
		s := &config.PublisherSettings{URL: b.URL}
		if b.Namespace != nil {
			s.Namespace = *b.Namespace
		}
		if b.InsecureSkipVerify != nil {
			s.InsecureSkipVerify = *b.InsecureSkipVerify
		}
		timeout, err := parseDuration(b.ConnectTimeout, "connect_timeout")
		if err != nil {
			return nil, fmt.Errorf("%s: publisher: %w", file, err)
		}
		if timeout != nil {
			s.ConnectTimeout = *timeout
		}
		m.Publisher = s
	}

	for _, b := range root.Tasks {
		t, err := translateTask(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.DeclRange, err)
		}
		t.Source = file
		m.Tasks = append(m.Tasks, t)
	}
	return m, nil
}

func translateTask(b *taskBlock) (*config.Task, error) {
	t := &config.Task{
		ID:        b.ID,
		Resources: b.Resources,
		DependsOn: b.DependsOn,
	}
	if b.Priority != nil {
		t.Priority = *b.Priority
	}
	if b.Critical != nil {
		t.Critical = *b.Critical
	}
	if b.State != nil {
		t.State = *b.State
	}
	d, err := parseDuration(b.Duration, "duration")
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", b.ID, err)
	}
	if d != nil {
		t.Duration = *d
	}
	if b.Deadline != nil {
		deadline, err := time.Parse(time.RFC3339, *b.Deadline)
		if err != nil {
			return nil, fmt.Errorf("task %q: deadline must be RFC3339: %w", b.ID, err)
		}
		t.Deadline = &deadline
	}

	if b.Extra != nil {
		val, diags := b.Extra.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("task %q: extra: %w", b.ID, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("task %q: extra: %w", b.ID, err)
		}
		if native != nil {
			extra, ok := native.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("task %q: extra must be an object, got %s", b.ID, val.Type().FriendlyName())
			}
			t.Extra = extra
		}
	}
	return t, nil
}

func parseDuration(s *string, name string) (*time.Duration, error) {
	if s == nil {
		return nil, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &d, nil
}

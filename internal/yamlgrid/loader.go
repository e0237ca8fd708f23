// Package yamlgrid provides the YAML implementation of config.Loader.
//
// A YAML grid carries the same blocks as the HCL format:
//
//	resolver:
//	  strategy: priority_based
//	conflicts:
//	  auto_resolve: true
//	tasks:
//	  build:
//	    duration: 2m
//	    depends_on: [lint]
package yamlgrid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/specialistvlad/taskgrid/internal/config"
	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/fsutil"
	"gopkg.in/yaml.v3"
)

type fileRoot struct {
	Resolver  *resolverSection  `yaml:"resolver"`
	Conflicts *conflictsSection `yaml:"conflicts"`
	Publisher *publisherSection `yaml:"publisher"`
	// Tasks is a mapping node so declaration order survives decoding.
	Tasks yaml.Node `yaml:"tasks"`
}

type resolverSection struct {
	Strategy             *string        `yaml:"strategy"`
	EnableCycleDetection *bool          `yaml:"enable_cycle_detection"`
	EnableMetrics        *bool          `yaml:"enable_metrics"`
	MaxResolutionTime    *time.Duration `yaml:"max_resolution_time"`
}

type conflictsSection struct {
	AutoResolve              *bool          `yaml:"auto_resolve"`
	MaxConcurrentResolutions *int           `yaml:"max_concurrent_resolutions"`
	ResolutionTimeout        *time.Duration `yaml:"resolution_timeout"`
	EnableMetrics            *bool          `yaml:"enable_metrics"`
	MaxAttempts              *int           `yaml:"max_attempts"`
	AllowDeadlineExtension   *bool          `yaml:"allow_deadline_extension"`
	DeadlineBuffer           *time.Duration `yaml:"deadline_buffer"`
	OptimisticFactor         *float64       `yaml:"optimistic_factor"`
}

type publisherSection struct {
	URL                string        `yaml:"url"`
	Namespace          string        `yaml:"namespace"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

type taskSection struct {
	Priority  float64        `yaml:"priority"`
	Duration  time.Duration  `yaml:"duration"`
	Resources []string       `yaml:"resources"`
	Deadline  *time.Time     `yaml:"deadline"`
	Critical  bool           `yaml:"critical"`
	DependsOn []string       `yaml:"depends_on"`
	State     string         `yaml:"state"`
	Extra     map[string]any `yaml:"extra"`
}

// Loader reads .yaml and .yml grid files.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every YAML file under paths and merges them into one model.
// Unknown top-level and settings keys are rejected.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}

	model := &config.Model{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		part, err := decode(file, data)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	logger.Debug("YAML loading complete.", "files", len(files), "tasks", len(model.Tasks))
	return model, nil
}

func decode(file string, data []byte) (*config.Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var root fileRoot
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
	}

	m := &config.Model{}
	if s := root.Resolver; s != nil {
		m.Resolver = &config.ResolverSettings{
			Strategy:             s.Strategy,
			EnableCycleDetection: s.EnableCycleDetection,
			EnableMetrics:        s.EnableMetrics,
			MaxResolutionTime:    s.MaxResolutionTime,
		}
	}
	if s := root.Conflicts; s != nil {
		m.Conflicts = &config.ConflictSettings{
			AutoResolve:              s.AutoResolve,
			MaxConcurrentResolutions: s.MaxConcurrentResolutions,
			ResolutionTimeout:        s.ResolutionTimeout,
			EnableMetrics:            s.EnableMetrics,
			MaxAttempts:              s.MaxAttempts,
			AllowDeadlineExtension:   s.AllowDeadlineExtension,
			DeadlineBuffer:           s.DeadlineBuffer,
			OptimisticFactor:         s.OptimisticFactor,
		}
	}
	if s := root.Publisher; s != nil {
		m.Publisher = &config.PublisherSettings{
			URL:                s.URL,
			Namespace:          s.Namespace,
			ConnectTimeout:     s.ConnectTimeout,
			InsecureSkipVerify: s.InsecureSkipVerify,
		}
	}

	tasks, err := decodeTasks(&root.Tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
	}
	for _, t := range tasks {
		t.Source = file
	}
	m.Tasks = tasks
	return m, nil
}

func decodeTasks(node *yaml.Node) ([]*config.Task, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: tasks must be a mapping of id to task", node.Line)
	}
	var out []*config.Task
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, body := node.Content[i], node.Content[i+1]
		var s taskSection
		if err := body.Decode(&s); err != nil {
			return nil, fmt.Errorf("task %q: %w", key.Value, err)
		}
		out = append(out, &config.Task{
			ID:        key.Value,
			Priority:  s.Priority,
			Duration:  s.Duration,
			Resources: slices.Clone(s.Resources),
			Deadline:  s.Deadline,
			Critical:  s.Critical,
			DependsOn: slices.Clone(s.DependsOn),
			State:     s.State,
			Extra:     s.Extra,
		})
	}
	return out, nil
}

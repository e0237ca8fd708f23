package config

import (
	"testing"
	"time"

	"github.com/specialistvlad/taskgrid/internal/conflict"
	"github.com/specialistvlad/taskgrid/internal/graph"
	"github.com/specialistvlad/taskgrid/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestResolverConfig(t *testing.T) {
	m := &Model{}
	cfg, err := m.ResolverConfig(resolver.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, resolver.DefaultConfig(), cfg)

	m.Resolver = &ResolverSettings{
		Strategy:          ptr("priority-based"),
		EnableMetrics:     ptr(false),
		MaxResolutionTime: ptr(25 * time.Millisecond),
	}
	cfg, err = m.ResolverConfig(resolver.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, resolver.StrategyPriorityBased, cfg.Strategy)
	assert.False(t, cfg.EnableMetrics)
	assert.True(t, cfg.EnableCycleDetection)
	assert.Equal(t, 25*time.Millisecond, cfg.MaxResolutionTime)

	m.Resolver.Strategy = ptr("fastest")
	_, err = m.ResolverConfig(resolver.DefaultConfig())
	assert.ErrorIs(t, err, resolver.ErrInvalidStrategy)
}

func TestConflictConfig(t *testing.T) {
	m := &Model{Conflicts: &ConflictSettings{
		AutoResolve:              ptr(true),
		MaxConcurrentResolutions: ptr(2),
		DeadlineBuffer:           ptr(30 * time.Second),
	}}
	cfg := m.ConflictConfig(conflict.DefaultConfig())
	assert.True(t, cfg.AutoResolve)
	assert.Equal(t, 2, cfg.MaxConcurrentResolutions)
	assert.Equal(t, 30*time.Second, cfg.DeadlineBuffer)
	assert.Equal(t, 5*time.Second, cfg.ResolutionTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestMergeAndValidate(t *testing.T) {
	m := &Model{Resolver: &ResolverSettings{}}
	require.NoError(t, m.Merge(&Model{Tasks: []*Task{{ID: "a", Source: "one.hcl"}}}))
	require.Error(t, m.Merge(&Model{Resolver: &ResolverSettings{}}))

	require.NoError(t, m.Merge(&Model{Tasks: []*Task{
		{ID: "a", Source: "two.hcl"},
		{ID: "b", State: "sleeping", Source: "two.hcl"},
		{Source: "two.hcl"},
	}}))
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `task "a" declared in both one.hcl and two.hcl`)
	assert.Contains(t, err.Error(), "sleeping")
	assert.Contains(t, err.Error(), "task id must not be empty")
}

func TestPopulate(t *testing.T) {
	m := &Model{Tasks: []*Task{
		{ID: "deploy", DependsOn: []string{"build"}, Critical: true},
		{ID: "build", Priority: 3, Duration: time.Minute, Resources: []string{"cpu"}, State: "completed"},
	}}
	r, err := resolver.New(resolver.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Populate(r))

	assert.True(t, r.HasDependency("deploy", "build"))
	build, ok := r.Task("build")
	require.True(t, ok)
	assert.Equal(t, graph.StateCompleted, build.State)
	assert.Equal(t, time.Minute, build.Data.EstimatedDuration)
	assert.Equal(t, []string{"cpu"}, build.Data.RequiredResources)

	cyclic := &Model{Tasks: []*Task{
		{ID: "a", DependsOn: []string{"b"}, Source: "grid.hcl"},
		{ID: "b", DependsOn: []string{"a"}, Source: "grid.hcl"},
	}}
	r, err = resolver.New(resolver.DefaultConfig())
	require.NoError(t, err)
	err = cyclic.Populate(r)
	require.ErrorIs(t, err, graph.ErrCycle)
	assert.Contains(t, err.Error(), "grid.hcl")
}

package conflict

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/graph"
	"github.com/specialistvlad/taskgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_SerializeSkipsExistingAndCyclicEdges(t *testing.T) {
	store := newStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.AddTask(id, graph.TaskData{}))
	}
	require.NoError(t, store.AddDependency("b", "a"))
	require.NoError(t, store.AddDependency("a", "c"))
	ctx, logs := testutil.LogContext(t)

	// b -> a exists, c -> b would close c -> b -> a -> c.
	plan := &Plan{ID: "plan-1", Actions: []Action{
		{Kind: ActionSerializeTasks, Params: ActionParams{Tasks: []string{"a", "b", "c"}}},
	}}
	require.NoError(t, NewActionExecutor().Execute(ctx, store, plan))

	require.Len(t, plan.Log, 1)
	assert.Equal(t, "added 0 edge(s), skipped 2", plan.Log[0].Result)
	assert.False(t, store.HasCycles())
	assert.Contains(t, logs.String(), "Skipping existing dependency edge.")
	assert.Contains(t, logs.String(), "Skipping dependency edge that would close a cycle.")
}

func TestExecutor_RemoveNonCriticalEdges(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.AddTask("job", graph.TaskData{}))
	require.NoError(t, store.AddTask("optional", graph.TaskData{}))
	require.NoError(t, store.AddTask("schema", graph.TaskData{Critical: true}))
	require.NoError(t, store.AddTask("pinned", graph.TaskData{Critical: true}))
	require.NoError(t, store.AddTask("helper", graph.TaskData{}))
	require.NoError(t, store.AddTask("vault", graph.TaskData{Critical: true}))
	require.NoError(t, store.AddDependency("job", "optional"))
	require.NoError(t, store.AddDependency("job", "schema"))
	require.NoError(t, store.AddDependency("pinned", "helper"))
	require.NoError(t, store.AddDependency("pinned", "vault"))

	plan := &Plan{ID: "plan-1", Actions: []Action{
		{Kind: ActionRemoveNonCriticalEdges, Params: ActionParams{Tasks: []string{"job", "pinned"}}},
	}}
	require.NoError(t, NewActionExecutor().Execute(context.Background(), store, plan))

	tests := []struct {
		task, dep string
		kept      bool
	}{
		{"job", "optional", false},
		{"job", "schema", true},
		{"pinned", "helper", false},
		{"pinned", "vault", true},
	}
	for _, tc := range tests {
		t.Run(tc.task+"->"+tc.dep, func(t *testing.T) {
			assert.Equal(t, tc.kept, store.HasDependency(tc.task, tc.dep))
		})
	}
	assert.Equal(t, "removed 2 edge(s), kept 2 critical", plan.Log[0].Result)
}

func TestExecutor_LogsActionOnce(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.AddTask("a", graph.TaskData{}))
	ctx, logs := testutil.LogContext(t)
	ctx = ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("plan", "plan-1"))

	plan := &Plan{ID: "plan-1", Actions: []Action{
		{Kind: ActionMarkParallelizable, Params: ActionParams{Tasks: []string{"a"}, Factor: 0.5}},
	}}
	require.NoError(t, NewActionExecutor().Execute(ctx, store, plan))

	out := logs.String()
	require.Contains(t, out, "Executed plan action.")
	assert.Equal(t, 1, strings.Count(out, "plan=plan-1"))
}

func TestExecutor_ExtendDeadlineWithoutDeadline(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.AddTask("free", graph.TaskData{}))

	plan := &Plan{ID: "plan-1", Actions: []Action{
		{Kind: ActionExtendDeadline, Params: ActionParams{Tasks: []string{"free"}, Extension: time.Hour}},
	}}
	require.NoError(t, NewActionExecutor().Execute(context.Background(), store, plan))
	free, _ := store.Task("free")
	assert.Nil(t, free.Data.Deadline)
	assert.Equal(t, "extended 0 deadline(s) by 1h0m0s", plan.Log[0].Result)
}

func TestExecutor_StopsOnCancelledContext(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.AddTask("a", graph.TaskData{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &Plan{ID: "plan-1", Actions: []Action{
		{Kind: ActionMarkDelayed, Params: ActionParams{Tasks: []string{"a"}}},
	}}
	err := NewActionExecutor().Execute(ctx, store, plan)
	require.ErrorIs(t, err, context.Canceled)
	a, _ := store.Task("a")
	assert.False(t, a.Data.Delayed)
}

func TestStrategies_Plan(t *testing.T) {
	store := newStore(t)
	deadline := testNow.Add(time.Second)
	require.NoError(t, store.AddTask("a", graph.TaskData{Priority: 2, EstimatedDuration: 3 * time.Second}))
	require.NoError(t, store.AddTask("b", graph.TaskData{Priority: 7, EstimatedDuration: 4 * time.Second, Deadline: &deadline}))
	require.NoError(t, store.AddTask("c", graph.TaskData{Priority: 7}))
	require.NoError(t, store.AddDependency("b", "a"))

	t.Run("priority override", func(t *testing.T) {
		actions, _, err := PriorityOverride{}.Plan(Conflict{Tasks: []string{"a", "b", "c"}}, store)
		require.NoError(t, err)
		require.Len(t, actions, 2)
		assert.Equal(t, []string{"c"}, actions[0].Params.Tasks, "ties break by id")
		assert.Equal(t, []string{"a"}, actions[1].Params.Tasks)
		for _, a := range actions {
			assert.Equal(t, ActionMarkDelayed, a.Kind)
		}
	})

	t.Run("resource reallocation", func(t *testing.T) {
		actions, _, err := ResourceReallocation{}.Plan(Conflict{Tasks: []string{"a", "c"}, Details: map[string]any{"resource": "gpu"}}, store)
		require.NoError(t, err)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionSerializeTasks, actions[0].Kind)
		assert.Equal(t, []string{"c", "a"}, actions[0].Params.Tasks)
	})

	t.Run("deadline adjustment", func(t *testing.T) {
		c := Conflict{Tasks: []string{"a", "b"}, Details: map[string]any{"task": "b"}}
		actions, _, err := DeadlineAdjustment{AllowExtension: true, Buffer: time.Minute, Factor: 0.5}.Plan(c, store)
		require.NoError(t, err)
		require.Len(t, actions, 2)
		assert.Equal(t, ActionExtendDeadline, actions[0].Kind)
		assert.Equal(t, 7*time.Second+time.Minute, actions[0].Params.Extension)
		assert.Equal(t, ActionMarkParallelizable, actions[1].Kind)
		assert.Equal(t, []string{"a", "b"}, actions[1].Params.Tasks)

		actions, _, err = DeadlineAdjustment{Factor: 0.5}.Plan(c, store)
		require.NoError(t, err)
		require.Len(t, actions, 1, "no extension when not allowed")
		assert.Equal(t, ActionMarkParallelizable, actions[0].Kind)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, _, err := DependencyRestructuring{}.Plan(Conflict{Tasks: []string{"ghost"}}, store)
		assert.ErrorIs(t, err, graph.ErrNotFound)
	})
}

func TestTaskLocks(t *testing.T) {
	locks := newTaskLocks()
	release, err := locks.acquire(context.Background(), []string{"b", "a", "b"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, []string{"c", "b"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The failed attempt must not keep c.
	releaseC, err := locks.acquire(context.Background(), []string{"c"})
	require.NoError(t, err)
	releaseC()

	release()
	release2, err := locks.acquire(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	release2()
}

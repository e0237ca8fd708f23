package yamlgrid

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/taskgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grid = `
resolver:
  strategy: deadline_driven
  enable_metrics: false
conflicts:
  max_attempts: 5
  deadline_buffer: 90s
publisher:
  url: http://localhost:3000/socket.io/
  connect_timeout: 3s
tasks:
  test:
    priority: 4
    duration: 1m30s
    resources: [cpu, cpu]
  build:
    duration: 2m
    depends_on: [test]
    deadline: 2026-07-01T10:00:00Z
    critical: true
    state: in_progress
    extra:
      owner: ci
      shards: 3
`

func TestLoader_Load(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"grid.yaml": grid, "empty.yml": ""})

	m, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	require.NotNil(t, m.Resolver)
	assert.Equal(t, "deadline_driven", *m.Resolver.Strategy)
	assert.False(t, *m.Resolver.EnableMetrics)
	assert.Nil(t, m.Resolver.MaxResolutionTime)

	require.NotNil(t, m.Conflicts)
	assert.Equal(t, 5, *m.Conflicts.MaxAttempts)
	assert.Equal(t, 90*time.Second, *m.Conflicts.DeadlineBuffer)

	require.NotNil(t, m.Publisher)
	assert.Equal(t, 3*time.Second, m.Publisher.ConnectTimeout)

	require.Len(t, m.Tasks, 2)
	test, build := m.Tasks[0], m.Tasks[1]
	assert.Equal(t, "test", test.ID, "declaration order is kept")
	assert.Equal(t, 90*time.Second, test.Duration)
	assert.Equal(t, []string{"cpu", "cpu"}, test.Resources)

	assert.Equal(t, "build", build.ID)
	assert.Equal(t, []string{"test"}, build.DependsOn)
	assert.True(t, build.Critical)
	assert.Equal(t, "in_progress", build.State)
	require.NotNil(t, build.Deadline)
	assert.True(t, build.Deadline.Equal(time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, map[string]any{"owner": "ci", "shards": 3}, build.Extra)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "resolvers: {}\n"},
		{"tasks not a mapping", "tasks: [a, b]\n"},
		{"bad duration", "tasks:\n  a:\n    duration: soon\n"},
		{"malformed", "tasks: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := testutil.WriteFiles(t, map[string]string{"grid.yml": tc.content})
			_, err := NewLoader().Load(context.Background(), dir)
			require.Error(t, err)
		})
	}
}

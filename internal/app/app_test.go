package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/taskgrid/internal/conflict"
	"github.com/specialistvlad/taskgrid/internal/graph"
	"github.com/specialistvlad/taskgrid/internal/resolver"
	"github.com/specialistvlad/taskgrid/internal/testutil"
	"github.com/specialistvlad/taskgrid/internal/yamlgrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sharedDBGrid = `
resolver {
  strategy = "topological"
}

task "migrate" {
  priority  = 9
  duration  = "1m"
  resources = ["db"]
}

task "seed" {
  priority  = 3
  duration  = "30s"
  resources = ["db"]
}

task "api" {
  priority   = 5
  duration   = "10s"
  depends_on = ["migrate", "seed"]
}
`

const priorityGrid = `
resolver:
  strategy: topological
tasks:
  a:
    priority: 1
  b:
    priority: 7
  c:
    depends_on: [a, b]
`

// setupApp writes files into a temporary grid directory and builds an App
// for it. Logs are captured in the returned buffer.
func setupApp(t *testing.T, files map[string]string, cfg Config) (*App, *bytes.Buffer, *testutil.SafeBuffer) {
	t.Helper()

	dir := testutil.WriteFiles(t, files)
	if cfg.GridPath == "" {
		cfg.GridPath = dir
	} else {
		cfg.GridPath = filepath.Join(dir, cfg.GridPath)
	}
	cfg.LogLevel = "debug"
	appCfg, err := NewConfig(cfg)
	require.NoError(t, err)

	loader, err := LoaderFor(appCfg.GridPath)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	logs := &testutil.SafeBuffer{}
	a, err := NewApp(context.Background(), out, logs, appCfg, loader)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, a.Close())
		if os.Getenv("TASKGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, out, logs
}

func decodeReport(t *testing.T, out *bytes.Buffer) Report {
	t.Helper()
	var report Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.NotNil(t, report.Plan)
	return report
}

func TestApp_Run_SerializesSharedResource(t *testing.T) {
	exportPath := filepath.Join(t.TempDir(), "snapshot.json")
	a, out, logs := setupApp(t, map[string]string{"main.hcl": sharedDBGrid}, Config{ExportPath: exportPath})

	require.NoError(t, a.Run(context.Background()))
	report := decodeReport(t, out)

	require.Len(t, report.Conflicts, 1)
	c := report.Conflicts[0]
	assert.Equal(t, conflict.TypeResource, c.Type)
	assert.Equal(t, conflict.StatusResolved, c.Status)
	assert.Equal(t, []string{"migrate", "seed"}, c.Tasks)
	assert.Equal(t, conflict.BatchResult{Total: 1, Resolved: 1}, withoutResults(report.Batch))

	// seed now waits for the higher-priority migrate.
	if diff := cmp.Diff([][]string{{"migrate"}, {"seed"}, {"api"}}, report.Plan.Levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"migrate", "seed", "api"}, report.Plan.ExecutionOrder)
	assert.Equal(t, 3, report.Stats.Nodes)
	assert.Equal(t, 3, report.Stats.Edges)
	assert.Equal(t, 1, report.Engine.ConflictsResolved)
	require.Len(t, report.History, 1)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	imported, err := resolver.ImportJSON(data, resolver.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, imported.HasDependency("seed", "migrate"))

	assert.Contains(t, logs.String(), "Execution plan resolved.")
	assert.Contains(t, logs.String(), "Snapshot exported.")
}

func withoutResults(b conflict.BatchResult) conflict.BatchResult {
	b.Results = nil
	return b
}

func TestApp_Run_StrategyOverride(t *testing.T) {
	a, out, _ := setupApp(t, map[string]string{"grid.yaml": priorityGrid}, Config{Strategy: "priority-based"})

	require.NoError(t, a.Run(context.Background()))
	report := decodeReport(t, out)

	assert.Equal(t, resolver.StrategyPriorityBased, report.Plan.Strategy)
	assert.Equal(t, []string{"b", "a", "c"}, report.Plan.ExecutionOrder)
	assert.Empty(t, report.Conflicts)
	assert.Zero(t, report.Batch.Total)
}

func TestApp_Run_AutoResolve(t *testing.T) {
	a, out, _ := setupApp(t, map[string]string{"main.hcl": sharedDBGrid}, Config{AutoResolve: true})

	require.NoError(t, a.Run(context.Background()))
	report := decodeReport(t, out)

	// Detection already resolved the conflict, leaving nothing for the batch.
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, conflict.StatusResolved, report.Conflicts[0].Status)
	assert.Zero(t, report.Batch.Total)
}

func TestApp_Run_EmptyGrid(t *testing.T) {
	a, out, logs := setupApp(t, map[string]string{"empty.hcl": ""}, Config{})

	require.NoError(t, a.Run(context.Background()))
	report := decodeReport(t, out)

	assert.Empty(t, report.Plan.ExecutionOrder)
	assert.Contains(t, logs.String(), "No tasks found in grid")
}

func TestNewApp_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		files   map[string]string
		cfg     Config
		wantErr string
		wantIs  error
	}{
		{
			name: "cyclic grid",
			files: map[string]string{"main.hcl": `
task "a" { depends_on = ["b"] }
task "b" { depends_on = ["a"] }
`},
			wantErr: "failed to build dependency graph",
			wantIs:  graph.ErrCycle,
		},
		{
			name: "unknown dependency",
			files: map[string]string{"main.hcl": `
task "a" { depends_on = ["ghost"] }
`},
			wantErr: "failed to build dependency graph",
			wantIs:  graph.ErrNotFound,
		},
		{
			name: "duplicate task",
			files: map[string]string{
				"a.hcl": `task "a" {}`,
				"b.hcl": `task "a" {}`,
			},
			wantErr: "invalid grid",
		},
		{
			name:    "bad strategy in grid",
			files:   map[string]string{"main.hcl": `resolver { strategy = "fastest" }`},
			wantErr: "fastest",
			wantIs:  resolver.ErrInvalidStrategy,
		},
		{
			name:    "malformed grid",
			files:   map[string]string{"main.hcl": `task "a" {`},
			wantErr: "failed to load configuration",
		},
		{
			name:    "bad log level",
			files:   map[string]string{"main.hcl": ``},
			cfg:     Config{LogLevel: "loud"},
			wantErr: "invalid log level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.GridPath = testutil.WriteFiles(t, tc.files)
			loader, err := LoaderFor(cfg.GridPath)
			require.NoError(t, err)

			_, err = NewApp(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, &cfg, loader)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			if tc.wantIs != nil {
				assert.True(t, errors.Is(err, tc.wantIs), "error %v should wrap %v", err, tc.wantIs)
			}
		})
	}
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)

	cfg, err := NewConfig(Config{GridPath: "grid", Strategy: "Critical-Path"})
	require.NoError(t, err)
	assert.Equal(t, "critical_path", cfg.Strategy)

	_, err = NewConfig(Config{GridPath: "grid", Strategy: "random"})
	require.ErrorIs(t, err, resolver.ErrInvalidStrategy)
}

func TestLoaderFor(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"hcl/main.hcl":      "",
		"yaml/a.hcl":        "",
		"yaml/nested/b.yml": "",
		"notes.txt":         "",
	})

	testCases := []struct {
		path     string
		wantYAML bool
		wantErr  bool
	}{
		{path: "hcl/main.hcl"},
		{path: "yaml/nested/b.yml", wantYAML: true},
		{path: "hcl"},
		{path: "yaml", wantYAML: true},
		{path: "notes.txt", wantErr: true},
		{path: "missing", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			loader, err := LoaderFor(filepath.Join(dir, tc.path))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, isYAML := loader.(*yamlgrid.Loader)
			assert.Equal(t, tc.wantYAML, isYAML)
		})
	}
}

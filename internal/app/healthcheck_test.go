package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	a, _, logs := setupApp(t, map[string]string{"main.hcl": sharedDBGrid}, Config{})
	require.NoError(t, a.Run(context.Background()))

	srv := httptest.NewServer(a.handler(ctxlog.WithLogger(context.Background(), a.logger)))
	t.Cleanup(srv.Close)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, logs.String(), "Health check endpoint hit.")
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var view metricsView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
		assert.Equal(t, 3, view.Resolver.Nodes)
		assert.Equal(t, 1, view.Conflicts.ConflictsResolved)
		assert.EqualValues(t, 1, view.Operations[resolver.OpResolve].Count)
	})

	t.Run("expvar", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/debug/vars")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var vars map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
		assert.Contains(t, vars, "memstats")
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/health", "text/plain", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestCloseHealthCheckServer_NotRunning(t *testing.T) {
	a, _, _ := setupApp(t, map[string]string{"main.hcl": ""}, Config{})
	assert.NoError(t, a.closeHealthCheckServer(context.Background()))
}

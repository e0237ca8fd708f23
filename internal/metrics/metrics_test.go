package metrics

import (
	"expvar"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Snapshot(t *testing.T) {
	r := NewRecorder(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 100 * time.Millisecond)
	}

	for i := 1; i <= 5; i++ {
		r.Record("resolve", time.Duration(i)*time.Millisecond, 10*i)
	}

	stats := r.Snapshot()["resolve"]
	assert.Equal(t, int64(5), stats.Count)
	assert.Equal(t, 3*time.Millisecond, stats.Avg)
	assert.Equal(t, time.Millisecond, stats.Min)
	assert.Equal(t, 5*time.Millisecond, stats.Max)
	assert.Equal(t, 3*time.Millisecond, stats.P50)
	assert.Equal(t, 5*time.Millisecond, stats.P99)
	assert.InDelta(t, 30.0, stats.AvgNodes, 0.001)
	// 5 samples over 400ms of wall clock.
	assert.InDelta(t, 12.5, stats.Throughput, 0.001)
}

func TestRecorder_RingWraps(t *testing.T) {
	r := NewRecorder(3)
	for i := 1; i <= 7; i++ {
		r.Record("op", time.Duration(i)*time.Millisecond, 1)
	}
	stats := r.Snapshot()["op"]
	assert.Equal(t, int64(7), stats.Count)
	assert.Equal(t, 5*time.Millisecond, stats.Min)
	assert.Equal(t, 7*time.Millisecond, stats.Max)

	r.Reset()
	assert.Empty(t, r.Snapshot())
}

func TestRecorder_Publish(t *testing.T) {
	r := NewRecorder(0)
	r.Record("resolve", time.Millisecond, 1)
	r.Publish("metrics_test_recorder")

	v := expvar.Get("metrics_test_recorder")
	require.NotNil(t, v)
	assert.Contains(t, v.String(), `"resolve"`)
}

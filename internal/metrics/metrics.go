// Package metrics keeps a bounded ring of timing samples per operation and
// reports count, latency distribution and throughput over the retained window.
package metrics

import (
	"expvar"
	"slices"
	"sync"
	"time"
)

// DefaultWindow is the number of samples kept per operation.
const DefaultWindow = 1000

// Sample is one recorded operation.
type Sample struct {
	Duration  time.Duration
	NodeCount int
	At        time.Time
}

// OperationStats summarises the retained samples of one operation. Count is
// the lifetime total; the latency figures cover the retained window.
type OperationStats struct {
	Count      int64         `json:"count"`
	Avg        time.Duration `json:"avg"`
	Min        time.Duration `json:"min"`
	Max        time.Duration `json:"max"`
	P50        time.Duration `json:"p50"`
	P95        time.Duration `json:"p95"`
	P99        time.Duration `json:"p99"`
	AvgNodes   float64       `json:"avgNodes"`
	Throughput float64       `json:"throughputPerSec"`
}

type ring struct {
	samples []Sample
	next    int
	full    bool
	total   int64
}

func (r *ring) add(s Sample) {
	r.total++
	if !r.full && len(r.samples) < cap(r.samples) {
		r.samples = append(r.samples, s)
		if len(r.samples) == cap(r.samples) {
			r.full = true
		}
		return
	}
	r.samples[r.next] = s
	r.next = (r.next + 1) % len(r.samples)
}

// Recorder is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	window int
	ops    map[string]*ring
	now    func() time.Time
}

// NewRecorder creates a recorder keeping window samples per operation.
// Non-positive windows fall back to DefaultWindow.
func NewRecorder(window int) *Recorder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recorder{window: window, ops: make(map[string]*ring), now: time.Now}
}

// Record stores one sample for op.
func (r *Recorder) Record(op string, d time.Duration, nodeCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rg, ok := r.ops[op]
	if !ok {
		rg = &ring{samples: make([]Sample, 0, r.window)}
		r.ops[op] = rg
	}
	rg.add(Sample{Duration: d, NodeCount: nodeCount, At: r.now()})
}

// Snapshot returns stats for every recorded operation.
func (r *Recorder) Snapshot() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]OperationStats, len(r.ops))
	for op, rg := range r.ops {
		out[op] = summarize(rg)
	}
	return out
}

// Reset drops every sample.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = make(map[string]*ring)
}

// Publish exposes the snapshot under name in expvar. expvar names are
// process-global, so call it once per name.
func (r *Recorder) Publish(name string) {
	expvar.Publish(name, expvar.Func(func() any { return r.Snapshot() }))
}

func summarize(rg *ring) OperationStats {
	n := len(rg.samples)
	if n == 0 {
		return OperationStats{}
	}
	durations := make([]time.Duration, n)
	var sum time.Duration
	var nodes int
	first, last := rg.samples[0].At, rg.samples[0].At
	for i, s := range rg.samples {
		durations[i] = s.Duration
		sum += s.Duration
		nodes += s.NodeCount
		if s.At.Before(first) {
			first = s.At
		}
		if s.At.After(last) {
			last = s.At
		}
	}
	slices.Sort(durations)

	stats := OperationStats{
		Count:    rg.total,
		Avg:      sum / time.Duration(n),
		Min:      durations[0],
		Max:      durations[n-1],
		P50:      percentile(durations, 0.50),
		P95:      percentile(durations, 0.95),
		P99:      percentile(durations, 0.99),
		AvgNodes: float64(nodes) / float64(n),
	}
	// Throughput over the wall-clock span of the window, falling back to the
	// busy time when every sample landed on the same instant.
	span := last.Sub(first)
	if span <= 0 {
		span = sum
	}
	if span > 0 {
		stats.Throughput = float64(n) / span.Seconds()
	}
	return stats
}

// percentile uses nearest-rank on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted))*p+0.5) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

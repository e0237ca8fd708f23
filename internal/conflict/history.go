package conflict

import (
	"slices"
	"time"

	"github.com/specialistvlad/taskgrid/internal/metrics"
)

// HistoryEntry records one finished resolution attempt.
type HistoryEntry struct {
	ConflictID string        `json:"conflictId"`
	Type       Type          `json:"type"`
	PlanID     string        `json:"planId"`
	Strategy   StrategyName  `json:"strategy"`
	Status     Status        `json:"status"`
	Attempt    int           `json:"attempt"`
	Actions    []Action      `json:"actions"`
	Log        []LogEntry    `json:"log,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	At         time.Time     `json:"at"`
}

func historyEntry(c *Conflict, plan *Plan, elapsed time.Duration, errMsg string, at time.Time) HistoryEntry {
	return HistoryEntry{
		ConflictID: c.ID,
		Type:       c.Type,
		PlanID:     plan.ID,
		Strategy:   plan.Strategy,
		Status:     c.Status,
		Attempt:    c.Attempts,
		Actions:    cloneActions(plan.Actions),
		Log:        slices.Clone(plan.Log),
		Error:      errMsg,
		Duration:   elapsed,
		At:         at,
	}
}

// History returns every finished attempt in completion order.
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]HistoryEntry, len(e.history))
	for i, h := range e.history {
		h.Actions = cloneActions(h.Actions)
		h.Log = slices.Clone(h.Log)
		out[i] = h
	}
	return out
}

// Metrics is the observability view of an Engine.
type Metrics struct {
	ConflictsDetected     int                               `json:"conflictsDetected"`
	ConflictsResolved     int                               `json:"conflictsResolved"`
	FailedAttempts        int                               `json:"failedAttempts"`
	ConflictsEscalated    int                               `json:"conflictsEscalated"`
	ResolutionRate        float64                           `json:"resolutionRate"`
	AverageResolutionTime time.Duration                     `json:"averageResolutionTime"`
	StrategyUsage         map[StrategyName]int              `json:"strategyUsage"`
	ByStatus              map[Status]int                    `json:"byStatus"`
	Pending               int                               `json:"pending"`
	Escalated             int                               `json:"escalated"`
	Operations            map[string]metrics.OperationStats `json:"operations,omitempty"`
}

// Metrics returns counters over the lifetime of the engine plus a histogram
// of the conflicts it currently tracks. Pending counts retryable conflicts
// too.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	m := Metrics{
		ConflictsDetected:  e.counters.detected,
		ConflictsResolved:  e.counters.resolved,
		FailedAttempts:     e.counters.failed,
		ConflictsEscalated: e.counters.escalated,
		StrategyUsage:      make(map[StrategyName]int, len(e.counters.strategyUsage)),
		ByStatus:           make(map[Status]int),
	}
	for k, v := range e.counters.strategyUsage {
		m.StrategyUsage[k] = v
	}
	if e.counters.detected > 0 {
		m.ResolutionRate = float64(e.counters.resolved) / float64(e.counters.detected)
	}
	if e.counters.resolved > 0 {
		m.AverageResolutionTime = e.counters.resolutionTime / time.Duration(e.counters.resolved)
	}
	for _, c := range e.conflicts {
		m.ByStatus[c.Status]++
		switch c.Status {
		case StatusPending, StatusRetryable:
			m.Pending++
		case StatusEscalated:
			m.Escalated++
		}
	}
	e.mu.Unlock()

	if e.cfg.EnableMetrics {
		m.Operations = e.metrics.Snapshot()
	}
	return m
}

// PublishMetrics exposes the operation timings through expvar under name.
func (e *Engine) PublishMetrics(name string) {
	e.metrics.Publish(name)
}

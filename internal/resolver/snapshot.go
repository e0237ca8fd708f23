package resolver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/specialistvlad/taskgrid/internal/graph"
)

// Snapshot is the JSON-serializable state of a Resolver.
type Snapshot struct {
	Strategy  Strategy     `json:"strategy,omitempty"`
	Nodes     []graph.Node `json:"nodes"`
	Stats     Stats        `json:"stats"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Export captures every task with its edges, state and timestamps.
func (r *Resolver) Export() Snapshot {
	nodes := r.graph.Nodes()
	if nodes == nil {
		nodes = []graph.Node{}
	}
	return Snapshot{
		Strategy:  r.Strategy(),
		Nodes:     nodes,
		Stats:     r.Stats(),
		CreatedAt: r.graph.CreatedAt(),
		UpdatedAt: r.graph.UpdatedAt(),
	}
}

// ExportJSON is Export encoded as indented JSON.
func (r *Resolver) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r.Export(), "", "  ")
}

// Import rebuilds a Resolver from a snapshot. Tasks are inserted first, then
// every edge is replayed through the cycle-checked AddDependency, so a
// tampered snapshot cannot smuggle a cycle in. A strategy recorded in the
// snapshot overrides cfg.Strategy.
func Import(snap Snapshot, cfg Config) (*Resolver, error) {
	if snap.Strategy != "" {
		cfg.Strategy = snap.Strategy
	}
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}

	for _, n := range snap.Nodes {
		if err := r.graph.AddNode(n.ID, n.Data); err != nil {
			return nil, fmt.Errorf("import task %q: %w", n.ID, err)
		}
	}
	for _, n := range snap.Nodes {
		for _, dep := range n.Dependencies {
			if err := r.graph.AddDependency(n.ID, dep); err != nil {
				return nil, fmt.Errorf("import dependency %s -> %s: %w", n.ID, dep, err)
			}
		}
		for _, child := range n.Dependents {
			if err := r.graph.AddDependency(child, n.ID); err != nil {
				return nil, fmt.Errorf("import dependency %s -> %s: %w", child, n.ID, err)
			}
		}
	}
	for _, n := range snap.Nodes {
		state := n.State
		if state == "" {
			state = graph.StatePending
		}
		if err := r.graph.Restore(n.ID, state, n.CreatedAt, n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("import task %q: %w", n.ID, err)
		}
	}
	return r, nil
}

// ImportJSON decodes a snapshot produced by ExportJSON and imports it.
func ImportJSON(data []byte, cfg Config) (*Resolver, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return Import(snap, cfg)
}

package graph

import "slices"

// index is an integer-addressed copy of the dependency structure taken under
// the read lock. Positions follow sorted id order, so walking positions in
// ascending order visits ids in ascending order. The traversals run on it to
// stay on slices instead of string-keyed maps.
type index struct {
	ids   []string
	pos   map[string]int
	verts []*vertex
	// deps[i] lists the positions task i depends on, ascending.
	deps [][]int
}

func (g *Graph) indexLocked() *index {
	ids := g.idsLocked()
	x := &index{
		ids:   ids,
		pos:   make(map[string]int, len(ids)),
		verts: make([]*vertex, len(ids)),
		deps:  make([][]int, len(ids)),
	}
	for i, id := range ids {
		x.pos[id] = i
		x.verts[i] = g.nodes[id]
	}
	for i, v := range x.verts {
		if len(v.dependencies) == 0 {
			continue
		}
		deps := make([]int, 0, len(v.dependencies))
		for dep := range v.dependencies {
			deps = append(deps, x.pos[dep])
		}
		slices.Sort(deps)
		x.deps[i] = deps
	}
	return x
}

// dependents inverts deps. Each list comes out ascending because positions
// are visited in order.
func (x *index) dependents() [][]int {
	out := make([][]int, len(x.ids))
	for i, deps := range x.deps {
		for _, d := range deps {
			out[d] = append(out[d], i)
		}
	}
	return out
}

func (x *index) names(positions []int) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = x.ids[p]
	}
	return out
}

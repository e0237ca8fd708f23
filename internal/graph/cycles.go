package graph

import "slices"

// DetectCycles returns every strongly connected component with more than one
// task, each sorted by id. The result is empty for a healthy graph.
func (g *Graph) DetectCycles() [][]string {
	g.mutex.RLock()
	x := g.indexLocked()
	g.mutex.RUnlock()

	t := newTarjan(x.dependents())
	for v := range x.ids {
		if t.indices[v] < 0 {
			t.strongConnect(v)
		}
	}

	var out [][]string
	for _, component := range t.components {
		slices.Sort(component)
		out = append(out, x.names(component))
	}
	return out
}

// HasCycles reports whether DetectCycles finds anything.
func (g *Graph) HasCycles() bool {
	return len(g.DetectCycles()) > 0
}

// tarjan holds the state of one strongly-connected-components run over the
// dependents relation. A fresh value is built for every DetectCycles call.
type tarjan struct {
	next       [][]int
	index      int
	indices    []int // -1 until visited
	lowlink    []int
	onStack    []bool
	stack      []int
	components [][]int
}

// tarjanFrame replaces one recursive strongConnect activation.
type tarjanFrame struct {
	v   int
	pos int
}

func newTarjan(next [][]int) *tarjan {
	t := &tarjan{
		next:    next,
		indices: make([]int, len(next)),
		lowlink: make([]int, len(next)),
		onStack: make([]bool, len(next)),
	}
	for i := range t.indices {
		t.indices[i] = -1
	}
	return t
}

func (t *tarjan) visit(v int) tarjanFrame {
	t.indices[v] = t.index
	t.lowlink[v] = t.index
	t.index++
	t.stack = append(t.stack, v)
	t.onStack[v] = true
	return tarjanFrame{v: v}
}

func (t *tarjan) strongConnect(root int) {
	calls := []tarjanFrame{t.visit(root)}
	for len(calls) > 0 {
		f := &calls[len(calls)-1]
		if f.pos < len(t.next[f.v]) {
			w := t.next[f.v][f.pos]
			f.pos++
			if t.indices[w] < 0 {
				calls = append(calls, t.visit(w))
			} else if t.onStack[w] {
				t.lowlink[f.v] = min(t.lowlink[f.v], t.indices[w])
			}
			continue
		}

		v := f.v
		calls = calls[:len(calls)-1]
		if len(calls) > 0 {
			parent := calls[len(calls)-1].v
			t.lowlink[parent] = min(t.lowlink[parent], t.lowlink[v])
		}
		if t.lowlink[v] != t.indices[v] {
			continue
		}

		var component []int
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			component = append(component, w)
			if w == v {
				break
			}
		}
		if len(component) > 1 {
			t.components = append(t.components, component)
		}
	}
}

package graph

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New()
		assert.Empty(t, g.DetectCycles())
		assert.False(t, g.HasCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := newTestGraph(t, "a", "b", "c", "d")
		g.link("b", "a")
		g.link("c", "b")
		g.link("c", "a")
		g.link("d", "c")
		assert.Empty(t, g.DetectCycles())
	})

	t.Run("simple direct cycle", func(t *testing.T) {
		g := newTestGraph(t, "a", "b")
		g.link("b", "a")
		g.link("a", "b")
		assert.Equal(t, [][]string{{"a", "b"}}, g.DetectCycles())
		assert.True(t, g.HasCycles())
	})

	t.Run("disjoint components", func(t *testing.T) {
		g := newTestGraph(t, "a", "b", "x", "y", "z", "p", "q")
		g.link("b", "a")
		g.link("y", "x")
		g.link("z", "y")
		g.link("y", "z")
		g.link("q", "p")
		g.link("p", "q")

		want := [][]string{{"p", "q"}, {"y", "z"}}
		got := g.DetectCycles()
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("DetectCycles mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("re-runnable", func(t *testing.T) {
		g := newTestGraph(t, "a", "b", "c")
		g.link("b", "a")
		g.link("c", "b")
		g.link("a", "c")
		first := g.DetectCycles()
		second := g.DetectCycles()
		assert.Equal(t, first, second)
		assert.Equal(t, [][]string{{"a", "b", "c"}}, first)
	})
}

func TestDetectCycles_DeepChainUsesNoRecursion(t *testing.T) {
	const n = 20000
	g := New()
	for i := 0; i < n; i++ {
		if err := g.AddNode(fmt.Sprintf("t%05d", i), TaskData{}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i < n; i++ {
		g.link(fmt.Sprintf("t%05d", i), fmt.Sprintf("t%05d", i-1))
	}
	assert.Empty(t, g.DetectCycles())

	g.link("t00000", fmt.Sprintf("t%05d", n-1))
	cycles := g.DetectCycles()
	if assert.Len(t, cycles, 1) {
		assert.Len(t, cycles[0], n)
	}
}

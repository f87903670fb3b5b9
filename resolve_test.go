package flatland

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatland-lang/flatland/pkg/graph"
)

func typesOf(g graph.Graph) map[string]int {
	out := map[string]int{}
	for _, r := range g {
		out[r.Type]++
	}
	return out
}

func TestResolveSquare(t *testing.T) {
	ev, _, _ := newTestExecutor(t)
	evalLisp(t, ev, squareLisp)
	recs := ev.LastRun()

	g, err := ResolveScope(recs)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"info": 1, "loop": 1, "move": 1, "turn": 1}, typesOf(g))

	var loopID string
	for id, r := range g {
		assert.Empty(t, r.Scope)
		assert.Empty(t, r.Name)
		assert.Nil(t, r.Sources)
		if r.Type == graph.TypeLoop {
			loopID = id
		}
	}
	assert.Equal(t, []string{loopID}, g[graph.StartID].Targets["out"])
	assert.Empty(t, g[loopID].Targets["out"])

	// input untouched
	assert.Equal(t, graph.TypeFlow, recs[1].Type)
	assert.NotEmpty(t, recs[2].Scope)
}

func TestResolveNested(t *testing.T) {
	ev, _, _ := newTestExecutor(t)
	evalLisp(t, ev, nestedLisp)
	recs := ev.LastRun()
	m1, m2 := recs[3].ID, recs[5].ID

	g, err := ResolveScope(recs)
	require.NoError(t, err)
	require.Len(t, g, 3)
	assert.Equal(t, []string{m1}, g[graph.StartID].Targets["out"])
	assert.Equal(t, []string{m2}, g[m1].Targets["out"])
	assert.Empty(t, g[m2].Targets["out"])
}

func TestResolveIsIdempotentOnFlatGraphs(t *testing.T) {
	a := graph.NewNodeInfo("a", graph.TypeMove)
	a.Scope = graph.GlobalScope
	a.Targets["out"] = []string{"b"}
	a.Set("dist", 3)
	b := graph.NewNodeInfo("b", graph.TypeTurn)
	b.Scope = graph.GlobalScope
	b.Sources = []string{"a"}

	g, err := ResolveScope([]*graph.NodeInfo{a, b})
	require.NoError(t, err)
	require.Len(t, g, 2)
	assert.Equal(t, []string{"b"}, g["a"].Targets["out"])
	assert.Equal(t, float64(3), g["a"].Attrs["dist"])
}

func TestResolveConsistencyErrors(t *testing.T) {
	t.Run("unknown entry", func(t *testing.T) {
		f := graph.NewNodeInfo("f", graph.TypeFlow)
		f.Scope = graph.GlobalScope
		f.Internal = &graph.InternalInfo{Entries: []string{"ghost"}, Exits: map[string][]string{}}
		_, err := ResolveScope([]*graph.NodeInfo{f})
		assert.True(t, errors.Is(err, ErrConsistency))
	})

	t.Run("record left in a dead scope", func(t *testing.T) {
		a := graph.NewNodeInfo("a", graph.TypeMove)
		a.Scope = "elsewhere"
		_, err := ResolveScope([]*graph.NodeInfo{a})
		assert.True(t, errors.Is(err, ErrConsistency))
	})

	t.Run("duplicate id", func(t *testing.T) {
		a := graph.NewNodeInfo("a", graph.TypeMove)
		a.Scope = graph.GlobalScope
		_, err := ResolveScope([]*graph.NodeInfo{a, a.Clone()})
		assert.True(t, errors.Is(err, ErrConsistency))
	})

	t.Run("flow without router", func(t *testing.T) {
		f := graph.NewNodeInfo("f", graph.TypeFlow)
		f.Scope = graph.GlobalScope
		_, err := ResolveScope([]*graph.NodeInfo{f})
		assert.True(t, errors.Is(err, ErrConsistency))
	})
}

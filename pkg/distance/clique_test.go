package distance

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestProductGraph(weights []float64, edges [][2]int) *productGraph {
	pg := &productGraph{
		n:       len(weights),
		adj:     make([]bitset, len(weights)),
		weights: weights,
	}
	for i := range pg.adj {
		pg.adj[i] = newBitset(pg.n)
	}
	for _, e := range edges {
		pg.adj[e[0]].set(e[1])
		pg.adj[e[1]].set(e[0])
		pg.edges++
	}
	return pg
}

func sorted(vs []int) []int {
	out := append([]int(nil), vs...)
	sort.Ints(out)
	return out
}

func TestBitset(t *testing.T) {
	b := newBitset(130)
	assert.Len(t, b, 3)
	assert.True(t, b.empty())
	for _, i := range []int{0, 63, 64, 129} {
		b.set(i)
	}
	assert.Equal(t, 4, b.count())
	assert.Equal(t, []int{0, 63, 64, 129}, b.members())
	assert.True(t, b.has(64))
	assert.False(t, b.has(65))

	c := b.clone()
	c.unset(64)
	assert.True(t, b.has(64), "clone is independent")
	assert.Equal(t, []int{0, 63, 129}, b.and(c).members())
	assert.Equal(t, []int{64}, b.andNot(c).members())
	assert.Equal(t, 3, b.andCount(c))
}

func TestExactClique(t *testing.T) {
	// triangle {0,1,2} of light vertices and a heavy edge {3,4}
	pg := newTestProductGraph(
		[]float64{1, 1, 1, 5, 5},
		[][2]int{{0, 1}, {1, 2}, {0, 2}, {3, 4}},
	)
	assert.InDelta(t, 0.4, pg.density(), 1e-9)

	t.Run("size wins over weight", func(t *testing.T) {
		clique, complete := pg.exactClique(nil, 0)
		assert.True(t, complete)
		assert.Equal(t, []int{0, 1, 2}, sorted(clique))
	})

	t.Run("starting clique is kept when nothing beats it", func(t *testing.T) {
		small := newTestProductGraph([]float64{1, 1}, nil)
		clique, complete := small.exactClique([]int{1}, 0)
		assert.True(t, complete)
		assert.Equal(t, []int{1}, clique)
	})

	t.Run("weight breaks ties", func(t *testing.T) {
		pairs := newTestProductGraph([]float64{1, 1, 2, 2}, [][2]int{{0, 1}, {2, 3}})
		clique, _ := pairs.exactClique(nil, 0)
		assert.Equal(t, []int{2, 3}, sorted(clique))
	})

	t.Run("budget", func(t *testing.T) {
		clique, complete := pg.exactClique([]int{3}, 1)
		assert.False(t, complete)
		assert.Equal(t, []int{3}, clique)
	})
}

func TestHeuristicClique(t *testing.T) {
	pg := newTestProductGraph(
		[]float64{1, 1, 1, 5, 5},
		[][2]int{{0, 1}, {1, 2}, {0, 2}, {3, 4}},
	)
	assert.Equal(t, []int{0, 1, 2}, sorted(pg.heuristicClique(nil, 5)))

	// without seeds the initial clique comes back unchanged
	assert.Equal(t, []int{3, 4}, pg.heuristicClique([]int{3, 4}, 0))
	assert.Equal(t, []int{0, 1, 2}, sorted(pg.heuristicClique(nil, 100)), "starts are capped at the vertex count")
}

func TestBetter(t *testing.T) {
	assert.True(t, better(3, 1, 2, 10))
	assert.False(t, better(2, 10, 3, 1))
	assert.True(t, better(2, 2, 2, 1))
	assert.False(t, better(2, 1, 2, 1))
}

func TestPrune(t *testing.T) {
	cs := []Candidate{
		{A: "a1", B: "b1", Weight: 1},
		{A: "a1", B: "b2", Weight: 0.9},
		{A: "a2", B: "b2", Weight: 0.8},
		{A: "a1", B: "b3", Weight: 0.5},
		{A: "a2", B: "b1", Weight: 0.4},
	}
	assert.Equal(t, cs[:4], prune(cs, 1, nil))
	assert.Equal(t, cs, prune(cs, 1, []Candidate{cs[4]}))
	assert.Equal(t, cs, prune(cs, 2, nil))
}

func TestUpperBoundAndMappingSize(t *testing.T) {
	cs := []Candidate{
		{A: "a1", B: "b1", Weight: 1},
		{A: "a2", B: "b1", Weight: 0.5},
		{A: "a3", B: "b1", Weight: 0.5},
	}
	assert.Equal(t, 1, maxMappingSize(cs))
	assert.Equal(t, 1.0, upperBound(cs))
}

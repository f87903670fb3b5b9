package distance

import (
	"math/bits"
)

// bitset is a fixed size set of small integers
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int)      { b[i/64] |= 1 << uint(i%64) }
func (b bitset) unset(i int)    { b[i/64] &^= 1 << uint(i%64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<uint(i%64)) != 0 }

func (b bitset) clone() bitset {
	return append(bitset(nil), b...)
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b bitset) empty() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

func (b bitset) and(c bitset) bitset {
	out := make(bitset, len(b))
	for i := range b {
		out[i] = b[i] & c[i]
	}
	return out
}

func (b bitset) andNot(c bitset) bitset {
	out := make(bitset, len(b))
	for i := range b {
		out[i] = b[i] &^ c[i]
	}
	return out
}

func (b bitset) andCount(c bitset) int {
	n := 0
	for i := range b {
		n += bits.OnesCount64(b[i] & c[i])
	}
	return n
}

// members lists the elements in increasing order
func (b bitset) members() []int {
	var out []int
	for i, w := range b {
		for w != 0 {
			t := bits.TrailingZeros64(w)
			out = append(out, i*64+t)
			w &= w - 1
		}
	}
	return out
}

// productGraph is the compatibility graph over candidates
type productGraph struct {
	n       int
	adj     []bitset
	weights []float64
	edges   int
}

func (m *matcher) productGraph(cs []Candidate) *productGraph {
	pg := &productGraph{
		n:       len(cs),
		adj:     make([]bitset, len(cs)),
		weights: make([]float64, len(cs)),
	}
	for i := range cs {
		pg.adj[i] = newBitset(len(cs))
		pg.weights[i] = cs[i].Weight
	}
	for i := range cs {
		for j := i + 1; j < len(cs); j++ {
			if m.compatible(cs[i], cs[j]) {
				pg.adj[i].set(j)
				pg.adj[j].set(i)
				pg.edges++
			}
		}
	}
	return pg
}

func (pg *productGraph) density() float64 {
	if pg.n < 2 {
		return 0
	}
	return 2 * float64(pg.edges) / (float64(pg.n) * float64(pg.n-1))
}

func (pg *productGraph) weight(vs []int) float64 {
	w := 0.0
	for _, v := range vs {
		w += pg.weights[v]
	}
	return w
}

func (pg *productGraph) weightOf(s bitset) float64 {
	w := 0.0
	for _, v := range s.members() {
		w += pg.weights[v]
	}
	return w
}

// better orders cliques by size, then by weight
func better(size int, w float64, bestSize int, bestW float64) bool {
	if size != bestSize {
		return size > bestSize
	}
	return w > bestW+1e-12
}

// cliqueSearch is an exact Bron-Kerbosch search with pivoting and a
// (size, weight) bound
type cliqueSearch struct {
	pg       *productGraph
	best     []int
	bestW    float64
	budget   int
	steps    int
	complete bool
}

// exactClique returns the best clique by (size, weight), starting from a known
// clique. complete is false when the step budget ran out first.
func (pg *productGraph) exactClique(start []int, budget int) ([]int, bool) {
	s := &cliqueSearch{
		pg:       pg,
		best:     append([]int(nil), start...),
		bestW:    pg.weight(start),
		budget:   budget,
		complete: true,
	}
	p := newBitset(pg.n)
	for i := 0; i < pg.n; i++ {
		p.set(i)
	}
	s.expand(nil, 0, p, newBitset(pg.n))
	return s.best, s.complete
}

func (s *cliqueSearch) expand(r []int, rw float64, p, x bitset) {
	s.steps++
	if s.budget > 0 && s.steps > s.budget {
		s.complete = false
		return
	}
	if p.empty() {
		if x.empty() && better(len(r), rw, len(s.best), s.bestW) {
			s.best = append([]int(nil), r...)
			s.bestW = rw
		}
		return
	}
	pc := p.count()
	if len(r)+pc < len(s.best) {
		return
	}
	if len(r)+pc == len(s.best) && rw+s.pg.weightOf(p) <= s.bestW+1e-12 {
		return
	}

	pivot, most := -1, -1
	for _, u := range p.members() {
		if c := s.pg.adj[u].andCount(p); c > most {
			pivot, most = u, c
		}
	}
	for _, u := range x.members() {
		if c := s.pg.adj[u].andCount(p); c > most {
			pivot, most = u, c
		}
	}

	for _, v := range p.andNot(s.pg.adj[pivot]).members() {
		s.expand(append(r, v), rw+s.pg.weights[v], p.and(s.pg.adj[v]), x.and(s.pg.adj[v]))
		if !s.complete {
			return
		}
		p.unset(v)
		x.set(v)
	}
}

// heuristicClique grows a clique from each of the first starts vertices,
// always adding the vertex that keeps the most options open, and returns the
// best by (size, weight). It never returns anything worse than init.
func (pg *productGraph) heuristicClique(init []int, starts int) []int {
	best := append([]int(nil), init...)
	bestW := pg.weight(best)
	if starts > pg.n {
		starts = pg.n
	}
	for seed := 0; seed < starts; seed++ {
		clique := []int{seed}
		w := pg.weights[seed]
		p := pg.adj[seed].clone()
		for !p.empty() {
			pick, pickDeg := -1, -1
			for _, v := range p.members() {
				d := pg.adj[v].andCount(p)
				if d > pickDeg || (d == pickDeg && pg.weights[v] > pg.weights[pick]) {
					pick, pickDeg = v, d
				}
			}
			clique = append(clique, pick)
			w += pg.weights[pick]
			p = p.and(pg.adj[pick])
		}
		if better(len(clique), w, len(best), bestW) {
			best, bestW = clique, w
		}
	}
	return best
}

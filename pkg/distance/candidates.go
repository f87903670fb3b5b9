package distance

import (
	"sort"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// Candidate pairs record A of the first graph with record B of the second
type Candidate struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
}

// adjacency caches the port of the edge between two records of one graph
type adjacency map[string]map[string]string

func newAdjacency(g graph.Graph) adjacency {
	adj := make(adjacency, len(g))
	for id, rec := range g {
		m := make(map[string]string)
		for _, port := range rec.Ports() {
			for _, t := range rec.Targets[port] {
				if _, seen := m[t]; !seen {
					m[t] = port
				}
			}
		}
		adj[id] = m
	}
	return adj
}

func (adj adjacency) edge(from, to string) string {
	return adj[from][to]
}

// matcher holds everything the stages of one comparison share
type matcher struct {
	a, b   graph.Graph
	adjA   adjacency
	adjB   adjacency
	metric Metric
	opts   Options
}

func newMatcher(a, b graph.Graph, m Metric, o Options) *matcher {
	return &matcher{
		a:      a,
		b:      b,
		adjA:   newAdjacency(a),
		adjB:   newAdjacency(b),
		metric: m,
		opts:   o,
	}
}

// candidates scores every same-typed pair and keeps the positive ones,
// heaviest first, ties broken by the ids
func (m *matcher) candidates() []Candidate {
	var out []Candidate
	idsB := m.b.IDs()
	for _, ida := range m.a.IDs() {
		ra := m.a[ida]
		for _, idb := range idsB {
			rb := m.b[idb]
			if ra.Type != rb.Type {
				continue
			}
			if w := m.metric.Node(ra, rb, m.opts); w > 0 {
				if w > 1 {
					w = 1
				}
				out = append(out, Candidate{A: ida, B: idb, Weight: w})
			}
		}
	}
	sortCandidates(out)
	return out
}

func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Weight != cs[j].Weight {
			return cs[i].Weight > cs[j].Weight
		}
		if cs[i].A != cs[j].A {
			return cs[i].A < cs[j].A
		}
		return cs[i].B < cs[j].B
	})
}

// compatible reports whether two candidates can belong to one mapping: they
// pair distinct records, the labelled edges between the A records match
// those between the B records in both directions, and the metric agrees
func (m *matcher) compatible(x, y Candidate) bool {
	if x.A == y.A || x.B == y.B {
		return false
	}
	if m.adjA.edge(x.A, y.A) != m.adjB.edge(x.B, y.B) {
		return false
	}
	if m.adjA.edge(y.A, x.A) != m.adjB.edge(y.B, x.B) {
		return false
	}
	if m.metric.Edge != nil {
		return m.metric.Edge(m.a[x.A], m.a[y.A], m.b[x.B], m.b[y.B], m.opts)
	}
	return true
}

// greedy accepts candidates heaviest first while they stay compatible with
// everything accepted so far. The result is a valid mapping and therefore a
// lower bound for the clique search.
func (m *matcher) greedy(cs []Candidate) ([]Candidate, float64) {
	var picked []Candidate
	usedA := map[string]bool{}
	usedB := map[string]bool{}
	total := 0.0
	for _, c := range cs {
		if usedA[c.A] || usedB[c.B] {
			continue
		}
		ok := true
		for _, p := range picked {
			if !m.compatible(p, c) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		picked = append(picked, c)
		usedA[c.A] = true
		usedB[c.B] = true
		total += c.Weight
	}
	return picked, total
}

// upperBound is the best weight any one-to-one mapping could reach
func upperBound(cs []Candidate) float64 {
	bestA := map[string]float64{}
	bestB := map[string]float64{}
	for _, c := range cs {
		if c.Weight > bestA[c.A] {
			bestA[c.A] = c.Weight
		}
		if c.Weight > bestB[c.B] {
			bestB[c.B] = c.Weight
		}
	}
	sum := func(m map[string]float64) float64 {
		s := 0.0
		for _, w := range m {
			s += w
		}
		return s
	}
	ua, ub := sum(bestA), sum(bestB)
	if ua < ub {
		return ua
	}
	return ub
}

// prune keeps the k best candidates of every record on either side, plus the
// given mapping. cs must be sorted.
func prune(cs []Candidate, k int, keep []Candidate) []Candidate {
	kept := make(map[Candidate]bool, len(keep))
	for _, c := range keep {
		kept[c] = true
	}
	countA := map[string]int{}
	countB := map[string]int{}
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		inA := countA[c.A] < k
		inB := countB[c.B] < k
		countA[c.A]++
		countB[c.B]++
		if inA || inB || kept[c] {
			out = append(out, c)
		}
	}
	return out
}

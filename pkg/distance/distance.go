package distance

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// ErrInvalidMapping signals a selected correspondence that breaks the
// one-to-one or edge-consistency rules. It indicates a bug, not bad input.
var ErrInvalidMapping = errors.New("mapping is not valid")

// Strategies reported in Result
const (
	StrategyEmpty     = "empty"
	StrategyNone      = "none"
	StrategyGreedy    = "greedy"
	StrategyExact     = "exact"
	StrategyHeuristic = "heuristic"
)

// Result describes one comparison
type Result struct {
	Metric     string      `json:"metric"`
	Mapping    []Candidate `json:"mapping"`
	Weight     float64     `json:"weight"`
	Similarity float64     `json:"similarity"`
	Distance   float64     `json:"distance"`
	Exact      bool        `json:"exact"`
	Strategy   string      `json:"strategy"`
	Candidates int         `json:"candidates"`
	Edges      int         `json:"edges"`
}

// Distance returns 1 - similarity of a and b under the named metric
func Distance(a, b graph.Graph, metric string, opts Options) (float64, error) {
	r, err := Compare(a, b, metric, opts)
	if err != nil {
		return 0, err
	}
	return r.Distance, nil
}

// Compare aligns a with b and scores the alignment. Two empty graphs are
// identical (distance 0); an empty graph against a non-empty one is at
// distance 1.
func Compare(a, b graph.Graph, metric string, opts Options) (*Result, error) {
	m, err := Lookup(metric)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	res := &Result{Metric: metric, Exact: true, Mapping: []Candidate{}}

	if len(a) == 0 || len(b) == 0 {
		res.Strategy = StrategyEmpty
		if len(a) == 0 && len(b) == 0 {
			res.Similarity = 1
		}
		res.Distance = 1 - res.Similarity
		return res, nil
	}

	mt := newMatcher(a, b, m, opts)
	cs := mt.candidates()
	res.Candidates = len(cs)
	if len(cs) == 0 {
		res.Strategy = StrategyNone
		res.Distance = 1
		return res, nil
	}

	mapping, gw := mt.greedy(cs)
	ub := upperBound(cs)
	opts.debug("%d candidates, greedy %d pairs weight %.4f, bound %.4f", len(cs), len(mapping), gw, ub)

	if len(mapping) == maxMappingSize(cs) && gw >= ub-opts.NearOptimalEpsilon {
		res.Strategy = StrategyGreedy
	} else {
		pruned := prune(cs, opts.CandidatesPerNode, mapping)
		pg := mt.productGraph(pruned)
		res.Edges = pg.edges
		index := make(map[Candidate]int, len(pruned))
		for i, c := range pruned {
			index[c] = i
		}
		start := make([]int, 0, len(mapping))
		for _, c := range mapping {
			start = append(start, index[c])
		}

		var clique []int
		dens := pg.density()
		if pg.n <= opts.ExactLimit && dens <= opts.DensityThreshold {
			var complete bool
			clique, complete = pg.exactClique(start, opts.ExactBudget)
			res.Strategy = StrategyExact
			if !complete {
				res.Exact = false
				clique = pg.heuristicClique(clique, opts.HeuristicStarts)
			}
		} else {
			clique = pg.heuristicClique(start, opts.HeuristicStarts)
			res.Strategy = StrategyHeuristic
			res.Exact = false
		}
		opts.debug("product graph V=%d E=%d density %.3f: %s, clique of %d", pg.n, pg.edges, dens, res.Strategy, len(clique))

		mapping = make([]Candidate, 0, len(clique))
		for _, v := range clique {
			mapping = append(mapping, pruned[v])
		}
	}

	if err := mt.validate(mapping, cs); err != nil {
		return nil, err
	}
	sort.Slice(mapping, func(i, j int) bool { return mapping[i].A < mapping[j].A })
	res.Mapping = mapping
	for _, c := range mapping {
		res.Weight += c.Weight
	}
	res.Similarity = (res.Weight / float64(len(a))) * (res.Weight / float64(len(b)))
	res.Similarity = math.Min(1, math.Max(0, res.Similarity))
	res.Distance = 1 - res.Similarity
	return res, nil
}

// maxMappingSize bounds the size of any one-to-one mapping over cs
func maxMappingSize(cs []Candidate) int {
	as := map[string]bool{}
	bs := map[string]bool{}
	for _, c := range cs {
		as[c.A] = true
		bs[c.B] = true
	}
	if len(as) < len(bs) {
		return len(as)
	}
	return len(bs)
}

// validate checks that mapping only uses scored candidates, is one-to-one and
// pairwise compatible
func (m *matcher) validate(mapping, cs []Candidate) error {
	known := make(map[Candidate]bool, len(cs))
	for _, c := range cs {
		known[c] = true
	}
	usedA := map[string]bool{}
	usedB := map[string]bool{}
	for i, c := range mapping {
		if !known[c] {
			return fmt.Errorf("%w: %s/%s was never a candidate", ErrInvalidMapping, c.A, c.B)
		}
		if usedA[c.A] || usedB[c.B] {
			return fmt.Errorf("%w: %s/%s reuses a record", ErrInvalidMapping, c.A, c.B)
		}
		usedA[c.A] = true
		usedB[c.B] = true
		for _, d := range mapping[:i] {
			if !m.compatible(d, c) {
				return fmt.Errorf("%w: %s/%s conflicts with %s/%s", ErrInvalidMapping, c.A, c.B, d.A, d.B)
			}
		}
	}
	return nil
}

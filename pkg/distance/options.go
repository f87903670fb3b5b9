// Package distance scores how structurally similar two flattened drawing
// graphs are.
//
// Every same-typed pair of records across the two graphs becomes a weighted
// correspondence candidate. Two candidates are compatible when they map
// distinct records and preserve the labelled adjacency between them in both
// directions. The best alignment is a maximum clique of the compatibility
// graph, found exactly while the graph is small and sparse enough, and by a
// multi-start greedy heuristic otherwise. The similarity of the alignment is
// (W/|A|)*(W/|B|) where W is the summed candidate weight.
package distance

// Logger receives engine diagnostics
type Logger interface {
	Debug(format string, args ...interface{})
}

// Options tunes the engine. The thresholds trade exactness for runtime and
// are not part of the score's contract.
type Options struct {
	// ExactLimit is the largest candidate count searched exactly
	ExactLimit int `toml:"exact_limit"`
	// DensityThreshold switches to the heuristic above this edge density
	DensityThreshold float64 `toml:"density_threshold"`
	// ExactBudget caps the recursion steps of the exact search; 0 is unlimited
	ExactBudget int `toml:"exact_budget"`
	// CandidatesPerNode bounds the candidates kept per record when pruning
	CandidatesPerNode int `toml:"candidates_per_node"`
	// NearOptimalEpsilon is the slack under which the greedy bound is accepted
	NearOptimalEpsilon float64 `toml:"near_optimal_epsilon"`
	// Leniency is the distance, in canvas units, treated as a perfect match
	Leniency float64 `toml:"leniency"`
	// Span is how far past Leniency the linear falloff reaches zero
	Span float64 `toml:"span"`
	// HeuristicStarts is the number of seeds tried by the heuristic search
	HeuristicStarts int `toml:"heuristic_starts"`

	Logger Logger `toml:"-"`
}

// DefaultOptions returns the default tuning
func DefaultOptions() Options {
	return Options{
		ExactLimit:         256,
		DensityThreshold:   0.85,
		ExactBudget:        2000000,
		CandidatesPerNode:  16,
		NearOptimalEpsilon: 1e-9,
		Leniency:           4,
		Span:               64,
		HeuristicStarts:    16,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ExactLimit <= 0 {
		o.ExactLimit = d.ExactLimit
	}
	if o.DensityThreshold <= 0 {
		o.DensityThreshold = d.DensityThreshold
	}
	if o.CandidatesPerNode <= 0 {
		o.CandidatesPerNode = d.CandidatesPerNode
	}
	if o.NearOptimalEpsilon < 0 {
		o.NearOptimalEpsilon = d.NearOptimalEpsilon
	}
	if o.Leniency <= 0 {
		o.Leniency = d.Leniency
	}
	if o.Span <= 0 {
		o.Span = d.Span
	}
	if o.HeuristicStarts <= 0 {
		o.HeuristicStarts = d.HeuristicStarts
	}
	return o
}

func (o Options) debug(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Debug(format, args...)
	}
}

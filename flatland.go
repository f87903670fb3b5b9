// Package flatland interprets turtle-drawing flow programs and scores how
// similar two programs are.
//
// Programs are written either as s-expressions (.lisp) or in edge notation
// (.fbp). Evaluating a program builds a graph of move, turn, loop and flow
// nodes, optionally runs it on a drawing surface, and returns one record per
// node. ResolveScope flattens those records into a single graph, and the
// distance package aligns two such graphs to score them.
package flatland

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/flatland-lang/flatland/pkg/distance"
	"github.com/flatland-lang/flatland/pkg/graph"
	"github.com/flatland-lang/flatland/pkg/turtle"
)

// Flatland is the entry point used by the command line tool
type Flatland struct {
	config *Config
	logger *Logger
}

// New creates an interpreter facade
func New(config *Config) *Flatland {
	if config == nil {
		config = DefaultConfig()
	}
	logger := NewLogger(config.Debug)
	if len(config.DebugCategories) == 0 {
		logger.EnableAllCategories()
	}
	for _, c := range config.DebugCategories {
		cat := LogCategory(strings.TrimSpace(c))
		if !cat.known() {
			logger.Warn("unknown debug category %q (known: %v)", cat, allCategories)
		}
		logger.EnableCategory(cat)
	}
	return &Flatland{config: config, logger: logger}
}

// Config returns the active configuration
func (f *Flatland) Config() *Config { return f.config }

// Logger returns the shared logger
func (f *Flatland) Logger() *Logger { return f.logger }

// NewExecutor creates an executor for one run
func (f *Flatland) NewExecutor() *Executor {
	return NewExecutor(f.config, f.logger)
}

// Run is the outcome of evaluating one program
type Run struct {
	File    string
	Records []*graph.NodeInfo
	Turtle  *turtle.Turtle
	Value   Value
}

// Graph flattens the run's records
func (r *Run) Graph() (graph.Graph, error) {
	return ResolveScope(r.Records)
}

// Trace returns the drawing itself as a graph of line and circle records
func (r *Run) Trace() graph.Graph {
	return graph.FromList(r.Turtle.Trace())
}

// RunFile evaluates a program file on a fresh executor and turtle
func (f *Flatland) RunFile(path string) (*Run, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newError(IOError, "%v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &Error{Kind: IOError, Message: err.Error(), File: abs}
	}
	return f.RunSource(string(data), abs)
}

// RunSource evaluates program text; filename selects the parser
func (f *Flatland) RunSource(source, filename string) (*Run, error) {
	ev := f.NewExecutor()
	t := turtle.New()
	ev.SetSurface(t)
	v, err := ev.ExecSource(source, filename)
	if err != nil {
		return nil, err
	}
	f.logger.DebugCat(CatEval, "%s produced %d records", filename, len(ev.LastRun()))
	return &Run{File: filename, Records: ev.LastRun(), Turtle: t, Value: v}, nil
}

// Program returns the flattened graph of a program file. Files ending in
// .json hold previously saved records.
func (f *Flatland) Program(path string) (graph.Graph, error) {
	if filepath.Ext(path) == ".json" {
		recs, err := LoadRecords(path)
		if err != nil {
			return nil, err
		}
		return flatten(recs)
	}
	run, err := f.RunFile(path)
	if err != nil {
		return nil, err
	}
	return run.Graph()
}

// flatten resolves records that still carry scope bookkeeping
func flatten(recs []*graph.NodeInfo) (graph.Graph, error) {
	for _, r := range recs {
		if r.Scope != "" || r.Type == graph.TypeFlow {
			return ResolveScope(recs)
		}
	}
	return graph.FromList(recs), nil
}

// DistanceOptions returns the engine options with the logger attached
func (f *Flatland) DistanceOptions() distance.Options {
	opts := f.config.Distance
	opts.Logger = f.logger.Category(CatDistance)
	return opts
}

// Compare aligns two graphs with the configured metric
func (f *Flatland) Compare(a, b graph.Graph) (*distance.Result, error) {
	return distance.Compare(a, b, f.config.Metric, f.DistanceOptions())
}

// ScoreFiles compares two programs or saved record files
func (f *Flatland) ScoreFiles(pathA, pathB string) (*distance.Result, error) {
	a, err := f.Program(pathA)
	if err != nil {
		return nil, err
	}
	b, err := f.Program(pathB)
	if err != nil {
		return nil, err
	}
	res, err := f.Compare(a, b)
	if err != nil {
		return nil, err
	}
	f.logger.InfoCat(CatDistance, "%s vs %s: %s distance %.4f (%s)", pathA, pathB, res.Metric, res.Distance, res.Strategy)
	return res, nil
}

// DomainReport lists, for every test program, its distance to the closest
// train program
type DomainReport struct {
	Nearest map[string]float64 `json:"nearest"`
	Closest map[string]string  `json:"closest"`
	Mean    float64            `json:"mean"`
}

// DomainDistance measures how far a test set lies from a train set
func (f *Flatland) DomainDistance(train, test []string) (*DomainReport, error) {
	if len(train) == 0 || len(test) == 0 {
		return nil, newError(IOError, "domain distance needs train and test programs")
	}
	trainGraphs := make([]graph.Graph, len(train))
	for i, p := range train {
		g, err := f.Program(p)
		if err != nil {
			return nil, err
		}
		trainGraphs[i] = g
	}
	rep := &DomainReport{
		Nearest: make(map[string]float64, len(test)),
		Closest: make(map[string]string, len(test)),
	}
	sum := 0.0
	for _, p := range test {
		g, err := f.Program(p)
		if err != nil {
			return nil, err
		}
		best := math.Inf(1)
		for i, tg := range trainGraphs {
			res, err := f.Compare(g, tg)
			if err != nil {
				return nil, err
			}
			if res.Distance < best {
				best = res.Distance
				rep.Closest[p] = train[i]
			}
		}
		rep.Nearest[p] = best
		sum += best
	}
	rep.Mean = sum / float64(len(test))
	return rep, nil
}

// LoadRecords reads a JSON list of node records
func LoadRecords(path string) ([]*graph.NodeInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: IOError, Message: err.Error(), File: path}
	}
	var recs []*graph.NodeInfo
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &Error{Kind: IOError, Message: "decoding records: " + err.Error(), File: path}
	}
	return recs, nil
}

// WriteRecords writes records as an indented JSON list
func WriteRecords(w io.Writer, recs []*graph.NodeInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return newError(IOError, "encoding records: %v", err)
	}
	return nil
}

// WriteGraph writes a flattened graph as a JSON list ordered by id
func WriteGraph(w io.Writer, g graph.Graph) error {
	recs := make([]*graph.NodeInfo, 0, len(g))
	for _, id := range g.IDs() {
		recs = append(recs, g[id])
	}
	return WriteRecords(w, recs)
}

package distance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatland-lang/flatland/pkg/graph"
)

func rec(id, typ string, attrs map[string]interface{}, port string, targets ...string) *graph.NodeInfo {
	n := graph.NewNodeInfo(id, typ)
	for k, v := range attrs {
		n.Set(k, v)
	}
	if len(targets) > 0 {
		n.Targets[port] = targets
	}
	return n
}

// drawing holds one record of every type, chained START -> m -> t -> l -body-> ln
func drawing(dist, theta, lineEnd float64) graph.Graph {
	return graph.FromList([]*graph.NodeInfo{
		rec(graph.StartID, graph.TypeInfo, map[string]interface{}{
			"position": graph.Point{X: 64, Y: 64}, "theta": 90,
		}, "out", "m"),
		rec("m", graph.TypeMove, map[string]interface{}{
			"dist": dist, "penup": false,
			"start": graph.Point{X: 64, Y: 64}, "end": graph.Point{X: 64, Y: 64 + dist},
		}, "out", "t"),
		rec("t", graph.TypeTurn, map[string]interface{}{"theta": theta}, "out", "l"),
		rec("l", graph.TypeLoop, map[string]interface{}{"var": "i", "start": 0, "end": 4}, "body", "ln"),
		rec("ln", graph.TypeLine, map[string]interface{}{
			"start": graph.Point{X: 0, Y: 0}, "end": graph.Point{X: lineEnd, Y: 0},
		}, ""),
		rec("c", graph.TypeCircle, map[string]interface{}{
			"center": graph.Point{X: 2, Y: 2}, "radius": 3, "theta": 360,
		}, ""),
	})
}

func TestReflexive(t *testing.T) {
	g := drawing(10, 90, 4)
	for _, metric := range Names() {
		t.Run(metric, func(t *testing.T) {
			res, err := Compare(g, g.Clone(), metric, DefaultOptions())
			require.NoError(t, err)
			assert.InDelta(t, 0, res.Distance, 1e-9)
			assert.InDelta(t, 1, res.Similarity, 1e-9)
			assert.Len(t, res.Mapping, len(g))
			for _, c := range res.Mapping {
				assert.Equal(t, c.A, c.B)
			}
		})
	}
}

func TestSymmetricAndBounded(t *testing.T) {
	a := drawing(10, 90, 4)
	b := drawing(14, 60, 5)
	for _, metric := range Names() {
		t.Run(metric, func(t *testing.T) {
			ab, err := Distance(a, b, metric, DefaultOptions())
			require.NoError(t, err)
			ba, err := Distance(b, a, metric, DefaultOptions())
			require.NoError(t, err)
			assert.InDelta(t, ab, ba, 1e-9)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
			assert.Greater(t, ab, 0.0, "different drawings are not identical")
		})
	}
}

func TestEmptyGraphs(t *testing.T) {
	empty := graph.Graph{}
	one := drawing(10, 90, 4)

	res, err := Compare(empty, graph.Graph{}, "binary", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StrategyEmpty, res.Strategy)
	assert.Equal(t, 0.0, res.Distance)

	res, err = Compare(empty, one, "binary", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Distance)

	res, err = Compare(one, empty, "recursive", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Distance)
	assert.Empty(t, res.Mapping)
}

func TestNoCandidates(t *testing.T) {
	a := graph.FromList([]*graph.NodeInfo{rec("t", graph.TypeTurn, map[string]interface{}{"theta": 90}, "")})
	b := graph.FromList([]*graph.NodeInfo{rec("m", graph.TypeMove, map[string]interface{}{"dist": 10}, "")})
	res, err := Compare(a, b, "recursive", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StrategyNone, res.Strategy)
	assert.Equal(t, 1.0, res.Distance)
}

func TestSingleMoves(t *testing.T) {
	move := func(d float64) graph.Graph {
		return graph.FromList([]*graph.NodeInfo{rec("m", graph.TypeMove, map[string]interface{}{"dist": d}, "")})
	}

	t.Run("equal moves", func(t *testing.T) {
		res, err := Compare(move(10), move(10), "binary", DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Similarity)
		assert.Equal(t, StrategyGreedy, res.Strategy)
	})

	for _, metric := range []string{"euclidean", "recursive"} {
		t.Run("different lengths "+metric, func(t *testing.T) {
			d, err := Distance(move(10), move(50), metric, DefaultOptions())
			require.NoError(t, err)
			assert.Greater(t, d, 0.0)
			assert.Less(t, d, 1.0)
		})
	}

	t.Run("binary differs", func(t *testing.T) {
		res, err := Compare(move(10), move(50), "binary", DefaultOptions())
		require.NoError(t, err)
		// only the type matches out of {type, dist}
		assert.InDelta(t, 0.25, res.Similarity, 1e-9)
	})
}

func TestEdgesMustAgree(t *testing.T) {
	// x -> y in the first graph, p and q unlinked in the second: only one
	// pair can be kept, so the greedy pass is not provably optimal
	a := graph.FromList([]*graph.NodeInfo{
		rec("x", graph.TypeTurn, map[string]interface{}{"theta": 90}, "out", "y"),
		rec("y", graph.TypeTurn, map[string]interface{}{"theta": 45}, ""),
	})
	b := graph.FromList([]*graph.NodeInfo{
		rec("p", graph.TypeTurn, map[string]interface{}{"theta": 90}, ""),
		rec("q", graph.TypeTurn, map[string]interface{}{"theta": 45}, ""),
	})
	res, err := Compare(a, b, "binary", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StrategyExact, res.Strategy)
	assert.True(t, res.Exact)
	assert.Equal(t, 4, res.Candidates)
	assert.Equal(t, 0, res.Edges)
	require.Len(t, res.Mapping, 1)
	assert.Equal(t, 1.0, res.Mapping[0].Weight)
	assert.InDelta(t, 0.25, res.Similarity, 1e-9)
	assert.InDelta(t, 0.75, res.Distance, 1e-9)
}

func TestGeometricMetricsIgnoreIDs(t *testing.T) {
	line := func(id string, x float64) *graph.NodeInfo {
		return rec(id, graph.TypeLine, map[string]interface{}{
			"start": graph.Point{X: x, Y: 0}, "end": graph.Point{X: x + 10, Y: 0},
		}, "")
	}
	a := graph.FromList([]*graph.NodeInfo{line("0", 0), line("1", 40)})
	b := graph.FromList([]*graph.NodeInfo{line("a", 40), line("b", 0)})

	res, err := Compare(a, b, "euclidean", DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Distance, 1e-9)
	assert.Equal(t, []Candidate{{A: "0", B: "b", Weight: 1}, {A: "1", B: "a", Weight: 1}}, res.Mapping)
}

func TestUnknownMetric(t *testing.T) {
	_, err := Compare(graph.Graph{}, graph.Graph{}, "nope", DefaultOptions())
	assert.ErrorIs(t, err, ErrUnknownMetric)
	assert.Contains(t, err.Error(), "recursive")
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"binary", "euclidean", "inverse1d", "inverse2d", "recursive", "taxicab"}, Names())

	Register(Metric{Name: "constant", Node: func(_, _ *graph.NodeInfo, _ Options) float64 { return 2 }})
	defer delete(registry, "constant")

	a := graph.FromList([]*graph.NodeInfo{rec("t", graph.TypeTurn, nil, "")})
	b := graph.FromList([]*graph.NodeInfo{rec("u", graph.TypeTurn, nil, "")})
	res, err := Compare(a, b, "constant", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Mapping[0].Weight, "weights are capped at 1")
}

type recordingLogger struct{ lines []string }

func (r *recordingLogger) Debug(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestOptionsLogger(t *testing.T) {
	log := &recordingLogger{}
	opts := DefaultOptions()
	opts.Logger = log
	g := drawing(10, 90, 4)
	_, err := Compare(g, g, "binary", opts)
	require.NoError(t, err)
	require.NotEmpty(t, log.lines)
	assert.Contains(t, log.lines[0], "candidates")
}

func TestWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	d := DefaultOptions()
	assert.Equal(t, d.ExactLimit, o.ExactLimit)
	assert.Equal(t, d.Leniency, o.Leniency)
	assert.Equal(t, 0, o.ExactBudget, "a zero budget stays unlimited")
}

func TestCompareParts(t *testing.T) {
	cases := []struct {
		name string
		a, b interface{}
		want float64
	}{
		{"equal numbers", 10.0, 10.0, 1},
		{"ratio", 0.0, 128.0, 0.5},
		{"far negative", -200.0, -100.0, 0.21875},
		{"number vs string", 1.0, "1", 0},
		{"strings", "a", "a", 1},
		{"bools", true, false, 0},
		{"lists", []interface{}{1.0, "x"}, []interface{}{1.0, "y"}, 0.5},
		{"list lengths", []interface{}{1.0}, []interface{}{}, 0},
		{"maps", map[string]interface{}{"x": 1.0, "y": 2.0}, map[string]interface{}{"x": 1.0}, 0.5},
		{"empty maps", map[string]interface{}{}, map[string]interface{}{}, 1},
		{"nils", nil, nil, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, compareParts(tc.a, tc.b), 1e-9)
		})
	}
}

func TestAngles(t *testing.T) {
	assert.Equal(t, 20.0, angleDiff(350, 10, 360))
	assert.Equal(t, 0.0, angleDiff(0, 180, 180))
	assert.Equal(t, 90.0, angleDiff(0, 270, 360))
	assert.Equal(t, 0.0, numdiff(0, 256, 128))
	assert.Equal(t, 0.5, numdiff(0, 64, 128))
	assert.Equal(t, 1.0, compareTurns(
		rec("a", graph.TypeTurn, map[string]interface{}{"theta": -90}, ""),
		rec("b", graph.TypeTurn, map[string]interface{}{"theta": 270}, ""),
	))
}

package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeInfoJSON(t *testing.T) {
	n := NewNodeInfo("m1", TypeMove)
	n.Name = "m"
	n.Scope = GlobalScope
	n.Sources = []string{"s"}
	n.Targets["out"] = []string{"t1", "t2"}
	n.Set("dist", 10)
	n.Set("penup", false)
	n.Set("start", Point{X: 1, Y: 2})

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, float64(10), flat["dist"], "attributes are flattened")
	assert.Equal(t, "m1", flat["id"])
	assert.Equal(t, map[string]interface{}{"x": 1.0, "y": 2.0}, flat["start"])

	var back NodeInfo
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, n.ID, back.ID)
	assert.Equal(t, n.Type, back.Type)
	assert.Equal(t, n.Name, back.Name)
	assert.Equal(t, n.Scope, back.Scope)
	assert.Equal(t, n.Sources, back.Sources)
	assert.Equal(t, n.Targets, back.Targets)
	assert.Equal(t, n.Attrs, back.Attrs)
	assert.Nil(t, back.Internal)
}

func TestInternalJSON(t *testing.T) {
	f := NewNodeInfo("f1", TypeFlow)
	f.Internal = &InternalInfo{Entries: []string{"a"}, Exits: map[string][]string{"out": {"b"}}}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"__internal__":{"entries":["a"],"exits":{"out":["b"]}}`)

	var back NodeInfo
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f.Internal, back.Internal)
	assert.NotContains(t, back.Attrs, "__internal__")
}

func TestOptionalFieldsOmitted(t *testing.T) {
	data, err := json.Marshal(NewNodeInfo("x", TypeTurn))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","type":"turn","targets":{}}`, string(data))
}

func TestCloneIsDeep(t *testing.T) {
	n := NewNodeInfo("a", TypeLoop)
	n.Targets["body"] = []string{"b"}
	n.Set("params", map[string]interface{}{"k": []interface{}{1, 2}})
	c := n.Clone()
	c.Targets["body"][0] = "z"
	c.Attrs["params"].(map[string]interface{})["k"].([]interface{})[0] = 9.0
	assert.Equal(t, "b", n.Targets["body"][0])
	assert.Equal(t, 1.0, n.Attrs["params"].(map[string]interface{})["k"].([]interface{})[0])
}

func TestEdgeTypeAndPorts(t *testing.T) {
	n := NewNodeInfo("l", TypeLoop)
	n.Targets["out"] = []string{"x"}
	n.Targets["body"] = []string{"y", "x"}
	assert.Equal(t, []string{"body", "out"}, n.Ports())
	assert.Equal(t, "body", n.EdgeType("x"), "first port in sorted order wins")
	assert.Equal(t, "body", n.EdgeType("y"))
	assert.Equal(t, "", n.EdgeType("nope"))
}

func TestCenter(t *testing.T) {
	line := NewNodeInfo("l", TypeLine)
	line.Set("start", Point{X: 0, Y: 0})
	line.Set("end", Point{X: 4, Y: 2})
	c, ok := line.Center()
	require.True(t, ok)
	assert.Equal(t, Point{X: 2, Y: 1}, c)

	circle := NewNodeInfo("c", TypeCircle)
	circle.Set("center", []interface{}{3.0, 4.0})
	c, ok = circle.Center()
	require.True(t, ok)
	assert.Equal(t, Point{X: 3, Y: 4}, c)

	info := NewNodeInfo(StartID, TypeInfo)
	info.Set("position", Point{X: 64, Y: 64})
	c, ok = info.Center()
	require.True(t, ok)
	assert.Equal(t, Point{X: 64, Y: 64}, c)

	_, ok = NewNodeInfo("t", TypeTurn).Center()
	assert.False(t, ok)
}

func TestGraphHelpers(t *testing.T) {
	g := FromList([]*NodeInfo{NewNodeInfo("b", TypeMove), NewNodeInfo("a", TypeTurn)})
	assert.Equal(t, []string{"a", "b"}, g.IDs())
	c := g.Clone()
	c["a"].Type = TypeLoop
	assert.Equal(t, TypeTurn, g["a"].Type)
}

func TestPoints(t *testing.T) {
	p, q := Point{X: 0, Y: 0}, Point{X: 3, Y: 4}
	assert.Equal(t, 5.0, p.Dist(q))
	assert.Equal(t, 7.0, p.Taxicab(q))
	_, ok := ToPoint([]interface{}{1.0})
	assert.False(t, ok)
	f, ok := ToFloat(json.Number("2.5"))
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
}

package flatland

import (
	"fmt"
	"strings"

	"github.com/flatland-lang/flatland/pkg/graph"
	"github.com/flatland-lang/flatland/pkg/turtle"
)

// NodeKind tags the concrete node variants
type NodeKind string

const (
	KindMove NodeKind = graph.TypeMove
	KindTurn NodeKind = graph.TypeTurn
	KindLoop NodeKind = graph.TypeLoop
	KindFlow NodeKind = graph.TypeFlow
)

// internalName addresses a flow's router from inside the flow
const internalName = "__internal__"

// Node is a vertex of the message-passing graph. Call consumes one message
// and returns the deliveries it produces; an inactive message produces none.
type Node interface {
	Name() string
	ID() string
	Kind() NodeKind
	Call(ev *Executor, msg *Message) ([]Delivery, error)
	Info(ev *Executor) []*graph.NodeInfo
	RandomDetails() RandomDetails
	base() *nodeBase
}

// nodeConstructor builds a primitive node from its unevaluated arguments
type nodeConstructor func(ev *Executor, name string, parent Scope, args []Exp) (Node, error)

// nodeConstructors is the closed table of primitive node kinds. Anything else
// must name a FlowCreator.
var nodeConstructors = map[NodeKind]nodeConstructor{
	KindMove: newMoveNode,
	KindTurn: newTurnNode,
	KindLoop: newLoopNode,
}

// nodeBase carries the wiring shared by every node
type nodeBase struct {
	name    string
	id      string
	kind    NodeKind
	frame   Scope // the node's own parameter scope
	parent  Scope // the scope the node is bound in
	sources []string
	ports   []string
	targets map[string][]string
}

func newNodeBase(ev *Executor, name string, kind NodeKind, parent Scope) nodeBase {
	frame := ev.env.NewFrame(parent)
	return nodeBase{
		name:    name,
		id:      ev.env.ID(frame),
		kind:    kind,
		frame:   frame,
		parent:  parent,
		ports:   []string{"out"},
		targets: map[string][]string{"out": {}},
	}
}

func (n *nodeBase) Name() string    { return n.name }
func (n *nodeBase) ID() string      { return n.id }
func (n *nodeBase) Kind() NodeKind  { return n.kind }
func (n *nodeBase) base() *nodeBase { return n }
func (n *nodeBase) String() string  { return fmt.Sprintf("<%s %s>", n.kind, n.name) }

func (n *nodeBase) hasPort(p string) bool {
	_, ok := n.targets[p]
	return ok
}

func (n *nodeBase) addPort(p string) {
	if !n.hasPort(p) {
		n.ports = append(n.ports, p)
		n.targets[p] = []string{}
	}
}

func (n *nodeBase) addTarget(port, target string) error {
	if !n.hasPort(port) {
		return newError(TypeError, "node %s has no port %q (ports: %s)", n.name, port, strings.Join(n.ports, ", "))
	}
	n.targets[port] = append(n.targets[port], target)
	return nil
}

// accept positions the surface from the message and returns the private copy
// the node works on. ok is false for inactive messages.
func (n *nodeBase) accept(ev *Executor, msg *Message) (*Message, bool) {
	if !msg.Active() {
		return nil, false
	}
	s := ev.ctx.Surface
	s.MoveTo(msg.Position.X, msg.Position.Y)
	if msg.HasTheta {
		turtle.SetHeading(s, msg.Theta)
	}
	return msg.Copy(), true
}

// forward stamps the cursor state into data and addresses it to every target
// of port
func (n *nodeBase) forward(ev *Executor, data *Message, port string) []Delivery {
	x, y := ev.ctx.Surface.Position()
	data.Position = graph.Point{X: x, Y: y}
	data.HasPosition = true
	data.Theta = ev.ctx.Surface.Heading()
	data.HasTheta = true
	out := make([]Delivery, 0, len(n.targets[port]))
	for _, t := range n.targets[port] {
		out = append(out, Delivery{From: n.name, To: t, Data: data})
	}
	return out
}

// info builds the record fields common to every node. Names are mapped to
// ids through the scope the node is bound in.
func (n *nodeBase) info(ev *Executor) *graph.NodeInfo {
	idOf := func(name string) string {
		v, ok := ev.env.Local(name, n.parent)
		if !ok {
			return name
		}
		switch x := v.(type) {
		case Node:
			return x.ID()
		case *Internal:
			return x.id
		}
		return name
	}
	rec := graph.NewNodeInfo(n.id, string(n.kind))
	rec.Name = n.name
	rec.Scope = ev.env.ID(n.parent)
	rec.Sources = make([]string, 0, len(n.sources))
	for _, s := range n.sources {
		rec.Sources = append(rec.Sources, idOf(s))
	}
	for _, p := range n.ports {
		ids := make([]string, 0, len(n.targets[p]))
		for _, t := range n.targets[p] {
			ids = append(ids, idOf(t))
		}
		rec.Targets[p] = ids
	}
	return rec
}

// topLevel reports whether the node sits directly inside a flow that was
// created in the global scope; only those nodes are randomized
func (n *nodeBase) topLevel(ev *Executor) bool {
	return n.parent != GlobalScope && ev.env.Parent(n.parent) == GlobalScope
}

// MoveNode advances the cursor, drawing unless the pen is up
type MoveNode struct {
	nodeBase
	dist    float64
	penup   bool
	drawn   bool
	segment turtle.Segment
}

var (
	moveDistRule  Randomizer = RandomFloat{Min: 0, Max: 60}
	movePenupRule Randomizer = RandomBool{TrueProb: 0.1}
	turnThetaRule Randomizer = RandomInt{Min: 0, Max: 360}
	loopEndRule   Randomizer = RandomInt{Min: 1, Max: 360}
)

func newMoveNode(ev *Executor, name string, parent Scope, args []Exp) (Node, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, newError(TypeError, "move %s expects (dist [penup]), got %d arguments", name, len(args))
	}
	n := &MoveNode{nodeBase: newNodeBase(ev, name, KindMove, parent)}
	var err error
	if n.dist, err = ev.evalNumber(args[0], n.frame); err != nil {
		return nil, err
	}
	if len(args) == 2 {
		v, err := ev.Eval(args[1], n.frame)
		if err != nil {
			return nil, err
		}
		n.penup = truthy(v)
	}
	if ev.ctx.Randomize && ev.ctx.Run && n.topLevel(ev) {
		if isConst(args[0]) {
			n.dist, _ = graph.ToFloat(moveDistRule.Draw(ev.ctx.Rand))
			ev.logger.InfoCat(CatRandom, "randomizing dist for %s %g", name, n.dist)
		}
		if len(args) < 2 || isConst(args[1]) {
			n.penup = drawPenup(ev)
			ev.logger.InfoCat(CatRandom, "randomizing penup for %s %v", name, n.penup)
		}
	}
	return n, nil
}

func drawPenup(ev *Executor) bool {
	b, _ := movePenupRule.Draw(ev.ctx.Rand).(bool)
	return b
}

// Call moves the cursor and forwards on "out"
func (n *MoveNode) Call(ev *Executor, msg *Message) ([]Delivery, error) {
	data, ok := n.accept(ev, msg)
	if !ok {
		return nil, nil
	}
	s := ev.ctx.Surface
	x0, y0 := s.Position()
	if n.penup {
		turtle.Jump(s, n.dist)
	} else {
		s.Forward(n.dist)
	}
	if !n.drawn {
		x1, y1 := s.Position()
		n.drawn = true
		n.segment = turtle.Segment{Start: graph.Point{X: x0, Y: y0}, End: graph.Point{X: x1, Y: y1}}
	}
	return n.forward(ev, data, "out"), nil
}

// Info describes the node
func (n *MoveNode) Info(ev *Executor) []*graph.NodeInfo {
	rec := n.info(ev)
	rec.Set("dist", n.dist)
	rec.Set("penup", n.penup)
	if n.drawn {
		rec.Set("start", n.segment.Start)
		rec.Set("end", n.segment.End)
	}
	return []*graph.NodeInfo{rec}
}

// RandomDetails describes how the node may be randomized
func (n *MoveNode) RandomDetails() RandomDetails {
	return RandomDetails{
		Function:   string(KindMove),
		Properties: []string{"dist", "penup"},
		Rules: map[string]map[string]interface{}{
			"dist":  moveDistRule.Describe(),
			"penup": movePenupRule.Describe(),
		},
	}
}

// TurnNode rotates the heading counter-clockwise
type TurnNode struct {
	nodeBase
	theta float64
}

func newTurnNode(ev *Executor, name string, parent Scope, args []Exp) (Node, error) {
	if len(args) != 1 {
		return nil, newError(TypeError, "turn %s expects (theta), got %d arguments", name, len(args))
	}
	n := &TurnNode{nodeBase: newNodeBase(ev, name, KindTurn, parent)}
	var err error
	if n.theta, err = ev.evalNumber(args[0], n.frame); err != nil {
		return nil, err
	}
	if ev.ctx.Randomize && ev.ctx.Run && n.topLevel(ev) && isConst(args[0]) {
		n.theta, _ = graph.ToFloat(turnThetaRule.Draw(ev.ctx.Rand))
		ev.logger.InfoCat(CatRandom, "randomizing theta for %s %g", name, n.theta)
	}
	return n, nil
}

// Call turns and forwards on "out". A turn with no targets is a valid terminal.
func (n *TurnNode) Call(ev *Executor, msg *Message) ([]Delivery, error) {
	data, ok := n.accept(ev, msg)
	if !ok {
		return nil, nil
	}
	ev.ctx.Surface.Left(n.theta)
	return n.forward(ev, data, "out"), nil
}

// Info describes the node
func (n *TurnNode) Info(ev *Executor) []*graph.NodeInfo {
	rec := n.info(ev)
	rec.Set("theta", n.theta)
	return []*graph.NodeInfo{rec}
}

// RandomDetails describes how the node may be randomized
func (n *TurnNode) RandomDetails() RandomDetails {
	return RandomDetails{
		Function:   string(KindTurn),
		Properties: []string{"theta"},
		Rules:      map[string]map[string]interface{}{"theta": turnThetaRule.Describe()},
	}
}

// LoopNode routes a message to "body" until its counter reaches end, then
// once to "out". The counter travels inside the message under a name unique
// to this loop instance.
type LoopNode struct {
	nodeBase
	varname  string
	start    float64
	end      float64
	resolved string
}

func newLoopNode(ev *Executor, name string, parent Scope, args []Exp) (Node, error) {
	if len(args) != 3 {
		return nil, newError(TypeError, "loop %s expects (var start end), got %d arguments", name, len(args))
	}
	varname, ok := args[0].(Symbol)
	if !ok {
		return nil, newError(TypeError, "loop %s: variable must be a symbol, got %s", name, FormatExp(args[0]))
	}
	n := &LoopNode{nodeBase: newNodeBase(ev, name, KindLoop, parent), varname: string(varname)}
	n.addPort("body")
	var err error
	if n.start, err = ev.evalNumber(args[1], n.frame); err != nil {
		return nil, err
	}
	if n.end, err = ev.evalNumber(args[2], n.frame); err != nil {
		return nil, err
	}
	n.resolved = ev.env.ID(n.frame) + ":" + n.varname
	if ev.ctx.Randomize && ev.ctx.Run && n.topLevel(ev) && isConst(args[1]) && isConst(args[2]) {
		n.start = 0
		n.end, _ = graph.ToFloat(loopEndRule.Draw(ev.ctx.Rand))
		ev.logger.InfoCat(CatRandom, "randomizing end for %s %g", name, n.end)
	}
	return n, nil
}

// Call advances the counter and picks the port
func (n *LoopNode) Call(ev *Executor, msg *Message) ([]Delivery, error) {
	data, ok := n.accept(ev, msg)
	if !ok {
		return nil, nil
	}
	counter, seen := data.Counters[n.resolved]
	if !seen {
		counter = n.start - 1
	}
	if counter < n.end {
		counter++
	}
	data.Counters[n.resolved] = counter
	if counter < n.end {
		return n.forward(ev, data, "body"), nil
	}
	delete(data.Counters, n.resolved)
	return n.forward(ev, data, "out"), nil
}

// Info describes the node
func (n *LoopNode) Info(ev *Executor) []*graph.NodeInfo {
	rec := n.info(ev)
	rec.Set("varname", n.varname)
	rec.Set("start", n.start)
	rec.Set("end", n.end)
	return []*graph.NodeInfo{rec}
}

// RandomDetails describes how the node may be randomized
func (n *LoopNode) RandomDetails() RandomDetails {
	return RandomDetails{
		Function:   string(KindLoop),
		Properties: []string{"start", "end", "varname"},
		Rules:      map[string]map[string]interface{}{"end": loopEndRule.Describe()},
	}
}

// isConst reports whether an unevaluated argument is a numeric literal
func isConst(x Exp) bool {
	switch x.(type) {
	case int64, float64:
		return true
	}
	return false
}

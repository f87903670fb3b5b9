package flatland

import (
	"path/filepath"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// Internal is a flow's router: the entry nodes that receive the flow's input
// and the nodes whose output leaves the flow on a named port
type Internal struct {
	id        string
	flow      *Flow
	entries   []string
	exitPorts []string
	exits     map[string][]string
	messages  map[string][]*Message
}

func newInternal(id string) *Internal {
	return &Internal{
		id:       id,
		exits:    make(map[string][]string),
		messages: make(map[string][]*Message),
	}
}

// AddEntry registers an injection point; registering twice is a no-op
func (in *Internal) AddEntry(node string) {
	for _, e := range in.entries {
		if e == node {
			return
		}
	}
	in.entries = append(in.entries, node)
}

// AddExit forwards node's output to the flow's port
func (in *Internal) AddExit(node, port string) {
	if _, ok := in.exits[port]; !ok {
		in.exitPorts = append(in.exitPorts, port)
		in.exits[port] = []string{}
	}
	in.exits[port] = append(in.exits[port], node)
}

// receive buffers a message that reached the router from an exit node
func (in *Internal) receive(from string, data *Message) {
	for _, port := range in.exitPorts {
		for _, name := range in.exits[port] {
			if name == from {
				in.messages[port] = append(in.messages[port], data)
				break
			}
		}
	}
}

func (in *Internal) clear() {
	for port := range in.messages {
		in.messages[port] = nil
	}
}

func (in *Internal) info(ev *Executor, scope Scope) *graph.InternalInfo {
	idOf := func(name string) string {
		if n, ok := localNode(ev, name, scope); ok {
			return n.ID()
		}
		return name
	}
	out := &graph.InternalInfo{
		Entries: make([]string, 0, len(in.entries)),
		Exits:   make(map[string][]string, len(in.exits)),
	}
	for _, e := range in.entries {
		out.Entries = append(out.Entries, idOf(e))
	}
	for _, port := range in.exitPorts {
		ids := make([]string, 0, len(in.exits[port]))
		for _, name := range in.exits[port] {
			ids = append(ids, idOf(name))
		}
		out.Exits[port] = ids
	}
	return out
}

// Flow is an instantiated composite node. Its frame holds the bound
// parameters, the router under __internal__, and every node of its body.
type Flow struct {
	nodeBase
	creator  *FlowCreator
	internal *Internal
}

// Call drains the flow's message queue in FIFO order, starting from the entry
// nodes, then replays every message buffered at an exit port to the flow's
// own targets on that port
func (f *Flow) Call(ev *Executor, msg *Message) ([]Delivery, error) {
	if !msg.Active() {
		return nil, nil
	}
	trace := f.parent == GlobalScope && ev.logger.IsCategoryEnabled(CatFlow)
	queue := make([]Delivery, 0, len(f.internal.entries))
	for _, e := range f.internal.entries {
		queue = append(queue, Delivery{From: internalName, To: e, Data: msg})
	}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if d.To == internalName {
			f.internal.receive(d.From, d.Data)
		} else if d.Data.Active() {
			node, ok := localNode(ev, d.To, f.frame)
			if !ok {
				return nil, newError(NameResolutionError, "flow %s has no node %s", f.name, d.To)
			}
			out, err := node.Call(ev, d.Data)
			if err != nil {
				return nil, err
			}
			queue = append(queue, out...)
		}
		if trace {
			ev.logger.TraceCat(CatFlow, "processing: %s", d)
			ev.logger.TraceCat(CatFlow, "yet to process: %v", queue)
		}
	}

	var out []Delivery
	for _, port := range f.ports {
		for _, target := range f.targets[port] {
			for _, m := range f.internal.messages[port] {
				out = append(out, Delivery{From: f.name, To: target, Data: m.Copy()})
			}
		}
	}
	f.internal.clear()
	return out, nil
}

// Info returns the flow's own record followed by the records of every node
// of its body, in definition order
func (f *Flow) Info(ev *Executor) []*graph.NodeInfo {
	rec := f.info(ev)
	rec.Internal = f.internal.info(ev, f.frame)
	params := make(map[string]interface{}, len(f.creator.Params))
	for _, p := range f.creator.Params {
		v, _ := ev.env.Local(p, f.frame)
		params[p] = recordValue(v)
	}
	rec.Set("params", params)
	rec.Set("flowtype", f.creator.FlowType)
	rec.Set("filename", f.creator.Filename)

	recs := []*graph.NodeInfo{rec}
	for _, name := range ev.env.Names(f.frame) {
		if n, ok := localNode(ev, name, f.frame); ok {
			recs = append(recs, n.Info(ev)...)
		}
	}
	return recs
}

// RandomDetails describes the flow's template
func (f *Flow) RandomDetails() RandomDetails {
	return f.creator.RandomDetails()
}

// Parameters returns the bound parameter values in declaration order
func (f *Flow) Parameters(ev *Executor) []Value {
	vals := make([]Value, 0, len(f.creator.Params))
	for _, p := range f.creator.Params {
		v, _ := ev.env.Local(p, f.frame)
		vals = append(vals, v)
	}
	return vals
}

// FlowType names the template the flow was built from
func (f *Flow) FlowType() string { return f.creator.FlowType }

// FlowCreator is a flow template registered by define-flow
type FlowCreator struct {
	FlowType    string
	Params      []string
	Randoms     map[string]Randomizer
	randomOrder []string
	Body        []Exp
	Filename    string
}

func (fc *FlowCreator) String() string {
	return "<flow-creator " + fc.FlowType + ">"
}

// instantiate builds a fresh flow bound in parent. Arguments are evaluated in
// the new flow's frame and every body form is re-evaluated there, so no node
// state is shared between instances.
func (fc *FlowCreator) instantiate(ev *Executor, name string, parent Scope, args []Exp) (*Flow, error) {
	if len(args) != len(fc.Params) {
		return nil, newError(TypeError, "flow %s expects %d arguments, got %d", fc.FlowType, len(fc.Params), len(args))
	}
	f := &Flow{
		nodeBase: newNodeBase(ev, name, KindFlow, parent),
		creator:  fc,
	}
	f.internal = newInternal(f.id)
	f.internal.flow = f

	vals := make([]Value, len(args))
	for i, a := range args {
		rule, hasRule := fc.Randoms[fc.Params[i]]
		if ev.ctx.Randomize && ev.ctx.Run && hasRule && isConst(a) {
			vals[i] = rule.Draw(ev.ctx.Rand)
			ev.logger.InfoCat(CatRandom, "randomizing %s for %s %s", fc.Params[i], name, FormatExp(vals[i]))
			continue
		}
		v, err := ev.Eval(a, f.frame)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	for i, p := range fc.Params {
		ev.env.Define(p, vals[i], f.frame)
	}
	ev.env.Define(internalName, f.internal, f.frame)

	for _, x := range fc.Body {
		if _, err := ev.Eval(x, f.frame); err != nil {
			return nil, err
		}
	}
	ev.logger.DebugCat(CatFlow, "installed flow %s (%s) with %d nodes", name, fc.FlowType, len(ev.env.Names(f.frame))-len(fc.Params)-1)
	return f, nil
}

// instanceName is the binding run-flow gives a flow it instantiates
func (fc *FlowCreator) instanceName() string {
	return "__" + filepath.Base(fc.Filename) + ":" + fc.FlowType + "__"
}

// RandomDetails describes the template's parameters and rules
func (fc *FlowCreator) RandomDetails() RandomDetails {
	rules := make(map[string]map[string]interface{}, len(fc.Randoms))
	for _, k := range fc.randomOrder {
		rules[k] = fc.Randoms[k].Describe()
	}
	return RandomDetails{
		Function:   fc.FlowType,
		Properties: append([]string(nil), fc.Params...),
		Path:       fc.Filename,
		Rules:      rules,
	}
}

// localNode returns the node bound to name in s itself
func localNode(ev *Executor, name string, s Scope) (Node, bool) {
	v, ok := ev.env.Local(name, s)
	if !ok {
		return nil, false
	}
	n, ok := v.(Node)
	return n, ok
}

// recordValue converts a runtime value to a JSON friendly attribute
func recordValue(v Value) interface{} {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return x
	case Symbol:
		return string(x)
	case List:
		return recordValue([]Value(x))
	case []Value:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = recordValue(e)
		}
		return out
	}
	return FormatExp(v)
}

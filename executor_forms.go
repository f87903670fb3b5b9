package flatland

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/flatland-lang/flatland/pkg/graph"
)

func arity(form string, args List, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return newError(SyntaxError, "malformed %s form: %s", form, append(List{Symbol(form)}, args...))
	}
	return nil
}

func symbolArg(form string, x Exp) (string, error) {
	s, ok := x.(Symbol)
	if !ok {
		return "", newError(SyntaxError, "%s: expected a name, got %s", form, FormatExp(x))
	}
	return string(s), nil
}

func evalQuote(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("quote", args, 1, 1); err != nil {
		return nil, err
	}
	return args[0], nil
}

func evalIf(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("if", args, 2, 3); err != nil {
		return nil, err
	}
	test, err := ev.Eval(args[0], scope)
	if err != nil {
		return nil, err
	}
	if truthy(test) {
		return ev.Eval(args[1], scope)
	}
	if len(args) == 3 {
		return ev.Eval(args[2], scope)
	}
	return nil, nil
}

// evalDefine binds in the current frame. (define (f a b) body...) is
// shorthand for a lambda.
func evalDefine(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("define", args, 2, -1); err != nil {
		return nil, err
	}
	if sig, ok := args[0].(List); ok && len(sig) > 0 {
		name, err := symbolArg("define", sig[0])
		if err != nil {
			return nil, err
		}
		proc, err := newProcedure(sig[1:], args[1:], scope)
		if err != nil {
			return nil, err
		}
		ev.env.Define(name, proc, scope)
		return nil, nil
	}
	if len(args) != 2 {
		return nil, arity("define", args, 2, 2)
	}
	name, err := symbolArg("define", args[0])
	if err != nil {
		return nil, err
	}
	v, err := ev.Eval(args[1], scope)
	if err != nil {
		return nil, err
	}
	ev.env.Define(name, v, scope)
	return nil, nil
}

func evalSet(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("set", args, 2, 2); err != nil {
		return nil, err
	}
	name, err := symbolArg("set", args[0])
	if err != nil {
		return nil, err
	}
	v, err := ev.Eval(args[1], scope)
	if err != nil {
		return nil, err
	}
	return nil, ev.env.Assign(name, v, scope)
}

func evalLambda(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("lambda", args, 2, -1); err != nil {
		return nil, err
	}
	switch p := args[0].(type) {
	case Symbol:
		return &Procedure{rest: string(p), body: args[1:], scope: scope}, nil
	case List:
		return newProcedure(p, args[1:], scope)
	default:
		return nil, newError(SyntaxError, "lambda: invalid parameter list %s", FormatExp(args[0]))
	}
}

func newProcedure(params List, body []Exp, scope Scope) (*Procedure, error) {
	p := &Procedure{body: body, scope: scope}
	for _, x := range params {
		name, err := symbolArg("lambda", x)
		if err != nil {
			return nil, err
		}
		p.params = append(p.params, name)
	}
	return p, nil
}

// evalCreateNode handles (create-node name type args...). type is one of the
// primitive kinds or names a flow template.
func evalCreateNode(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("create-node", args, 2, -1); err != nil {
		return nil, err
	}
	name, err := symbolArg("create-node", args[0])
	if err != nil {
		return nil, err
	}
	tp, err := symbolArg("create-node", args[1])
	if err != nil {
		return nil, err
	}
	if _, exists := ev.env.Local(name, scope); exists {
		return nil, newError(DuplicateNameError, "node name %s already exists", name)
	}

	var node Node
	if ctor, ok := nodeConstructors[NodeKind(tp)]; ok {
		node, err = ctor(ev, name, scope, args[2:])
	} else {
		v, lookupErr := ev.env.Lookup(tp, scope)
		fc, ok := v.(*FlowCreator)
		if lookupErr != nil || !ok {
			return nil, newError(TypeError, "invalid node type %s", tp)
		}
		node, err = fc.instantiate(ev, name, scope, args[2:])
	}
	if err != nil {
		return nil, err
	}
	ev.env.Define(name, node, scope)
	ev.logger.DebugCat(CatNode, "created %s %s (%s)", tp, name, node.ID())
	return node, nil
}

// evalDefineFlow handles (define-flow type (params...) ((param (kind (args...)))...) (body...))
func evalDefineFlow(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("define-flow", args, 4, 4); err != nil {
		return nil, err
	}
	tp, err := symbolArg("define-flow", args[0])
	if err != nil {
		return nil, err
	}
	fc := &FlowCreator{
		FlowType: tp,
		Randoms:  make(map[string]Randomizer),
		Filename: ev.file,
	}
	params, _ := args[1].(List)
	for _, p := range params {
		name, err := symbolArg("define-flow", p)
		if err != nil {
			return nil, err
		}
		fc.Params = append(fc.Params, name)
	}

	randoms, _ := args[2].(List)
	for _, r := range randoms {
		rule, ok := r.(List)
		if !ok || len(rule) != 2 {
			return nil, newError(SyntaxError, "define-flow %s: malformed rule %s", tp, FormatExp(r))
		}
		param, err := symbolArg("define-flow", rule[0])
		if err != nil {
			return nil, err
		}
		if !contains(fc.Params, param) {
			return nil, newError(NameResolutionError, "define-flow %s: rule for unknown parameter %s", tp, param)
		}
		draw, ok := rule[1].(List)
		if !ok || len(draw) < 1 {
			return nil, newError(SyntaxError, "define-flow %s: malformed rule %s", tp, FormatExp(r))
		}
		kind, err := symbolArg("define-flow", draw[0])
		if err != nil {
			return nil, err
		}
		var raw []Exp
		if len(draw) == 2 {
			if l, ok := draw[1].(List); ok {
				raw = l
			} else {
				raw = []Exp{draw[1]}
			}
		} else {
			raw = draw[1:]
		}
		vals := make([]Value, 0, len(raw))
		for _, x := range raw {
			v, err := ev.Eval(x, scope)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		rnd, err := NewRandomizer(kind, vals)
		if err != nil {
			return nil, err
		}
		if _, seen := fc.Randoms[param]; !seen {
			fc.randomOrder = append(fc.randomOrder, param)
		}
		fc.Randoms[param] = rnd
	}

	body, ok := args[3].(List)
	if !ok {
		return nil, newError(SyntaxError, "define-flow %s: body must be a list of forms", tp)
	}
	fc.Body = body
	ev.env.Define(tp, fc, scope)
	ev.logger.DebugCat(CatEval, "defined flow %s%v from %s", tp, fc.Params, fc.Filename)
	return fc, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// router returns the Internal of the flow whose body is being evaluated
func (ev *Executor) router(form string, scope Scope) (*Internal, error) {
	v, ok := ev.env.Local(internalName, scope)
	in, isInternal := v.(*Internal)
	if !ok || !isInternal {
		return nil, newError(TypeError, "%s used outside a flow body", form)
	}
	return in, nil
}

func (ev *Executor) node(form, name string, scope Scope) (Node, error) {
	n, ok := localNode(ev, name, scope)
	if !ok {
		return nil, newError(NameResolutionError, "%s: no node named %s", form, name)
	}
	return n, nil
}

// splitNodePort splits node:port, defaulting the port
func splitNodePort(s, def string) (string, string) {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, def
}

func evalCreateEntry(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("create-entry", args, 1, 1); err != nil {
		return nil, err
	}
	name, err := symbolArg("create-entry", args[0])
	if err != nil {
		return nil, err
	}
	in, err := ev.router("create-entry", scope)
	if err != nil {
		return nil, err
	}
	n, err := ev.node("create-entry", name, scope)
	if err != nil {
		return nil, err
	}
	in.AddEntry(name)
	b := n.base()
	b.sources = append(b.sources, internalName)
	return nil, nil
}

// evalCreateExit handles (create-exit node[:port] [flowport]). The node's port
// defaults to out, the flow's port to the node's port.
func evalCreateExit(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("create-exit", args, 1, 2); err != nil {
		return nil, err
	}
	ref, err := symbolArg("create-exit", args[0])
	if err != nil {
		return nil, err
	}
	name, port := splitNodePort(ref, "out")
	exit := port
	if len(args) == 2 {
		if exit, err = symbolArg("create-exit", args[1]); err != nil {
			return nil, err
		}
	}
	in, err := ev.router("create-exit", scope)
	if err != nil {
		return nil, err
	}
	n, err := ev.node("create-exit", name, scope)
	if err != nil {
		return nil, err
	}
	if err := n.base().addTarget(port, internalName); err != nil {
		return nil, err
	}
	in.AddExit(name, exit)
	in.flow.addPort(exit)
	return nil, nil
}

// evalCreateLink handles (create-link from[:port] to[:port])
func evalCreateLink(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("create-link", args, 2, 2); err != nil {
		return nil, err
	}
	fromRef, err := symbolArg("create-link", args[0])
	if err != nil {
		return nil, err
	}
	toRef, err := symbolArg("create-link", args[1])
	if err != nil {
		return nil, err
	}
	fname, fport := splitNodePort(fromRef, "out")
	tname, _ := splitNodePort(toRef, "in")
	from, err := ev.node("create-link", fname, scope)
	if err != nil {
		return nil, err
	}
	to, err := ev.node("create-link", tname, scope)
	if err != nil {
		return nil, err
	}
	if err := from.base().addTarget(fport, tname); err != nil {
		return nil, err
	}
	tb := to.base()
	tb.sources = append(tb.sources, fname)
	ev.logger.TraceCat(CatNode, "linked %s:%s -> %s", fname, fport, tname)
	return nil, nil
}

// evalRunFlow handles (run-flow template (args...) (x y) theta) and
// (run-flow instance [(args...)] (x y) theta). It returns the START record
// followed by the records of the flow.
func evalRunFlow(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("run-flow", args, 3, 4); err != nil {
		return nil, err
	}
	name, err := symbolArg("run-flow", args[0])
	if err != nil {
		return nil, err
	}
	target, err := ev.env.Lookup(name, scope)
	if err != nil {
		return nil, err
	}
	rest := args[1:]

	var flow *Flow
	switch t := target.(type) {
	case *FlowCreator:
		if len(rest) != 3 {
			return nil, newError(SyntaxError, "run-flow %s: expected (args) (x y) theta", name)
		}
		opts, ok := rest[0].(List)
		if !ok && rest[0] != nil {
			return nil, newError(SyntaxError, "run-flow %s: arguments must be a list", name)
		}
		iname := t.instanceName()
		if flow, err = t.instantiate(ev, iname, scope, opts); err != nil {
			return nil, err
		}
		ev.env.Define(iname, flow, scope)
	case *Flow:
		flow = t
	default:
		return nil, newError(TypeError, "cannot create flow from %s", name)
	}
	if len(rest) == 3 {
		rest = rest[1:]
	}

	pos, ok := rest[0].(List)
	if !ok || len(pos) != 2 {
		return nil, newError(SyntaxError, "run-flow %s: position must be (x y)", name)
	}
	x, err := ev.evalNumber(pos[0], scope)
	if err != nil {
		return nil, err
	}
	y, err := ev.evalNumber(pos[1], scope)
	if err != nil {
		return nil, err
	}
	theta, err := ev.evalNumber(rest[1], scope)
	if err != nil {
		return nil, err
	}

	if ev.ctx.Run && ev.ctx.Randomize {
		dx, _ := graph.ToFloat(moveDistRule.Draw(ev.ctx.Rand))
		dy, _ := graph.ToFloat(moveDistRule.Draw(ev.ctx.Rand))
		x = floorMod(x+dx, ev.config.Canvas)
		y = floorMod(y+dy, ev.config.Canvas)
		theta, _ = graph.ToFloat(turnThetaRule.Draw(ev.ctx.Rand))
		ev.logger.InfoCat(CatRandom, "randomizing start of %s to (%g %g) %g", flow.Name(), x, y, theta)
	}

	if ev.ctx.Run {
		if _, err := flow.Call(ev, NewMessage(x, y, theta)); err != nil {
			return nil, err
		}
		ev.logger.InfoCat(CatFlow, "done running %s", flow.Name())
	}

	start := graph.NewNodeInfo(graph.StartID, graph.TypeInfo)
	start.Name = graph.StartName
	start.Scope = graph.GlobalScope
	start.Sources = []string{}
	start.Targets = map[string][]string{"out": {flow.ID()}}
	start.Set("position", graph.Point{X: x, Y: y})
	start.Set("theta", theta)

	recs := flow.Info(ev)
	recs[0].Sources = append(recs[0].Sources, graph.StartID)
	out := append([]*graph.NodeInfo{start}, recs...)
	ev.lastRun = out
	return out, nil
}

func floorMod(a, m float64) float64 {
	if m <= 0 {
		return a
	}
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

// evalInclude handles (#include "file"). The file is evaluated into the
// global scope, without running flows, at most once per run.
func evalInclude(ev *Executor, args List, scope Scope) (Value, error) {
	if err := arity("#include", args, 1, 1); err != nil {
		return nil, err
	}
	raw, err := symbolArg("#include", args[0])
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 || !strings.HasPrefix(raw, `"`) || !strings.HasSuffix(raw, `"`) {
		return nil, newError(SyntaxError, "#include: file name needs to be a double-quoted string, got %s", raw)
	}
	name := strings.Trim(raw, `"`)
	dir := "."
	if ev.file != "" {
		dir = filepath.Dir(ev.file)
	}
	path, internal := ev.resolver.Resolve(name, dir)
	if ev.env.Included(path) {
		ev.logger.DebugCat(CatInclude, "skipping %s, already included", path)
		return nil, nil
	}
	ev.logger.DebugCat(CatInclude, "including %s (library: %v)", path, internal)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: IOError, Message: err.Error(), File: ev.file}
	}
	prevRun := ev.ctx.Run
	ev.ctx.Run = false
	defer func() { ev.ctx.Run = prevRun }()
	_, err = ev.ExecSource(string(data), path)
	return nil, err
}

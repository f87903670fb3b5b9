package flatland

import (
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/flatland-lang/flatland/pkg/graph"
	"github.com/flatland-lang/flatland/pkg/turtle"
)

// ExecContext is the per-run state threaded through evaluation instead of
// process globals
type ExecContext struct {
	Surface   turtle.Surface
	Randomize bool
	Run       bool
	Rand      *rand.Rand
}

// specialForm evaluates the arguments of a form itself
type specialForm func(ev *Executor, args List, scope Scope) (Value, error)

// Executor evaluates programs against one environment and one drawing surface.
// It is not safe for concurrent use; give each run its own Executor.
type Executor struct {
	config   *Config
	logger   *Logger
	env      *Environment
	ctx      *ExecContext
	resolver Resolver
	forms    map[Symbol]specialForm
	file     string
	out      io.Writer
	lastRun  []*graph.NodeInfo
}

// NewExecutor creates an executor with a fresh global scope, seeded RNG and
// recording turtle
func NewExecutor(config *Config, logger *Logger) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = NewLogger(config.Debug)
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.DebugCat(CatRandom, "seed %d", seed)

	ev := &Executor{
		config: config,
		logger: logger,
		env:    NewEnvironment(rand.New(rand.NewSource(seed ^ 0x5eed))),
		ctx: &ExecContext{
			Surface:   turtle.New(),
			Randomize: config.Randomize,
			Run:       config.Run,
			Rand:      rand.New(rand.NewSource(seed)),
		},
		resolver: &DirResolver{Root: config.LibraryDir},
		out:      os.Stdout,
	}
	ev.forms = map[Symbol]specialForm{
		"quote":        evalQuote,
		"if":           evalIf,
		"define":       evalDefine,
		"set":          evalSet,
		"set!":         evalSet,
		"lambda":       evalLambda,
		"create-node":  evalCreateNode,
		"define-flow":  evalDefineFlow,
		"create-entry": evalCreateEntry,
		"create-exit":  evalCreateExit,
		"create-link":  evalCreateLink,
		"run-flow":     evalRunFlow,
		"#include":     evalInclude,
	}
	RegisterMathLib(ev)
	return ev
}

// SetSurface replaces the drawing surface
func (ev *Executor) SetSurface(s turtle.Surface) { ev.ctx.Surface = s }

// Surface returns the drawing surface
func (ev *Executor) Surface() turtle.Surface { return ev.ctx.Surface }

// SetResolver replaces the include resolver
func (ev *Executor) SetResolver(r Resolver) { ev.resolver = r }

// SetOutput redirects the print builtin
func (ev *Executor) SetOutput(w io.Writer) { ev.out = w }

// Context exposes the run state
func (ev *Executor) Context() *ExecContext { return ev.ctx }

// Environment exposes the frame arena
func (ev *Executor) Environment() *Environment { return ev.env }

// LastRun returns the records produced by the most recent run-flow
func (ev *Executor) LastRun() []*graph.NodeInfo { return ev.lastRun }

// Eval evaluates an expression in scope
func (ev *Executor) Eval(x Exp, scope Scope) (Value, error) {
	switch v := x.(type) {
	case Symbol:
		return ev.env.Lookup(string(v), scope)
	case List:
		if len(v) == 0 {
			return nil, nil
		}
		if op, ok := v[0].(Symbol); ok {
			if form, ok := ev.forms[op]; ok {
				return form(ev, v[1:], scope)
			}
		}
		return ev.call(v, scope)
	default:
		return x, nil
	}
}

// call evaluates operator and operands left to right and applies
func (ev *Executor) call(form List, scope Scope) (Value, error) {
	fn, err := ev.Eval(form[0], scope)
	if err != nil {
		return nil, err
	}
	args := make([]Value, 0, len(form)-1)
	for _, a := range form[1:] {
		v, err := ev.Eval(a, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return ev.Apply(fn, args)
}

// Apply calls a procedure or builtin with evaluated arguments
func (ev *Executor) Apply(fn Value, args []Value) (Value, error) {
	switch f := fn.(type) {
	case *Builtin:
		return f.Fn(ev, args)
	case *Procedure:
		frame := ev.env.NewFrame(f.scope)
		if f.rest != "" {
			ev.env.Define(f.rest, append([]Value(nil), args...), frame)
		} else {
			if len(args) != len(f.params) {
				return nil, newError(TypeError, "procedure expects %d arguments, got %d", len(f.params), len(args))
			}
			for i, p := range f.params {
				ev.env.Define(p, args[i], frame)
			}
		}
		var result Value
		for _, x := range f.body {
			v, err := ev.Eval(x, frame)
			if err != nil {
				return nil, err
			}
			result = v
		}
		return result, nil
	default:
		return nil, newError(TypeError, "not a procedure: %s", FormatExp(fn))
	}
}

// Procedure is a closure: parameters, body and the frame it captured
type Procedure struct {
	params []string
	rest   string // set when the parameter list is a single symbol
	body   []Exp
	scope  Scope
}

func (p *Procedure) String() string { return "<procedure>" }

// Builtin is a procedure implemented in Go
type Builtin struct {
	Name string
	Fn   func(ev *Executor, args []Value) (Value, error)
}

func (b *Builtin) String() string { return "<builtin " + b.Name + ">" }

// RegisterBuiltin binds a Go function in the global scope
func (ev *Executor) RegisterBuiltin(name string, fn func(ev *Executor, args []Value) (Value, error)) {
	ev.env.Define(name, &Builtin{Name: name, Fn: fn}, GlobalScope)
}

// truthy treats false, zero, nil and empty lists as false
func truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case List:
		return len(x) > 0
	case []Value:
		return len(x) > 0
	}
	return true
}

// evalNumber evaluates x and requires a number
func (ev *Executor) evalNumber(x Exp, scope Scope) (float64, error) {
	v, err := ev.Eval(x, scope)
	if err != nil {
		return 0, err
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	f, ok := graph.ToFloat(v)
	if !ok {
		return 0, newError(TypeError, "expected a number, got %s", FormatExp(v))
	}
	return f, nil
}

// ParseSource reads source with the parser its extension selects
func ParseSource(source, filename string) (Exp, error) {
	switch filepath.Ext(filename) {
	case ".fbp":
		return ParseFBP(source, filename)
	case ".lisp":
		return NewParser(source, filename).ParseProgram()
	default:
		return nil, &Error{Kind: IOError, Message: "invalid file extension " + filepath.Ext(filename) + ", expecting .fbp or .lisp", File: filename}
	}
}

// ExecFile evaluates a file in the global scope
func (ev *Executor) ExecFile(path string) (Value, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newError(IOError, "%v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &Error{Kind: IOError, Message: err.Error(), File: abs}
	}
	return ev.ExecSource(string(data), abs)
}

// ExecSource evaluates program text in the global scope. filename selects the
// parser and becomes the provenance of flows defined by the text.
func (ev *Executor) ExecSource(source, filename string) (Value, error) {
	x, err := ParseSource(source, filename)
	if err != nil {
		return nil, err
	}
	ev.logger.DebugCat(CatParse, "parsed %s: %s", filename, FormatExp(x))
	return ev.ExecExp(x, filename)
}

// ExecExp evaluates an already parsed program on behalf of filename
func (ev *Executor) ExecExp(x Exp, filename string) (Value, error) {
	ev.env.MarkIncluded(filename)
	prev := ev.file
	ev.file = filename
	defer func() { ev.file = prev }()
	v, err := ev.Eval(x, GlobalScope)
	if err != nil {
		return nil, withFile(err, filename)
	}
	return v, nil
}

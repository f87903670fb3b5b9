package flatland

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatland-lang/flatland/pkg/turtle"
)

// newTestExecutor returns a seeded executor with a silent logger, a fresh
// turtle and print output captured in the returned buffer
func newTestExecutor(t *testing.T, mutate ...func(*Config)) (*Executor, *turtle.Turtle, *bytes.Buffer) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.LibraryDir = ""
	for _, m := range mutate {
		m(cfg)
	}
	logger := NewLogger(false)
	logger.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	ev := NewExecutor(cfg, logger)
	tt := turtle.New()
	ev.SetSurface(tt)
	out := &bytes.Buffer{}
	ev.SetOutput(out)
	return ev, tt, out
}

func evalLisp(t *testing.T, ev *Executor, src string) Value {
	t.Helper()
	v, err := ev.ExecSource(src, "test.lisp")
	require.NoError(t, err)
	return v
}

func TestArithmetic(t *testing.T) {
	ev, _, _ := newTestExecutor(t)

	cases := []struct {
		src  string
		want Value
	}{
		{"(+ 1 2)", int64(3)},
		{"(+ 1 2.5)", 3.5},
		{"(- 5)", int64(-5)},
		{"(* 2 3 4)", int64(24)},
		{"(/ 1 2)", 0.5},
		{"(% -7 3)", int64(2)},
		{"(% 7 -3)", int64(-2)},
		{"(expt 2 10)", int64(1024)},
		{"(abs -3)", int64(3)},
		{"(floor 2.7)", int64(2)},
		{"(round 2.5)", int64(2)},
		{"(round 3.14159 2)", 3.14},
		{"(max 1 7 3)", int64(7)},
		{"(min (list 4 2 9))", int64(2)},
		{"(< 1 2)", true},
		{"(>= 1 2)", false},
		{"(= 2 2.0)", true},
		{"(not 0)", true},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.want, evalLisp(t, ev, tc.src))
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	ev, _, _ := newTestExecutor(t)
	_, err := ev.ExecSource("(/ 1 0)", "test.lisp")
	assert.True(t, errors.Is(err, ErrType))
}

func TestDefineAndProcedures(t *testing.T) {
	ev, _, _ := newTestExecutor(t)

	t.Run("define sugar", func(t *testing.T) {
		assert.Equal(t, int64(16), evalLisp(t, ev, "(define (sq x) (* x x)) (sq 4)"))
	})

	t.Run("closures capture their frame", func(t *testing.T) {
		src := `(define (adder n) (lambda (x) (+ x n)))
		        (define add3 (adder 3))
		        (add3 4)`
		assert.Equal(t, int64(7), evalLisp(t, ev, src))
	})

	t.Run("variadic lambda", func(t *testing.T) {
		v := evalLisp(t, ev, "((lambda args args) 1 2 3)")
		assert.Equal(t, []Value{int64(1), int64(2), int64(3)}, v)
	})

	t.Run("map and apply", func(t *testing.T) {
		assert.Equal(t, []Value{int64(1), int64(4), int64(9)}, evalLisp(t, ev, "(map sq (list 1 2 3))"))
		assert.Equal(t, int64(6), evalLisp(t, ev, "(apply + (list 1 2 3))"))
	})

	t.Run("set rebinds", func(t *testing.T) {
		assert.Equal(t, int64(10), evalLisp(t, ev, "(define x 1) (set! x 10) x"))
	})

	t.Run("set of unknown name", func(t *testing.T) {
		_, err := ev.ExecSource("(set nope 1)", "test.lisp")
		assert.True(t, errors.Is(err, ErrNameResolution))
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, err := ev.ExecSource("(sq 1 2)", "test.lisp")
		assert.True(t, errors.Is(err, ErrType))
	})

	t.Run("quote and if", func(t *testing.T) {
		assert.Equal(t, Symbol("a"), evalLisp(t, ev, "(quote a)"))
		assert.Equal(t, int64(1), evalLisp(t, ev, "(if (< 1 2) 1 2)"))
		assert.Nil(t, evalLisp(t, ev, "(if 0 1)"))
	})

	t.Run("predicates", func(t *testing.T) {
		assert.Equal(t, true, evalLisp(t, ev, "(procedure? sq)"))
		assert.Equal(t, true, evalLisp(t, ev, "(null? (list))"))
		assert.Equal(t, true, evalLisp(t, ev, "(symbol? (quote a))"))
		assert.Equal(t, false, evalLisp(t, ev, "(number? (quote a))"))
	})
}

func TestPrint(t *testing.T) {
	ev, _, out := newTestExecutor(t)
	evalLisp(t, ev, "(print 1 2.5 (quote a))")
	assert.Equal(t, "1 2.5 a\n", out.String())
}

func TestRandintUsesSeed(t *testing.T) {
	a, _, _ := newTestExecutor(t)
	b, _, _ := newTestExecutor(t)
	for i := 0; i < 20; i++ {
		va := evalLisp(t, a, "(randint 1 6)")
		vb := evalLisp(t, b, "(randint 1 6)")
		require.Equal(t, va, vb)
		n := va.(int64)
		assert.True(t, n >= 1 && n <= 6, "randint out of range: %d", n)
	}
}

func TestCreateNodeErrors(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(create-node a move 10) (create-node a move 5)", "test.lisp")
		assert.True(t, errors.Is(err, ErrDuplicateName))
	})

	t.Run("unknown type", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(create-node a wobble 1)", "test.lisp")
		assert.True(t, errors.Is(err, ErrType))
	})

	t.Run("bad arity", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(create-node a turn)", "test.lisp")
		assert.True(t, errors.Is(err, ErrType))
	})

	t.Run("entry outside a flow", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(create-node a move 1) (create-entry a)", "test.lisp")
		assert.True(t, errors.Is(err, ErrType))
	})

	t.Run("link to unknown node", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(create-node a move 1) (create-link a b)", "test.lisp")
		assert.True(t, errors.Is(err, ErrNameResolution))
	})

	t.Run("link from unknown port", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(create-node a move 1) (create-node b move 1) (create-link a:body b)", "test.lisp")
		assert.True(t, errors.Is(err, ErrType))
	})

	t.Run("errors carry the file", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(create-node a wobble 1)", "prog.lisp")
		var e *Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, "prog.lisp", e.File)
	})
}

func TestDefineFlowRules(t *testing.T) {
	t.Run("rule for unknown parameter", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(define-flow f (a) ((b (int (1 5)))) ())", "test.lisp")
		assert.True(t, errors.Is(err, ErrNameResolution))
	})

	t.Run("rules are evaluated", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		v := evalLisp(t, ev, "(define-flow f (a b) ((a (int (1 (+ 2 3)))) (b (bool (0.5)))) ())")
		fc := v.(*FlowCreator)
		assert.Equal(t, RandomInt{Min: 1, Max: 5}, fc.Randoms["a"])
		assert.Equal(t, RandomBool{TrueProb: 0.5}, fc.Randoms["b"])
		assert.Equal(t, "test.lisp", fc.Filename)
	})

	t.Run("unknown randomizer", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(define-flow f (a) ((a (gauss (1 5)))) ())", "test.lisp")
		assert.True(t, errors.Is(err, ErrType))
	})

	t.Run("wrong instance arity", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource("(define-flow f (a) () ()) (create-node x f)", "test.lisp")
		assert.True(t, errors.Is(err, ErrType))
	})
}

func TestParseSourceExtension(t *testing.T) {
	_, err := ParseSource("(+ 1 2)", "prog.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
	assert.Contains(t, err.Error(), "invalid file extension")
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()
	lib := `(print (quote loaded))
(define-flow step (n) () ((create-node m move n) (create-entry m) (create-exit m)))`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.lisp"), []byte(lib), 0o644))

	t.Run("once per run", func(t *testing.T) {
		ev, _, out := newTestExecutor(t)
		ev.SetResolver(&DirResolver{})
		_, err := ev.ExecSource(`(#include "lib.lisp") (#include "lib.lisp")`, filepath.Join(dir, "main.lisp"))
		require.NoError(t, err)
		assert.Equal(t, "loaded\n", out.String())
		v, err := ev.Environment().Lookup("step", GlobalScope)
		require.NoError(t, err)
		assert.IsType(t, &FlowCreator{}, v)
	})

	t.Run("library directory first", func(t *testing.T) {
		ev, _, out := newTestExecutor(t)
		ev.SetResolver(&DirResolver{Root: dir})
		_, err := ev.ExecSource(`(#include "lib.lisp")`, filepath.Join(t.TempDir(), "main.lisp"))
		require.NoError(t, err)
		assert.Equal(t, "loaded\n", out.String())
	})

	t.Run("name must be quoted", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		_, err := ev.ExecSource(`(#include lib.lisp)`, filepath.Join(dir, "main.lisp"))
		assert.True(t, errors.Is(err, ErrSyntax))
	})

	t.Run("missing file", func(t *testing.T) {
		ev, _, _ := newTestExecutor(t)
		ev.SetResolver(&DirResolver{})
		_, err := ev.ExecSource(`(#include "nope.lisp")`, filepath.Join(dir, "main.lisp"))
		assert.True(t, errors.Is(err, ErrIO))
	})

	t.Run("included flows do not run", func(t *testing.T) {
		src := `(define-flow step (n) () ((create-node m move n) (create-entry m) (create-exit m)))
(run-flow step (10) (0 0) 0)`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "runs.lisp"), []byte(src), 0o644))
		ev, tt, _ := newTestExecutor(t)
		ev.SetResolver(&DirResolver{})
		_, err := ev.ExecSource(`(#include "runs.lisp")`, filepath.Join(dir, "main.lisp"))
		require.NoError(t, err)
		assert.Empty(t, tt.Segments())
		assert.True(t, ev.Context().Run, "run flag restored after include")
	})
}

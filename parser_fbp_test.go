package flatland

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatland-lang/flatland/pkg/distance"
)

const squareFBP = `
square(start side) -> l(loop i 0 4)
l body -> m(move side)
m -> t(turn 90)
t -> l
l -> (end)

{"position": [0, 0], "theta": 0} -> square(10)
`

func TestDesugarFBP(t *testing.T) {
	src, err := DesugarFBP(squareFBP)
	require.NoError(t, err)

	x, err := NewParser(src, "square.fbp").ParseProgram()
	require.NoError(t, err)
	want, err := Parse(`(begin
(define-flow square (side) () (
  (create-node l loop i 0 4)
  (create-entry l)
  (create-node m move side)
  (create-link l:body m)
  (create-node t turn 90)
  (create-link m t)
  (create-link t l)
  (create-exit l)))
(run-flow square (10) (0.0 0.0) 0.0))`)
	require.NoError(t, err)
	assert.Equal(t, want, x)
}

func TestDesugarParams(t *testing.T) {
	src := `@param {n} (int (1 5))
@param {pen} (bool (0.5))
walk(start n pen) -> m(move n pen)
m -> (end)`
	out, err := DesugarFBP(src)
	require.NoError(t, err)
	x, err := Parse(out)
	require.NoError(t, err)
	want, err := Parse(`(begin (define-flow walk (n pen) ((n (int (1 5))) (pen (bool (0.5)))) (
  (create-node m move n pen)
  (create-entry m)
  (create-exit m))))`)
	require.NoError(t, err)
	assert.Equal(t, want, x)
}

func TestDesugarInclude(t *testing.T) {
	out, err := DesugarFBP(`#include "square.fbp"
{"position": [10, 20], "theta": 90} -> square(3)`)
	require.NoError(t, err)
	x, err := Parse(out)
	require.NoError(t, err)
	want, err := Parse(`(begin (#include "square.fbp") (run-flow square (3) (10.0 20.0) 90.0))`)
	require.NoError(t, err)
	assert.Equal(t, want, x)
}

func TestDesugarErrors(t *testing.T) {
	for _, src := range []string{
		"a -> b -> c",
		"just words",
		"@param n (int (1 5))",
		"f(start) -> end",
		`{"position": [1, 2} -> f()`,
	} {
		_, err := DesugarFBP(src)
		require.Error(t, err, src)
		assert.True(t, errors.Is(err, ErrSyntax), src)
	}
}

func TestFBPAndLispDrawTheSame(t *testing.T) {
	lisp, lt, _ := newTestExecutor(t)
	evalLisp(t, lisp, squareLisp)

	fbp, ft, _ := newTestExecutor(t)
	_, err := fbp.ExecSource(squareFBP, "square.fbp")
	require.NoError(t, err)

	assert.Equal(t, lt.Segments(), ft.Segments())

	a, err := ResolveScope(lisp.LastRun())
	require.NoError(t, err)
	b, err := ResolveScope(fbp.LastRun())
	require.NoError(t, err)
	d, err := distance.Distance(a, b, "binary", distance.DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

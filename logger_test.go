package flatland

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerCategories(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(true)
	l.SetOutput(&out, &errOut)

	l.DebugCat(CatFlow, "hidden")
	assert.Empty(t, out.String())

	l.EnableCategory(CatFlow)
	l.DebugCat(CatFlow, "shown %d", 1)
	l.TraceCat(CatFlow, "traced")
	l.InfoCat(CatRandom, "other category")
	assert.Equal(t, "[DEBUG:flow] shown 1\n[TRACE:flow] traced\n", out.String())

	l.DisableCategory(CatFlow)
	assert.False(t, l.IsCategoryEnabled(CatFlow))

	l.EnableAllCategories()
	for _, c := range allCategories {
		assert.True(t, l.IsCategoryEnabled(c), c)
	}
}

func TestLoggerDisabled(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(false)
	l.SetOutput(&out, &errOut)
	l.EnableAllCategories()
	l.Debug("nothing")
	l.InfoCat(CatIO, "nothing")
	assert.Empty(t, out.String())

	l.Warn("careful")
	l.ErrorCat(CatIO, "broken %s", "pipe")
	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	assert.Equal(t, []string{"[flatland WARN] careful", "[flatland:io ERROR] broken pipe"}, lines)
}

func TestCategoryLogger(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(true)
	l.SetOutput(&out, &out)
	l.EnableCategory(CatDistance)
	l.Category(CatDistance).Debug("%d candidates", 3)
	assert.Equal(t, "[DEBUG:distance] 3 candidates\n", out.String())
}

func TestReport(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(false)
	l.SetOutput(&out, &errOut)

	l.Report(nil)
	l.Report(&Error{Kind: SyntaxError, Message: "unexpected )", File: "a.lisp"})
	l.Report(withFile(newError(ConsistencyError, "dangling scope"), "b.fbp"))
	l.Report(assert.AnError)

	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	assert.Equal(t, []string{
		"[flatland:parse ERROR] SyntaxError: unexpected ) (in a.lisp)",
		"[flatland:resolve ERROR] ConsistencyError: dangling scope (in b.fbp)",
		"[flatland ERROR] " + assert.AnError.Error(),
	}, lines)
	assert.Empty(t, out.String())
}

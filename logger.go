package flatland

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// LogLevel is the severity of a message. Trace, Info and Debug need the
// logger enabled and their category switched on; Warn and Error always print.
type LogLevel int

const (
	LevelTrace LogLevel = iota // message routing inside flows
	LevelInfo                  // run summaries, randomized values
	LevelDebug                 // construction and parsing details
	LevelWarn
	LevelError
)

// diagnostics go to stdout as "[TAG:cat]", problems to stderr as
// "[flatland:cat TAG]"
var levelTags = [...]string{
	LevelTrace: "TRACE",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (lv LogLevel) tag() string {
	if lv < LevelTrace || int(lv) >= len(levelTags) {
		return levelTags[LevelError]
	}
	return levelTags[lv]
}

// LogCategory names the stage a message comes from
type LogCategory string

const (
	CatNone     LogCategory = ""
	CatParse    LogCategory = "parse"    // reader and edge notation
	CatEval     LogCategory = "eval"     // special forms, calls
	CatNode     LogCategory = "node"     // node construction and links
	CatFlow     LogCategory = "flow"     // message routing
	CatInclude  LogCategory = "include"
	CatResolve  LogCategory = "resolve"
	CatRandom   LogCategory = "random"
	CatDistance LogCategory = "distance"
	CatIO       LogCategory = "io"
)

var allCategories = []LogCategory{
	CatParse, CatEval, CatNode, CatFlow, CatInclude, CatResolve, CatRandom, CatDistance, CatIO,
}

func (c LogCategory) known() bool {
	for _, k := range allCategories {
		if k == c {
			return true
		}
	}
	return false
}

// Logger writes leveled, categorised diagnostics for a run
type Logger struct {
	mu     sync.Mutex
	debug  bool
	shown  map[LogCategory]struct{}
	stdout io.Writer
	stderr io.Writer
	tinted bool
}

const (
	ansiWarn  = "\x1b[93m"
	ansiError = "\x1b[91m"
	ansiReset = "\x1b[0m"
)

// colorTerminal reports whether f is a terminal that should get ANSI colour
func colorTerminal(f *os.File) bool {
	if _, off := os.LookupEnv("NO_COLOR"); off {
		return false
	}
	return os.Getenv("TERM") != "dumb" && term.IsTerminal(int(f.Fd()))
}

// NewLogger returns a logger on stdout/stderr. Debug output stays off until
// enabled is true and at least one category is switched on.
func NewLogger(enabled bool) *Logger {
	return &Logger{
		debug:  enabled,
		shown:  map[LogCategory]struct{}{},
		stdout: os.Stdout,
		stderr: os.Stderr,
		tinted: colorTerminal(os.Stderr),
	}
}

// SetOutput redirects both streams, disabling color
func (l *Logger) SetOutput(out, errOut io.Writer) {
	l.mu.Lock()
	l.stdout, l.stderr, l.tinted = out, errOut, false
	l.mu.Unlock()
}

func (l *Logger) EnableCategory(cat LogCategory)  { l.shown[cat] = struct{}{} }
func (l *Logger) DisableCategory(cat LogCategory) { delete(l.shown, cat) }

func (l *Logger) EnableAllCategories() {
	for _, cat := range allCategories {
		l.EnableCategory(cat)
	}
}

func (l *Logger) IsCategoryEnabled(cat LogCategory) bool {
	_, on := l.shown[cat]
	return on
}

func (l *Logger) visible(level LogLevel, cat LogCategory) bool {
	switch {
	case level >= LevelWarn:
		return true
	case !l.debug:
		return false
	case cat == CatNone:
		return true
	}
	return l.IsCategoryEnabled(cat)
}

// Log writes message at level on cat
func (l *Logger) Log(level LogLevel, cat LogCategory, message string) {
	if !l.visible(level, cat) {
		return
	}
	var where string
	if cat != CatNone {
		where = ":" + string(cat)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if level < LevelWarn {
		fmt.Fprintf(l.stdout, "[%s%s] %s\n", level.tag(), where, message)
		return
	}
	line := fmt.Sprintf("[flatland%s %s] %s", where, level.tag(), message)
	if l.tinted {
		tint := ansiWarn
		if level >= LevelError {
			tint = ansiError
		}
		line = tint + line + ansiReset
	}
	fmt.Fprintln(l.stderr, line)
}

func (l *Logger) logf(level LogLevel, cat LogCategory, format string, args []interface{}) {
	if l.visible(level, cat) {
		l.Log(level, cat, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) ErrorCat(cat LogCategory, format string, args ...interface{}) {
	l.logf(LevelError, cat, format, args)
}

// Report logs err on the category of the stage that produced it. Interpreter
// errors carry their kind; anything else is logged uncategorized.
func (l *Logger) Report(err error) {
	if err == nil {
		return
	}
	var e *Error
	if errors.As(err, &e) {
		l.Log(LevelError, kindCategory[e.Kind], e.Error())
		return
	}
	l.Log(LevelError, CatNone, err.Error())
}

var kindCategory = map[ErrorKind]LogCategory{
	SyntaxError:         CatParse,
	NameResolutionError: CatEval,
	DuplicateNameError:  CatNode,
	TypeError:           CatEval,
	ConsistencyError:    CatResolve,
	IOError:             CatIO,
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, CatNone, format, args)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, CatNone, format, args)
}

func (l *Logger) DebugCat(cat LogCategory, format string, args ...interface{}) {
	l.logf(LevelDebug, cat, format, args)
}

func (l *Logger) InfoCat(cat LogCategory, format string, args ...interface{}) {
	l.logf(LevelInfo, cat, format, args)
}

// TraceCat is used for per-message flow routing, the noisiest output
func (l *Logger) TraceCat(cat LogCategory, format string, args ...interface{}) {
	l.logf(LevelTrace, cat, format, args)
}

// Category returns a logger view whose Debug method logs on cat
func (l *Logger) Category(cat LogCategory) *CategoryLogger {
	return &CategoryLogger{logger: l, cat: cat}
}

// CategoryLogger pins a category, for collaborators that only know Debug
type CategoryLogger struct {
	logger *Logger
	cat    LogCategory
}

func (c *CategoryLogger) Debug(format string, args ...interface{}) {
	c.logger.DebugCat(c.cat, format, args...)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flatland-lang/flatland"
	"github.com/flatland-lang/flatland/pkg/graph"
	"github.com/flatland-lang/flatland/pkg/turtle"
	"github.com/peterh/liner"
	"golang.org/x/term"
)

const (
	historyFile = ".flatland_history"
	promptMain  = "flat> "
	promptCont  = "  ... "
	replFile    = "<repl>.lisp"
)

const replHelp = `
REPL commands:
  :help            Show this text
  :quit            Exit the REPL
  :reset           Start over with an empty environment
  :load <file>     Evaluate a .lisp or .fbp file into the session
  :records         Print the records of the last run-flow
  :graph           Print the flattened graph of the last run-flow
  :names           List the global bindings
`

// session is the state one REPL works on
type session struct {
	fl *flatland.Flatland
	ev *flatland.Executor
	t  *turtle.Turtle
}

func (s *session) reset() {
	s.ev = s.fl.NewExecutor()
	s.t = turtle.New()
	s.ev.SetSurface(s.t)
}

func cmdRepl(args []string) int {
	fs, common := newFlagSet("repl")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	fl, err := common.load()
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return replPiped(fl, os.Stdin)
	}

	fmt.Printf("flatland %s\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.\n", version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	s := &session{fl: fl}
	s.reset()
	for {
		code, ok := readForm(ln)
		if !ok {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		if strings.HasPrefix(trimmed, ":") {
			if s.command(trimmed) {
				break
			}
			continue
		}
		s.eval(code)
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return 0
}

// replPiped evaluates stdin as one program when it is not a terminal
func replPiped(fl *flatland.Flatland, r io.Reader) int {
	data, err := io.ReadAll(r)
	if err != nil {
		errorPrintf("%v\n", err)
		return 1
	}
	s := &session{fl: fl}
	s.reset()
	if !s.eval(string(data)) {
		return 1
	}
	return 0
}

// readForm accumulates lines until the parser accepts them or reports a
// real error. ok is false on EOF.
func readForm(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || strings.TrimSpace(src) == "" {
			return src, true
		}
		if _, perr := flatland.ParseSource(src, replFile); flatland.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}

func (s *session) eval(code string) bool {
	v, err := s.ev.ExecSource(code, replFile)
	if err != nil {
		errorPrintf("%v\n", err)
		return false
	}
	if v != nil {
		fmt.Println(formatValue(v))
	}
	return true
}

func formatValue(v flatland.Value) string {
	switch x := v.(type) {
	case flatland.Node:
		return fmt.Sprintf("<%s %s>", x.Kind(), x.Name())
	case []*graph.NodeInfo:
		return fmt.Sprintf("<%d records, :records to print>", len(x))
	}
	return flatland.FormatExp(v)
}

// command runs a :command and reports whether the REPL should exit
func (s *session) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":help":
		fmt.Print(replHelp)
	case ":quit", ":exit":
		return true
	case ":reset":
		s.reset()
		fmt.Println("environment cleared")
	case ":load":
		if len(fields) != 2 {
			errorPrintf("usage: :load <file>\n")
			return false
		}
		if _, err := s.ev.ExecFile(fields[1]); err != nil {
			errorPrintf("%v\n", err)
		}
	case ":records":
		if err := flatland.WriteRecords(os.Stdout, s.ev.LastRun()); err != nil {
			errorPrintf("%v\n", err)
		}
	case ":graph":
		g, err := flatland.ResolveScope(s.ev.LastRun())
		if err == nil {
			err = flatland.WriteGraph(os.Stdout, g)
		}
		if err != nil {
			errorPrintf("%v\n", err)
		}
	case ":names":
		env := s.ev.Environment()
		fmt.Println(strings.Join(env.Names(flatland.GlobalScope), " "))
	default:
		errorPrintf("unknown command %s, try :help\n", fields[0])
	}
	return false
}

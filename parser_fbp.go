package flatland

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Edge notation: one `from -> to` edge per line, plus optional
//
//	@param {name} (kind (args...))   randomization rule for the next flow
//	#include "file.fbp"              source inclusion
//
// A `name(start p1 p2) -> node(...)` edge opens a flow definition, an
// `x -> (end)` edge closes it, and a `{"position": [x, y], "theta": t} -> flow(args)`
// edge runs a flow. DesugarFBP rewrites the text into s-expressions without
// evaluating anything.

type fbpEdge struct {
	from, to string
	random   bool
}

// DesugarFBP converts edge notation into s-expression source
func DesugarFBP(program string) (string, error) {
	var edges []fbpEdge
	var imports []string
	var pending []fbpEdge

	for n, line := range strings.Split(program, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.Contains(line, "@param"):
			e, err := paramLine(line)
			if err != nil {
				return "", newError(SyntaxError, "line %d: %v", n+1, err)
			}
			pending = append(pending, e)
		case strings.Contains(line, "#include"):
			imports = append(imports, "("+line+")")
		default:
			parts := strings.Split(line, "->")
			if len(parts) != 2 {
				return "", newError(SyntaxError, "line %d: expected `from -> to`, got %q", n+1, line)
			}
			edges = append(edges, pending...)
			pending = pending[:0]
			edges = append(edges, fbpEdge{from: strings.TrimSpace(parts[0]), to: strings.TrimSpace(parts[1])})
		}
	}

	var sb strings.Builder
	sb.WriteString("(begin\n")
	sb.WriteString(strings.Join(imports, "\n"))
	var randoms []string
	for _, e := range edges {
		s, err := rewriteEdge(e, &randoms)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	sb.WriteString(")")
	return sb.String(), nil
}

// ParseFBP desugars edge notation and reads the result
func ParseFBP(program, filename string) (Exp, error) {
	src, err := DesugarFBP(program)
	if err != nil {
		return nil, withFile(err, filename)
	}
	return NewParser(src, filename).ParseProgram()
}

// paramLine reads `@param {name} body`
func paramLine(line string) (fbpEdge, error) {
	open := strings.Index(line, "{")
	closing := strings.Index(line, "}")
	if open < 0 || closing < open {
		return fbpEdge{}, fmt.Errorf("malformed @param line %q", line)
	}
	return fbpEdge{
		from:   strings.TrimSpace(line[open+1 : closing]),
		to:     strings.TrimSpace(line[closing+1:]),
		random: true,
	}, nil
}

// splitCall splits `name(args...)` into name and the argument text with its
// closing paren; ok is false when there is no paren
func splitCall(s string) (name, rest string, ok bool) {
	i := strings.Index(s, "(")
	if i < 0 {
		return s, "", false
	}
	return strings.TrimSpace(s[:i]), s[i+1:], true
}

func rewriteEdge(e fbpEdge, randoms *[]string) (string, error) {
	var sb strings.Builder
	switch {
	case e.random:
		*randoms = append(*randoms, fmt.Sprintf("(%s %s)", e.from, e.to))

	case strings.Contains(e.from, "(start"):
		fname, fparams, _ := splitCall(e.from)
		fparams = strings.TrimSpace(fparams)
		if rest := strings.TrimPrefix(fparams, "start"); rest == "" || rest[0] == ' ' || rest[0] == ')' {
			fparams = strings.TrimSpace(rest)
		}
		fparams = "(" + fparams
		fmt.Fprintf(&sb, "(define-flow %s %s (%s) (\n", fname, fparams, strings.Join(*randoms, ""))
		*randoms = (*randoms)[:0]
		tname, tprops, ok := splitCall(e.to)
		if !ok {
			return "", newError(SyntaxError, "flow %s must open with a node definition, got %q", fname, e.to)
		}
		fmt.Fprintf(&sb, "(create-node %s %s\n", tname, tprops)
		fmt.Fprintf(&sb, "(create-entry %s)\n", tname)

	case strings.Contains(e.from, "{"):
		var data struct {
			Position []float64 `json:"position"`
			Theta    float64   `json:"theta"`
		}
		if err := json.Unmarshal([]byte(e.from), &data); err != nil {
			return "", newError(SyntaxError, "invalid run-flow header %q: %v", e.from, err)
		}
		x, y := 64.0, 64.0
		if len(data.Position) == 2 {
			x, y = data.Position[0], data.Position[1]
		}
		tname, tprops, ok := splitCall(e.to)
		if !ok {
			tprops = ")"
		}
		fmt.Fprintf(&sb, "(run-flow %s (%s (%s %s) %s)\n", tname, tprops,
			formatFloat(x), formatFloat(y), formatFloat(data.Theta))

	case strings.Contains(e.to, "(end"):
		fmt.Fprintf(&sb, "(create-exit %s))\n)\n", e.from)

	default:
		fields := strings.Fields(e.from)
		if len(fields) == 0 {
			return "", newError(SyntaxError, "edge without a source node")
		}
		fname, port := fields[0], "out"
		if len(fields) > 1 {
			port = fields[1]
		}
		tname, tprops, ok := splitCall(e.to)
		if ok {
			fmt.Fprintf(&sb, "(create-node %s %s\n", tname, tprops)
		}
		if port == "out" {
			fmt.Fprintf(&sb, "(create-link %s %s)\n", fname, tname)
		} else {
			fmt.Fprintf(&sb, "(create-link %s:%s %s)\n", fname, port, tname)
		}
	}
	return sb.String(), nil
}

package flatland

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Symbol is a bare name in a program
type Symbol string

// List is a parenthesised form
type List []Exp

// Exp is a parsed expression: Symbol, int64, float64 or List
type Exp = interface{}

// String prints a list so that Parse reads it back to an equal expression
func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, x := range l {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(FormatExp(x))
	}
	sb.WriteByte(')')
	return sb.String()
}

// FormatExp prints any expression or runtime value
func FormatExp(x interface{}) string {
	switch v := x.(type) {
	case nil:
		return "()"
	case Symbol:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case bool:
		if v {
			return "#t"
		}
		return "#f"
	case List:
		return v.String()
	case []interface{}:
		return List(v).String()
	case interface{ String() string }:
		return v.String()
	default:
		return fmt.Sprintf("<%v>", v)
	}
}

// formatFloat keeps a decimal point so the atom re-parses as a float
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Parser reads s-expression source text
type Parser struct {
	filename string
	tokens   []string
	pos      int
}

// NewParser creates a new parser
func NewParser(source, filename string) *Parser {
	return &Parser{
		filename: filename,
		tokens:   Tokenize(source),
	}
}

// Tokenize splits on whitespace with parentheses as standalone tokens
func Tokenize(source string) []string {
	source = strings.ReplaceAll(source, "(", " ( ")
	source = strings.ReplaceAll(source, ")", " ) ")
	return strings.Fields(source)
}

// Parse reads a program. A single top-level form is returned as is; several
// forms are wrapped in (begin ...).
func Parse(source string) (Exp, error) {
	return NewParser(source, "").ParseProgram()
}

// ParseProgram reads every top-level form
func (p *Parser) ParseProgram() (Exp, error) {
	if len(p.tokens) == 0 {
		return nil, p.errorf(msgUnexpectedEOF)
	}
	var forms []Exp
	for p.pos < len(p.tokens) {
		x, err := p.read()
		if err != nil {
			return nil, err
		}
		forms = append(forms, x)
	}
	if len(forms) == 1 {
		return forms[0], nil
	}
	return append(List{Symbol("begin")}, forms...), nil
}

func (p *Parser) read() (Exp, error) {
	if p.pos >= len(p.tokens) {
		return nil, p.errorf(msgUnexpectedEOF)
	}
	token := p.tokens[p.pos]
	p.pos++
	switch token {
	case "(":
		l := List{}
		for {
			if p.pos >= len(p.tokens) {
				return nil, p.errorf(msgUnexpectedEOF)
			}
			if p.tokens[p.pos] == ")" {
				p.pos++
				return l, nil
			}
			x, err := p.read()
			if err != nil {
				return nil, err
			}
			l = append(l, x)
		}
	case ")":
		return nil, p.errorf("unexpected close-paren")
	default:
		return Atom(token), nil
	}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	e := newError(SyntaxError, format, args...)
	e.File = p.filename
	return e
}

// Atom resolves a token to an integer, else a float, else a symbol
func Atom(token string) Exp {
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return Symbol(token)
}

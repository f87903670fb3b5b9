package flatland

import (
	"math/rand"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// Randomizer draws replacement values for constant node and flow arguments
type Randomizer interface {
	Draw(r *rand.Rand) Value
	Describe() map[string]interface{}
}

// RandomInt draws an integer in [Min, Max)
type RandomInt struct {
	Min, Max int64
}

func (ri RandomInt) Draw(r *rand.Rand) Value {
	if ri.Max <= ri.Min {
		return ri.Min
	}
	return ri.Min + r.Int63n(ri.Max-ri.Min)
}

func (ri RandomInt) Describe() map[string]interface{} {
	return map[string]interface{}{"type": "int", "min": ri.Min, "max": ri.Max}
}

// RandomFloat draws uniformly from [Min, Max)
type RandomFloat struct {
	Min, Max float64
}

func (rf RandomFloat) Draw(r *rand.Rand) Value {
	return rf.Min + r.Float64()*(rf.Max-rf.Min)
}

func (rf RandomFloat) Describe() map[string]interface{} {
	return map[string]interface{}{"type": "float", "min": rf.Min, "max": rf.Max}
}

// RandomBool is true with probability TrueProb
type RandomBool struct {
	TrueProb float64
}

func (rb RandomBool) Draw(r *rand.Rand) Value {
	return r.Float64() < rb.TrueProb
}

func (rb RandomBool) Describe() map[string]interface{} {
	return map[string]interface{}{"type": "bool", "true_prob": rb.TrueProb}
}

// RandomChoice picks one of its choices
type RandomChoice struct {
	Choices []Value
}

func (rc RandomChoice) Draw(r *rand.Rand) Value {
	if len(rc.Choices) == 0 {
		return nil
	}
	return rc.Choices[r.Intn(len(rc.Choices))]
}

func (rc RandomChoice) Describe() map[string]interface{} {
	choices := make([]interface{}, len(rc.Choices))
	for i, c := range rc.Choices {
		choices[i] = graph.Normalize(c)
	}
	return map[string]interface{}{"type": "choice", "choices": choices}
}

// NewRandomizer builds a rule from its kind and evaluated parameters:
// int(min max), float(min max), bool(p) or choice(a b ...)
func NewRandomizer(kind string, params []Value) (Randomizer, error) {
	num := func(i int, def float64) (float64, error) {
		if i >= len(params) {
			return def, nil
		}
		f, ok := graph.ToFloat(params[i])
		if !ok {
			return 0, newError(TypeError, "%s rule: parameter %d is not a number: %s", kind, i, FormatExp(params[i]))
		}
		return f, nil
	}
	switch kind {
	case "int":
		lo, err := num(0, 0)
		if err != nil {
			return nil, err
		}
		hi, err := num(1, 5)
		if err != nil {
			return nil, err
		}
		return RandomInt{Min: int64(lo), Max: int64(hi)}, nil
	case "float":
		lo, err := num(0, 0)
		if err != nil {
			return nil, err
		}
		hi, err := num(1, 1)
		if err != nil {
			return nil, err
		}
		return RandomFloat{Min: lo, Max: hi}, nil
	case "bool":
		p, err := num(0, 0.9)
		if err != nil {
			return nil, err
		}
		return RandomBool{TrueProb: p}, nil
	case "choice":
		if len(params) == 0 {
			return nil, newError(TypeError, "choice rule needs at least one choice")
		}
		return RandomChoice{Choices: append([]Value(nil), params...)}, nil
	default:
		return nil, newError(TypeError, "unknown randomizer %q (expected int, float, bool or choice)", kind)
	}
}

// RandomDetails describes what of a node can be randomized, and how
type RandomDetails struct {
	Function   string                            `json:"function"`
	Properties []string                          `json:"properties"`
	Path       string                            `json:"path,omitempty"`
	Rules      map[string]map[string]interface{} `json:"rules"`
}

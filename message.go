package flatland

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// Value is anything an expression evaluates to
type Value = interface{}

// Message is the payload passed between nodes: the cursor position and
// heading, plus loop counters keyed by resolved loop-instance names.
type Message struct {
	Position    graph.Point
	HasPosition bool
	Theta       float64
	HasTheta    bool
	Counters    map[string]float64
}

// NewMessage creates a message at a position and heading
func NewMessage(x, y, theta float64) *Message {
	return &Message{
		Position:    graph.Point{X: x, Y: y},
		HasPosition: true,
		Theta:       theta,
		HasTheta:    true,
		Counters:    make(map[string]float64),
	}
}

// Copy returns an independent message so sibling branches never share
// counter state
func (m *Message) Copy() *Message {
	c := *m
	c.Counters = make(map[string]float64, len(m.Counters))
	for k, v := range m.Counters {
		c.Counters[k] = v
	}
	return &c
}

// Active reports whether a node should act on the message
func (m *Message) Active() bool {
	return m != nil && m.HasPosition
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	keys := make([]string, 0, len(m.Counters))
	for k := range m.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{fmt.Sprintf("position=(%g %g) theta=%g", m.Position.X, m.Position.Y, m.Theta)}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, m.Counters[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Delivery addresses a message from one node to another within a flow
type Delivery struct {
	From string
	To   string
	Data *Message
}

func (d Delivery) String() string {
	return fmt.Sprintf("(%s -> %s %s)", d.From, d.To, d.Data)
}

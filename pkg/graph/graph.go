// Package graph holds the node-record model shared by the flow interpreter and
// the distance engine.
//
// A NodeInfo is the serialisable description of one drawing or control node:
// its identity, type tag, the scope it was created in, its inbound edges and
// its outbound edges grouped by port. Type-specific parameters (distances,
// angles, loop bounds, endpoints) live in Attrs and are flattened into the
// top-level JSON object on the wire, which keeps the interchange format a plain
// list of per-node dictionaries.
package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Reserved identifiers used by the interpreter when it emits records.
const (
	GlobalScope = "__global__"
	StartID     = "__START__"
	StartName   = "START"
)

// Type tags of records. Line and circle records come from drawing traces, the
// rest from evaluated flows.
const (
	TypeMove   = "move"
	TypeTurn   = "turn"
	TypeLoop   = "loop"
	TypeFlow   = "flow"
	TypeInfo   = "info"
	TypeLine   = "line"
	TypeCircle = "circle"
)

// InternalInfo describes the entry and exit routing of a composite flow record.
type InternalInfo struct {
	Entries []string            `json:"entries"`
	Exits   map[string][]string `json:"exits"`
}

// NodeInfo is one node record.
type NodeInfo struct {
	ID       string
	Type     string
	Name     string
	Scope    string
	Sources  []string
	Targets  map[string][]string
	Internal *InternalInfo
	Attrs    map[string]interface{}
}

// reserved keys that never end up in Attrs
var reservedKeys = map[string]bool{
	"id": true, "type": true, "name": true, "scope": true,
	"sources": true, "targets": true, "__internal__": true,
}

// StructuralKeys are attribute names that describe wiring or bookkeeping
// rather than drawing parameters. Metrics skip them.
var StructuralKeys = map[string]bool{
	"id": true, "name": true, "scope": true, "sources": true,
	"targets": true, "__internal__": true, "filename": true,
}

// NewNodeInfo creates a record with empty adjacency.
func NewNodeInfo(id, typ string) *NodeInfo {
	return &NodeInfo{
		ID:      id,
		Type:    typ,
		Targets: map[string][]string{},
		Attrs:   map[string]interface{}{},
	}
}

// Set stores a normalised attribute value.
func (n *NodeInfo) Set(key string, value interface{}) {
	if n.Attrs == nil {
		n.Attrs = map[string]interface{}{}
	}
	n.Attrs[key] = Normalize(value)
}

// Number returns a numeric attribute.
func (n *NodeInfo) Number(key string) (float64, bool) {
	v, ok := n.Attrs[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// Point returns a 2D point attribute stored either as {"x":..,"y":..} or as a
// two element list.
func (n *NodeInfo) Point(key string) (Point, bool) {
	v, ok := n.Attrs[key]
	if !ok {
		return Point{}, false
	}
	return ToPoint(v)
}

// Ports returns the record's target ports in sorted order.
func (n *NodeInfo) Ports() []string {
	ports := make([]string, 0, len(n.Targets))
	for p := range n.Targets {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	return ports
}

// EdgeType returns the port of n that targets id, or "" when n has no edge to id.
func (n *NodeInfo) EdgeType(id string) string {
	for _, port := range n.Ports() {
		for _, t := range n.Targets[port] {
			if t == id {
				return port
			}
		}
	}
	return ""
}

// Clone returns a deep copy.
func (n *NodeInfo) Clone() *NodeInfo {
	c := &NodeInfo{
		ID:      n.ID,
		Type:    n.Type,
		Name:    n.Name,
		Scope:   n.Scope,
		Sources: append([]string(nil), n.Sources...),
		Targets: make(map[string][]string, len(n.Targets)),
		Attrs:   make(map[string]interface{}, len(n.Attrs)),
	}
	for k, v := range n.Targets {
		c.Targets[k] = append([]string{}, v...)
	}
	for k, v := range n.Attrs {
		c.Attrs[k] = cloneValue(v)
	}
	if n.Internal != nil {
		in := &InternalInfo{
			Entries: append([]string{}, n.Internal.Entries...),
			Exits:   make(map[string][]string, len(n.Internal.Exits)),
		}
		for k, v := range n.Internal.Exits {
			in.Exits[k] = append([]string{}, v...)
		}
		c.Internal = in
	}
	return c
}

// MarshalJSON flattens Attrs into the record object.
func (n *NodeInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(n.Attrs)+7)
	for k, v := range n.Attrs {
		out[k] = v
	}
	out["id"] = n.ID
	out["type"] = n.Type
	targets := n.Targets
	if targets == nil {
		targets = map[string][]string{}
	}
	out["targets"] = targets
	if n.Name != "" {
		out["name"] = n.Name
	}
	if n.Scope != "" {
		out["scope"] = n.Scope
	}
	if n.Sources != nil {
		out["sources"] = n.Sources
	}
	if n.Internal != nil {
		out["__internal__"] = n.Internal
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (n *NodeInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = NodeInfo{Targets: map[string][]string{}, Attrs: map[string]interface{}{}}
	str := func(key string, dst *string) error {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
		}
		return nil
	}
	if err := str("id", &n.ID); err != nil {
		return err
	}
	if err := str("type", &n.Type); err != nil {
		return err
	}
	if err := str("name", &n.Name); err != nil {
		return err
	}
	if err := str("scope", &n.Scope); err != nil {
		return err
	}
	if v, ok := raw["sources"]; ok {
		if err := json.Unmarshal(v, &n.Sources); err != nil {
			return fmt.Errorf("field \"sources\": %w", err)
		}
	}
	if v, ok := raw["targets"]; ok {
		if err := json.Unmarshal(v, &n.Targets); err != nil {
			return fmt.Errorf("field \"targets\": %w", err)
		}
	}
	if v, ok := raw["__internal__"]; ok {
		n.Internal = &InternalInfo{}
		if err := json.Unmarshal(v, n.Internal); err != nil {
			return fmt.Errorf("field \"__internal__\": %w", err)
		}
	}
	for k, v := range raw {
		if reservedKeys[k] {
			continue
		}
		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		n.Attrs[k] = value
	}
	return nil
}

// Graph maps record ids to records.
type Graph map[string]*NodeInfo

// FromList indexes records by id.
func FromList(nodes []*NodeInfo) Graph {
	g := make(Graph, len(nodes))
	for _, n := range nodes {
		g[n.ID] = n
	}
	return g
}

// IDs returns the record ids in sorted order.
func (g Graph) IDs() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep-copies every record.
func (g Graph) Clone() Graph {
	c := make(Graph, len(g))
	for k, v := range g {
		c[k] = v.Clone()
	}
	return c
}

// Point is a 2D coordinate.
type Point struct {
	X float64
	Y float64
}

// Attr returns the point in its attribute form.
func (p Point) Attr() map[string]interface{} {
	return map[string]interface{}{"x": p.X, "y": p.Y}
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Taxicab returns the L1 distance between two points.
func (p Point) Taxicab(q Point) float64 {
	return math.Abs(p.X-q.X) + math.Abs(p.Y-q.Y)
}

// Mid returns the midpoint of p and q.
func (p Point) Mid(q Point) Point {
	return Point{X: 0.5 * (p.X + q.X), Y: 0.5 * (p.Y + q.Y)}
}

// ToPoint converts a point attribute.
func ToPoint(v interface{}) (Point, bool) {
	switch p := v.(type) {
	case Point:
		return p, true
	case map[string]interface{}:
		x, okx := ToFloat(p["x"])
		y, oky := ToFloat(p["y"])
		return Point{X: x, Y: y}, okx && oky
	case []interface{}:
		if len(p) != 2 {
			return Point{}, false
		}
		x, okx := ToFloat(p[0])
		y, oky := ToFloat(p[1])
		return Point{X: x, Y: y}, okx && oky
	}
	return Point{}, false
}

// ToFloat converts any numeric attribute value.
func ToFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// Normalize converts a value to the shapes produced by encoding/json, so that
// records built in memory compare equal to records read back from disk.
func Normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case Point:
		return x.Attr()
	case []float64:
		out := make([]interface{}, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case []string:
		out := make([]interface{}, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	}
	return v
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	}
	return v
}

// Center returns the representative position of a record used by geometric
// metrics: the midpoint of a segment, a circle's centre, or an info record's
// position.
func (n *NodeInfo) Center() (Point, bool) {
	if c, ok := n.Point("center"); ok {
		return c, true
	}
	start, oks := n.Point("start")
	end, oke := n.Point("end")
	if oks && oke {
		return start.Mid(end), true
	}
	if n.Type == TypeInfo {
		return n.Point("position")
	}
	return Point{}, false
}

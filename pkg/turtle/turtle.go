// Package turtle provides the drawing surface the flow interpreter talks to.
//
// The interpreter only needs a handful of primitives (MoveTo, Forward, Left,
// Circle, Position, Heading) plus the UpdateLog hook used for structural
// tracing. Turtle is an in-memory implementation that records every stroke so
// a drawing can be rasterised or compared after the run.
package turtle

import (
	"math"
	"strconv"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// Surface is the drawing contract consumed by nodes.
type Surface interface {
	MoveTo(x, y float64)
	Forward(dist float64)
	Left(angle float64)
	Circle(radius float64)
	Position() (x, y float64)
	Heading() float64
	UpdateLog(kind string, attrs map[string]interface{})
}

// SetHeading points s at theta degrees using only the Surface primitives.
func SetHeading(s Surface, theta float64) {
	s.Left(theta - s.Heading())
}

// Jump moves forward without drawing.
func Jump(s Surface, dist float64) {
	x, y := s.Position()
	rad := s.Heading() * math.Pi / 180
	s.MoveTo(x+dist*math.Cos(rad), y+dist*math.Sin(rad))
}

// Segment is one drawn line.
type Segment struct {
	Start graph.Point
	End   graph.Point
}

// Arc is one drawn circle.
type Arc struct {
	Center graph.Point
	Radius float64
}

// Turtle records strokes on an unbounded plane. Headings are in degrees,
// counter-clockwise from the positive x axis.
type Turtle struct {
	x, y     float64
	heading  float64
	segments []Segment
	arcs     []Arc
	assembly []*graph.NodeInfo
}

// New returns a turtle at the origin facing east.
func New() *Turtle {
	return &Turtle{}
}

// MoveTo relocates without drawing.
func (t *Turtle) MoveTo(x, y float64) {
	t.x, t.y = x, y
}

// Forward draws a segment of length dist along the heading.
func (t *Turtle) Forward(dist float64) {
	start := graph.Point{X: t.x, Y: t.y}
	rad := t.heading * math.Pi / 180
	t.x += dist * math.Cos(rad)
	t.y += dist * math.Sin(rad)
	end := graph.Point{X: t.x, Y: t.y}
	if dist == 0 {
		return
	}
	t.segments = append(t.segments, Segment{Start: start, End: end})
	t.UpdateLog(graph.TypeLine, map[string]interface{}{
		"start": start.Attr(),
		"end":   end.Attr(),
	})
}

// Left turns counter-clockwise by angle degrees.
func (t *Turtle) Left(angle float64) {
	t.heading = math.Mod(t.heading+angle, 360)
	if t.heading < 0 {
		t.heading += 360
	}
}

// Circle draws a full circle of the given radius whose centre lies radius
// units to the turtle's left, like the classic turtle circle. The turtle ends
// where it started.
func (t *Turtle) Circle(radius float64) {
	rad := (t.heading + 90) * math.Pi / 180
	c := graph.Point{X: t.x + radius*math.Cos(rad), Y: t.y + radius*math.Sin(rad)}
	t.arcs = append(t.arcs, Arc{Center: c, Radius: math.Abs(radius)})
	t.UpdateLog(graph.TypeCircle, map[string]interface{}{
		"center": c.Attr(),
		"radius": math.Abs(radius),
		"theta":  360.0,
	})
}

// Position returns the current location.
func (t *Turtle) Position() (float64, float64) {
	return t.x, t.y
}

// Heading returns the current heading in degrees within [0, 360).
func (t *Turtle) Heading() float64 {
	return t.heading
}

// UpdateLog appends a trace record.
func (t *Turtle) UpdateLog(kind string, attrs map[string]interface{}) {
	rec := graph.NewNodeInfo(strconv.Itoa(len(t.assembly)), kind)
	for k, v := range attrs {
		rec.Set(k, v)
	}
	t.assembly = append(t.assembly, rec)
}

// Segments returns every drawn line in drawing order.
func (t *Turtle) Segments() []Segment {
	return t.segments
}

// Arcs returns every drawn circle in drawing order.
func (t *Turtle) Arcs() []Arc {
	return t.arcs
}

// Trace returns the logged records. Line records get a derived centre so that
// geometric metrics can compare them directly.
func (t *Turtle) Trace() []*graph.NodeInfo {
	out := make([]*graph.NodeInfo, 0, len(t.assembly))
	for _, rec := range t.assembly {
		c := rec.Clone()
		if c.Type == graph.TypeLine {
			if mid, ok := c.Center(); ok {
				c.Set("center", mid.Attr())
			}
		}
		out = append(out, c)
	}
	return out
}

// Clear forgets all strokes and resets the cursor.
func (t *Turtle) Clear() {
	*t = Turtle{}
}

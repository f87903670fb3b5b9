package distance

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/flatland-lang/flatland/pkg/graph"
)

// ErrUnknownMetric is returned for a metric name missing from the registry
var ErrUnknownMetric = errors.New("unknown metric")

// Metric scores record pairs. Node returns a weight in [0,1] and must give 1
// for a record compared with itself. Edge, when set, is an extra condition two
// candidate pairs must meet to be compatible.
type Metric struct {
	Name string
	Node func(a, b *graph.NodeInfo, o Options) float64
	Edge func(a1, a2, b1, b2 *graph.NodeInfo, o Options) bool
}

var registry = map[string]Metric{}

// Register adds or replaces a metric
func Register(m Metric) {
	registry[m.Name] = m
}

// Lookup returns a registered metric
func Lookup(name string) (Metric, error) {
	m, ok := registry[name]
	if !ok {
		return Metric{}, fmt.Errorf("%w %q (available: %v)", ErrUnknownMetric, name, Names())
	}
	return m, nil
}

// Names lists the registered metrics
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(Metric{Name: "binary", Node: binaryWeight})
	Register(Metric{Name: "recursive", Node: recursiveWeight})
	Register(Metric{
		Name: "euclidean",
		Node: geometricWeight(euclid, linearFalloff),
		Edge: centreAgreement(euclid),
	})
	Register(Metric{
		Name: "taxicab",
		Node: geometricWeight(taxicab, linearFalloff),
		Edge: centreAgreement(taxicab),
	})
	Register(Metric{
		Name: "inverse2d",
		Node: geometricWeight(euclid, inverseFalloff),
		Edge: centreAgreement(euclid),
	})
	Register(Metric{
		Name: "inverse1d",
		Node: geometricWeight(taxicab, inverseFalloff),
		Edge: centreAgreement(taxicab),
	})
}

// attrKeys returns the sorted union of the comparable keys of two records
func attrKeys(a, b *graph.NodeInfo) []string {
	seen := make(map[string]bool, len(a.Attrs)+len(b.Attrs))
	keys := []string{}
	for _, attrs := range []map[string]interface{}{a.Attrs, b.Attrs} {
		for k := range attrs {
			if graph.StructuralKeys[k] || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// binaryWeight is the fraction of attributes, type included, that are equal
func binaryWeight(a, b *graph.NodeInfo, _ Options) float64 {
	if a.Type != b.Type {
		return 0
	}
	keys := attrKeys(a, b)
	num := 1.0
	for _, k := range keys {
		va, oka := a.Attrs[k]
		vb, okb := b.Attrs[k]
		if oka && okb && equal(va, vb) {
			num++
		}
	}
	return num / float64(len(keys)+1)
}

func equal(a, b interface{}) bool {
	fa, oka := graph.ToFloat(a)
	fb, okb := graph.ToFloat(b)
	if oka && okb {
		return fa == fb
	}
	return reflect.DeepEqual(graph.Normalize(a), graph.Normalize(b))
}

// recursiveWeight averages a structural comparison over every attribute
func recursiveWeight(a, b *graph.NodeInfo, _ Options) float64 {
	if a.Type != b.Type {
		return 0
	}
	keys := attrKeys(a, b)
	num := 1.0
	for _, k := range keys {
		va, oka := a.Attrs[k]
		vb, okb := b.Attrs[k]
		if oka && okb {
			num += compareParts(va, vb)
		}
	}
	return round2(num / float64(len(keys)+1))
}

// compareParts compares two attribute values. Numbers are shifted by the
// canvas half-width so that coordinates in [-128, 128] compare by ratio.
func compareParts(a, b interface{}) float64 {
	if fa, ok := graph.ToFloat(a); ok {
		fb, ok := graph.ToFloat(b)
		if !ok {
			return 0
		}
		hi := math.Max(fa, fb) + 128
		lo := math.Min(fa, fb) + 128
		if hi == lo {
			return 1
		}
		if lo < 0 {
			return numdiff(fa, fb, 128)
		}
		return lo / hi
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return boolWeight(ok && x == y)
	case bool:
		y, ok := b.(bool)
		return boolWeight(ok && x == y)
	case []interface{}:
		y, ok := b.([]interface{})
		if !ok || len(x) != len(y) {
			return 0
		}
		if len(x) == 0 {
			return 1
		}
		sum := 0.0
		for i := range x {
			sum += compareParts(x[i], y[i])
		}
		return sum / float64(len(x))
	case map[string]interface{}:
		y, ok := b.(map[string]interface{})
		if !ok {
			return 0
		}
		if len(x) == 0 && len(y) == 0 {
			return 1
		}
		if len(x) == 0 || len(y) == 0 {
			return 0
		}
		sum := 0.0
		for k, vx := range x {
			if vy, ok := y[k]; ok {
				sum += compareParts(vx, vy)
			}
		}
		return (sum / float64(len(x))) * (sum / float64(len(y)))
	case nil:
		return boolWeight(b == nil)
	}
	return 0
}

func boolWeight(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func numdiff(a, b, norm float64) float64 {
	return math.Max(0, 1-math.Abs(a-b)/norm)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

type pointDist func(p, q graph.Point) float64

func euclid(p, q graph.Point) float64  { return p.Dist(q) }
func taxicab(p, q graph.Point) float64 { return p.Taxicab(q) }

// falloff maps a non-negative difference to a weight in [0,1], 1 at zero
type falloff func(d float64, o Options) float64

func linearFalloff(d float64, o Options) float64 {
	if d <= o.Leniency {
		return 1
	}
	return math.Max(0, 1-(d-o.Leniency)/o.Span)
}

func inverseFalloff(d float64, o Options) float64 {
	return 1 / (1 + d/o.Leniency)
}

// geometricWeight compares records by what they draw. Types without a
// geometric reading fall back to the recursive comparison.
func geometricWeight(dist pointDist, f falloff) func(a, b *graph.NodeInfo, o Options) float64 {
	return func(a, b *graph.NodeInfo, o Options) float64 {
		if a.Type != b.Type {
			return 0
		}
		switch a.Type {
		case graph.TypeLine:
			if w, ok := compareLines(a, b, dist, f, o); ok {
				return w
			}
		case graph.TypeMove:
			if w, ok := compareLines(a, b, dist, f, o); ok {
				return w
			}
			return compareMoves(a, b, f, o)
		case graph.TypeCircle:
			if w, ok := compareCircles(a, b, dist, f, o); ok {
				return w
			}
		case graph.TypeTurn:
			return compareTurns(a, b)
		case graph.TypeLoop:
			return compareLoops(a, b)
		case graph.TypeInfo:
			return compareInfo(a, b, dist, f, o)
		}
		return recursiveWeight(a, b, o)
	}
}

// compareLines weighs endpoint placement, direction and length
func compareLines(a, b *graph.NodeInfo, dist pointDist, f falloff, o Options) (float64, bool) {
	as, ok1 := a.Point("start")
	ae, ok2 := a.Point("end")
	bs, ok3 := b.Point("start")
	be, ok4 := b.Point("end")
	if !(ok1 && ok2 && ok3 && ok4) {
		return 0, false
	}
	placed := math.Min(dist(as, bs)+dist(ae, be), dist(as, be)+dist(ae, bs))
	slope := angleDiff(direction(as, ae), direction(bs, be), 180)
	length := math.Abs(dist(as, ae) - dist(bs, be))

	w := 0.1*f(placed, o) + 0.1*f(slope, o) + 0.1*f(length, o)
	if w != 0 {
		w += 0.7
	}
	return round2(w), true
}

func compareCircles(a, b *graph.NodeInfo, dist pointDist, f falloff, o Options) (float64, bool) {
	ac, ok1 := a.Point("center")
	bc, ok2 := b.Point("center")
	ar, ok3 := a.Number("radius")
	br, ok4 := b.Number("radius")
	if !(ok1 && ok2 && ok3 && ok4) {
		return 0, false
	}
	at, ok := a.Number("theta")
	if !ok {
		at = 360
	}
	bt, ok := b.Number("theta")
	if !ok {
		bt = 360
	}
	w := 0.2*f(dist(ac, bc), o) + 0.1*f(math.Abs(ar-br), o) + 0.1*f(math.Abs(at-bt), o)
	if w != 0 {
		w += 0.6
	}
	return round2(w), true
}

// compareMoves is used for moves that were never executed
func compareMoves(a, b *graph.NodeInfo, f falloff, o Options) float64 {
	ad, _ := a.Number("dist")
	bd, _ := b.Number("dist")
	w := 0.5 * f(math.Abs(ad-bd), o)
	if equal(a.Attrs["penup"], b.Attrs["penup"]) {
		w += 0.5
	}
	return round2(w)
}

func compareTurns(a, b *graph.NodeInfo) float64 {
	at, _ := a.Number("theta")
	bt, _ := b.Number("theta")
	return round2(1 - angleDiff(at, bt, 360)/180)
}

func compareLoops(a, b *graph.NodeInfo) float64 {
	as, _ := a.Number("start")
	bs, _ := b.Number("start")
	ae, _ := a.Number("end")
	be, _ := b.Number("end")
	return round2((numdiff(as, bs, 128) + numdiff(ae, be, 128)) / 2)
}

func compareInfo(a, b *graph.NodeInfo, dist pointDist, f falloff, o Options) float64 {
	w := 0.5 * compareTurns(a, b)
	ap, ok1 := a.Point("position")
	bp, ok2 := b.Point("position")
	if ok1 && ok2 {
		w += 0.5 * f(dist(ap, bp), o)
	} else if !ok1 && !ok2 {
		w += 0.5
	}
	return round2(w)
}

// direction of the segment p->q in degrees
func direction(p, q graph.Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X) * 180 / math.Pi
}

// angleDiff is the smallest difference between two angles modulo period
func angleDiff(a, b, period float64) float64 {
	d := math.Mod(math.Abs(a-b), period)
	return math.Min(d, period-d)
}

// centreAgreement requires the two pairs to be about as far apart in both
// graphs. Records without a centre are not constrained.
func centreAgreement(dist pointDist) func(a1, a2, b1, b2 *graph.NodeInfo, o Options) bool {
	return func(a1, a2, b1, b2 *graph.NodeInfo, o Options) bool {
		ca1, ok1 := a1.Center()
		ca2, ok2 := a2.Center()
		cb1, ok3 := b1.Center()
		cb2, ok4 := b2.Center()
		if !(ok1 && ok2 && ok3 && ok4) {
			return true
		}
		return math.Abs(dist(ca1, ca2)-dist(cb1, cb2)) <= o.Leniency
	}
}

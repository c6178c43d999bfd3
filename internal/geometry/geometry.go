// Package geometry provides the 2D primitives used to reason about floor-plan
// walls and rooms. All coordinates are in millimeters.
//
// Every function is pure. Degenerate inputs (zero-length vectors, empty
// polygons) return a defined value instead of failing; callers reject
// degenerate geometry upstream.
package geometry

import (
	"math"
)

// parallelTolerance bounds the normalized cross product below which two
// segments are treated as parallel.
const parallelTolerance = 0.01

// Point is a 2D coordinate in millimeters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a straight line between two points.
type Segment struct {
	Start Point
	End   Point
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min Point
	Max Point
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.Max.X - b.Min.X }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Max.Y - b.Min.Y }

// Inflate grows the box by d on every side.
func (b Box) Inflate(d float64) Box {
	return Box{
		Min: Point{b.Min.X - d, b.Min.Y - d},
		Max: Point{b.Max.X + d, b.Max.Y + d},
	}
}

// Contains reports whether p lies inside or on the box.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Sub returns the vector a-b.
func (a Point) Sub(b Point) Point { return Point{a.X - b.X, a.Y - b.Y} }

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Length returns the length of the segment.
func (s Segment) Length() float64 { return Distance(s.Start, s.End) }

func dot(a, b Point) float64   { return a.X*b.X + a.Y*b.Y }
func cross(a, b Point) float64 { return a.X*b.Y - a.Y*b.X }
func norm(a Point) float64     { return math.Hypot(a.X, a.Y) }

// PointSegmentDistance returns the shortest distance from p to segment s.
// A zero-length segment degrades to point distance.
func PointSegmentDistance(p Point, s Segment) float64 {
	d := s.End.Sub(s.Start)
	l2 := dot(d, d)
	if l2 == 0 {
		return Distance(p, s.Start)
	}
	t := dot(p.Sub(s.Start), d) / l2
	t = math.Max(0, math.Min(1, t))
	proj := Point{s.Start.X + t*d.X, s.Start.Y + t*d.Y}
	return Distance(p, proj)
}

// SegmentsOverlap reports whether two wall segments overlap or cross within
// tolerance millimeters.
//
// Near-parallel segments are tested for collinearity and then for 1D interval
// overlap along the first segment's direction; other segments are tested by
// intersecting their infinite lines and accepting the intersection only when
// it lies inside both inflated bounding boxes. The inputs are put in a
// canonical order first so the result is symmetric in its arguments.
func SegmentsOverlap(s1, s2 Segment, tolerance float64) bool {
	a, b := canonicalPair(s1, s2)

	da := a.End.Sub(a.Start)
	db := b.End.Sub(b.Start)
	la, lb := norm(da), norm(db)
	if la == 0 || lb == 0 {
		// A degenerate segment is a point: it overlaps when it lies on the other.
		switch {
		case la == 0 && lb == 0:
			return Distance(a.Start, b.Start) <= tolerance
		case la == 0:
			return PointSegmentDistance(a.Start, b) <= tolerance
		default:
			return PointSegmentDistance(b.Start, a) <= tolerance
		}
	}

	ua := Point{da.X / la, da.Y / la}
	ub := Point{db.X / lb, db.Y / lb}

	if math.Abs(cross(ua, ub)) < parallelTolerance {
		if PointSegmentDistance(b.Start, a) > tolerance && PointSegmentDistance(b.End, a) > tolerance &&
			PointSegmentDistance(a.Start, b) > tolerance && PointSegmentDistance(a.End, b) > tolerance {
			return false
		}
		// Project onto a's direction with a.Start as origin.
		p0 := dot(b.Start.Sub(a.Start), ua)
		p1 := dot(b.End.Sub(a.Start), ua)
		lo, hi := math.Min(p0, p1), math.Max(p0, p1)
		overlap := math.Min(la, hi) - math.Max(0, lo)
		return overlap > tolerance
	}

	denom := cross(da, db)
	t := cross(b.Start.Sub(a.Start), db) / denom
	ix := Point{a.Start.X + t*da.X, a.Start.Y + t*da.Y}
	return BoundingBox([]Point{a.Start, a.End}).Inflate(tolerance).Contains(ix) &&
		BoundingBox([]Point{b.Start, b.End}).Inflate(tolerance).Contains(ix)
}

// Parallel reports whether two segments are within the parallel tolerance of
// each other. Zero-length segments are never parallel.
func Parallel(s1, s2 Segment) bool {
	d1, d2 := s1.End.Sub(s1.Start), s2.End.Sub(s2.Start)
	l1, l2 := norm(d1), norm(d2)
	if l1 == 0 || l2 == 0 {
		return false
	}
	return math.Abs(cross(d1, d2)/(l1*l2)) < parallelTolerance
}

// canonicalPair orders two segments deterministically so that pairwise
// predicates do not depend on argument order.
func canonicalPair(s1, s2 Segment) (Segment, Segment) {
	if lessSegment(s2, s1) {
		return s2, s1
	}
	return s1, s2
}

func lessSegment(a, b Segment) bool {
	ka := [4]float64{a.Start.X, a.Start.Y, a.End.X, a.End.Y}
	kb := [4]float64{b.Start.X, b.Start.Y, b.End.X, b.End.Y}
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}

// PolygonArea returns the absolute area enclosed by vertices using the
// shoelace formula. Fewer than three vertices yield 0.
func PolygonArea(vertices []Point) float64 {
	n := len(vertices)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += vertices[i].X*vertices[j].Y - vertices[j].X*vertices[i].Y
	}
	return math.Abs(sum) / 2
}

// PointInPolygon reports whether p lies inside the polygon using ray casting.
func PointInPolygon(p Point, vertices []Point) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			xCross := (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// BoundingBox returns the smallest axis-aligned box containing points.
// An empty input yields the zero Box.
func BoundingBox(points []Point) Box {
	if len(points) == 0 {
		return Box{}
	}
	b := Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// AngleBetween returns the unsigned angle in degrees between vectors a and b.
// A zero-length vector yields 0.
func AngleBetween(a, b Point) float64 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot(a, b) / (na * nb)
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}

// IsRectangleValid reports whether four corners, given in order, form a
// rectangle: every interior angle is within toleranceDeg of 90 degrees.
// Orientation and rotation do not matter.
func IsRectangleValid(corners []Point, toleranceDeg float64) bool {
	if len(corners) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		prev := corners[(i+3)%4]
		cur := corners[i]
		next := corners[(i+1)%4]
		v1, v2 := prev.Sub(cur), next.Sub(cur)
		if norm(v1) == 0 || norm(v2) == 0 {
			return false
		}
		if math.Abs(AngleBetween(v1, v2)-90) > toleranceDeg {
			return false
		}
	}
	return true
}

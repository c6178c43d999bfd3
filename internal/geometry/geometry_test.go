package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seg(x1, y1, x2, y2 float64) Segment {
	return Segment{Start: Point{x1, y1}, End: Point{x2, y2}}
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(Point{0, 0}, Point{3, 4}), 1e-9)
	assert.Equal(t, 0.0, Distance(Point{7, 7}, Point{7, 7}))
}

func TestSegmentsOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b Segment
		want bool
	}{
		{"collinear overlapping", seg(0, 0, 1000, 0), seg(500, 0, 1500, 0), true},
		{"collinear contained", seg(0, 0, 3000, 0), seg(1000, 0, 2000, 0), true},
		{"collinear disjoint", seg(0, 0, 1000, 0), seg(2000, 0, 3000, 0), false},
		{"collinear joint", seg(0, 0, 1000, 0), seg(1000, 0, 2000, 0), false},
		{"nearly collinear overlapping", seg(0, 0, 4000, 0), seg(1000, 3, 5000, 8), true},
		{"parallel offset", seg(0, 0, 1000, 0), seg(0, 500, 1000, 500), false},
		{"crossing", seg(0, 0, 1000, 1000), seg(0, 1000, 1000, 0), true},
		{"non-crossing lines", seg(0, 0, 100, 0), seg(500, -100, 500, 100), false},
		{"crossing within tolerance", seg(0, 0, 1000, 0), seg(1005, -100, 1005, 100), true},
		{"reversed direction overlap", seg(1000, 0, 0, 0), seg(500, 0, 1500, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentsOverlap(tt.a, tt.b, 10))
		})
	}
}

func TestSegmentsOverlapSymmetric(t *testing.T) {
	segs := []Segment{
		seg(0, 0, 1000, 0),
		seg(500, 2, 1500, 9),
		seg(1000, 0, 1000, 1000),
		seg(0, 0, 0, 0),
		seg(-300, 40, 2000, 45),
		seg(999, -1, 2500, 1400),
		seg(1000, 0, 2000, 0),
	}
	for i := range segs {
		for j := range segs {
			for _, tol := range []float64{0, 1, 10, 100} {
				assert.Equal(t, SegmentsOverlap(segs[i], segs[j], tol), SegmentsOverlap(segs[j], segs[i], tol),
					"asymmetric for %v / %v tol=%v", segs[i], segs[j], tol)
			}
		}
	}
}

func TestPolygonArea(t *testing.T) {
	square := []Point{{0, 0}, {4000, 0}, {4000, 3000}, {0, 3000}}
	require.InDelta(t, 12e6, PolygonArea(square), 1e-6)

	reversed := make([]Point, len(square))
	for i, p := range square {
		reversed[len(square)-1-i] = p
	}
	assert.InDelta(t, PolygonArea(square), PolygonArea(reversed), 1e-6)

	for r := 1; r < len(square); r++ {
		rotated := append(append([]Point{}, square[r:]...), square[:r]...)
		assert.InDelta(t, PolygonArea(square), PolygonArea(rotated), 1e-6)
	}

	assert.Equal(t, 0.0, PolygonArea([]Point{{0, 0}, {1, 1}}))
}

func TestPointInPolygon(t *testing.T) {
	l := []Point{{0, 0}, {2000, 0}, {2000, 1000}, {1000, 1000}, {1000, 2000}, {0, 2000}}
	assert.True(t, PointInPolygon(Point{500, 500}, l))
	assert.True(t, PointInPolygon(Point{500, 1500}, l))
	assert.False(t, PointInPolygon(Point{1500, 1500}, l))
	assert.False(t, PointInPolygon(Point{-1, 0}, l))
	assert.False(t, PointInPolygon(Point{0, 0}, nil))
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox([]Point{{3, -1}, {-2, 5}, {0, 0}})
	assert.Equal(t, Point{-2, -1}, b.Min)
	assert.Equal(t, Point{3, 5}, b.Max)
	assert.Equal(t, 5.0, b.Width())
	assert.Equal(t, 6.0, b.Height())
	assert.Equal(t, Box{}, BoundingBox(nil))
}

func TestAngleBetween(t *testing.T) {
	assert.InDelta(t, 90, AngleBetween(Point{1, 0}, Point{0, 1}), 1e-9)
	assert.InDelta(t, 180, AngleBetween(Point{1, 0}, Point{-3, 0}), 1e-9)
	assert.InDelta(t, 45, AngleBetween(Point{1, 0}, Point{1, 1}), 1e-9)
	assert.Equal(t, 0.0, AngleBetween(Point{0, 0}, Point{1, 0}))
}

func TestIsRectangleValid(t *testing.T) {
	axis := []Point{{0, 0}, {4000, 0}, {4000, 3000}, {0, 3000}}
	assert.True(t, IsRectangleValid(axis, 1))

	// Rotated by 30 degrees.
	rot := make([]Point, 4)
	s, c := math.Sin(math.Pi/6), math.Cos(math.Pi/6)
	for i, p := range axis {
		rot[i] = Point{p.X*c - p.Y*s, p.X*s + p.Y*c}
	}
	assert.True(t, IsRectangleValid(rot, 1))

	skewed := []Point{{0, 0}, {4000, 0}, {4500, 3000}, {500, 3000}}
	assert.False(t, IsRectangleValid(skewed, 1))
	assert.True(t, IsRectangleValid(skewed, 10))

	assert.False(t, IsRectangleValid(axis[:3], 1))
	assert.False(t, IsRectangleValid([]Point{{0, 0}, {0, 0}, {1, 1}, {0, 1}}, 1))
}

func TestParallel(t *testing.T) {
	assert.True(t, Parallel(seg(0, 0, 10, 0), seg(5, 5, -20, 5)))
	assert.False(t, Parallel(seg(0, 0, 10, 0), seg(0, 0, 0, 10)))
	assert.False(t, Parallel(seg(0, 0, 0, 0), seg(0, 0, 10, 0)))
}

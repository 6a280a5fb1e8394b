package annotation

import (
	"math"
	"strings"

	"github.com/paulmach/orb"

	"github.com/ironsheep/slide-server/internal/problem"
)

// PointStyle is the marker drawn for point annotations.
type PointStyle string

const (
	PointCross     PointStyle = "CROSS"
	PointCrosshair PointStyle = "CROSSHAIR"
	PointCircle    PointStyle = "CIRCLE"
)

// ParsePointStyle parses a point style. An empty string selects CROSS.
func ParsePointStyle(s string) (PointStyle, error) {
	switch ps := PointStyle(strings.ToUpper(strings.TrimSpace(s))); ps {
	case "":
		return PointCross, nil
	case PointCross, PointCrosshair, PointCircle:
		return ps, nil
	default:
		return "", problem.InvalidParameter("point_cross", s, "CROSS, CROSSHAIR, CIRCLE")
	}
}

// Marker dimensions, in output pixels.
const (
	markerRadius    = 6
	markerArm       = 10
	markerArmGap    = 3
	circleSegments  = 32
	minStrokeBuffer = 0.5
)

// Contour returns the outline of g as line work: the boundary of polygons,
// line strings as they are and a marker for points.
func Contour(g orb.Geometry, style PointStyle) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		return pointMarker(g, style)
	case orb.MultiPoint:
		out := make(orb.Collection, 0, len(g))
		for _, p := range g {
			out = append(out, pointMarker(p, style))
		}
		return out
	case orb.LineString, orb.MultiLineString:
		return g
	case orb.Ring:
		return orb.LineString(g)
	case orb.Polygon:
		return polygonBoundary(g)
	case orb.MultiPolygon:
		var out orb.MultiLineString
		for _, p := range g {
			out = append(out, polygonBoundary(p)...)
		}
		return out
	case orb.Bound:
		return polygonBoundary(g.ToPolygon())
	case orb.Collection:
		out := make(orb.Collection, 0, len(g))
		for _, sub := range g {
			out = append(out, Contour(sub, style))
		}
		return out
	default:
		return g
	}
}

func polygonBoundary(p orb.Polygon) orb.MultiLineString {
	out := make(orb.MultiLineString, len(p))
	for i, r := range p {
		out[i] = orb.LineString(r)
	}
	return out
}

// centerCoord moves a coordinate to the center of its pixel, unless it is
// already in the second half of it.
func centerCoord(v float64) float64 {
	if v-math.Floor(v) < 0.5 {
		return math.Floor(v) + 0.5
	}
	return v
}

func pointMarker(p orb.Point, style PointStyle) orb.Geometry {
	x, y := centerCoord(p[0]), centerCoord(p[1])
	switch style {
	case PointCircle:
		return circle(x, y, markerRadius)
	case PointCrosshair:
		return orb.Collection{
			circle(x, y, markerRadius),
			orb.LineString{{x - markerArm, y}, {x - markerArmGap, y}},
			orb.LineString{{x + markerArmGap, y}, {x + markerArm, y}},
			orb.LineString{{x, y - markerArm}, {x, y - markerArmGap}},
			orb.LineString{{x, y + markerArmGap}, {x, y + markerArm}},
		}
	default:
		return orb.MultiLineString{
			{{x - markerArm, y}, {x + markerArm, y}},
			{{x, y - markerArm}, {x, y + markerArm}},
		}
	}
}

func circle(x, y, radius float64) orb.LineString {
	ls := make(orb.LineString, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		ls[i] = orb.Point{x + radius*math.Cos(a), y + radius*math.Sin(a)}
	}
	ls[circleSegments] = ls[0]
	return ls
}

// StrokeBuffer returns the half-width of a stroke of the given width. Widths
// up to 1 give a one pixel line.
func StrokeBuffer(width int) float64 {
	if width > 1 {
		return 1 + float64(width-1)/10
	}
	return minStrokeBuffer
}

// StretchContour turns line work into the polygons covered by a stroke of the
// given width: one rectangle per segment, extended by the half-width at both
// ends so that joins are covered.
func StretchContour(g orb.Geometry, width int) orb.MultiPolygon {
	buf := StrokeBuffer(width)
	var out orb.MultiPolygon
	forEachSegment(g, func(a, b orb.Point) {
		out = append(out, segmentPolygon(a, b, buf))
	})
	return out
}

func forEachSegment(g orb.Geometry, fn func(a, b orb.Point)) {
	line := func(ls orb.LineString) {
		if len(ls) == 1 {
			fn(ls[0], ls[0])
		}
		for i := 1; i < len(ls); i++ {
			fn(ls[i-1], ls[i])
		}
	}
	switch g := g.(type) {
	case orb.Point:
		fn(g, g)
	case orb.MultiPoint:
		for _, p := range g {
			fn(p, p)
		}
	case orb.LineString:
		line(g)
	case orb.MultiLineString:
		for _, ls := range g {
			line(ls)
		}
	case orb.Ring:
		line(orb.LineString(g))
	case orb.Polygon:
		for _, r := range g {
			line(orb.LineString(r))
		}
	case orb.MultiPolygon:
		for _, p := range g {
			forEachSegment(p, fn)
		}
	case orb.Collection:
		for _, sub := range g {
			forEachSegment(sub, fn)
		}
	case orb.Bound:
		forEachSegment(g.ToPolygon(), fn)
	}
}

// segmentPolygon returns the rectangle of half-width buf around segment ab,
// wound the same way for every segment.
func segmentPolygon(a, b orb.Point, buf float64) orb.Polygon {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		dx, dy, length = 1, 0, 1
	}
	// unit direction scaled by the half-width, and its normal
	ux, uy := dx/length*buf, dy/length*buf
	nx, ny := -uy, ux

	a0 := orb.Point{a[0] - ux, a[1] - uy}
	b0 := orb.Point{b[0] + ux, b[1] + uy}
	ring := orb.Ring{
		{a0[0] + nx, a0[1] + ny},
		{b0[0] + nx, b0[1] + ny},
		{b0[0] - nx, b0[1] - ny},
		{a0[0] - nx, a0[1] - ny},
		{a0[0] + nx, a0[1] + ny},
	}
	if ring.Orientation() != orb.CCW {
		ring.Reverse()
	}
	return orb.Polygon{ring}
}

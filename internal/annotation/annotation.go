// Package annotation turns client annotations (WKT geometries with colors)
// into rasters in output pixel space.
//
// Annotations are used three ways by window responses:
//   - CROP: the filled geometries become an alpha mask of the window
//   - DRAWING: the geometry contours are drawn over the window
//   - MASK: the filled geometries are the response itself
//
// Geometries are modelled with github.com/paulmach/orb and rasterized with
// golang.org/x/image/vector. Coordinates follow the image convention: x grows
// to the right, y grows downward, pixel (i, j) covers [i, i+1) x [j, j+1).
package annotation

import (
	"github.com/paulmach/orb"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// Annotation is a geometry with its rendering attributes. A nil color means
// the geometry is not filled (or not stroked).
type Annotation struct {
	Geometry    orb.Geometry
	Fill        *imaging.RGBColor
	Stroke      *imaging.RGBColor
	StrokeWidth int

	customBounds *orb.Bound
}

// New returns an annotation. When envelope is positive and g is a point, the
// annotation bounds are the square of side envelope centered on the point.
func New(g orb.Geometry, fill, stroke *imaging.RGBColor, strokeWidth int, envelope float64) *Annotation {
	a := &Annotation{Geometry: g, Fill: fill, Stroke: stroke, StrokeWidth: strokeWidth}
	if pt, ok := g.(orb.Point); ok && envelope > 0 {
		half := envelope / 2
		a.customBounds = &orb.Bound{
			Min: orb.Point{pt[0] - half, pt[1] - half},
			Max: orb.Point{pt[0] + half, pt[1] + half},
		}
	}
	return a
}

func isGray(c *imaging.RGBColor) bool {
	return c == nil || c.IsGrayscale()
}

// IsFillGrayscale reports whether the fill color is achromatic or unset.
func (a *Annotation) IsFillGrayscale() bool { return isGray(a.Fill) }

// IsStrokeGrayscale reports whether the stroke color is achromatic or unset.
func (a *Annotation) IsStrokeGrayscale() bool { return isGray(a.Stroke) }

// IsGrayscale reports whether both colors are achromatic or unset.
func (a *Annotation) IsGrayscale() bool {
	return a.IsFillGrayscale() && a.IsStrokeGrayscale()
}

// Bounds returns the bounding box of the annotation, or its point envelope.
func (a *Annotation) Bounds() orb.Bound {
	if a.customBounds != nil {
		return *a.customBounds
	}
	return a.Geometry.Bound()
}

// Region returns the bounds as a region in base tier pixel space.
func (a *Annotation) Region() pyramid.Region {
	return boundRegion(a.Bounds())
}

// Equal compares geometries and rendering attributes.
func (a *Annotation) Equal(other *Annotation) bool {
	return other != nil &&
		orb.Equal(a.Geometry, other.Geometry) &&
		sameColor(a.Fill, other.Fill) &&
		sameColor(a.Stroke, other.Stroke) &&
		a.StrokeWidth == other.StrokeWidth
}

func sameColor(a, b *imaging.RGBColor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boundRegion(b orb.Bound) pyramid.Region {
	return pyramid.NewRegion(b.Min[1], b.Min[0], b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
}

// List is an ordered set of annotations. Later annotations are painted over
// earlier ones.
type List []*Annotation

// IsFillGrayscale reports whether every fill color is achromatic.
func (l List) IsFillGrayscale() bool {
	for _, a := range l {
		if !a.IsFillGrayscale() {
			return false
		}
	}
	return true
}

// IsStrokeGrayscale reports whether every stroke color is achromatic.
func (l List) IsStrokeGrayscale() bool {
	for _, a := range l {
		if !a.IsStrokeGrayscale() {
			return false
		}
	}
	return true
}

// IsGrayscale reports whether every color of the list is achromatic.
func (l List) IsGrayscale() bool {
	return l.IsFillGrayscale() && l.IsStrokeGrayscale()
}

// Bounds returns the union of the annotation bounds. An empty list has an
// empty bound at the origin.
func (l List) Bounds() orb.Bound {
	if len(l) == 0 {
		return orb.Bound{}
	}
	b := l[0].Bounds()
	for _, a := range l[1:] {
		b = b.Union(a.Bounds())
	}
	return b
}

// Region returns the union of the annotation bounds as a region.
func (l List) Region() pyramid.Region {
	return boundRegion(l.Bounds())
}

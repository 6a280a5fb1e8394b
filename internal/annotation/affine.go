package annotation

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/ironsheep/slide-server/internal/pyramid"
)

// Affine is a 2D affine transform [a, b, d, e, xoff, yoff]:
//
//	x' = a*x + b*y + xoff
//	y' = d*x + e*y + yoff
type Affine [6]float64

// Identity leaves coordinates unchanged.
var Identity = Affine{1, 0, 0, 1, 0, 0}

// Apply transforms a single point.
func (m Affine) Apply(p orb.Point) orb.Point {
	return orb.Point{
		m[0]*p[0] + m[1]*p[1] + m[4],
		m[2]*p[0] + m[3]*p[1] + m[5],
	}
}

// Transform returns a transformed copy of g.
func (m Affine) Transform(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), m.Apply)
}

// CropAffineMatrix maps annotation coordinates to the pixel space of an
// outWidth x outHeight rendering of inRegion.
func CropAffineMatrix(annotRegion, inRegion pyramid.Region, outWidth, outHeight int) Affine {
	rx := float64(outWidth) / inRegion.Width
	ry := float64(outHeight) / inRegion.Height
	tx := -annotRegion.Left*rx + (annotRegion.Left-inRegion.Left)*rx
	ty := -annotRegion.Top*ry + (annotRegion.Top-inRegion.Top)*ry
	return Affine{rx, 0, 0, ry, tx, ty}
}

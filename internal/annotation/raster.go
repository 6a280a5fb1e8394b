package annotation

import (
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"

	"github.com/ironsheep/slide-server/internal/imaging"
)

// Minimum antialiased coverage (out of 255) for a pixel to belong to a
// shape. Rasters are written without antialiasing so that colors in masks and
// drawings stay exact. Strokes use a lower threshold so that a one pixel line
// lying on a pixel border is still drawn.
const (
	fillCoverage   = 128
	strokeCoverage = 64
)

// MaskRaster paints the filled annotations of list, transformed by affine,
// on a width x height raster with background 0. The raster is 8-bit gray when
// every fill color is achromatic, 8-bit RGB otherwise. Annotations without a
// fill color are skipped.
func MaskRaster(list List, affine Affine, width, height int) (*imaging.Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("failed to rasterize annotations: invalid size %dx%d", width, height)
	}
	channels := 3
	if list.IsFillGrayscale() {
		channels = 1
	}
	out := imaging.NewRaster(width, height, channels, 8)
	for _, a := range list {
		if a.Fill == nil {
			continue
		}
		shape := fillShape(affine.Transform(a.Geometry))
		paint(out, shape, a.Fill.Samples(channels), fillCoverage)
	}
	return out, nil
}

// DrawingRaster paints the contours of the stroked annotations of list,
// transformed by affine, on a width x height raster filled with
// BackgroundColor(list). The raster is 8-bit gray when every stroke color is
// achromatic, 8-bit RGB otherwise.
func DrawingRaster(list List, affine Affine, width, height int, style PointStyle) (*imaging.Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("failed to rasterize annotations: invalid size %dx%d", width, height)
	}
	bg, err := BackgroundColor(list)
	if err != nil {
		return nil, err
	}
	channels := 3
	if list.IsStrokeGrayscale() {
		channels = 1
	}

	out := imaging.NewRaster(width, height, channels, 8)
	samples := bg.Samples(channels)
	for i := 0; i < width*height; i++ {
		copy(out.Pix[i*channels:], samples)
	}

	for _, a := range list {
		if a.Stroke == nil {
			continue
		}
		contour := Contour(affine.Transform(a.Geometry), style)
		paint(out, StretchContour(contour, a.StrokeWidth), a.Stroke.Samples(channels), strokeCoverage)
	}
	return out, nil
}

// BackgroundColor returns a color absent from the strokes of list: the first
// free gray level when every stroke is achromatic, the first free 0xRRGGBB
// value otherwise.
func BackgroundColor(list List) (imaging.RGBColor, error) {
	var used []int
	if list.IsStrokeGrayscale() {
		for _, a := range list {
			if a.Stroke != nil {
				used = append(used, int(a.Stroke.R))
			}
		}
		v, err := imaging.FindFirstAvailableInt(used, 0, 256)
		if err != nil {
			return imaging.RGBColor{}, fmt.Errorf("failed to choose a drawing background: %w", err)
		}
		return imaging.RGBColor{R: uint8(v), G: uint8(v), B: uint8(v)}, nil
	}

	for _, a := range list {
		if a.Stroke != nil {
			used = append(used, RGB2Int(*a.Stroke))
		}
	}
	v, err := imaging.FindFirstAvailableInt(used, 0, 1<<24)
	if err != nil {
		return imaging.RGBColor{}, fmt.Errorf("failed to choose a drawing background: %w", err)
	}
	return Int2RGB(v), nil
}

// RGB2Int packs a color as 0xRRGGBB.
func RGB2Int(c imaging.RGBColor) int { return c.Int() }

// Int2RGB unpacks a 0xRRGGBB integer.
func Int2RGB(v int) imaging.RGBColor { return imaging.RGBColorFromInt(v) }

// fillShape returns the area covered by g: polygons as they are, a one pixel
// wide line for line work and the pixel holding each point.
func fillShape(g orb.Geometry) orb.MultiPolygon {
	switch g := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}
	case orb.MultiPolygon:
		return g
	case orb.Ring:
		return orb.MultiPolygon{{g}}
	case orb.Bound:
		return orb.MultiPolygon{g.ToPolygon()}
	case orb.Point:
		return orb.MultiPolygon{pixelSquare(g)}
	case orb.MultiPoint:
		out := make(orb.MultiPolygon, 0, len(g))
		for _, p := range g {
			out = append(out, pixelSquare(p))
		}
		return out
	case orb.LineString, orb.MultiLineString:
		return StretchContour(g, 1)
	case orb.Collection:
		var out orb.MultiPolygon
		for _, sub := range g {
			out = append(out, fillShape(sub)...)
		}
		return out
	default:
		return nil
	}
}

func pixelSquare(p orb.Point) orb.Polygon {
	x, y := math.Floor(p[0]), math.Floor(p[1])
	return orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + 1, y + 1}}.ToPolygon()
}

// paint sets samples on every pixel of r covered by shape at least up to
// threshold.
func paint(r *imaging.Raster, shape orb.MultiPolygon, samples []uint32, threshold uint8) {
	if len(shape) == 0 {
		return
	}
	z := vector.NewRasterizer(r.Width, r.Height)
	for _, p := range shape {
		for i, ring := range p {
			// shells counter-clockwise, holes clockwise, so that holes cancel
			want := orb.CCW
			if i > 0 {
				want = orb.CW
			}
			addRing(z, ring, ring.Orientation() != want)
		}
	}

	coverage := image.NewAlpha(image.Rect(0, 0, r.Width, r.Height))
	z.Draw(coverage, coverage.Bounds(), image.Opaque, image.Point{})

	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if coverage.AlphaAt(x, y).A < threshold {
				continue
			}
			copy(r.Pix[(y*r.Width+x)*r.Channels:], samples)
		}
	}
}

func addRing(z *vector.Rasterizer, ring orb.Ring, reverse bool) {
	n := len(ring)
	if n < 3 {
		return
	}
	at := func(i int) orb.Point {
		if reverse {
			return ring[n-1-i]
		}
		return ring[i]
	}
	p := at(0)
	z.MoveTo(float32(p[0]), float32(p[1]))
	for i := 1; i < n; i++ {
		p = at(i)
		z.LineTo(float32(p[0]), float32(p[1]))
	}
	z.ClosePath()
}

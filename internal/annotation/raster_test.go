package annotation

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

func TestCropAffineMatrix(t *testing.T) {
	annot := pyramid.NewRegion(20, 10, 20, 20)
	got := CropAffineMatrix(annot, annot, 10, 10)
	assert.Equal(t, Affine{0.5, 0, 0, 0.5, -5, -10}, got)

	in := pyramid.NewRegion(0, 0, 100, 50)
	got = CropAffineMatrix(annot, in, 200, 200)
	assert.Equal(t, Affine{2, 0, 0, 4, 0, 0}, got)
}

func TestAffine_Transform(t *testing.T) {
	g := box(10, 20, 30, 40)
	m := Affine{0.5, 0, 0, 0.5, -5, -10}

	out := m.Transform(g)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}, out.Bound())
	// the input is left untouched
	assert.Equal(t, orb.Bound{Min: orb.Point{10, 20}, Max: orb.Point{30, 40}}, g.Bound())

	assert.Equal(t, orb.Point{3, 4}, Identity.Apply(orb.Point{3, 4}))
}

func TestContour(t *testing.T) {
	line := orb.LineString{{0, 0}, {5, 5}}
	assert.Equal(t, line, Contour(line, PointCross))

	boundary, ok := Contour(box(0, 0, 2, 2), PointCross).(orb.MultiLineString)
	require.True(t, ok)
	require.Len(t, boundary, 1)
	assert.Len(t, boundary[0], 5)

	cross, ok := Contour(orb.Point{10, 10.7}, PointCross).(orb.MultiLineString)
	require.True(t, ok)
	// x snaps to the pixel center, y is already in the second half
	assert.Equal(t, orb.LineString{{0.5, 10.7}, {20.5, 10.7}}, cross[0])

	crosshair, ok := Contour(orb.Point{10, 10}, PointCrosshair).(orb.Collection)
	require.True(t, ok)
	assert.Len(t, crosshair, 5)

	circle, ok := Contour(orb.Point{10, 10}, PointCircle).(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, circle[0], circle[len(circle)-1])
	assert.InDelta(t, 16.5, circle[0][0], 1e-9)
}

func TestStrokeBuffer(t *testing.T) {
	assert.Equal(t, 0.5, StrokeBuffer(0))
	assert.Equal(t, 0.5, StrokeBuffer(1))
	assert.Equal(t, 2.0, StrokeBuffer(11))
}

func TestStretchContour(t *testing.T) {
	polys := StretchContour(orb.LineString{{0, 0}, {10, 0}, {10, 10}}, 1)
	require.Len(t, polys, 2)
	assert.Equal(t, orb.Bound{Min: orb.Point{-0.5, -0.5}, Max: orb.Point{10.5, 0.5}}, polys[0].Bound())
	for _, p := range polys {
		assert.Equal(t, orb.CCW, p[0].Orientation())
	}
}

func TestMaskRaster(t *testing.T) {
	list := List{New(box(2, 2, 6, 6), color(imaging.White), nil, 0, 0)}

	r, err := MaskRaster(list, Identity, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Channels)
	assert.Equal(t, 8, r.BitDepth)
	assert.Equal(t, uint32(255), r.At(2, 2, 0))
	assert.Equal(t, uint32(255), r.At(5, 5, 0))
	assert.Equal(t, uint32(0), r.At(6, 6, 0))
	assert.Equal(t, uint32(0), r.At(0, 0, 0))
}

func TestMaskRaster_Color(t *testing.T) {
	list := List{
		New(box(0, 0, 10, 10), color(imaging.White), nil, 0, 0),
		New(box(0, 0, 5, 10), color(imaging.Red), nil, 0, 0),
	}

	r, err := MaskRaster(list, Identity, 10, 10)
	require.NoError(t, err)
	require.Equal(t, 3, r.Channels)
	assert.Equal(t, []uint32{255, 0, 0}, []uint32{r.At(2, 5, 0), r.At(2, 5, 1), r.At(2, 5, 2)})
	assert.Equal(t, []uint32{255, 255, 255}, []uint32{r.At(7, 5, 0), r.At(7, 5, 1), r.At(7, 5, 2)})
}

func TestMaskRaster_Hole(t *testing.T) {
	// both rings wound the same way: the hole must still be empty
	poly := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{3, 3}, {7, 3}, {7, 7}, {3, 7}, {3, 3}},
	}
	r, err := MaskRaster(List{New(poly, color(imaging.White), nil, 0, 0)}, Identity, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(255), r.At(1, 1, 0))
	assert.Equal(t, uint32(0), r.At(5, 5, 0))
}

func TestMaskRaster_Affine(t *testing.T) {
	list := List{New(box(10, 20, 30, 40), color(imaging.White), nil, 0, 0)}
	region := list.Region()

	r, err := MaskRaster(list, CropAffineMatrix(region, region, 10, 10), 10, 10)
	require.NoError(t, err)
	for i, v := range r.Pix {
		if v != 255 {
			t.Fatalf("sample %d: got %d, want 255", i, v)
		}
	}

	_, err = MaskRaster(list, Identity, 0, 10)
	assert.Error(t, err)
}

func TestDrawingRaster(t *testing.T) {
	line := orb.LineString{{1, 5.5}, {8, 5.5}}

	r, err := DrawingRaster(List{New(line, nil, color(imaging.White), 1, 0)}, Identity, 10, 10, PointCross)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Channels)
	assert.Equal(t, uint32(255), r.At(4, 5, 0))
	assert.Equal(t, uint32(0), r.At(4, 2, 0))

	r, err = DrawingRaster(List{New(line, nil, color(imaging.Red), 1, 0)}, Identity, 10, 10, PointCross)
	require.NoError(t, err)
	require.Equal(t, 3, r.Channels)
	assert.Equal(t, uint32(255), r.At(4, 5, 0))
	assert.Equal(t, uint32(0), r.At(4, 5, 1))
	assert.Equal(t, uint32(0), r.At(4, 2, 0))
}

func TestDrawingRaster_Background(t *testing.T) {
	// black strokes push the background to the next free gray level
	poly := box(2, 2, 8, 8)
	r, err := DrawingRaster(List{New(poly, nil, color(imaging.Black), 1, 0)}, Identity, 10, 10, PointCross)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), r.At(5, 5, 0))
	assert.Equal(t, uint32(0), r.At(2, 5, 0))
}

func TestDrawingRaster_Points(t *testing.T) {
	tests := []struct {
		style  PointStyle
		drawn  [2]int
		inside [2]int
	}{
		{PointCross, [2]int{15, 10}, [2]int{15, 15}},
		{PointCircle, [2]int{16, 10}, [2]int{10, 10}},
		{PointCrosshair, [2]int{18, 10}, [2]int{11, 10}},
	}

	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			list := List{New(orb.Point{10, 10}, nil, color(imaging.White), 1, 0)}
			r, err := DrawingRaster(list, Identity, 21, 21, tt.style)
			require.NoError(t, err)
			assert.Equal(t, uint32(255), r.At(tt.drawn[0], tt.drawn[1], 0))
			assert.Equal(t, uint32(0), r.At(tt.inside[0], tt.inside[1], 0))
		})
	}
}

func TestBackgroundColor(t *testing.T) {
	gray := List{
		New(orb.Point{0, 0}, nil, color(imaging.Black), 1, 0),
		New(orb.Point{0, 0}, nil, color(imaging.RGBColor{R: 1, G: 1, B: 1}), 1, 0),
		New(orb.Point{0, 0}, nil, nil, 1, 0),
	}
	bg, err := BackgroundColor(gray)
	require.NoError(t, err)
	assert.Equal(t, imaging.RGBColor{R: 2, G: 2, B: 2}, bg)

	rgb := List{
		New(orb.Point{0, 0}, nil, color(imaging.Black), 1, 0),
		New(orb.Point{0, 0}, nil, color(imaging.Blue), 1, 0),
	}
	bg, err = BackgroundColor(rgb)
	require.NoError(t, err)
	assert.Equal(t, imaging.RGBColor{R: 0, G: 0, B: 1}, bg)

	assert.Equal(t, 0xFF0000, RGB2Int(imaging.Red))
	assert.Equal(t, imaging.Lime, Int2RGB(0x00FF00))
}

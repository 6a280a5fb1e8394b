package response

import (
	"context"
	"fmt"

	"github.com/ironsheep/slide-server/internal/annotation"
	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/pyramid"
	"github.com/ironsheep/slide-server/internal/slide"
)

// Thumbnail renders a whole image at low resolution, always on 8 bits.
type Thumbnail struct {
	processedView
}

// NewThumbnail returns a thumbnail of img. The output bit depth is forced to
// 8 and the colorspace to AUTO.
func NewThumbnail(img slide.Image, out Output, proc Processing) *Thumbnail {
	out.BitDepth = 8
	proc.Colorspace = imaging.ColorspaceAuto
	t := &Thumbnail{processedView{img: img, out: out, proc: proc}}
	t.read = func(ctx context.Context, read, z, tp int) (*imaging.Raster, error) {
		return img.ReadThumb(ctx, out.Width, out.Height, read, z, tp)
	}
	return t
}

// Buffer returns the encoded thumbnail.
func (t *Thumbnail) Buffer(ctx context.Context) ([]byte, error) {
	return encode(ctx, t.Process, t.out)
}

// Resized renders a whole image at any size, bit depth and colorspace.
type Resized struct {
	processedView
}

// NewResized returns a resized rendering of img.
func NewResized(img slide.Image, out Output, proc Processing) *Resized {
	r := &Resized{processedView{img: img, out: out, proc: proc}}
	r.read = func(ctx context.Context, read, z, t int) (*imaging.Raster, error) {
		return img.ReadThumb(ctx, out.Width, out.Height, read, z, t)
	}
	return r
}

// Buffer returns the encoded image.
func (r *Resized) Buffer(ctx context.Context) ([]byte, error) {
	return encode(ctx, r.Process, r.out)
}

// Tile renders one pyramid tile, always on 8 bits.
type Tile struct {
	processedView
	tile pyramid.Tile
}

// NewTile returns the rendering of tile. The output bit depth is forced to
// 8 and the colorspace to AUTO.
func NewTile(img slide.Image, tile pyramid.Tile, out Output, proc Processing) *Tile {
	out.BitDepth = 8
	proc.Colorspace = imaging.ColorspaceAuto
	t := &Tile{processedView: processedView{img: img, out: out, proc: proc}, tile: tile}
	t.read = func(ctx context.Context, read, z, tp int) (*imaging.Raster, error) {
		return img.ReadTile(ctx, tile, read, z, tp)
	}
	return t
}

// Buffer returns the encoded tile.
func (t *Tile) Buffer(ctx context.Context) ([]byte, error) {
	return encode(ctx, t.Process, t.out)
}

// AnnotationStyle tells how annotations are rendered on a window.
type AnnotationStyle struct {
	Mode annotation.Mode
	// BackgroundTransparency is the opacity removed, in percent, from pixels
	// outside the annotations in CROP mode.
	BackgroundTransparency int
	PointStyle             annotation.PointStyle
}

// Window renders a region of an image, optionally cropped to or drawn over
// with annotations.
type Window struct {
	processedView
	region pyramid.Region

	annotations annotation.List
	affine      annotation.Affine
	style       AnnotationStyle
}

// NewWindow returns the rendering of region. Annotations are given in image
// coordinates and mapped to the output with affine; they are ignored when
// list is empty or the mode is MASK.
//
// A single channel window drawn over with colored strokes in AUTO colorspace
// is rendered in COLOR.
func NewWindow(img slide.Image, region pyramid.Region, out Output, proc Processing,
	list annotation.List, affine annotation.Affine, style AnnotationStyle) *Window {
	w := &Window{
		processedView: processedView{img: img, out: out, proc: proc},
		region:        region,
		annotations:   list,
		affine:        affine,
		style:         style,
	}
	w.read = func(ctx context.Context, read, z, t int) (*imaging.Raster, error) {
		return img.ReadWindow(ctx, region, out.Width, out.Height, read, z, t)
	}
	isAuto := proc.Colorspace == imaging.ColorspaceAuto || proc.Colorspace == ""
	w.forceColor = isAuto && style.Mode == annotation.ModeDrawing &&
		len(proc.Channels) == 1 && len(list) > 0 && !list.IsStrokeGrayscale()
	return w
}

// Region returns the rendered region.
func (w *Window) Region() pyramid.Region { return w.region }

// Process renders the window and applies annotations.
func (w *Window) Process(ctx context.Context) (*imaging.Raster, error) {
	r, err := w.processedView.Process(ctx)
	if err != nil {
		return nil, err
	}
	if len(w.annotations) == 0 {
		return r, nil
	}

	var op imaging.ImageOp
	switch w.style.Mode {
	case annotation.ModeCrop:
		mask, err := annotation.MaskRaster(w.annotations, w.affine, w.out.Width, w.out.Height)
		if err != nil {
			return nil, err
		}
		op = imaging.MaskOp(mask, w.style.BackgroundTransparency)
	case annotation.ModeDrawing:
		if op, err = w.drawOp(r.Channels); err != nil {
			return nil, err
		}
	default:
		return r, nil
	}
	return op.Apply(r)
}

// drawOp superposes the annotation strokes on a raster of the given channel
// count. On a gray raster the strokes are converted to gray before the
// drawing is rasterized, so its background is a gray level no stroke uses.
func (w *Window) drawOp(channels int) (imaging.ImageOp, error) {
	list := w.annotations
	if channels == 1 && !list.IsStrokeGrayscale() {
		var err error
		if list, err = grayStrokes(list); err != nil {
			return nil, err
		}
	}
	draw, err := annotation.DrawingRaster(list, w.affine, w.out.Width, w.out.Height, w.style.PointStyle)
	if err != nil {
		return nil, err
	}
	bg, err := annotation.BackgroundColor(list)
	if err != nil {
		return nil, err
	}
	if draw.Channels != channels {
		cs := imaging.ColorspaceColor
		if channels == 1 {
			cs = imaging.ColorspaceGray
		}
		if draw, err = imaging.ConvertColorspace(draw, cs); err != nil {
			return nil, err
		}
		if bg, err = convertColor(bg, cs); err != nil {
			return nil, err
		}
	}
	return imaging.DrawOp(draw, bg), nil
}

// grayStrokes returns a copy of list with every stroke color converted to
// its gray level.
func grayStrokes(list annotation.List) (annotation.List, error) {
	out := make(annotation.List, len(list))
	for i, a := range list {
		c := *a
		if a.Stroke != nil {
			g, err := convertColor(*a.Stroke, imaging.ColorspaceGray)
			if err != nil {
				return nil, err
			}
			c.Stroke = &g
		}
		out[i] = &c
	}
	return out, nil
}

// convertColor converts c the way ConvertColorspace converts a pixel.
func convertColor(c imaging.RGBColor, cs imaging.Colorspace) (imaging.RGBColor, error) {
	px := imaging.NewRaster(1, 1, 3, 8)
	copy(px.Pix, c.Samples(3))
	out, err := imaging.ConvertColorspace(px, cs)
	if err != nil {
		return imaging.RGBColor{}, err
	}
	if out.Channels == 1 {
		v := uint8(out.Pix[0])
		return imaging.RGBColor{R: v, G: v, B: v}, nil
	}
	return imaging.RGBColor{R: uint8(out.Pix[0]), G: uint8(out.Pix[1]), B: uint8(out.Pix[2])}, nil
}

// Buffer returns the encoded window.
func (w *Window) Buffer(ctx context.Context) ([]byte, error) {
	return encode(ctx, w.Process, w.out)
}

// Mask renders filled annotations on a black background.
type Mask struct {
	annotations annotation.List
	affine      annotation.Affine
	out         Output
}

// NewMask returns the mask of list mapped to the output with affine.
func NewMask(list annotation.List, affine annotation.Affine, out Output) *Mask {
	return &Mask{annotations: list, affine: affine, out: out}
}

// Process rasterizes the mask.
func (m *Mask) Process(ctx context.Context) (*imaging.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return annotation.MaskRaster(m.annotations, m.affine, m.out.Width, m.out.Height)
}

// Buffer returns the encoded mask.
func (m *Mask) Buffer(ctx context.Context) ([]byte, error) {
	return encode(ctx, m.Process, m.out)
}

// Drawing renders annotation strokes on a background color absent from them.
type Drawing struct {
	annotations annotation.List
	affine      annotation.Affine
	style       annotation.PointStyle
	out         Output
}

// NewDrawing returns the drawing of list mapped to the output with affine.
func NewDrawing(list annotation.List, affine annotation.Affine, style annotation.PointStyle, out Output) *Drawing {
	return &Drawing{annotations: list, affine: affine, style: style, out: out}
}

// Process rasterizes the drawing.
func (d *Drawing) Process(ctx context.Context) (*imaging.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return annotation.DrawingRaster(d.annotations, d.affine, d.out.Width, d.out.Height, d.style)
}

// Buffer returns the encoded drawing.
func (d *Drawing) Buffer(ctx context.Context) ([]byte, error) {
	return encode(ctx, d.Process, d.out)
}

// ColormapRepresentation renders a colormap as a horizontal gradient.
type ColormapRepresentation struct {
	colormap imaging.Colormap
	out      Output
}

// NewColormapRepresentation returns the representation of m.
func NewColormapRepresentation(m imaging.Colormap, out Output) *ColormapRepresentation {
	return &ColormapRepresentation{colormap: m, out: out}
}

// Process renders the gradient.
func (c *ColormapRepresentation) Process(ctx context.Context) (*imaging.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.out.Width <= 0 || c.out.Height <= 0 {
		return nil, fmt.Errorf("invalid colormap representation size %dx%d", c.out.Width, c.out.Height)
	}
	return imaging.FromImage(imaging.ColormapImage(c.colormap, c.out.Width, c.out.Height)), nil
}

// Buffer returns the encoded gradient.
func (c *ColormapRepresentation) Buffer(ctx context.Context) ([]byte, error) {
	return encode(ctx, c.Process, c.out)
}

var (
	_ Response = (*Thumbnail)(nil)
	_ Response = (*Resized)(nil)
	_ Response = (*Tile)(nil)
	_ Response = (*Window)(nil)
	_ Response = (*Mask)(nil)
	_ Response = (*Drawing)(nil)
	_ Response = (*ColormapRepresentation)(nil)
)

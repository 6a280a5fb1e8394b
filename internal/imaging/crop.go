package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Crop extracts a rectangular region from a raster.
//
// Parameters:
//   - r: The source raster.
//   - rect: The region to keep, in raster coordinates. Min is inclusive and
//     Max exclusive.
//
// Returns:
//   - *Raster: A new raster of rect's size.
//   - error: Non-nil if rect is empty or not fully inside the raster.
func Crop(r *Raster, rect image.Rectangle) (*Raster, error) {
	bounds := image.Rect(0, 0, r.Width, r.Height)
	if rect.Empty() {
		return nil, fmt.Errorf("invalid crop region %v", rect)
	}
	if !rect.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside raster bounds %v", rect, bounds)
	}

	out := NewRaster(rect.Dx(), rect.Dy(), r.Channels, r.BitDepth)
	rowLen := rect.Dx() * r.Channels
	for y := 0; y < rect.Dy(); y++ {
		src := ((rect.Min.Y+y)*r.Width + rect.Min.X) * r.Channels
		copy(out.Pix[y*rowLen:(y+1)*rowLen], r.Pix[src:src+rowLen])
	}
	return out, nil
}

// Resize scales a raster to exactly width x height.
//
// 8-bit rasters are resampled with a Lanczos filter. Deeper rasters keep
// their depth and are resampled with a Catmull-Rom filter. A raster that
// already has the requested size is returned unchanged.
//
// Returns an error if width or height is not positive.
func Resize(r *Raster, width, height int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize dimensions %dx%d", width, height)
	}
	if r.Width == width && r.Height == height {
		return r, nil
	}

	if r.BitDepth <= 8 {
		resized := imaging.Resize(r.Image(), width, height, imaging.Lanczos)
		return fromNRGBA(resized, r.Channels), nil
	}

	rect := image.Rect(0, 0, width, height)
	var dst draw.Image
	if r.Channels == 1 {
		dst = image.NewGray16(rect)
	} else {
		dst = image.NewNRGBA64(rect)
	}
	src := r.Image()
	draw.CatmullRom.Scale(dst, rect, src, src.Bounds(), draw.Src, nil)
	return matchChannels(FromImage(dst), r.Channels)
}

// matchChannels reshapes a raster decoded from a standard image to the
// channel layout of the raster it was produced from.
func matchChannels(r *Raster, channels int) (*Raster, error) {
	switch {
	case r.Channels == channels:
		return r, nil
	case channels == 2 && r.Channels >= 3:
		if r.Channels == 3 {
			out := NewRaster(r.Width, r.Height, 2, r.BitDepth)
			for i := 0; i < r.Width*r.Height; i++ {
				out.Pix[2*i], out.Pix[2*i+1] = r.Pix[3*i], r.Max()
			}
			return out, nil
		}
		return ExtractChannels(r, 0, 3)
	case channels == 4 && r.Channels == 3:
		out := NewRaster(r.Width, r.Height, 4, r.BitDepth)
		for i := 0; i < r.Width*r.Height; i++ {
			copy(out.Pix[4*i:4*i+3], r.Pix[3*i:3*i+3])
			out.Pix[4*i+3] = r.Max()
		}
		return out, nil
	case channels == 3 && r.Channels == 4:
		return ExtractChannels(r, 0, 1, 2)
	}
	return nil, fmt.Errorf("failed to reshape %s raster to %d channels", r, channels)
}

package imaging

import (
	"fmt"

	"github.com/anthonynsimon/bild/effect"
)

// SobelFilter highlights edges of a gray raster.
//
// The output is an 8-bit gray raster where each sample is the Sobel gradient
// magnitude, saturated at 255. Uniform areas give 0.
//
// Rasters deeper than 8 bits are scaled down to 8 bits first: the gradient
// is computed by bild, which works on 8-bit images.
type SobelFilter struct{}

func (SobelFilter) ID() string                     { return "SOBEL" }
func (SobelFilter) Name() string                   { return "Sobel" }
func (SobelFilter) Description() string            { return "Sobel edge detection" }
func (SobelFilter) Type() FilterType               { return FilterEdge }
func (SobelFilter) RequireHistogram() bool         { return false }
func (SobelFilter) RequiredColorspace() Colorspace { return ColorspaceGray }

// Apply computes the gradient magnitude of r.
func (SobelFilter) Apply(r *Raster, _ *Histogram) (*Raster, error) {
	if r.Channels != 1 {
		return nil, fmt.Errorf("failed to apply SOBEL filter: %s raster is not gray", r)
	}
	return fromRGBA(effect.Sobel(To8Bit(r).Image()), 1), nil
}

// To8Bit rescales the samples of r to 8 bits. 8-bit rasters are returned
// unchanged.
func To8Bit(r *Raster) *Raster {
	if r.BitDepth <= 8 {
		return r
	}
	out := NewRaster(r.Width, r.Height, r.Channels, 8)
	scale := 255 / float64(r.Max())
	for i, v := range r.Pix {
		out.Pix[i] = uint32(float64(v)*scale + 0.5)
	}
	return out
}

package imaging

import (
	"fmt"
	"sort"

	"github.com/anthonynsimon/bild/effect"
)

// ImageOp transforms a raster into a new raster.
type ImageOp interface {
	Apply(r *Raster) (*Raster, error)
}

// OpFunc adapts a function to ImageOp.
type OpFunc func(r *Raster) (*Raster, error)

// Apply calls f(r).
func (f OpFunc) Apply(r *Raster) (*Raster, error) { return f(r) }

// Chain applies ops in order.
type Chain []ImageOp

// Apply runs every operation of the chain, stopping on the first error.
func (c Chain) Apply(r *Raster) (*Raster, error) {
	var err error
	for _, op := range c {
		if r, err = op.Apply(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ResizeOp resizes to width x height.
func ResizeOp(width, height int) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) { return Resize(r, width, height) })
}

// ExtractOp keeps the given channels, in order. A single channel raster
// passes through.
func ExtractOp(channels ...int) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) {
		if r.Channels == 1 {
			return r, nil
		}
		return ExtractChannels(r, channels...)
	})
}

// LUTOp applies lut. A nil table is the identity.
func LUTOp(lut *LUT) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) {
		if lut == nil {
			return r, nil
		}
		return ApplyLUT(r, lut)
	})
}

// StackedLUTOp applies one table per channel. No table is the identity.
func StackedLUTOp(luts []*LUT) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) {
		if len(luts) == 0 {
			return r, nil
		}
		return ApplyStackedLUT(r, luts)
	})
}

// ColorspaceOp converts to cs.
func ColorspaceOp(cs Colorspace) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) { return ConvertColorspace(r, cs) })
}

// FilterOp applies f with the image histogram hist, nil when f does not
// need it.
func FilterOp(f Filter, hist *Histogram) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) {
		out, err := f.Apply(r, hist)
		if err != nil {
			return nil, fmt.Errorf("failed to apply %s filter: %w", f.ID(), err)
		}
		return out, nil
	})
}

// MaskOp makes the pixels outside mask transparent.
func MaskOp(mask *Raster, bgTransparency int) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) { return TransparencyMask(r, mask, bgTransparency) })
}

// DrawOp superposes draw, whose background color is background.
func DrawOp(draw *Raster, background RGBColor) ImageOp {
	return OpFunc(func(r *Raster) (*Raster, error) { return DrawOn(r, draw, background) })
}

// Reduction combines several samples into one.
type Reduction string

const (
	ReduceAdd Reduction = "ADD"
	ReduceMax Reduction = "MAX"
	ReduceMin Reduction = "MIN"
	ReduceAvg Reduction = "AVG"
	ReduceMed Reduction = "MED"
)

// ExtractChannels returns a raster made of the given channels of r, in order.
func ExtractChannels(r *Raster, channels ...int) (*Raster, error) {
	for _, c := range channels {
		if c < 0 || c >= r.Channels {
			return nil, fmt.Errorf("failed to extract channel %d from %s raster", c, r)
		}
	}
	out := NewRaster(r.Width, r.Height, len(channels), r.BitDepth)
	n := r.Width * r.Height
	for i := 0; i < n; i++ {
		src := r.Pix[i*r.Channels:]
		dst := out.Pix[i*out.Channels:]
		for k, c := range channels {
			dst[k] = src[c]
		}
	}
	return out, nil
}

// ApplyLUT maps r through lut.
//
// A single-channel raster gives lut.Components channels. A multi-channel
// raster requires a single-component table which is applied to every
// channel.
func ApplyLUT(r *Raster, lut *LUT) (*Raster, error) {
	if r.Channels != 1 && lut.Components != 1 {
		return nil, fmt.Errorf("failed to apply %d-component LUT to %s raster", lut.Components, r)
	}
	n := r.Width * r.Height
	if r.Channels == 1 {
		out := NewRaster(r.Width, r.Height, lut.Components, lut.BitDepth)
		for i := 0; i < n; i++ {
			copy(out.Pix[i*lut.Components:(i+1)*lut.Components], lut.Lookup(r.Pix[i]))
		}
		return out, nil
	}
	out := NewRaster(r.Width, r.Height, r.Channels, lut.BitDepth)
	for i, v := range r.Pix {
		out.Pix[i] = lut.Lookup(v)[0]
	}
	return out, nil
}

// ApplyStackedLUT maps channel c of r through luts[c].
func ApplyStackedLUT(r *Raster, luts []*LUT) (*Raster, error) {
	if len(luts) != r.Channels {
		return nil, fmt.Errorf("failed to apply %d stacked LUTs to %s raster", len(luts), r)
	}
	out := NewRaster(r.Width, r.Height, r.Channels, luts[0].BitDepth)
	for i, v := range r.Pix {
		out.Pix[i] = luts[i%r.Channels].Lookup(v)[0]
	}
	return out, nil
}

// ReduceChannels merges rasters of the same size sample by sample.
//
// Single-channel rasters are broadcast to the channel count of the widest
// input. ADD saturates at the maximum of the output depth, which is the
// deepest input depth. A single raster is returned unchanged.
func ReduceChannels(rasters []*Raster, reduction Reduction) (*Raster, error) {
	if len(rasters) == 0 {
		return nil, fmt.Errorf("failed to reduce channels: no raster")
	}
	if len(rasters) == 1 {
		return rasters[0], nil
	}

	w, h := rasters[0].Width, rasters[0].Height
	channels, bits := 1, 8
	for _, r := range rasters {
		if r.Width != w || r.Height != h {
			return nil, fmt.Errorf("failed to reduce channels: %s and %s rasters differ in size", rasters[0], r)
		}
		if r.Channels != 1 && channels != 1 && r.Channels != channels {
			return nil, fmt.Errorf("failed to reduce channels: cannot broadcast %d and %d channels", channels, r.Channels)
		}
		channels = max(channels, r.Channels)
		bits = max(bits, r.BitDepth)
	}

	out := NewRaster(w, h, channels, bits)
	limit := uint64(out.Max())
	values := make([]uint32, len(rasters))
	for p := 0; p < w*h; p++ {
		for c := 0; c < channels; c++ {
			for k, r := range rasters {
				if r.Channels == 1 {
					values[k] = r.Pix[p]
				} else {
					values[k] = r.Pix[p*r.Channels+c]
				}
			}
			out.Pix[p*channels+c] = reduce(values, reduction, limit)
		}
	}
	return out, nil
}

func reduce(values []uint32, reduction Reduction, limit uint64) uint32 {
	switch reduction {
	case ReduceMax:
		m := values[0]
		for _, v := range values[1:] {
			m = max(m, v)
		}
		return m
	case ReduceMin:
		m := values[0]
		for _, v := range values[1:] {
			m = min(m, v)
		}
		return m
	case ReduceAvg:
		var sum uint64
		for _, v := range values {
			sum += uint64(v)
		}
		return uint32(sum / uint64(len(values)))
	case ReduceMed:
		sorted := append([]uint32(nil), values...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid]
		}
		return uint32((uint64(sorted[mid-1]) + uint64(sorted[mid])) / 2)
	default:
		var sum uint64
		for _, v := range values {
			sum += uint64(v)
		}
		return uint32(min(sum, limit))
	}
}

// Luminance weights used for gray conversions.
const (
	lumR = 0.2125
	lumG = 0.7154
	lumB = 0.0721
)

// ConvertColorspace converts r to the given colorspace.
//
// GRAY keeps a multi-channel raster's luminance computed on its first three
// channels; transparency is dropped. COLOR replicates a single channel
// three times. Rasters already in the target colorspace and AUTO are
// returned unchanged.
func ConvertColorspace(r *Raster, cs Colorspace) (*Raster, error) {
	switch cs {
	case ColorspaceGray:
		if r.Channels == 1 {
			return r, nil
		}
		if r.Channels < 3 {
			return ExtractChannels(r, 0)
		}
		if r.BitDepth <= 8 {
			rgb, err := ExtractChannels(r, 0, 1, 2)
			if err != nil {
				return nil, err
			}
			return fromRGBA(effect.GrayscaleWithWeights(rgb.Image(), lumR, lumG, lumB), 1), nil
		}
		out := NewRaster(r.Width, r.Height, 1, r.BitDepth)
		for i := range out.Pix {
			p := r.Pix[i*r.Channels:]
			out.Pix[i] = uint32(lumR*float64(p[0]) + lumG*float64(p[1]) + lumB*float64(p[2]) + 0.5)
		}
		return out, nil
	case ColorspaceColor:
		if r.Channels != 1 {
			return r, nil
		}
		out := NewRaster(r.Width, r.Height, 3, r.BitDepth)
		for i, v := range r.Pix {
			out.Pix[3*i], out.Pix[3*i+1], out.Pix[3*i+2] = v, v, v
		}
		return out, nil
	default:
		return r, nil
	}
}

// TransparencyMask appends an alpha channel to r. Pixels where mask is
// non-zero are opaque; the others get an opacity of 100-bgTransparency
// percent.
func TransparencyMask(r, mask *Raster, bgTransparency int) (*Raster, error) {
	if mask.Width != r.Width || mask.Height != r.Height {
		return nil, fmt.Errorf("failed to apply %s mask to %s raster", mask, r)
	}
	mi := r.Max()
	bg := uint32((1 - float64(bgTransparency)/100) * float64(mi))

	out := NewRaster(r.Width, r.Height, r.Channels+1, r.BitDepth)
	for i := 0; i < r.Width*r.Height; i++ {
		copy(out.Pix[i*out.Channels:], r.Pix[i*r.Channels:(i+1)*r.Channels])
		a := bg
		if mask.Pix[i*mask.Channels] > 0 {
			a = mi
		}
		out.Pix[i*out.Channels+r.Channels] = a
	}
	return out, nil
}

// DrawOn superposes an 8-bit drawing on r. Drawing pixels equal to background
// on every channel let the image show through. The drawing is rescaled to the
// depth of r and must have the same channel count.
func DrawOn(r, draw *Raster, background RGBColor) (*Raster, error) {
	if draw.Width != r.Width || draw.Height != r.Height || draw.Channels != r.Channels {
		return nil, fmt.Errorf("failed to draw %s on %s raster", draw, r)
	}
	bg := background.Samples(draw.Channels)
	scale := float64(r.Max()) / 255

	out := r.Clone()
	for i := 0; i < r.Width*r.Height; i++ {
		px := draw.Pix[i*draw.Channels : (i+1)*draw.Channels]
		same := true
		for c, v := range px {
			if v != bg[c] {
				same = false
				break
			}
		}
		if same {
			continue
		}
		for c, v := range px {
			if r.BitDepth > 8 {
				v = uint32(float64(v) * scale)
			}
			out.Pix[i*r.Channels+c] = v
		}
	}
	return out, nil
}

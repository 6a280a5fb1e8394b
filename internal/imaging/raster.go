package imaging

import (
	"fmt"
	"image"
	"image/color"
)

// Colorspace is the color model requested for an output.
type Colorspace string

const (
	ColorspaceAuto  Colorspace = "AUTO"
	ColorspaceGray  Colorspace = "GRAY"
	ColorspaceColor Colorspace = "COLOR"
)

// Raster is a decoded multi-channel image with integer samples.
//
// Samples are stored row-major with channels interleaved: the value of
// channel c at (x, y) is Pix[(y*Width+x)*Channels+c]. BitDepth is the storage
// depth of the samples (8, 16 or 32); every sample fits in BitDepth bits.
//
// Operations never modify a Raster they receive; they return a new one.
type Raster struct {
	Width    int
	Height   int
	Channels int
	BitDepth int
	Pix      []uint32
}

// NewRaster allocates a zeroed raster.
func NewRaster(width, height, channels, bitDepth int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		BitDepth: DTypeBits(bitDepth),
		Pix:      make([]uint32, width*height*channels),
	}
}

// MaxIntensity returns 2^bits - 1.
func MaxIntensity(bits int) uint32 {
	if bits >= 32 {
		return 1<<32 - 1
	}
	return 1<<uint(bits) - 1
}

// DTypeBits returns the storage depth needed for samples of the given
// significant bit depth: 8, 16 or 32.
func DTypeBits(bits int) int {
	switch {
	case bits <= 8:
		return 8
	case bits <= 16:
		return 16
	default:
		return 32
	}
}

// Max returns the largest value a sample of r can hold.
func (r *Raster) Max() uint32 {
	return MaxIntensity(r.BitDepth)
}

// At returns the sample of channel c at (x, y).
func (r *Raster) At(x, y, c int) uint32 {
	return r.Pix[(y*r.Width+x)*r.Channels+c]
}

// Set sets the sample of channel c at (x, y).
func (r *Raster) Set(x, y, c int, v uint32) {
	r.Pix[(y*r.Width+x)*r.Channels+c] = v
}

// Clone returns a deep copy of r.
func (r *Raster) Clone() *Raster {
	out := *r
	out.Pix = make([]uint32, len(r.Pix))
	copy(out.Pix, r.Pix)
	return &out
}

func (r *Raster) String() string {
	return fmt.Sprintf("%dx%dx%d@%d", r.Width, r.Height, r.Channels, r.BitDepth)
}

// FromImage converts a decoded image to a raster.
//
// Gray images give one channel; every other image gives three channels
// (RGB), or four when the image carries transparency. 16-bit images keep
// their depth.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		r := NewRaster(w, h, 1, 8)
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for x, v := range row {
				r.Pix[y*w+x] = uint32(v)
			}
		}
		return r
	case *image.Gray16:
		r := NewRaster(w, h, 1, 16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Pix[y*w+x] = uint32(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r
	}

	sixteen := is16Bit(img)
	alpha := !isOpaque(img)
	channels := 3
	if alpha {
		channels = 4
	}
	bits := 8
	if sixteen {
		bits = 16
	}
	r := NewRaster(w, h, channels, bits)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * channels
			if sixteen {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				r.Pix[i], r.Pix[i+1], r.Pix[i+2] = uint32(c.R), uint32(c.G), uint32(c.B)
				if alpha {
					r.Pix[i+3] = uint32(c.A)
				}
				continue
			}
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			r.Pix[i], r.Pix[i+1], r.Pix[i+2] = uint32(c.R), uint32(c.G), uint32(c.B)
			if alpha {
				r.Pix[i+3] = uint32(c.A)
			}
		}
	}
	return r
}

func is16Bit(img image.Image) bool {
	switch img.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		return true
	}
	return false
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}

// Image converts the raster to a standard image for encoding or for
// library-backed operations.
//
// One channel gives *image.Gray or *image.Gray16. Two channels are read as
// gray plus alpha, three as RGB and four as RGBA, giving *image.NRGBA or
// *image.NRGBA64. Rasters deeper than 16 bits are truncated to their 16 low
// bits.
func (r *Raster) Image() image.Image {
	rect := image.Rect(0, 0, r.Width, r.Height)
	n := r.Width * r.Height
	eight := r.BitDepth <= 8

	if r.Channels == 1 {
		if eight {
			g := image.NewGray(rect)
			for i := 0; i < n; i++ {
				g.Pix[i] = uint8(r.Pix[i])
			}
			return g
		}
		g := image.NewGray16(rect)
		for i := 0; i < n; i++ {
			v := clamp16(r.Pix[i])
			g.Pix[2*i], g.Pix[2*i+1] = uint8(v>>8), uint8(v)
		}
		return g
	}

	rgba := func(i int) (uint32, uint32, uint32, uint32) {
		p := r.Pix[i*r.Channels : (i+1)*r.Channels]
		max := r.Max()
		switch r.Channels {
		case 2:
			return p[0], p[0], p[0], p[1]
		case 3:
			return p[0], p[1], p[2], max
		default:
			return p[0], p[1], p[2], p[3]
		}
	}

	if eight {
		out := image.NewNRGBA(rect)
		for i := 0; i < n; i++ {
			cr, cg, cb, ca := rgba(i)
			out.Pix[4*i], out.Pix[4*i+1], out.Pix[4*i+2], out.Pix[4*i+3] =
				uint8(cr), uint8(cg), uint8(cb), uint8(ca)
		}
		return out
	}
	out := image.NewNRGBA64(rect)
	for i := 0; i < n; i++ {
		cr, cg, cb, ca := rgba(i)
		for k, v := range [4]uint32{cr, cg, cb, ca} {
			v = clamp16(v)
			out.Pix[8*i+2*k], out.Pix[8*i+2*k+1] = uint8(v>>8), uint8(v)
		}
	}
	return out
}

func clamp16(v uint32) uint32 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return v
}

// fromNRGBA reads the first channels of an 8-bit NRGBA image produced by a
// library operation back into a raster.
func fromNRGBA(img *image.NRGBA, channels int) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	r := NewRaster(w, h, channels, 8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.Pix[y*img.Stride+4*x : y*img.Stride+4*x+4]
			i := (y*w + x) * channels
			switch channels {
			case 1:
				r.Pix[i] = uint32(p[0])
			case 2:
				r.Pix[i], r.Pix[i+1] = uint32(p[0]), uint32(p[3])
			default:
				for c := 0; c < channels; c++ {
					r.Pix[i+c] = uint32(p[c])
				}
			}
		}
	}
	return r
}

// fromRGBA is fromNRGBA for the premultiplied results of bild effects, which
// are always opaque here.
func fromRGBA(img *image.RGBA, channels int) *Raster {
	n := &image.NRGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
	return fromNRGBA(n, channels)
}

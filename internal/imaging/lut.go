package imaging

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LUT is a lookup table mapping an input intensity to Components output
// samples. Entry i occupies Values[i*Components : (i+1)*Components].
type LUT struct {
	Size       int
	Components int
	BitDepth   int
	Values     []uint32
}

// Lookup returns the output samples for intensity v. Intensities beyond the
// table map to its last entry.
func (l *LUT) Lookup(v uint32) []uint32 {
	i := int(v)
	if i >= l.Size {
		i = l.Size - 1
	}
	return l.Values[i*l.Components : (i+1)*l.Components]
}

// DefaultLUT returns the identity table replicated over components.
func DefaultLUT(size, bitDepth, components int) *LUT {
	l := &LUT{Size: size, Components: components, BitDepth: DTypeBits(bitDepth),
		Values: make([]uint32, size*components)}
	for i := 0; i < size; i++ {
		for c := 0; c < components; c++ {
			l.Values[i*components+c] = uint32(i)
		}
	}
	return l
}

// CombineLUT returns the table applying a then b, that is b[a[i]]. a must
// have a single component.
func CombineLUT(a, b *LUT) *LUT {
	out := &LUT{Size: a.Size, Components: b.Components, BitDepth: b.BitDepth,
		Values: make([]uint32, a.Size*b.Components)}
	for i := 0; i < a.Size; i++ {
		copy(out.Values[i*b.Components:(i+1)*b.Components], b.Lookup(a.Values[i*a.Components]))
	}
	return out
}

// MathParams describes the intensity transforms folded into a math LUT.
type MathParams struct {
	// InputMax is the largest input intensity, 2^significant_bits - 1.
	InputMax int
	// OutputBitDepth is the bit depth of the produced values.
	OutputBitDepth int

	MinIntensities []int
	MaxIntensities []int
	Gammas         []float64
	Log            bool
}

// IntensityProcessing reports whether any channel is windowed.
func (p MathParams) IntensityProcessing() bool {
	outMax := int(MaxIntensity(p.OutputBitDepth))
	for _, v := range p.MinIntensities {
		if v != 0 {
			return true
		}
	}
	for _, v := range p.MaxIntensities {
		if v != outMax {
			return true
		}
	}
	return false
}

// GammaProcessing reports whether any gamma differs from 1.
func (p MathParams) GammaProcessing() bool {
	for _, g := range p.Gammas {
		if g != 1 {
			return true
		}
	}
	return false
}

// Required reports whether a math LUT has to be built at all.
func (p MathParams) Required() bool {
	return p.IntensityProcessing() || p.GammaProcessing() || p.Log
}

// MathLUT builds one single-component table per channel folding intensity
// windowing, gamma and log compression.
//
// Values are computed in [0, 1]: a linear ramp over [min, max) saturating at
// 1 from max on (or the identity ramp over the whole input range when no
// channel is windowed), raised to gamma, optionally compressed with
// log1p(x)/log1p(1), then scaled to the output maximum and truncated.
//
// Returns nil when no processing is required.
func MathLUT(p MathParams, channels int) []*LUT {
	if !p.Required() {
		return nil
	}

	size := p.InputMax + 1
	outMax := float64(MaxIntensity(p.OutputBitDepth))
	windowed := p.IntensityProcessing()
	gamma := p.GammaProcessing()

	luts := make([]*LUT, channels)
	ramp := make([]float64, size)
	for c := 0; c < channels; c++ {
		for i := range ramp {
			ramp[i] = 0
		}
		if windowed {
			lo := min(max(at(p.MinIntensities, c, 0), 0), size)
			hi := min(max(at(p.MaxIntensities, c, size-1), 0), size)
			if hi > lo {
				linspace(ramp[lo:hi])
			}
			for i := hi; i < size; i++ {
				ramp[i] = 1
			}
		} else {
			linspace(ramp)
		}

		if gamma {
			g := atf(p.Gammas, c, 1)
			for i, v := range ramp {
				ramp[i] = math.Pow(v, g)
			}
		}
		if p.Log {
			for i, v := range ramp {
				ramp[i] = math.Log1p(v) / math.Log1p(1)
			}
		}

		floats.Scale(outMax, ramp)
		l := &LUT{Size: size, Components: 1, BitDepth: DTypeBits(p.OutputBitDepth),
			Values: make([]uint32, size)}
		for i, v := range ramp {
			l.Values[i] = uint32(math.Min(math.Max(v, 0), outMax))
		}
		luts[c] = l
	}
	return luts
}

// linspace fills dst with evenly spaced values from 0 to 1, both included.
func linspace(dst []float64) {
	switch len(dst) {
	case 0:
	case 1:
		dst[0] = 0
	default:
		floats.Span(dst, 0, 1)
		dst[len(dst)-1] = 1
	}
}

func at(s []int, i, def int) int {
	if i < len(s) {
		return s[i]
	}
	return def
}

func atf(s []float64, i int, def float64) float64 {
	if i < len(s) {
		return s[i]
	}
	return def
}

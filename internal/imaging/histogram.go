package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/histogram"
)

// Histogram holds one intensity histogram per channel. Counts are floats
// because colorspace conversion weighs channels.
type Histogram struct {
	Counts [][]float64
}

// NewHistogram allocates a zeroed histogram.
func NewHistogram(channels, bins int) *Histogram {
	h := &Histogram{Counts: make([][]float64, channels)}
	for c := range h.Counts {
		h.Counts[c] = make([]float64, bins)
	}
	return h
}

// Channels returns the number of channels.
func (h *Histogram) Channels() int { return len(h.Counts) }

// Bins returns the number of bins per channel.
func (h *Histogram) Bins() int {
	if len(h.Counts) == 0 {
		return 0
	}
	return len(h.Counts[0])
}

// RasterHistogram counts the samples of every channel of r over
// 2^bits bins. Samples above the last bin are counted in it.
func RasterHistogram(r *Raster, bits int) *Histogram {
	bins := int(MaxIntensity(bits)) + 1
	h := NewHistogram(r.Channels, bins)
	for i, v := range r.Pix {
		b := min(int(v), bins-1)
		h.Counts[i%r.Channels][b]++
	}
	return h
}

// ImageHistogram computes the 8-bit histogram of a decoded image using
// bild. Gray images give one channel, others three.
func ImageHistogram(img image.Image) *Histogram {
	hist := histogram.NewRGBAHistogram(img)
	gray := false
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		gray = true
	}
	if gray {
		h := NewHistogram(1, 256)
		for i, v := range hist.R.Bins {
			h.Counts[0][i] = float64(v)
		}
		return h
	}
	h := NewHistogram(3, 256)
	for i := 0; i < 256; i++ {
		h.Counts[0][i] = float64(hist.R.Bins[i])
		h.Counts[1][i] = float64(hist.G.Bins[i])
		h.Counts[2][i] = float64(hist.B.Bins[i])
	}
	return h
}

// RescaleHist folds consecutive bins so that the histogram has 2^bits bins.
// A histogram that already has that many bins or fewer is returned as is.
func RescaleHist(h *Histogram, bits int) (*Histogram, error) {
	target := int(MaxIntensity(bits)) + 1
	bins := h.Bins()
	if bins <= target {
		return h, nil
	}
	if bins%target != 0 {
		return nil, fmt.Errorf("failed to rescale %d bins to %d", bins, target)
	}
	step := bins / target
	out := NewHistogram(h.Channels(), target)
	for c, counts := range h.Counts {
		for i, v := range counts {
			out.Counts[c][i/step] += v
		}
	}
	return out, nil
}

// ColorspaceHist converts h to the given colorspace. GRAY weighs the first
// three channels by luminance; COLOR replicates a single channel.
func ColorspaceHist(h *Histogram, cs Colorspace) *Histogram {
	n := h.Channels()
	switch {
	case cs == ColorspaceGray && n != 1:
		weights := []float64{lumR, lumG, lumB}
		out := NewHistogram(1, h.Bins())
		for c := 0; c < min(n, 3); c++ {
			for i, v := range h.Counts[c] {
				out.Counts[0][i] += v * weights[c]
			}
		}
		return out
	case cs == ColorspaceColor && n != 3:
		out := &Histogram{Counts: make([][]float64, 3)}
		for c := range out.Counts {
			out.Counts[c] = append([]float64(nil), h.Counts[0]...)
		}
		return out
	default:
		return h
	}
}

// Sum adds h and other channel by channel. Both must have the same shape.
func (h *Histogram) Sum(other *Histogram) error {
	if h.Channels() != other.Channels() || h.Bins() != other.Bins() {
		return fmt.Errorf("failed to sum histograms of shapes %dx%d and %dx%d",
			h.Channels(), h.Bins(), other.Channels(), other.Bins())
	}
	for c := range h.Counts {
		for i, v := range other.Counts[c] {
			h.Counts[c][i] += v
		}
	}
	return nil
}

// Bounds returns the first and last non-empty bins of channel c. ok is false
// for an empty histogram.
func (h *Histogram) Bounds(c int) (lo, hi int, ok bool) {
	counts := h.Counts[c]
	lo, hi = -1, -1
	for i, v := range counts {
		if v > 0 {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return lo, hi, lo >= 0
}

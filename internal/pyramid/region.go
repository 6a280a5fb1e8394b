package pyramid

import (
	"fmt"
	"math"
)

// RegionEpsilon is the absolute tolerance used by Region.Equal.
const RegionEpsilon = 1e-9

// Region is a rectangular viewport expressed in the pixel space of a tier
// whose downsample factor (relative to the base tier) is stored alongside.
//
// Right and bottom are derived from left/top and width/height, never stored.
// A Region is never mutated: Scale, ToInt and Clip return copies.
type Region struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	WidthDownsample  float64 `json:"width_downsample"`
	HeightDownsample float64 `json:"height_downsample"`
}

// NewRegion returns a region in base tier pixel space (downsample 1).
func NewRegion(top, left, width, height float64) Region {
	return Region{Top: top, Left: left, Width: width, Height: height,
		WidthDownsample: 1, HeightDownsample: 1}
}

// NewDownsampledRegion returns a region expressed at the given downsample.
// Non-positive downsamples are replaced by 1.
func NewDownsampledRegion(top, left, width, height, wds, hds float64) Region {
	if wds <= 0 {
		wds = 1
	}
	if hds <= 0 {
		hds = 1
	}
	return Region{Top: top, Left: left, Width: width, Height: height,
		WidthDownsample: wds, HeightDownsample: hds}
}

func (r Region) Right() float64  { return r.Left + r.Width }
func (r Region) Bottom() float64 { return r.Top + r.Height }

// TrueLeft, TrueTop, TrueWidth and TrueHeight return the extents in base tier
// coordinates, whatever tier the region currently addresses.
func (r Region) TrueLeft() float64   { return r.Left * r.WidthDownsample }
func (r Region) TrueTop() float64    { return r.Top * r.HeightDownsample }
func (r Region) TrueWidth() float64  { return r.Width * r.WidthDownsample }
func (r Region) TrueHeight() float64 { return r.Height * r.HeightDownsample }

// IsEmpty reports a degenerate region, typically produced by clipping an
// out-of-bounds request.
func (r Region) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// IsNormalized reports whether all extents lie in [0, 1].
func (r Region) IsNormalized() bool {
	for _, v := range []float64{r.Top, r.Left, r.Width, r.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Scale re-expresses the region at another downsample. Width and height
// downsamples are independent, which supports non-square binning.
func (r Region) Scale(wds, hds float64) Region {
	wr := r.WidthDownsample / wds
	hr := r.HeightDownsample / hds
	return Region{
		Top:              r.Top * hr,
		Left:             r.Left * wr,
		Width:            r.Width * wr,
		Height:           r.Height * hr,
		WidthDownsample:  wds,
		HeightDownsample: hds,
	}
}

// ToInt snaps the region to integer pixels. Top and left are floored, width
// and height ceiled, so the integer region always covers the original one.
func (r Region) ToInt() Region {
	return Region{
		Top:              math.Floor(r.Top),
		Left:             math.Floor(r.Left),
		Width:            math.Ceil(r.Width),
		Height:           math.Ceil(r.Height),
		WidthDownsample:  r.WidthDownsample,
		HeightDownsample: r.HeightDownsample,
	}
}

// Clip clamps the region inside [0, maxWidth] x [0, maxHeight].
func (r Region) Clip(maxWidth, maxHeight float64) Region {
	c := r
	c.Top = math.Max(0, c.Top)
	c.Left = math.Max(0, c.Left)
	c.Width = math.Max(0, math.Min(c.Width, maxWidth-c.Left))
	c.Height = math.Max(0, math.Min(c.Height, maxHeight-c.Top))
	return c
}

// ScaleToTier resolves the region into in-bounds integer pixels of tier idx.
// Scaling happens before clipping since clip bounds are tier-relative.
func (r Region) ScaleToTier(p *Pyramid, idx int) (Region, error) {
	tier, err := p.TierAtLevel(idx)
	if err != nil {
		return Region{}, err
	}
	wf, hf := p.Factor(idx)
	return r.Scale(wf, hf).ToInt().Clip(float64(tier.Width), float64(tier.Height)), nil
}

// Equal compares two regions after re-expressing other at r's downsample.
func (r Region) Equal(other Region) bool {
	o := other.Scale(r.WidthDownsample, r.HeightDownsample)
	return nearlyEqual(r.Top, o.Top) && nearlyEqual(r.Left, o.Left) &&
		nearlyEqual(r.Width, o.Width) && nearlyEqual(r.Height, o.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("Region(top=%g, left=%g, width=%g, height=%g, downsample=(%g, %g))",
		r.Top, r.Left, r.Width, r.Height, r.WidthDownsample, r.HeightDownsample)
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= RegionEpsilon
}

package response

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/slide"
)

// Processing holds the resolved processing parameters of a response. Slices
// indexed by channel are aligned with Channels.
type Processing struct {
	Channels []int
	Z        int
	T        int

	ChannelReduction imaging.Reduction

	MinIntensities []int
	MaxIntensities []int
	Gammas         []float64
	Log            bool
	// Colormaps holds one entry per channel; nil entries leave the channel
	// untinted.
	Colormaps []imaging.Colormap
	Filters   []imaging.Filter
	// Colorspace is the requested output colorspace.
	Colorspace imaging.Colorspace
}

// reader fetches the raw pixels of one read of the image.
type reader func(ctx context.Context, read, z, t int) (*imaging.Raster, error)

// processedView implements the pipeline shared by thumbnails, resized
// images, windows and tiles.
type processedView struct {
	img  slide.Image
	out  Output
	proc Processing
	read reader

	// forceColor makes a single channel response COLOR, for drawings with
	// colored strokes.
	forceColor bool
}

func (v *processedView) mathParams() imaging.MathParams {
	return imaging.MathParams{
		InputMax:       int(imaging.MaxIntensity(v.img.SignificantBits())),
		OutputBitDepth: v.out.BestEffortBitdepth(),
		MinIntensities: v.proc.MinIntensities,
		MaxIntensities: v.proc.MaxIntensities,
		Gammas:         v.proc.Gammas,
		Log:            v.proc.Log,
	}
}

// mathLUTs returns one table per channel, or nil without math processing.
func (v *processedView) mathLUTs() []*imaging.LUT {
	return imaging.MathLUT(v.mathParams(), len(v.proc.Channels))
}

// colormapLUTs returns one table per channel, or nil when no channel is
// tinted. Untinted channels get the identity table.
func (v *processedView) colormapLUTs() []*imaging.LUT {
	size := int(v.out.MaxIntensity()) + 1
	bits := v.out.BestEffortBitdepth()

	luts := make([]*imaging.LUT, len(v.proc.Channels))
	components, tinted := 1, false
	for i := range luts {
		if i >= len(v.proc.Colormaps) || v.proc.Colormaps[i] == nil {
			continue
		}
		luts[i] = v.proc.Colormaps[i].LUT(size, bits)
		components = max(components, luts[i].Components)
		tinted = true
	}
	if !tinted {
		return nil
	}
	for i, l := range luts {
		if l == nil {
			luts[i] = imaging.DefaultLUT(size, bits, components)
		}
	}
	return luts
}

// luts combines the math and colormap tables of every channel. nil means no
// table has to be applied.
func (v *processedView) luts() []*imaging.LUT {
	maths, colormaps := v.mathLUTs(), v.colormapLUTs()
	switch {
	case maths == nil:
		return colormaps
	case colormaps == nil:
		return maths
	}
	out := make([]*imaging.LUT, len(maths))
	for i := range maths {
		out[i] = imaging.CombineLUT(maths[i], colormaps[i])
	}
	return out
}

// readGroup lists the requested channels served by one read.
type readGroup struct {
	read   int
	needed []int
}

// groupByRead groups channels by the read serving them, keeping the order of
// channels.
func groupByRead(channels []int, perRead int) []readGroup {
	if perRead <= 0 {
		perRead = 1
	}
	var groups []readGroup
	for _, c := range channels {
		read := c / perRead
		if n := len(groups); n > 0 && groups[n-1].read == read {
			groups[n-1].needed = append(groups[n-1].needed, c)
			continue
		}
		groups = append(groups, readGroup{read: read, needed: []int{c}})
	}
	return groups
}

// readSize is the number of channels returned by a read.
func readSize(img slide.Image, read int) int {
	first := read * img.NChannelsPerRead()
	return min(img.NChannels(), first+img.NChannelsPerRead()) - first
}

// isWholeRGBRead reports whether needed selects the three channels of an RGB
// read in order.
func isWholeRGBRead(needed []int, perRead int) bool {
	if len(needed) != 3 {
		return false
	}
	for i, c := range needed {
		if c%perRead != i {
			return false
		}
	}
	return true
}

// readAll fetches every read concurrently.
func (v *processedView) readAll(ctx context.Context, groups []readGroup) ([]*imaging.Raster, error) {
	raws := make([]*imaging.Raster, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			r, err := v.read(gctx, group.read, v.proc.Z, v.proc.T)
			if err != nil {
				return err
			}
			raws[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return raws, nil
}

// channelRasters returns one processed raster per response channel, except
// for whole RGB reads with RGB colormaps which stay a single three-channel
// raster with only the math tables applied.
func (v *processedView) channelRasters(ctx context.Context) ([]*imaging.Raster, error) {
	perRead := max(v.img.NChannelsPerRead(), 1)
	groups := groupByRead(v.proc.Channels, perRead)
	raws, err := v.readAll(ctx, groups)
	if err != nil {
		return nil, err
	}

	maths, luts := v.mathLUTs(), v.luts()
	var out []*imaging.Raster
	idx := 0
	for i, group := range groups {
		raw := raws[i]
		if readSize(v.img, group.read) == 3 && isWholeRGBRead(group.needed, perRead) &&
			idx+3 <= len(v.proc.Colormaps) && imaging.IsRGBColormapping(v.proc.Colormaps[idx:idx+3]) {
			var stacked []*imaging.LUT
			if maths != nil {
				stacked = maths[idx : idx+3]
			}
			r, err := imaging.StackedLUTOp(stacked).Apply(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			idx += 3
			continue
		}

		for _, c := range group.needed {
			var lut *imaging.LUT
			if luts != nil {
				lut = luts[idx]
			}
			r, err := imaging.Chain{imaging.ExtractOp(c % perRead), imaging.LUTOp(lut)}.Apply(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			idx++
		}
	}
	return out, nil
}

// newColorspace is the colorspace of the response: the requested one, or
// for AUTO, GRAY for a single channel and COLOR otherwise.
func (v *processedView) newColorspace() imaging.Colorspace {
	if v.forceColor {
		return imaging.ColorspaceColor
	}
	if v.proc.Colorspace != imaging.ColorspaceAuto && v.proc.Colorspace != "" {
		return v.proc.Colorspace
	}
	if len(v.proc.Channels) == 1 {
		return imaging.ColorspaceGray
	}
	return imaging.ColorspaceColor
}

// colorspaceProcessing reports whether the pipeline output must change
// colorspace.
func (v *processedView) colorspaceProcessing() bool {
	if v.forceColor {
		return true
	}
	return needsConversion(v.proc.Colorspace, len(v.proc.Channels))
}

func needsConversion(cs imaging.Colorspace, channels int) bool {
	return (cs == imaging.ColorspaceGray && channels > 1) ||
		(cs == imaging.ColorspaceColor && channels == 1)
}

// filterColorspace is the colorspace filters run in.
func (v *processedView) filterColorspace() imaging.Colorspace {
	if cs := imaging.FiltersColorspace(v.proc.Filters); cs != imaging.ColorspaceAuto {
		return cs
	}
	return v.proc.Colorspace
}

// histogram returns the histogram of the requested planes at the output
// depth, in the colorspace filters run in.
func (v *processedView) histogram() (*imaging.Histogram, error) {
	h := &imaging.Histogram{}
	for _, c := range v.proc.Channels {
		ph, err := v.img.PlaneHistogram(c, v.proc.Z, v.proc.T)
		if err != nil {
			return nil, err
		}
		h.Counts = append(h.Counts, ph.Counts...)
	}
	h, err := imaging.RescaleHist(h, v.out.BestEffortBitdepth())
	if err != nil {
		return nil, err
	}
	if cs := imaging.FiltersColorspace(v.proc.Filters); needsConversion(cs, len(v.proc.Channels)) {
		h = imaging.ColorspaceHist(h, cs)
	}
	return h, nil
}

// filterOps converts to the colorspace filters run in, then applies every
// requested filter.
func (v *processedView) filterOps() (imaging.Chain, error) {
	var hist *imaging.Histogram
	if imaging.FiltersRequireHistogram(v.proc.Filters) {
		var err error
		if hist, err = v.histogram(); err != nil {
			return nil, err
		}
	}
	ops := imaging.Chain{imaging.ColorspaceOp(v.filterColorspace())}
	for _, f := range v.proc.Filters {
		ops = append(ops, imaging.FilterOp(f, hist))
	}
	return ops, nil
}

// checkContext fails once ctx is done.
func checkContext(ctx context.Context) imaging.ImageOp {
	return imaging.OpFunc(func(r *imaging.Raster) (*imaging.Raster, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r, nil
	})
}

// Process runs the pipeline up to the colorspace conversion.
func (v *processedView) Process(ctx context.Context) (*imaging.Raster, error) {
	if len(v.proc.Channels) == 0 {
		return nil, fmt.Errorf("failed to process image: no channel requested")
	}
	rasters, err := v.channelRasters(ctx)
	if err != nil {
		return nil, err
	}
	r, err := imaging.ReduceChannels(rasters, v.proc.ChannelReduction)
	if err != nil {
		return nil, err
	}

	ops := imaging.Chain{imaging.ResizeOp(v.out.Width, v.out.Height), checkContext(ctx)}
	if len(v.proc.Filters) > 0 {
		filters, err := v.filterOps()
		if err != nil {
			return nil, err
		}
		ops = append(ops, filters...)
	}
	if v.colorspaceProcessing() {
		ops = append(ops, imaging.ColorspaceOp(v.newColorspace()))
	}
	return ops.Apply(r)
}

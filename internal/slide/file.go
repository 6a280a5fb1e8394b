package slide

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/pkg/errors"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// DefaultTileSize is the tile side used when none is configured.
const DefaultTileSize = 256

// FileImage is a single plane image decoded from a PNG, JPEG, GIF, TIFF or
// WEBP file. Its pyramid halves the base tier until a tier fits in one tile.
// Lower tiers are computed on first use and kept.
//
// FileImage is safe for concurrent use.
type FileImage struct {
	path string
	info *imaging.FileInfo
	pyr  *pyramid.Pyramid
	hist *imaging.Histogram

	mu    sync.RWMutex
	tiers []*imaging.Raster
}

// OpenFile decodes an image file.
//
// Parameters:
//   - path: Path to the image file.
//   - tileSize: Tile side of every tier. Non-positive values select
//     DefaultTileSize.
//
// Returns:
//   - *FileImage: The opened image. Transparency is dropped.
//   - error: Non-nil if the file cannot be read or decoded.
func OpenFile(path string, tileSize int) (*FileImage, error) {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	info, err := imaging.Probe(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	img, err := imaging.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return newFileImage(path, info, img, tileSize)
}

func newFileImage(path string, info *imaging.FileInfo, img image.Image, tileSize int) (*FileImage, error) {
	base := imaging.FromImage(img)
	if base.Channels == 4 {
		var err error
		if base, err = imaging.ExtractChannels(base, 0, 1, 2); err != nil {
			return nil, errors.Wrap(err, "failed to drop transparency")
		}
	}
	info.Channels = base.Channels
	info.BitDepth = base.BitDepth
	info.Width, info.Height = base.Width, base.Height

	f := &FileImage{
		path: path,
		info: info,
		pyr:  buildPyramid(base.Width, base.Height, tileSize),
	}
	f.tiers = make([]*imaging.Raster, f.pyr.Len())
	f.tiers[0] = base

	if base.BitDepth <= 8 {
		f.hist = imaging.ImageHistogram(img)
	} else {
		f.hist = imaging.RasterHistogram(base, base.BitDepth)
	}
	if f.hist.Channels() != base.Channels {
		f.hist = imaging.ColorspaceHist(f.hist, colorspaceOf(base.Channels))
	}
	return f, nil
}

func colorspaceOf(channels int) imaging.Colorspace {
	if channels == 1 {
		return imaging.ColorspaceGray
	}
	return imaging.ColorspaceColor
}

// buildPyramid halves width x height, rounding up, until the tier fits in
// a single tile.
func buildPyramid(width, height, tileSize int) *pyramid.Pyramid {
	p := pyramid.NewWithBase(width, height, tileSize, tileSize)
	for width > tileSize || height > tileSize {
		width, height = (width+1)/2, (height+1)/2
		p.InsertTier(width, height, tileSize, tileSize)
	}
	return p
}

// Path returns the file the image was decoded from.
func (f *FileImage) Path() string { return f.path }

// Info returns the file metadata.
func (f *FileImage) Info() imaging.FileInfo { return *f.info }

func (f *FileImage) Width() int                { return f.info.Width }
func (f *FileImage) Height() int               { return f.info.Height }
func (f *FileImage) Depth() int                { return 1 }
func (f *FileImage) Duration() int             { return 1 }
func (f *FileImage) NChannels() int            { return f.info.Channels }
func (f *FileImage) NChannelsPerRead() int     { return f.info.Channels }
func (f *FileImage) SignificantBits() int      { return f.info.BitDepth }
func (f *FileImage) Pyramid() *pyramid.Pyramid { return f.pyr }

// ChannelColor returns red, lime and blue for the channels of a color image
// and nil for a gray one.
func (f *FileImage) ChannelColor(c int) *imaging.RGBColor {
	if f.info.Channels != 3 || c < 0 || c > 2 {
		return nil
	}
	colors := []imaging.RGBColor{imaging.Red, imaging.Lime, imaging.Blue}
	return &colors[c]
}

// ChannelBounds returns the smallest and largest sample of channel c.
func (f *FileImage) ChannelBounds(c int) (int, int) {
	lo, hi, ok := f.hist.Bounds(c)
	if !ok {
		return 0, 0
	}
	return lo, hi
}

// PlaneBounds equals ChannelBounds: the image has a single plane.
func (f *FileImage) PlaneBounds(c, z, t int) (int, int) {
	return f.ChannelBounds(c)
}

// PlaneHistogram returns the histogram of channel c.
func (f *FileImage) PlaneHistogram(c, z, t int) (*imaging.Histogram, error) {
	if c < 0 || c >= f.hist.Channels() || z != 0 || t != 0 {
		return nil, fmt.Errorf("no plane (c=%d, z=%d, t=%d) in %s", c, z, t, f.path)
	}
	return &imaging.Histogram{Counts: [][]float64{f.hist.Counts[c]}}, nil
}

// tier returns the raster of a pyramid level, computing it from the base
// tier on first use.
func (f *FileImage) tier(level int) (*imaging.Raster, error) {
	f.mu.RLock()
	r := f.tiers[level]
	f.mu.RUnlock()
	if r != nil {
		return r, nil
	}

	t, err := f.pyr.TierAtLevel(level)
	if err != nil {
		return nil, err
	}
	r, err = imaging.Resize(f.tiers[0], t.Width, t.Height)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build tier %d of %s", level, f.path)
	}

	f.mu.Lock()
	if f.tiers[level] == nil {
		f.tiers[level] = r
	}
	r = f.tiers[level]
	f.mu.Unlock()
	return r, nil
}

func (f *FileImage) checkRead(ctx context.Context, c, z, t int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c != 0 || z != 0 || t != 0 {
		return fmt.Errorf("no read (c=%d, z=%d, t=%d) in %s", c, z, t, f.path)
	}
	return nil
}

// ReadThumb returns the coarsest tier still covering width x height.
func (f *FileImage) ReadThumb(ctx context.Context, width, height, c, z, t int) (*imaging.Raster, error) {
	if err := f.checkRead(ctx, c, z, t); err != nil {
		return nil, err
	}
	return f.tier(f.pyr.MostAppropriateTier(width, height))
}

// ReadWindow crops region from the coarsest tier whose resolution is still
// at least that of a width x height rendering of the region.
func (f *FileImage) ReadWindow(ctx context.Context, region pyramid.Region, width, height, c, z, t int) (*imaging.Raster, error) {
	if err := f.checkRead(ctx, c, z, t); err != nil {
		return nil, err
	}
	level := f.windowLevel(region, width, height)
	return f.crop(level, region)
}

// windowLevel picks the coarsest level whose downsample does not exceed the
// downsample of the requested rendering.
func (f *FileImage) windowLevel(region pyramid.Region, width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	wds := region.TrueWidth() / float64(width)
	hds := region.TrueHeight() / float64(height)
	best := 0
	for level := 1; level < f.pyr.Len(); level++ {
		wf, hf := f.pyr.Factor(level)
		if wf > wds || hf > hds {
			break
		}
		best = level
	}
	return best
}

// ReadTile crops a tile from its tier.
func (f *FileImage) ReadTile(ctx context.Context, tile pyramid.Tile, c, z, t int) (*imaging.Raster, error) {
	if err := f.checkRead(ctx, c, z, t); err != nil {
		return nil, err
	}
	return f.crop(tile.Level, tile.Region)
}

func (f *FileImage) crop(level int, region pyramid.Region) (*imaging.Raster, error) {
	scaled, err := region.ScaleToTier(f.pyr, level)
	if err != nil {
		return nil, err
	}
	if scaled.IsEmpty() {
		return nil, fmt.Errorf("empty region %s in %s", region, f.path)
	}
	r, err := f.tier(level)
	if err != nil {
		return nil, err
	}
	rect := image.Rect(int(scaled.Left), int(scaled.Top),
		int(scaled.Left+scaled.Width), int(scaled.Top+scaled.Height))
	return imaging.Crop(r, rect)
}

// Package slide opens images and serves their pixels at any pyramid tier.
//
// An Image exposes the metadata consulted while resolving a request and the
// reader contract used by the rendering pipeline. FileImage implements it on
// top of ordinary image files; Library opens them under a root directory and
// keeps the most recently used ones in memory.
package slide

import (
	"context"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// Image is an open slide.
//
// Reads return rasters with NChannelsPerRead channels. The read index c
// selects a group of channels: channel i of the image is channel
// i % NChannelsPerRead() of read i / NChannelsPerRead().
type Image interface {
	Width() int
	Height() int
	Depth() int
	Duration() int
	NChannels() int
	NChannelsPerRead() int
	SignificantBits() int
	Pyramid() *pyramid.Pyramid

	// ChannelColor returns the nominal color of channel c, or nil.
	ChannelColor(c int) *imaging.RGBColor
	ChannelBounds(c int) (min, max int)
	PlaneBounds(c, z, t int) (min, max int)

	// PlaneHistogram returns the single channel histogram of a plane, with
	// 2^SignificantBits() bins.
	PlaneHistogram(c, z, t int) (*imaging.Histogram, error)

	// ReadThumb returns the whole image at roughly width x height.
	ReadThumb(ctx context.Context, width, height, c, z, t int) (*imaging.Raster, error)

	// ReadWindow returns region at roughly width x height.
	ReadWindow(ctx context.Context, region pyramid.Region, width, height, c, z, t int) (*imaging.Raster, error)

	// ReadTile returns a tile at its tier resolution.
	ReadTile(ctx context.Context, tile pyramid.Tile, c, z, t int) (*imaging.Raster, error)
}

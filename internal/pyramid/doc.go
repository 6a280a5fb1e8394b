// Package pyramid implements the addressing geometry of multi-resolution images.
//
// A Pyramid is an ordered list of tiers, from the highest resolution (level 0)
// to the lowest. Two complementary indexes address the same list:
//   - level: 0 is the finest tier, MaxLevel the coarsest
//   - zoom: 0 is the coarsest tier, MaxZoom the finest
//
// A Region is a rectangular viewport tagged with the downsample factor of the
// tier it is expressed in. Regions move between tiers with Scale and are
// snapped to concrete, in-bounds integer pixels with ScaleToTier.
//
// # Tile numbering
//
// Tiles are numbered row-major from 0 at the top-left corner, increasing
// left-to-right then top-to-bottom. Edge tiles are smaller than the nominal
// tile size when the tier size is not a multiple of it.
//
// # Thread Safety
//
// Tier and Region are values. A Pyramid is read-only once built and may be
// shared across goroutines without locking.
package pyramid

// Package imaging provides the raster model and the image operations used to
// render slide views.
//
// A Raster holds integer samples with interleaved channels at 8, 16 or 32
// bits per sample. Operations take a raster and return a new one; none of
// them modifies its input, so rasters may be shared between goroutines.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with origin at the top-left corner:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive and Max is exclusive
//
// # Intensity Processing
//
// Intensity windowing, gamma and log compression are folded into a per
// channel LUT (MathLUT), combined with a colormap LUT (CombineLUT) and applied
// in a single pass (ApplyLUT). Channels are then merged with a Reduction.
//
// # Filters
//
// Filters run after resizing. Global threshold filters (OTSU, ISODATA, YEN,
// MINIMUM) need the image histogram and a gray input; SOBEL needs a gray
// input only.
//
// # Library Usage
//
// Standard images convert to and from rasters (FromImage, Raster.Image) so
// that resampling, gray conversion, edge detection and encoding run on
// github.com/disintegration/imaging, github.com/anthonynsimon/bild,
// golang.org/x/image and github.com/HugoSmits86/nativewebp.
package imaging

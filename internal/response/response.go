// Package response renders the image responses of the server.
//
// A response gathers resolved request parameters, reads the pixels it needs
// from a slide.Image and runs them through the processing pipeline:
//
//	raw reads -> LUT (intensity window, gamma, log, colormap) -> channel
//	reduction -> resize -> filters -> colorspace -> annotations -> encoding
//
// Every response implements Response. Process returns the final raster and
// Buffer its encoded bytes. Responses hold no shared state: build one per
// request.
package response

import (
	"context"

	"github.com/ironsheep/slide-server/internal/imaging"
)

// Response is a renderable image response.
type Response interface {
	// Process runs the pipeline and returns the raster to encode.
	Process(ctx context.Context) (*imaging.Raster, error)
	// Buffer returns the encoded response.
	Buffer(ctx context.Context) ([]byte, error)
}

// Output describes the encoded image to produce.
type Output struct {
	Format imaging.Format
	Width  int
	Height int
	// BitDepth is the requested bit depth. Formats unable to store it fall
	// back to the deepest depth they support.
	BitDepth int
	// Quality is the JPEG quality; 0 selects the default.
	Quality int
}

// BestEffortBitdepth is the depth actually produced for the output format.
func (o Output) BestEffortBitdepth() int {
	return imaging.BestEffortBitdepth(o.Format, o.BitDepth)
}

// MaxIntensity is the largest sample value at the best effort depth.
func (o Output) MaxIntensity() uint32 {
	return imaging.MaxIntensity(o.BestEffortBitdepth())
}

// encode runs process and encodes its raster as out.
func encode(ctx context.Context, process func(context.Context) (*imaging.Raster, error), out Output) ([]byte, error) {
	r, err := process(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return imaging.Encode(r, out.Format, out.Quality)
}

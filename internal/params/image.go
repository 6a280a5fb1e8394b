package params

import (
	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// Source is what output-size negotiation needs to know about an image.
type Source interface {
	Width() int
	Height() int
	Pyramid() *pyramid.Pyramid
}

// Image is the image metadata consulted while resolving a request.
type Image interface {
	Source
	Depth() int
	Duration() int
	NChannels() int
	SignificantBits() int

	// ChannelColor returns the nominal color of channel c, or nil.
	ChannelColor(c int) *imaging.RGBColor

	// ChannelBounds returns the minimum and maximum intensity of channel c
	// over the whole image.
	ChannelBounds(c int) (min, max int)

	// PlaneBounds returns the minimum and maximum intensity of one plane.
	PlaneBounds(c, z, t int) (min, max int)
}

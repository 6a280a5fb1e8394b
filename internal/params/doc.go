// Package params resolves raw request parameters against an image.
//
// It turns what a client asked for (a size, a zoom or level, a region, a tile,
// plane selections, intensity windows, colormap and filter names) into the
// concrete values the processing pipeline consumes, or into a *problem.Problem
// describing why the request cannot be served. Nothing here touches pixels:
// every function is a pure computation over image metadata, and output sizes
// are fully negotiated before any decode happens.
package params

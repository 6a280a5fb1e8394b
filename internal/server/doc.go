// Package server exposes slide images over HTTP.
//
// Routes are served by a chi router behind CORS and gzip middleware:
//
//	GET  /image/{path}/info
//	GET  /image/{path}/thumb
//	GET  /image/{path}/resized
//	GET  /image/{path}/window, POST /image/{path}/window
//	GET  /image/{path}/tile/{level|zoom}/{idx}/ti/{ti}
//	GET  /image/{path}/tile/{level|zoom}/{idx}/tx/{tx}/ty/{ty}
//	POST /image/{path}/annotation/{mask|crop|drawing}
//	GET  /colormaps, /colormaps/{id}, /colormaps/{id}/representation
//	GET  /filters, /health, /
//
// Image paths are relative to the library root; a path with several
// components is sent as one segment with escaped slashes (a%2Fb.png).
// Rendering parameters come from the query string and, for POST requests,
// from a JSON body whose values take precedence.
//
// # Output
//
// The output format is taken from the format parameter, then from the
// Accept header, JPEG by default. Outputs larger than the configured limit
// are handled according to the X-Image-Size-Safety request header; when the
// served size differs from the requested one, X-Image-Size-Limit tells by
// how much.
//
// Encoded images are kept in the response cache, keyed by image version
// and request, so repeated tiles are served without decoding.
//
// # Errors
//
// Errors are JSON documents with the HTTP status, a title, a detail and,
// for invalid parameters, the offending field, value and allowed values.
// Every error carries the request id, also sent in X-Request-Id.
package server

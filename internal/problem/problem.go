// Package problem defines the client-facing error taxonomy of the slide server.
//
// Every validation failure raised while resolving a request (bad tier reference,
// out-of-bounds region, oversized output, unknown colormap...) is a *Problem
// carrying an HTTP status and enough structured detail for the HTTP layer to
// render a 4xx response. Anything that is not a *Problem is treated as an opaque
// upstream failure and rendered as a 500.
package problem

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Problem is a deterministic input-validation failure.
type Problem struct {
	Status  int    `json:"status"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Field   string `json:"field,omitempty"`
	Value   any    `json:"value,omitempty"`
	Allowed string `json:"allowed,omitempty"`
}

func (p *Problem) Error() string {
	if p.Detail == "" {
		return p.Title
	}
	return p.Detail
}

// BadRequest returns a generic 400 problem.
func BadRequest(format string, args ...any) *Problem {
	return &Problem{
		Status: http.StatusBadRequest,
		Title:  "Bad request",
		Detail: fmt.Sprintf(format, args...),
	}
}

// InvalidParameter returns a 400 problem naming the offending field, the
// received value and the allowed range or set.
func InvalidParameter(field string, value any, allowed string) *Problem {
	return &Problem{
		Status:  http.StatusBadRequest,
		Title:   "Invalid parameter",
		Detail:  fmt.Sprintf("%s %v is invalid (allowed: %s).", field, value, allowed),
		Field:   field,
		Value:   value,
		Allowed: allowed,
	}
}

// InvalidArraySize reports an array parameter whose cardinality is not one of
// the allowed sizes.
func InvalidArraySize(field string, size int, allowed []int) *Problem {
	strs := make([]string, len(allowed))
	for i, a := range allowed {
		strs[i] = fmt.Sprint(a)
	}
	allowedStr := strings.Join(strs, ", ")
	if field == "" {
		field = "A parameter"
	}
	return &Problem{
		Status: http.StatusBadRequest,
		Title:  "Invalid parameter size",
		Detail: fmt.Sprintf("%s has a size of %d while only these sizes are allowed: %s",
			field, size, allowedStr),
		Field:   field,
		Value:   size,
		Allowed: allowedStr,
	}
}

// TooLarge is raised under the SAFE_REJECT policy when a requested output
// exceeds the configured limit.
func TooLarge(width, height, limit int) *Problem {
	return &Problem{
		Status: http.StatusBadRequest,
		Title:  "Too large image output dimensions",
		Detail: fmt.Sprintf("Requested output dimensions exceed the maximum admissible size. "+
			"The request has been rejected as X-Image-Size-Safety header is set to SAFE_REJECT. "+
			"Requested: %dx%d, limit: %d.", width, height, limit),
		Field:   "size",
		Value:   fmt.Sprintf("%dx%d", width, height),
		Allowed: fmt.Sprintf("<= %d", limit),
	}
}

// NotFound reports an unknown named resource (colormap, filter, image).
func NotFound(kind, id string) *Problem {
	title := strings.ToUpper(kind[:1]) + kind[1:] + " not found"
	return &Problem{
		Status: http.StatusNotFound,
		Title:  title,
		Detail: fmt.Sprintf("The %s %s does not exist.", kind, id),
		Field:  kind,
		Value:  id,
	}
}

// NotAcceptable reports an Accept header naming no supported output format.
func NotAcceptable(accept, supported string) *Problem {
	return &Problem{
		Status:  http.StatusNotAcceptable,
		Title:   "Not acceptable",
		Detail:  fmt.Sprintf("None of the requested media types %q can be produced.", accept),
		Field:   "Accept",
		Value:   accept,
		Allowed: supported,
	}
}

// InvalidGeometry reports an annotation geometry that cannot be read or
// repaired.
func InvalidGeometry(geometry, reason string) *Problem {
	return &Problem{
		Status: http.StatusBadRequest,
		Title:  "Invalid geometry",
		Detail: fmt.Sprintf("Geometry %s is invalid: %s", geometry, reason),
		Field:  "geometry",
		Value:  geometry,
	}
}

// As extracts the *Problem wrapped in err, if any.
func As(err error) (*Problem, bool) {
	var p *Problem
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

// StatusOf returns the HTTP status to use for err.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if p, ok := As(err); ok {
		return p.Status
	}
	return http.StatusInternalServerError
}

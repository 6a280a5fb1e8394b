package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ironsheep/slide-server/internal/annotation"
	"github.com/ironsheep/slide-server/internal/params"
	"github.com/ironsheep/slide-server/internal/problem"
)

// maxBodyBytes bounds JSON request bodies, annotations included.
const maxBodyBytes = 16 << 20

// stringList is a list parameter. In a JSON body it is a scalar or an array
// of scalars; in a query it is a repeated and/or comma separated value.
type stringList []string

// UnmarshalJSON accepts strings, numbers and booleans.
func (l *stringList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	var items []any
	switch v := raw.(type) {
	case nil:
		*l = nil
		return nil
	case []any:
		items = v
	default:
		items = []any{v}
	}

	out := make(stringList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case json.Number:
			out = append(out, v.String())
		case bool:
			out = append(out, strconv.FormatBool(v))
		default:
			return fmt.Errorf("unsupported list item %v", item)
		}
	}
	*l = out
	return nil
}

// scalar is a string parameter that may be sent as a JSON number.
type scalar string

func (s *scalar) UnmarshalJSON(data []byte) error {
	var l stringList
	if err := l.UnmarshalJSON(data); err != nil {
		return err
	}
	if len(l) > 1 {
		return fmt.Errorf("expected a single value, got %d", len(l))
	}
	*s = ""
	if len(l) == 1 {
		*s = scalar(l[0])
	}
	return nil
}

// annotationStyleArgs is the annotation_style object of a window request.
type annotationStyleArgs struct {
	Mode                   string   `json:"mode"`
	BackgroundTransparency int      `json:"background_transparency"`
	PointCross             string   `json:"point_cross"`
	PointEnvelopeLength    *float64 `json:"point_envelope_length"`
}

// renderArgs holds every parameter of an image rendering request. Each
// endpoint reads the subset it documents.
type renderArgs struct {
	// Output size
	Height         *params.Size `json:"height"`
	Width          *params.Size `json:"width"`
	Length         *params.Size `json:"length"`
	Zoom           *int         `json:"zoom"`
	Level          *int         `json:"level"`
	AllowUpscaling bool         `json:"allow_upscaling"`

	// Planes
	Channels   stringList `json:"channels"`
	ZSlices    stringList `json:"z_slices"`
	Timepoints stringList `json:"timepoints"`
	CReduction string     `json:"c_reduction"`
	ZReduction string     `json:"z_reduction"`
	TReduction string     `json:"t_reduction"`

	// Operations
	MinIntensities stringList `json:"min_intensities"`
	MaxIntensities stringList `json:"max_intensities"`
	Gammas         stringList `json:"gammas"`
	Log            bool       `json:"log"`
	Colormaps      stringList `json:"colormaps"`
	Filters        stringList `json:"filters"`
	Bits           scalar     `json:"bits"`
	Colorspace     string     `json:"colorspace"`

	// Encoding
	Format  string `json:"format"`
	Quality int    `json:"quality"`

	// Window position
	Region             *params.RegionRequest `json:"region"`
	Ti                 *int                  `json:"ti"`
	Tx                 *int                  `json:"tx"`
	Ty                 *int                  `json:"ty"`
	ReferenceTierIndex *int                  `json:"reference_tier_index"`
	TierIndexType      string                `json:"tier_index_type"`

	// Annotations
	Annotations            []annotation.Input  `json:"annotations"`
	AnnotationStyle        annotationStyleArgs `json:"annotation_style"`
	ContextFactor          *float64            `json:"context_factor"`
	TrySquare              bool                `json:"try_square"`
	BackgroundTransparency int                 `json:"background_transparency"`
	PointCross             string              `json:"point_cross"`
	PointEnvelopeLength    *float64            `json:"point_envelope_length"`
}

// output returns the output size constraints.
func (a *renderArgs) output() params.OutputRequest {
	return params.OutputRequest{
		Height:         a.Height,
		Width:          a.Width,
		Length:         a.Length,
		Zoom:           a.Zoom,
		Level:          a.Level,
		AllowUpscaling: a.AllowUpscaling,
	}
}

// readArgs decodes the parameters of r: the query string, then the JSON body
// of POST requests, whose values win.
//
// Returns the decoded arguments and the raw body, used in cache keys.
func readArgs(r *http.Request) (*renderArgs, []byte, error) {
	a, err := argsFromQuery(r.URL.Query())
	if err != nil {
		return nil, nil, err
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return a, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, nil, problem.BadRequest("Request body exceeds %d bytes.", maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return a, nil, nil
	}
	if err := json.Unmarshal(body, a); err != nil {
		if p, ok := problem.As(err); ok {
			return nil, nil, p
		}
		return nil, nil, problem.BadRequest("Invalid JSON body: %v", err)
	}
	return a, body, nil
}

// argsFromQuery decodes query parameters. Annotations can only be sent in a
// JSON body.
func argsFromQuery(q url.Values) (*renderArgs, error) {
	a := &renderArgs{
		Channels:       listParam(q, "channels"),
		ZSlices:        listParam(q, "z_slices"),
		Timepoints:     listParam(q, "timepoints"),
		CReduction:     q.Get("c_reduction"),
		ZReduction:     q.Get("z_reduction"),
		TReduction:     q.Get("t_reduction"),
		MinIntensities: listParam(q, "min_intensities"),
		MaxIntensities: listParam(q, "max_intensities"),
		Gammas:         listParam(q, "gammas"),
		Colormaps:      listParam(q, "colormaps"),
		Filters:        listParam(q, "filters"),
		Bits:           scalar(q.Get("bits")),
		Colorspace:     q.Get("colorspace"),
		Format:         q.Get("format"),
		TierIndexType:  q.Get("tier_index_type"),
		PointCross:     q.Get("point_cross"),
	}

	var err error
	for _, p := range []struct {
		name string
		dst  **params.Size
	}{
		{"height", &a.Height},
		{"width", &a.Width},
		{"length", &a.Length},
	} {
		if *p.dst, err = sizeParam(q, p.name); err != nil {
			return nil, err
		}
	}

	for _, p := range []struct {
		name string
		dst  **int
	}{
		{"zoom", &a.Zoom},
		{"level", &a.Level},
		{"ti", &a.Ti},
		{"tx", &a.Tx},
		{"ty", &a.Ty},
		{"reference_tier_index", &a.ReferenceTierIndex},
	} {
		if *p.dst, err = intParam(q, p.name); err != nil {
			return nil, err
		}
	}

	if a.AllowUpscaling, err = boolParam(q, "allow_upscaling"); err != nil {
		return nil, err
	}
	if a.Log, err = boolParam(q, "log"); err != nil {
		return nil, err
	}
	if a.TrySquare, err = boolParam(q, "try_square"); err != nil {
		return nil, err
	}
	if quality, err := intParam(q, "quality"); err != nil {
		return nil, err
	} else if quality != nil {
		a.Quality = *quality
	}
	if a.Region, err = regionParam(q); err != nil {
		return nil, err
	}
	return a, nil
}

// listParam returns the items of a repeated and/or comma separated parameter.
func listParam(q url.Values, name string) stringList {
	var out stringList
	for _, v := range q[name] {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func sizeParam(q url.Values, name string) (*params.Size, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	s, err := params.ParseSize(name, v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func intParam(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil, problem.InvalidParameter(name, v, "an integer")
	}
	return &i, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, problem.InvalidParameter(name, v, "true, false")
	}
	return b, nil
}

// regionParam reads region=top,left,width,height.
func regionParam(q url.Values) (*params.RegionRequest, error) {
	v := q.Get("region")
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return nil, problem.InvalidParameter("region", v, "top,left,width,height")
	}
	sizes := make([]params.Size, 4)
	for i, part := range parts {
		s, err := params.ParseSize("region", part)
		if err != nil {
			return nil, err
		}
		sizes[i] = s
	}
	return &params.RegionRequest{Top: sizes[0], Left: sizes[1], Width: sizes[2], Height: sizes[3]}, nil
}

// parseGammas parses gamma values and repeats a single value for every
// channel.
func parseGammas(items stringList, channels int) ([]float64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]float64, 0, channels)
	for _, item := range items {
		g, err := strconv.ParseFloat(strings.TrimSpace(item), 64)
		if err != nil || g <= 0 {
			return nil, problem.InvalidParameter("gammas", item, "a positive number")
		}
		out = append(out, g)
	}
	if len(out) == 1 {
		for len(out) < channels {
			out = append(out, out[0])
		}
	}
	return out, nil
}

// parseBits parses an output bit depth: AUTO or empty for the image bit
// depth, otherwise 8 or 16.
func parseBits(s scalar) (int, error) {
	v := strings.ToUpper(strings.TrimSpace(string(s)))
	switch v {
	case "", "AUTO":
		return 0, nil
	case "8":
		return 8, nil
	case "16":
		return 16, nil
	}
	return 0, problem.InvalidParameter("bits", string(s), "AUTO, 8, 16")
}

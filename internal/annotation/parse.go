package annotation

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/problem"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// Mode is the way annotations are rendered in a window.
type Mode string

const (
	ModeCrop    Mode = "CROP"
	ModeDrawing Mode = "DRAWING"
	ModeMask    Mode = "MASK"
)

// ParseMode parses an annotation style mode. An empty string selects CROP.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return ModeCrop, nil
	case ModeCrop, ModeDrawing, ModeMask:
		return m, nil
	default:
		return "", problem.InvalidParameter("annotation_style.mode", s, "CROP, DRAWING, MASK")
	}
}

// Origin is the corner of the image at which annotation coordinates start.
type Origin string

const (
	OriginLeftTop    Origin = "LEFT_TOP"
	OriginLeftBottom Origin = "LEFT_BOTTOM"
)

// ParseOrigin parses a coordinate origin. An empty string selects LEFT_TOP.
func ParseOrigin(s string) (Origin, error) {
	switch o := Origin(strings.ToUpper(strings.TrimSpace(s))); o {
	case "":
		return OriginLeftTop, nil
	case OriginLeftTop, OriginLeftBottom:
		return o, nil
	default:
		return "", problem.InvalidParameter("annotation_origin", s, "LEFT_TOP, LEFT_BOTTOM")
	}
}

// Input is an annotation as sent by a client.
type Input struct {
	Geometry    string  `json:"geometry"`
	FillColor   *string `json:"fill_color,omitempty"`
	StrokeColor *string `json:"stroke_color,omitempty"`
	StrokeWidth *int    `json:"stroke_width,omitempty"`
}

// Defaults are the attributes given to annotations that do not set them.
type Defaults struct {
	Fill        *imaging.RGBColor
	Stroke      *imaging.RGBColor
	StrokeWidth int
}

// ParseOptions controls how inputs become annotations.
type ParseOptions struct {
	// IgnoreFill drops fill colors, IgnoreStroke drops stroke colors and
	// widths.
	IgnoreFill   bool
	IgnoreStroke bool
	Defaults     Defaults

	// PointEnvelopeLength, when positive, sets the bounds of point
	// annotations.
	PointEnvelopeLength float64

	Origin      Origin
	ImageHeight int
}

// OptionsForMode returns the parse options used by a rendering mode: drawings
// keep strokes (red, 1 pixel wide by default), crops and masks keep fills
// (white by default).
func OptionsForMode(mode Mode) ParseOptions {
	switch mode {
	case ModeDrawing:
		red := imaging.Red
		return ParseOptions{IgnoreFill: true, Defaults: Defaults{Stroke: &red, StrokeWidth: 1}}
	default:
		white := imaging.White
		return ParseOptions{IgnoreStroke: true, Defaults: Defaults{Fill: &white}}
	}
}

// Parse converts client inputs to an annotation list.
//
// Returns a problem.InvalidGeometry error when a geometry cannot be read or is
// not valid, and a problem.InvalidParameter error for unreadable colors.
func Parse(items []Input, opts ParseOptions) (List, error) {
	list := make(List, 0, len(items))
	for _, item := range items {
		a, err := parseOne(item, opts)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, nil
}

func parseOne(item Input, opts ParseOptions) (*Annotation, error) {
	g, err := wkt.Unmarshal(item.Geometry)
	if err != nil {
		return nil, problem.InvalidGeometry(item.Geometry, "WKT reading error")
	}
	if opts.Origin == OriginLeftBottom {
		g = Affine{1, 0, 0, -1, 0, float64(opts.ImageHeight) - 0.5}.Transform(g)
	}
	if reason := explainValidity(g); reason != "" {
		return nil, problem.InvalidGeometry(item.Geometry, reason)
	}

	var fill, stroke *imaging.RGBColor
	width := 0
	if !opts.IgnoreFill {
		if fill, err = parseColor("fill_color", item.FillColor, opts.Defaults.Fill); err != nil {
			return nil, err
		}
	}
	if !opts.IgnoreStroke {
		if stroke, err = parseColor("stroke_color", item.StrokeColor, opts.Defaults.Stroke); err != nil {
			return nil, err
		}
		width = opts.Defaults.StrokeWidth
		if item.StrokeWidth != nil {
			if *item.StrokeWidth < 0 {
				return nil, problem.InvalidParameter("stroke_width", *item.StrokeWidth, "a non-negative integer")
			}
			width = *item.StrokeWidth
		}
	}
	return New(g, fill, stroke, width, opts.PointEnvelopeLength), nil
}

func parseColor(field string, value *string, def *imaging.RGBColor) (*imaging.RGBColor, error) {
	if value == nil {
		return def, nil
	}
	c, err := imaging.ParseColor(*value)
	if err != nil {
		return nil, problem.InvalidParameter(field, *value, "a CSS color")
	}
	return &c, nil
}

// explainValidity returns why g cannot be rendered, or "" if it can.
func explainValidity(g orb.Geometry) string {
	switch g := g.(type) {
	case orb.Point:
		return pointValidity(g)
	case orb.MultiPoint:
		if len(g) == 0 {
			return "Empty geometry"
		}
		for _, p := range g {
			if r := pointValidity(p); r != "" {
				return r
			}
		}
	case orb.LineString:
		return lineValidity(g)
	case orb.MultiLineString:
		if len(g) == 0 {
			return "Empty geometry"
		}
		for _, ls := range g {
			if r := lineValidity(ls); r != "" {
				return r
			}
		}
	case orb.Ring:
		return ringValidity(g)
	case orb.Polygon:
		return polygonValidity(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return "Empty geometry"
		}
		for _, p := range g {
			if r := polygonValidity(p); r != "" {
				return r
			}
		}
	case orb.Collection:
		if len(g) == 0 {
			return "Empty geometry"
		}
		for _, sub := range g {
			if r := explainValidity(sub); r != "" {
				return r
			}
		}
	case orb.Bound:
		if g.IsEmpty() {
			return "Empty geometry"
		}
	default:
		return fmt.Sprintf("Unsupported geometry type %T", g)
	}
	return ""
}

func pointValidity(p orb.Point) string {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return fmt.Sprintf("Invalid coordinate[%g %g]", p[0], p[1])
	}
	return ""
}

func lineValidity(ls orb.LineString) string {
	if len(ls) < 2 {
		return "LineString must have at least 2 points"
	}
	for _, p := range ls {
		if r := pointValidity(p); r != "" {
			return r
		}
	}
	return ""
}

func ringValidity(r orb.Ring) string {
	if len(r) < 4 {
		return "Ring must have at least 4 points"
	}
	if !r.Closed() {
		return "Ring is not closed"
	}
	return lineValidity(orb.LineString(r))
}

func polygonValidity(p orb.Polygon) string {
	if len(p) == 0 {
		return "Empty geometry"
	}
	for _, r := range p {
		if reason := ringValidity(r); reason != "" {
			return reason
		}
	}
	return ""
}

// AnnotationRegion returns the region surrounding every annotation of list,
// enlarged by contextFactor around its center and, if trySquare is set,
// widened along its shortest side to be square. The region is then shifted
// and shrunk to fit in an imageWidth x imageHeight image.
func AnnotationRegion(imageWidth, imageHeight int, list List, contextFactor float64, trySquare bool) pyramid.Region {
	b := list.Bounds()
	left, top := b.Min[0], b.Min[1]
	width, height := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]

	if contextFactor != 0 && contextFactor != 1 {
		left -= width * (contextFactor - 1) / 2
		top -= height * (contextFactor - 1) / 2
		width *= contextFactor
		height *= contextFactor
	}

	if trySquare {
		if width < height {
			delta := height - width
			left -= delta / 2
			width += delta
		} else if height < width {
			delta := width - height
			top -= delta / 2
			height += delta
		}
	}

	iw, ih := float64(imageWidth), float64(imageHeight)
	width = math.Min(width, iw)
	if left < 0 {
		left = 0
	} else {
		left = math.Min(left, iw-width)
	}
	height = math.Min(height, ih)
	if top < 0 {
		top = 0
	} else {
		top = math.Min(top, ih-height)
	}
	return pyramid.NewRegion(top, left, width, height)
}

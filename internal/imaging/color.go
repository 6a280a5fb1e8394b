package imaging

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// RGBColor represents an RGB color with 8-bit components.
//
// Each component ranges from 0 to 255, where:
//   - 0 represents no intensity (black for all components)
//   - 255 represents full intensity (white for all components)
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// Common colors.
var (
	Black = RGBColor{0, 0, 0}
	White = RGBColor{255, 255, 255}
	Red   = RGBColor{255, 0, 0}
	Lime  = RGBColor{0, 255, 0}
	Blue  = RGBColor{0, 0, 255}
)

// namesByColor maps a color to its CSS name. When several names share a
// color, the last one in alphabetical order wins (CYAN over AQUA, MAGENTA
// over FUCHSIA).
var namesByColor = func() map[RGBColor]string {
	names := make([]string, 0, len(colornames.Map))
	for name := range colornames.Map {
		names = append(names, name)
	}
	sort.Strings(names)

	m := make(map[RGBColor]string, len(names))
	for _, name := range names {
		c := colornames.Map[name]
		m[RGBColor{c.R, c.G, c.B}] = strings.ToUpper(name)
	}
	return m
}()

// ColorNames returns the upper-case CSS names of every named color, sorted.
func ColorNames() []string {
	names := make([]string, 0, len(colornames.Map))
	for name := range colornames.Map {
		names = append(names, strings.ToUpper(name))
	}
	sort.Strings(names)
	return names
}

// ParseColor parses a CSS color.
//
// Accepted forms are:
//   - CSS color names, case-insensitive ("red", "LIME")
//   - hexadecimal, "#fff" or "#ffffff"
//   - integer triplets, "rgb(10, 10, 10)", clamped to [0, 255]
//   - percent triplets, "rgb(0%, 27.3%, 10%)", clamped to [0%, 100%]
//
// Returns:
//   - RGBColor: the parsed color.
//   - error: non-nil if the value is none of the above.
func ParseColor(value string) (RGBColor, error) {
	s := strings.TrimSpace(value)

	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return RGBColor{c.R, c.G, c.B}, nil
	}

	if strings.HasPrefix(s, "#") {
		if c, err := colorful.Hex(strings.ToLower(s)); err == nil {
			r, g, b := c.RGB255()
			return RGBColor{r, g, b}, nil
		}
	}

	if len(s) > 5 && strings.EqualFold(s[:4], "rgb(") && strings.HasSuffix(s, ")") {
		parts := strings.Split(s[4:len(s)-1], ",")
		if len(parts) == 3 {
			if c, ok := parseIntTriplet(parts); ok {
				return c, nil
			}
			if c, ok := parsePercentTriplet(parts); ok {
				return c, nil
			}
		}
	}

	return RGBColor{}, fmt.Errorf("invalid literal for color: %s", value)
}

func parseIntTriplet(parts []string) (RGBColor, bool) {
	var v [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return RGBColor{}, false
		}
		v[i] = uint8(min(max(n, 0), 255))
	}
	return RGBColor{v[0], v[1], v[2]}, true
}

func parsePercentTriplet(parts []string) (RGBColor, bool) {
	var v [3]uint8
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !strings.HasSuffix(p, "%") {
			return RGBColor{}, false
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return RGBColor{}, false
		}
		f = math.Min(math.Max(f, 0), 100)
		v[i] = uint8(math.RoundToEven(255 * f / 100))
	}
	return RGBColor{v[0], v[1], v[2]}, true
}

// Hex returns the "#RRGGBB" form of c.
func (c RGBColor) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Name returns the upper-case CSS name of c if it has one, its hexadecimal
// form otherwise.
func (c RGBColor) Name() string {
	if name, ok := namesByColor[c]; ok {
		return name
	}
	return c.Hex()
}

func (c RGBColor) String() string {
	return c.Name()
}

// IsGrayscale reports whether all components are equal.
func (c RGBColor) IsGrayscale() bool {
	return c.R == c.G && c.G == c.B
}

// Int packs c as 0xRRGGBB.
func (c RGBColor) Int() int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// RGBColorFromInt unpacks a 0xRRGGBB integer.
func RGBColorFromInt(v int) RGBColor {
	return RGBColor{uint8(v >> 16 & 255), uint8(v >> 8 & 255), uint8(v & 255)}
}

// Samples returns the components of c as raster samples: one gray sample for
// a single channel, gray and alpha for two, R, G and B otherwise. Alpha
// samples are opaque.
func (c RGBColor) Samples(channels int) []uint32 {
	switch channels {
	case 1:
		return []uint32{uint32(c.R)}
	case 2:
		return []uint32{uint32(c.R), 255}
	}
	out := make([]uint32, channels)
	out[0], out[1], out[2] = uint32(c.R), uint32(c.G), uint32(c.B)
	for i := 3; i < channels; i++ {
		out[i] = 255
	}
	return out
}

// Color returns c as an opaque color.RGBA.
func (c RGBColor) Color() color.RGBA {
	return color.RGBA{c.R, c.G, c.B, 255}
}

// HSL returns c in the HSL color space.
func (c RGBColor) HSL() HSLColor {
	h, s, l := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return HSLColor{
		H: int(math.Round(h)) % 360,
		S: int(math.Round(s * 100)),
		L: int(math.Round(l * 100)),
	}
}

// FindFirstAvailableInt returns the smallest integer in [lo, hi) absent from
// used.
func FindFirstAvailableInt(used []int, lo, hi int) (int, error) {
	taken := make(map[int]bool, len(used))
	for _, v := range used {
		taken[v] = true
	}
	for v := lo; v < hi; v++ {
		if !taken[v] {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no available integer in [%d, %d)", lo, hi)
}

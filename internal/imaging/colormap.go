package imaging

import (
	"image"
	"sort"
	"strings"
)

// ColormapType classifies colormaps.
type ColormapType string

const (
	ColormapSequential ColormapType = "SEQUENTIAL"
)

// Colormap maps intensities to colors.
type Colormap interface {
	// ID is the upper-case identifier, "!" prefixed when inverted.
	ID() string
	// Name is a human readable name.
	Name() string
	Type() ColormapType
	Inverted() bool
	// LUT returns a table of the given size with values on bitDepth bits.
	LUT(size, bitDepth int) *LUT
}

// ColorColormap is a linear ramp between black and a color.
type ColorColormap struct {
	color    RGBColor
	inverted bool
}

// NewColorColormap returns the ramp from black to c, or from c to black when
// inverted.
func NewColorColormap(c RGBColor, inverted bool) *ColorColormap {
	return &ColorColormap{color: c, inverted: inverted}
}

// Color returns the color at the bright end of the ramp.
func (m *ColorColormap) Color() RGBColor { return m.color }

func (m *ColorColormap) ID() string {
	if m.inverted {
		return "!" + m.color.Name()
	}
	return m.color.Name()
}

func (m *ColorColormap) Name() string {
	name := strings.ReplaceAll(m.color.Name(), "_", " ")
	if !strings.HasPrefix(name, "#") && len(name) > 1 {
		name = name[:1] + strings.ToLower(name[1:])
	}
	if m.inverted {
		name += " (Inverted)"
	}
	return name
}

func (m *ColorColormap) Type() ColormapType { return ColormapSequential }

func (m *ColorColormap) Inverted() bool { return m.inverted }

// LUT interpolates every component linearly over the table. A gray color
// gives a single-component table.
func (m *ColorColormap) LUT(size, bitDepth int) *LUT {
	comps := []uint8{m.color.R, m.color.G, m.color.B}
	if m.color.IsGrayscale() {
		comps = comps[:1]
	}
	n := len(comps)
	scale := float64(MaxIntensity(bitDepth))

	l := &LUT{Size: size, Components: n, BitDepth: DTypeBits(bitDepth),
		Values: make([]uint32, size*n)}
	for i := 0; i < size; i++ {
		t := 1.0
		if size > 1 {
			t = float64(i) / float64(size-1)
		}
		if m.inverted {
			t = 1 - t
		}
		for k, c := range comps {
			l.Values[i*n+k] = uint32(t * float64(c) / 255 * scale)
		}
	}
	return l
}

// ColormapImage renders m as a horizontal gradient of the given size.
func ColormapImage(m Colormap, width, height int) image.Image {
	lut := m.LUT(width, 8)
	r := NewRaster(width, height, lut.Components, 8)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			copy(r.Pix[(y*width+x)*lut.Components:], lut.Lookup(uint32(x)))
		}
	}
	return r.Image()
}

// ColormapRegistry is a read-only set of colormaps indexed by identifier.
type ColormapRegistry struct {
	byID map[string]Colormap
	ids  []string
}

// NewColormapRegistry indexes colormaps by their identifier.
func NewColormapRegistry(colormaps ...Colormap) *ColormapRegistry {
	r := &ColormapRegistry{byID: make(map[string]Colormap, len(colormaps))}
	for _, m := range colormaps {
		if _, ok := r.byID[m.ID()]; !ok {
			r.ids = append(r.ids, m.ID())
		}
		r.byID[m.ID()] = m
	}
	sort.Strings(r.ids)
	return r
}

// DefaultColormaps returns a registry with both ramps of every CSS named
// color.
func DefaultColormaps() *ColormapRegistry {
	var all []Colormap
	for _, name := range ColorNames() {
		c, _ := ParseColor(name)
		all = append(all, NewColorColormap(c, false), NewColorColormap(c, true))
	}
	return NewColormapRegistry(all...)
}

// Get returns the colormap with the given identifier.
func (r *ColormapRegistry) Get(id string) (Colormap, bool) {
	m, ok := r.byID[strings.ToUpper(id)]
	return m, ok
}

// IDs returns the sorted identifiers.
func (r *ColormapRegistry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len returns the number of colormaps.
func (r *ColormapRegistry) Len() int { return len(r.ids) }

// DefaultChannelColormap returns the colormap used for channel c of an image
// without channel colors: red, lime, blue, cyan, magenta and yellow for the
// first six channels. ok is false beyond.
func DefaultChannelColormap(c int) (Colormap, bool) {
	palette := []RGBColor{Red, Lime, Blue, {0, 255, 255}, {255, 0, 255}, {255, 255, 0}}
	if c < 0 || c >= len(palette) {
		return nil, false
	}
	return NewColorColormap(palette[c], false), true
}

// IsRGBColormapping reports whether colormaps are exactly the red, lime and
// blue ramps in this order.
func IsRGBColormapping(colormaps []Colormap) bool {
	if len(colormaps) != 3 {
		return false
	}
	for i, want := range []string{"RED", "LIME", "BLUE"} {
		if colormaps[i] == nil || colormaps[i].ID() != want {
			return false
		}
	}
	return true
}

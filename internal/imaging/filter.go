package imaging

import (
	"fmt"
	"math"
	"sort"
)

// FilterType classifies filters.
type FilterType string

const (
	FilterGlobal FilterType = "GLOBAL"
	FilterEdge   FilterType = "EDGE"
)

// Filter is an image filter applied after resizing.
type Filter interface {
	ID() string
	Name() string
	Description() string
	Type() FilterType
	// RequireHistogram reports whether Apply needs the image histogram.
	RequireHistogram() bool
	// RequiredColorspace is the colorspace the input must be converted to
	// before Apply, or ColorspaceAuto.
	RequiredColorspace() Colorspace
	// Apply filters r. hist is nil unless RequireHistogram is true.
	Apply(r *Raster, hist *Histogram) (*Raster, error)
}

// ThresholdFunc computes a threshold from histogram counts.
type ThresholdFunc func(counts []float64) (float64, error)

// ThresholdFilter binarizes a gray raster with a threshold computed on its
// histogram.
type ThresholdFilter struct {
	id          string
	description string
	threshold   ThresholdFunc

	// WhiteObjects inverts the output: samples at or below the threshold are
	// set.
	WhiteObjects bool
}

// NewThresholdFilter returns a global threshold filter.
func NewThresholdFilter(id, description string, fn ThresholdFunc) *ThresholdFilter {
	return &ThresholdFilter{id: id, description: description, threshold: fn}
}

func (f *ThresholdFilter) ID() string                     { return f.id }
func (f *ThresholdFilter) Name() string                   { return titleCase(f.id) }
func (f *ThresholdFilter) Description() string            { return f.description }
func (f *ThresholdFilter) Type() FilterType               { return FilterGlobal }
func (f *ThresholdFilter) RequireHistogram() bool         { return true }
func (f *ThresholdFilter) RequiredColorspace() Colorspace { return ColorspaceGray }

// Threshold computes the threshold for hist, which must be single-channel.
func (f *ThresholdFilter) Threshold(hist *Histogram) (float64, error) {
	if hist == nil || hist.Channels() != 1 {
		return 0, fmt.Errorf("failed to compute %s threshold: a gray histogram is required", f.id)
	}
	return f.threshold(hist.Counts[0])
}

// Apply returns an 8-bit raster set to 255 where the sample is above the
// threshold, 0 elsewhere.
func (f *ThresholdFilter) Apply(r *Raster, hist *Histogram) (*Raster, error) {
	if r.Channels != 1 {
		return nil, fmt.Errorf("failed to apply %s filter: %s raster is not gray", f.id, r)
	}
	t, err := f.Threshold(hist)
	if err != nil {
		return nil, err
	}
	level := uint32(math.Floor(t))

	out := NewRaster(r.Width, r.Height, 1, 8)
	for i, v := range r.Pix {
		if (v > level) != f.WhiteObjects {
			out.Pix[i] = 255
		}
	}
	return out, nil
}

func titleCase(id string) string {
	if id == "" {
		return id
	}
	b := []byte(id)
	for i := 1; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// FilterRegistry is a read-only set of filters indexed by identifier.
type FilterRegistry struct {
	byID map[string]Filter
	ids  []string
}

// NewFilterRegistry indexes filters by identifier.
func NewFilterRegistry(filters ...Filter) *FilterRegistry {
	r := &FilterRegistry{byID: make(map[string]Filter, len(filters))}
	for _, f := range filters {
		if _, ok := r.byID[f.ID()]; !ok {
			r.ids = append(r.ids, f.ID())
		}
		r.byID[f.ID()] = f
	}
	sort.Strings(r.ids)
	return r
}

// DefaultFilters returns the built-in filters.
func DefaultFilters() *FilterRegistry {
	return NewFilterRegistry(
		NewThresholdFilter("OTSU", "Otsu global filtering", OtsuThreshold),
		NewThresholdFilter("ISODATA", "Isodata global filtering", IsodataThreshold),
		NewThresholdFilter("YEN", "Yen global filtering", YenThreshold),
		NewThresholdFilter("MINIMUM", "Minimum global filtering", MinimumThreshold),
		SobelFilter{},
	)
}

// Get returns the filter with the given identifier.
func (r *FilterRegistry) Get(id string) (Filter, bool) {
	f, ok := r.byID[id]
	return f, ok
}

// All returns the filters sorted by identifier.
func (r *FilterRegistry) All() []Filter {
	out := make([]Filter, len(r.ids))
	for i, id := range r.ids {
		out[i] = r.byID[id]
	}
	return out
}

// FiltersColorspace returns the colorspace required by a filter chain: GRAY
// if any filter needs it, COLOR if any needs color, AUTO otherwise.
func FiltersColorspace(filters []Filter) Colorspace {
	cs := ColorspaceAuto
	for _, f := range filters {
		switch f.RequiredColorspace() {
		case ColorspaceGray:
			return ColorspaceGray
		case ColorspaceColor:
			cs = ColorspaceColor
		}
	}
	return cs
}

// FiltersRequireHistogram reports whether any filter needs a histogram.
func FiltersRequireHistogram(filters []Filter) bool {
	for _, f := range filters {
		if f.RequireHistogram() {
			return true
		}
	}
	return false
}

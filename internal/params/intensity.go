package params

import (
	"strconv"
	"strings"

	"github.com/ironsheep/slide-server/internal/problem"
)

// IntensitySelection names an intensity bound computed from image statistics.
type IntensitySelection string

const (
	// AutoImage uses the dtype range for 8-bit images, the channel bounds otherwise.
	AutoImage IntensitySelection = "AUTO_IMAGE"
	// StretchImage uses the channel bounds.
	StretchImage IntensitySelection = "STRETCH_IMAGE"
	// AutoPlane uses the dtype range for 8-bit images, the plane bounds otherwise.
	AutoPlane IntensitySelection = "AUTO_PLANE"
	// StretchPlane uses the bounds of the selected planes.
	StretchPlane IntensitySelection = "STRETCH_PLANE"
	// NoIntensity disables windowing, when allowed.
	NoIntensity IntensitySelection = "NONE"
)

// IntensityBound is either an explicit intensity or a selection.
type IntensityBound struct {
	Value     int
	Selection IntensitySelection
}

// ParseIntensityBound parses an integer or a selection name.
func ParseIntensityBound(field, s string) (IntensityBound, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return IntensityBound{Value: v}, nil
	}
	sel := IntensitySelection(strings.ToUpper(s))
	switch sel {
	case AutoImage, StretchImage, AutoPlane, StretchPlane, NoIntensity:
		return IntensityBound{Selection: sel}, nil
	}
	return IntensityBound{}, problem.InvalidParameter(field, s,
		"an integer, AUTO_IMAGE, STRETCH_IMAGE, AUTO_PLANE, STRETCH_PLANE, NONE")
}

// ParseIntensityBounds resolves minimum and maximum intensities for every
// output channel.
//
// Parameters:
//   - img: image providing the significant bit depth and the statistics
//     used by selections.
//   - channels: output channel indexes.
//   - zs, ts: selected z-slices and timepoints, used by plane selections.
//   - mins, maxs: requested bounds. An empty list means the dtype range; a
//     single value applies to every channel. NONE resolves to the default
//     bound.
//
// Returns one minimum and one maximum per output channel. Explicit values are
// clamped to [0, 2^bits - 1].
func ParseIntensityBounds(img Image, channels, zs, ts []int, mins, maxs []IntensityBound) ([]int, []int, error) {
	bits := img.SignificantBits()
	maxAllowed := 1<<bits - 1
	n := len(channels)

	mins, err := broadcastBounds("min_intensities", mins, n, IntensityBound{Value: 0})
	if err != nil {
		return nil, nil, err
	}
	maxs, err = broadcastBounds("max_intensities", maxs, n, IntensityBound{Value: maxAllowed})
	if err != nil {
		return nil, nil, err
	}

	resolve := func(c int, b IntensityBound, def int, isMin bool) int {
		planeBound := func() int {
			first := true
			var out int
			for _, z := range zs {
				for _, t := range ts {
					lo, hi := img.PlaneBounds(c, z, t)
					v := hi
					if isMin {
						v = lo
					}
					if first || (isMin && v < out) || (!isMin && v > out) {
						out = v
						first = false
					}
				}
			}
			if first {
				return def
			}
			return out
		}
		channelBound := func() int {
			lo, hi := img.ChannelBounds(c)
			if isMin {
				return lo
			}
			return hi
		}

		switch b.Selection {
		case "":
			return min(max(b.Value, 0), maxAllowed)
		case NoIntensity:
			return def
		case AutoImage:
			if bits <= 8 {
				return def
			}
			return channelBound()
		case StretchImage:
			return channelBound()
		case AutoPlane:
			if bits <= 8 {
				return def
			}
			return planeBound()
		case StretchPlane:
			return planeBound()
		default:
			return def
		}
	}

	outMin := make([]int, n)
	outMax := make([]int, n)
	for i, c := range channels {
		outMin[i] = resolve(c, mins[i], 0, true)
		outMax[i] = resolve(c, maxs[i], maxAllowed, false)
	}
	return outMin, outMax, nil
}

func broadcastBounds(field string, in []IntensityBound, n int, def IntensityBound) ([]IntensityBound, error) {
	switch len(in) {
	case 0:
		out := make([]IntensityBound, n)
		for i := range out {
			out[i] = def
		}
		return out, nil
	case 1:
		out := make([]IntensityBound, n)
		for i := range out {
			out[i] = in[0]
		}
		return out, nil
	case n:
		out := make([]IntensityBound, n)
		copy(out, in)
		return out, nil
	default:
		return nil, problem.InvalidArraySize(field, len(in), []int{0, 1, n})
	}
}

// ParseBitdepth resolves a requested output bit depth. 0 means AUTO, the
// image significant bit depth.
func ParseBitdepth(img Image, bits int) int {
	if bits <= 0 {
		return img.SignificantBits()
	}
	return bits
}

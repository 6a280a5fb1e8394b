package params

import (
	"strings"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/problem"
)

// Colormap identifiers with a special meaning.
const (
	ColormapNone            = "NONE"
	ColormapDefault         = "DEFAULT"
	ColormapDefaultInverted = "DEFAULT_INVERTED"
)

// ParseColormapIDs resolves one colormap per output channel. An empty list
// means DEFAULT for every channel, a single id applies to every channel. A nil
// entry in the result means no colormap for that channel.
func ParseColormapIDs(ids []string, registry *imaging.ColormapRegistry, img Image, channels []int) ([]imaging.Colormap, error) {
	switch len(ids) {
	case 0:
		ids = []string{ColormapDefault}
		fallthrough
	case 1:
		all := make([]string, len(channels))
		for i := range all {
			all[i] = ids[0]
		}
		ids = all
	case len(channels):
	default:
		return nil, problem.InvalidArraySize("colormaps", len(ids), []int{0, 1, len(channels)})
	}

	out := make([]imaging.Colormap, len(channels))
	for i, c := range channels {
		cm, err := ParseColormapID(ids[i], registry, img.ChannelColor(c))
		if err != nil {
			return nil, err
		}
		out[i] = cm
	}
	return out, nil
}

// ParseColormapID resolves a single colormap identifier.
//
// Accepted identifiers are NONE, DEFAULT (the channel color), DEFAULT_INVERTED,
// a registered identifier, or any color, "!" prefixed for the inverted map.
// A color that is not registered yields a colormap built on the fly; the
// registry is never modified.
func ParseColormapID(id string, registry *imaging.ColormapRegistry, channelColor *imaging.RGBColor) (imaging.Colormap, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	switch id {
	case ColormapNone:
		return nil, nil
	case ColormapDefault:
		if channelColor == nil {
			return nil, nil
		}
		id = channelColor.Name()
	case ColormapDefaultInverted:
		if channelColor == nil {
			id = "!WHITE"
		} else {
			id = "!" + channelColor.Name()
		}
	}

	if cm, ok := registry.Get(id); ok {
		return cm, nil
	}

	inverted := strings.HasPrefix(id, "!")
	c, err := imaging.ParseColor(strings.TrimPrefix(id, "!"))
	if err != nil {
		return nil, problem.NotFound("colormap", id)
	}
	return imaging.NewColorColormap(c, inverted), nil
}

// ParseFilterIDs resolves filter identifiers, case-insensitively.
func ParseFilterIDs(ids []string, registry *imaging.FilterRegistry) ([]imaging.Filter, error) {
	out := make([]imaging.Filter, 0, len(ids))
	for _, id := range ids {
		f, ok := registry.Get(strings.ToUpper(strings.TrimSpace(id)))
		if !ok {
			return nil, problem.NotFound("filter", id)
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseColorspace parses an output colorspace. An empty string selects AUTO.
func ParseColorspace(s string) (imaging.Colorspace, error) {
	switch cs := imaging.Colorspace(strings.ToUpper(strings.TrimSpace(s))); cs {
	case "":
		return imaging.ColorspaceAuto, nil
	case imaging.ColorspaceAuto, imaging.ColorspaceGray, imaging.ColorspaceColor:
		return cs, nil
	default:
		return "", problem.InvalidParameter("colorspace", s, "AUTO, GRAY, COLOR")
	}
}

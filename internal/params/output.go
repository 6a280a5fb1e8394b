package params

import (
	"github.com/ironsheep/slide-server/internal/problem"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// OutputRequest holds the size constraints of a request. At most one of them
// is honoured, by order of precedence: Level, Zoom, Height, Width, Length.
type OutputRequest struct {
	Height *Size
	Width  *Size
	Length *Size
	Zoom   *int
	Level  *int

	// AllowUpscaling lets a thumbnail be larger than its source. It has no
	// effect on windows.
	AllowUpscaling bool
}

func errUndeterminedOutput() error {
	return problem.BadRequest("Impossible to determine output dimensions. " +
		"Height, width and length cannot all be unset.")
}

// ThumbOutputDimensions computes the output size of a whole-image response
// while preserving the image aspect ratio.
//
// Parameters:
//   - img: source image giving the ratio to preserve and the pyramid used for
//     level and zoom requests.
//   - req: the size constraints.
//
// Returns:
//   - int: output width.
//   - int: output height.
//   - error: a *problem.Problem if the level or zoom does not exist or if no
//     constraint is set.
//
// When upscaling is not allowed and the result exceeds the source in either
// dimension, the source size is returned.
func ThumbOutputDimensions(img Source, req OutputRequest) (int, int, error) {
	var w, h int
	switch {
	case req.Level != nil:
		tier, err := img.Pyramid().TierAtLevel(*req.Level)
		if err != nil {
			return 0, 0, err
		}
		w, h = tier.Width, tier.Height
	case req.Zoom != nil:
		tier, err := img.Pyramid().TierAtZoom(*req.Zoom)
		if err != nil {
			return 0, 0, err
		}
		w, h = tier.Width, tier.Height
	case req.Height != nil:
		h, w = RationedResizing(*req.Height, img.Height(), img.Width())
	case req.Width != nil:
		w, h = RationedResizing(*req.Width, img.Width(), img.Height())
	case req.Length != nil:
		if img.Width() > img.Height() {
			w, h = RationedResizing(*req.Length, img.Width(), img.Height())
		} else {
			h, w = RationedResizing(*req.Length, img.Height(), img.Width())
		}
	default:
		return 0, 0, errUndeterminedOutput()
	}

	if !req.AllowUpscaling && (w > img.Width() || h > img.Height()) {
		return img.Width(), img.Height(), nil
	}
	return w, h, nil
}

// WindowOutputDimensions computes the output size of a region response while
// preserving the region aspect ratio. A level or zoom expresses the region at
// that tier's resolution.
func WindowOutputDimensions(img Source, region pyramid.Region, req OutputRequest) (int, int, error) {
	p := img.Pyramid()
	trueW, trueH := region.TrueWidth(), region.TrueHeight()

	switch {
	case req.Level != nil || req.Zoom != nil:
		var level int
		var err error
		if req.Level != nil {
			level, err = p.LevelOf(*req.Level, pyramid.Level)
		} else {
			level, err = p.LevelOf(*req.Zoom, pyramid.Zoom)
		}
		if err != nil {
			return 0, 0, err
		}
		wf, hf := p.Factor(level)
		return round(trueW / wf), round(trueH / hf), nil
	case req.Height != nil:
		h, w := RationedResizing(*req.Height, int(trueH), int(trueW))
		return w, h, nil
	case req.Width != nil:
		w, h := RationedResizing(*req.Width, int(trueW), int(trueH))
		return w, h, nil
	case req.Length != nil:
		if trueW > trueH {
			w, h := RationedResizing(*req.Length, int(trueW), int(trueH))
			return w, h, nil
		}
		h, w := RationedResizing(*req.Length, int(trueH), int(trueW))
		return w, h, nil
	default:
		return 0, 0, errUndeterminedOutput()
	}
}

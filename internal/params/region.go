package params

import (
	"fmt"

	"github.com/ironsheep/slide-server/internal/problem"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// RegionRequest is a region as sent by a client. Relative coordinates are
// ratios of the reference tier size.
type RegionRequest struct {
	Top    Size `json:"top"`
	Left   Size `json:"left"`
	Width  Size `json:"width"`
	Height Size `json:"height"`
}

// DefaultReferenceTier is the tier a region refers to when the client does
// not name one: the finest tier, whatever the index type.
func DefaultReferenceTier(p *pyramid.Pyramid, typ pyramid.TierIndexType) int {
	if typ == pyramid.Zoom {
		return p.MaxZoom()
	}
	return 0
}

// ParseRegion resolves a region request expressed in the pixel space of the
// reference tier (tierIdx, typ). The returned region carries the reference
// tier's downsample.
//
// A region reaching outside the reference tier is rejected unless silentOOB
// is set, in which case it is clipped to the tier.
func ParseRegion(p *pyramid.Pyramid, req RegionRequest, tierIdx int, typ pyramid.TierIndexType, silentOOB bool) (pyramid.Region, error) {
	level, err := p.LevelOf(tierIdx, typ)
	if err != nil {
		return pyramid.Region{}, err
	}
	tier, _ := p.TierAtLevel(level)
	tw, th := float64(tier.Width), float64(tier.Height)

	wf, hf := p.Factor(level)
	region := pyramid.NewDownsampledRegion(
		req.Top.Resolve(th), req.Left.Resolve(tw),
		req.Width.Resolve(tw), req.Height.Resolve(th),
		wf, hf,
	)

	clipped := region.Clip(tw, th)
	if silentOOB {
		return clipped, nil
	}
	if clipped != region || clipped.IsEmpty() {
		return pyramid.Region{}, problem.BadRequest("Some coordinates of region %s are out of bounds.", region)
	}
	return region, nil
}

// CheckLevelValidity verifies a level exists. A nil level is valid.
func CheckLevelValidity(p *pyramid.Pyramid, level *int) error {
	if level == nil {
		return nil
	}
	_, err := p.TierAtLevel(*level)
	return err
}

// CheckZoomValidity verifies a zoom exists. A nil zoom is valid.
func CheckZoomValidity(p *pyramid.Pyramid, zoom *int) error {
	if zoom == nil {
		return nil
	}
	_, err := p.TierAtZoom(*zoom)
	return err
}

// CheckTileIndexValidity verifies tile ti exists on tier (tierIdx, typ).
func CheckTileIndexValidity(p *pyramid.Pyramid, ti, tierIdx int, typ pyramid.TierIndexType) error {
	tier, err := p.TierAt(tierIdx, typ)
	if err != nil {
		return err
	}
	if ti < 0 || ti >= tier.MaxTi() {
		return problem.InvalidParameter("ti", ti, fmt.Sprintf("0..%d on tier %s", tier.MaxTi()-1, tier))
	}
	return nil
}

// CheckTileCoordValidity verifies tile (tx, ty) exists on tier (tierIdx, typ).
func CheckTileCoordValidity(p *pyramid.Pyramid, tx, ty, tierIdx int, typ pyramid.TierIndexType) error {
	tier, err := p.TierAt(tierIdx, typ)
	if err != nil {
		return err
	}
	if tx < 0 || tx >= tier.MaxTx() {
		return problem.InvalidParameter("tx", tx, fmt.Sprintf("0..%d on tier %s", tier.MaxTx()-1, tier))
	}
	if ty < 0 || ty >= tier.MaxTy() {
		return problem.InvalidParameter("ty", ty, fmt.Sprintf("0..%d on tier %s", tier.MaxTy()-1, tier))
	}
	return nil
}

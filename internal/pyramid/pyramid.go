package pyramid

import (
	"fmt"
	"strings"

	"github.com/ironsheep/slide-server/internal/problem"
)

// TierIndexType selects how a tier index is interpreted.
type TierIndexType string

const (
	Level TierIndexType = "LEVEL"
	Zoom  TierIndexType = "ZOOM"
)

// ParseTierIndexType parses "LEVEL" or "ZOOM" (case-insensitive). An empty
// string selects LEVEL.
func ParseTierIndexType(s string) (TierIndexType, error) {
	switch strings.ToUpper(s) {
	case "", string(Level):
		return Level, nil
	case string(Zoom):
		return Zoom, nil
	default:
		return "", problem.InvalidParameter("tier_index_type", s, "LEVEL, ZOOM")
	}
}

// TierDescriptor is the (width, height, tile size) tuple produced by format
// parsers for every tier of an image.
type TierDescriptor struct {
	Width      int
	Height     int
	TileWidth  int
	TileHeight int
}

// Pyramid is an ordered list of tiers, highest pixel count first.
type Pyramid struct {
	tiers []Tier
}

// New returns an empty pyramid.
func New() *Pyramid {
	return &Pyramid{}
}

// NewWithBase returns a pyramid holding only its base tier.
func NewWithBase(width, height, tileWidth, tileHeight int) *Pyramid {
	p := New()
	p.InsertTier(width, height, tileWidth, tileHeight)
	return p
}

// FromDescriptors builds a pyramid from tier tuples given in any order.
func FromDescriptors(descs []TierDescriptor) *Pyramid {
	p := New()
	for _, d := range descs {
		p.InsertTier(d.Width, d.Height, d.TileWidth, d.TileHeight)
	}
	return p
}

// InsertTier adds a tier while keeping pixel counts in descending order. The
// new tier goes at the first position whose tier has no more pixels than it,
// so it lands before existing tiers of equal size.
func (p *Pyramid) InsertTier(width, height, tileWidth, tileHeight int) {
	tier := Tier{Width: width, Height: height, TileWidth: tileWidth, TileHeight: tileHeight}
	idx := 0
	for idx < len(p.tiers) && tier.NPixels() < p.tiers[idx].NPixels() {
		idx++
	}
	p.tiers = append(p.tiers, Tier{})
	copy(p.tiers[idx+1:], p.tiers[idx:])
	p.tiers[idx] = tier
}

// Len returns the number of tiers.
func (p *Pyramid) Len() int {
	return len(p.tiers)
}

// Tiers returns a copy of the tiers, finest first.
func (p *Pyramid) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// Base returns the highest resolution tier.
func (p *Pyramid) Base() (Tier, bool) {
	if len(p.tiers) == 0 {
		return Tier{}, false
	}
	return p.tiers[0], true
}

func (p *Pyramid) MaxLevel() int { return len(p.tiers) - 1 }
func (p *Pyramid) MaxZoom() int  { return len(p.tiers) - 1 }

// ZoomToLevel converts a zoom index to a level index. A single-tier pyramid
// maps every index to 0.
func (p *Pyramid) ZoomToLevel(zoom int) int {
	if p.MaxZoom() > 0 {
		return p.MaxZoom() - zoom
	}
	return 0
}

// LevelToZoom converts a level index to a zoom index.
func (p *Pyramid) LevelToZoom(level int) int {
	if p.MaxLevel() > 0 {
		return p.MaxLevel() - level
	}
	return 0
}

// Factor returns the downsample of tier level relative to the base tier.
func (p *Pyramid) Factor(level int) (wf, hf float64) {
	if level < 0 || level >= len(p.tiers) {
		return 1, 1
	}
	base, t := p.tiers[0], p.tiers[level]
	return float64(base.Width) / float64(t.Width), float64(base.Height) / float64(t.Height)
}

// TierAtLevel returns the tier at a level index.
func (p *Pyramid) TierAtLevel(level int) (Tier, error) {
	if level < 0 || level >= len(p.tiers) {
		return Tier{}, problem.InvalidParameter("level", level, fmt.Sprintf("0..%d", p.MaxLevel()))
	}
	return p.tiers[level], nil
}

// TierAtZoom returns the tier at a zoom index.
func (p *Pyramid) TierAtZoom(zoom int) (Tier, error) {
	if zoom < 0 || zoom >= len(p.tiers) {
		return Tier{}, problem.InvalidParameter("zoom", zoom, fmt.Sprintf("0..%d", p.MaxZoom()))
	}
	return p.tiers[p.ZoomToLevel(zoom)], nil
}

// LevelOf converts a tier index of the given type to a level index, checking
// its validity.
func (p *Pyramid) LevelOf(idx int, typ TierIndexType) (int, error) {
	if typ == Zoom {
		if _, err := p.TierAtZoom(idx); err != nil {
			return 0, err
		}
		return p.ZoomToLevel(idx), nil
	}
	if _, err := p.TierAtLevel(idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// TierAt returns the tier addressed by idx interpreted as typ.
func (p *Pyramid) TierAt(idx int, typ TierIndexType) (Tier, error) {
	level, err := p.LevelOf(idx, typ)
	if err != nil {
		return Tier{}, err
	}
	return p.tiers[level], nil
}

// MostAppropriateTier returns the level of the coarsest tier that still
// covers width x height. Tiers are scanned from the finest; the scan stops at
// the first tier too small in either dimension. Level 0 is returned when even
// the base tier is too small.
func (p *Pyramid) MostAppropriateTier(width, height int) int {
	best := 0
	for i, t := range p.tiers {
		if t.Width < width || t.Height < height {
			break
		}
		best = i
	}
	return best
}

// TileAt resolves a tile index on the tier addressed by (idx, typ).
func (p *Pyramid) TileAt(idx int, typ TierIndexType, ti int) (Tile, error) {
	level, err := p.LevelOf(idx, typ)
	if err != nil {
		return Tile{}, err
	}
	tier := p.tiers[level]
	if ti < 0 || ti >= tier.MaxTi() {
		return Tile{}, problem.InvalidParameter("ti", ti, fmt.Sprintf("0..%d", tier.MaxTi()-1))
	}
	tx, ty := tier.Ti2TxTy(ti)
	return p.tile(level, tx, ty), nil
}

// TileAtTxTy resolves tile coordinates on the tier addressed by (idx, typ).
func (p *Pyramid) TileAtTxTy(idx int, typ TierIndexType, tx, ty int) (Tile, error) {
	level, err := p.LevelOf(idx, typ)
	if err != nil {
		return Tile{}, err
	}
	tier := p.tiers[level]
	if tx < 0 || tx >= tier.MaxTx() {
		return Tile{}, problem.InvalidParameter("tx", tx, fmt.Sprintf("0..%d", tier.MaxTx()-1))
	}
	if ty < 0 || ty >= tier.MaxTy() {
		return Tile{}, problem.InvalidParameter("ty", ty, fmt.Sprintf("0..%d", tier.MaxTy()-1))
	}
	return p.tile(level, tx, ty), nil
}

func (p *Pyramid) tile(level, tx, ty int) Tile {
	tier := p.tiers[level]
	r := tier.TxTy2Region(tx, ty)
	r.WidthDownsample, r.HeightDownsample = p.Factor(level)
	return Tile{Level: level, Tx: tx, Ty: ty, Ti: tier.TxTy2Ti(tx, ty), Region: r}
}

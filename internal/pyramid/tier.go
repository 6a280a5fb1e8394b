package pyramid

import "fmt"

// Tier is one resolution layer of a pyramid. It carries data only; queries
// that need the base tier (factor, level, zoom) live on Pyramid.
type Tier struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	TileWidth  int `json:"tile_width"`
	TileHeight int `json:"tile_height"`
}

// NPixels returns the pixel count of the tier.
func (t Tier) NPixels() int {
	return t.Width * t.Height
}

// MaxTx is the number of tile columns.
func (t Tier) MaxTx() int {
	return ceilDiv(t.Width, t.TileWidth)
}

// MaxTy is the number of tile rows.
func (t Tier) MaxTy() int {
	return ceilDiv(t.Height, t.TileHeight)
}

// MaxTi is the number of tiles.
func (t Tier) MaxTi() int {
	return t.MaxTx() * t.MaxTy()
}

// Ti2TxTy converts a row-major tile index to tile coordinates.
func (t Tier) Ti2TxTy(ti int) (tx, ty int) {
	mx := t.MaxTx()
	return ti % mx, ti / mx
}

// TxTy2Ti converts tile coordinates to a row-major tile index.
func (t Tier) TxTy2Ti(tx, ty int) int {
	return ty*t.MaxTx() + tx
}

// TxTy2Region returns the pixel region of a tile, in this tier's pixel space
// (downsample 1 relative to the tier). Right and bottom edge tiles are clipped
// to the tier size.
func (t Tier) TxTy2Region(tx, ty int) Region {
	left := tx * t.TileWidth
	top := ty * t.TileHeight
	width := min(left+t.TileWidth, t.Width) - left
	height := min(top+t.TileHeight, t.Height) - top
	return NewRegion(float64(top), float64(left), float64(width), float64(height))
}

// Ti2Region returns the pixel region of the tile with index ti.
func (t Tier) Ti2Region(ti int) Region {
	return t.TxTy2Region(t.Ti2TxTy(ti))
}

func (t Tier) String() string {
	return fmt.Sprintf("%dx%d (tile %dx%d)", t.Width, t.Height, t.TileWidth, t.TileHeight)
}

// Tile is a resolved tile: the tier level it belongs to, its coordinates and
// its region expressed with the tier downsample.
type Tile struct {
	Level  int    `json:"level"`
	Tx     int    `json:"tx"`
	Ty     int    `json:"ty"`
	Ti     int    `json:"ti"`
	Region Region `json:"region"`
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

package slide

import (
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// Description is the metadata of an image as served to clients.
type Description struct {
	Path             string        `json:"path"`
	Format           string        `json:"format"`
	FileSize         int64         `json:"file_size"`
	FileSizeHuman    string        `json:"file_size_human"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	Depth            int           `json:"depth"`
	Duration         int           `json:"duration"`
	NChannels        int           `json:"n_channels"`
	NChannelsPerRead int           `json:"n_channels_per_read"`
	SignificantBits  int           `json:"significant_bits"`
	Channels         []ChannelInfo `json:"channels"`
	Pyramid          []TierInfo    `json:"pyramid"`
}

// ChannelInfo describes one channel.
type ChannelInfo struct {
	Index        int    `json:"index"`
	Color        string `json:"color,omitempty"`
	MinIntensity int    `json:"min_intensity"`
	MaxIntensity int    `json:"max_intensity"`
}

// TierInfo describes one pyramid tier.
type TierInfo struct {
	Level        int     `json:"level"`
	Zoom         int     `json:"zoom"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	TileWidth    int     `json:"tile_width"`
	TileHeight   int     `json:"tile_height"`
	WidthFactor  float64 `json:"width_factor"`
	HeightFactor float64 `json:"height_factor"`
	NTiles       int     `json:"n_tiles"`
}

// Describe returns the metadata of f. name is the path reported to clients;
// an empty name uses the file name.
func Describe(f *FileImage, name string) Description {
	if name == "" {
		name = filepath.Base(f.Path())
	}
	info := f.Info()
	d := Description{
		Path:             name,
		Format:           info.Format,
		FileSize:         info.FileSizeBytes,
		FileSizeHuman:    humanize.IBytes(uint64(max(info.FileSizeBytes, 0))),
		Width:            f.Width(),
		Height:           f.Height(),
		Depth:            f.Depth(),
		Duration:         f.Duration(),
		NChannels:        f.NChannels(),
		NChannelsPerRead: f.NChannelsPerRead(),
		SignificantBits:  f.SignificantBits(),
	}

	for c := 0; c < f.NChannels(); c++ {
		ch := ChannelInfo{Index: c}
		if color := f.ChannelColor(c); color != nil {
			ch.Color = color.Name()
		}
		ch.MinIntensity, ch.MaxIntensity = f.ChannelBounds(c)
		d.Channels = append(d.Channels, ch)
	}

	p := f.Pyramid()
	for level, tier := range p.Tiers() {
		wf, hf := p.Factor(level)
		d.Pyramid = append(d.Pyramid, TierInfo{
			Level:        level,
			Zoom:         p.LevelToZoom(level),
			Width:        tier.Width,
			Height:       tier.Height,
			TileWidth:    tier.TileWidth,
			TileHeight:   tier.TileHeight,
			WidthFactor:  wf,
			HeightFactor: hf,
			NTiles:       tier.MaxTi(),
		})
	}
	return d
}

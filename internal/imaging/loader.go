package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WEBP format decoder
)

// FileInfo contains metadata about an image file, read without decoding its
// pixels.
type FileInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder name: "png", "jpeg", "gif", "tiff" or "webp".
	Format string `json:"format"`

	// BitDepth is the number of bits per sample: 8 or 16.
	BitDepth int `json:"bit_depth"`

	// Channels is 1 for gray images and 3 otherwise.
	Channels int `json:"channels"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// Probe reads the header of an image file.
//
// Parameters:
//   - path: Path to the image file. Supported formats are PNG, JPEG, GIF,
//     TIFF and WEBP.
//
// Returns:
//   - *FileInfo: Metadata about the image.
//   - error: Non-nil if the file cannot be opened or its header decoded.
func Probe(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	info := &FileInfo{
		Width:         cfg.Width,
		Height:        cfg.Height,
		Format:        format,
		BitDepth:      8,
		Channels:      3,
		FileSizeBytes: stat.Size(),
	}
	switch cfg.ColorModel {
	case color.GrayModel:
		info.Channels = 1
	case color.Gray16Model:
		info.Channels = 1
		info.BitDepth = 16
	case color.RGBA64Model, color.NRGBA64Model:
		info.BitDepth = 16
	}
	return info, nil
}

// Load decodes an image file, applying its EXIF orientation if any.
//
// Returns an error if the file does not exist or is not a supported image.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

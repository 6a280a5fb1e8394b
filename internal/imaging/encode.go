package imaging

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
)

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "JPEG"
	FormatPNG  Format = "PNG"
	FormatWEBP Format = "WEBP"
)

// DefaultJPEGQuality is used when no quality is requested.
const DefaultJPEGQuality = 75

var formatMimeTypes = []struct {
	format Format
	mime   string
}{
	{FormatJPEG, "image/jpeg"},
	{FormatPNG, "image/png"},
	{FormatWEBP, "image/webp"},
}

// ParseFormat parses a format name or file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "JPEG", "JPG":
		return FormatJPEG, nil
	case "PNG":
		return FormatPNG, nil
	case "WEBP":
		return FormatWEBP, nil
	}
	return "", fmt.Errorf("unsupported image format: %s", s)
}

// MimeType returns the media type of f.
func (f Format) MimeType() string {
	for _, m := range formatMimeTypes {
		if m.format == f {
			return m.mime
		}
	}
	return "application/octet-stream"
}

// Extension returns the usual file extension of f, without dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return strings.ToLower(string(f))
}

// FormatFromAccept picks the first supported format listed in an Accept
// header. "image/*" and "*/*" select def. ok is false when nothing matches.
func FormatFromAccept(accept string, def Format) (Format, bool) {
	if strings.TrimSpace(accept) == "" {
		return def, true
	}
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mt == "*/*" || mt == "image/*" {
			return def, true
		}
		for _, m := range formatMimeTypes {
			if m.mime == mt {
				return m.format, true
			}
		}
	}
	return "", false
}

// BestEffortBitdepth returns the deepest bit depth at most bits that f can
// encode: 16 for PNG, 8 otherwise.
func BestEffortBitdepth(f Format, bits int) int {
	if f == FormatPNG {
		return min(bits, 16)
	}
	return min(bits, 8)
}

// Encode encodes r in the given format.
//
// Parameters:
//   - r: The raster to encode. Samples deeper than the format supports are
//     rescaled to 8 bits.
//   - f: Output format.
//   - quality: JPEG quality in [1, 100]; 0 selects DefaultJPEGQuality.
//     Ignored by other formats.
//
// Returns the encoded bytes, or an error if encoding fails.
func Encode(r *Raster, f Format, quality int) ([]byte, error) {
	if BestEffortBitdepth(f, r.BitDepth) < r.BitDepth {
		r = To8Bit(r)
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	var err error
	switch f {
	case FormatJPEG:
		err = imaging.Encode(&buf, r.Image(), imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		err = imaging.Encode(&buf, r.Image(), imaging.PNG)
	case FormatWEBP:
		err = nativewebp.Encode(&buf, r.Image(), nil)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", f, err)
	}
	return buf.Bytes(), nil
}

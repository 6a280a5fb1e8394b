package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ironsheep/slide-server/internal/problem"
)

// HTTP headers carrying the safety policy and its outcome.
const (
	HeaderSizeSafety = "X-Image-Size-Safety"
	HeaderSizeLimit  = "X-Image-Size-Limit"
)

// DefaultOutputSizeLimit is the largest output side served without
// UNSAFE when none is configured.
const DefaultOutputSizeLimit = 1024

// SafeMode governs how an output larger than the configured limit is handled.
type SafeMode string

const (
	Unsafe     SafeMode = "UNSAFE"
	SafeReject SafeMode = "SAFE_REJECT"
	SafeResize SafeMode = "SAFE_RESIZE"
)

// ParseSafeMode parses a header value. An empty value selects def.
func ParseSafeMode(s string, def SafeMode) (SafeMode, error) {
	switch m := SafeMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return def, nil
	case Unsafe, SafeReject, SafeResize:
		return m, nil
	default:
		return "", problem.InvalidParameter(HeaderSizeSafety, s, "UNSAFE, SAFE_REJECT, SAFE_RESIZE")
	}
}

// SafeguardOutputDimensions enforces the safety policy on negotiated output
// dimensions. It runs before any pixel is decoded.
//
// Under SAFE_REJECT an oversized output is a problem.TooLarge error. Under
// SAFE_RESIZE the larger dimension is brought down to maxSize and the other
// one follows the aspect ratio, never dropping below one pixel. UNSAFE passes
// everything through.
func SafeguardOutputDimensions(mode SafeMode, maxSize, width, height int) (int, int, error) {
	tooLarge := width > maxSize || height > maxSize
	switch {
	case mode == Unsafe || !tooLarge:
		return width, height, nil
	case mode == SafeReject:
		return 0, 0, problem.TooLarge(width, height, maxSize)
	case mode == SafeResize:
		if width > height {
			w, h := RationedResizing(Abs(maxSize), width, height)
			return w, max(h, 1), nil
		}
		h, w := RationedResizing(Abs(maxSize), height, width)
		return max(w, 1), h, nil
	default:
		return width, height, nil
	}
}

// ImageSizeLimitHeader returns the X-Image-Size-Limit value to send when the
// safe size differs from the requested one.
func ImageSizeLimitHeader(requestWidth, requestHeight, safeWidth, safeHeight int) (string, bool) {
	if requestWidth == 0 {
		return "", false
	}
	ratio := float64(safeWidth) / float64(requestWidth)
	if ratio == 1 {
		return "", false
	}
	return fmt.Sprintf("request_width=%d,request_height=%d,safe_width=%d,safe_height=%d,ratio=%s",
		requestWidth, requestHeight, safeWidth, safeHeight,
		strconv.FormatFloat(ratio, 'f', -1, 64)), true
}

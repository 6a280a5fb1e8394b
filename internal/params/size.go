package params

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/slide-server/internal/problem"
)

// Size is a requested length: either an absolute pixel count or a ratio of a
// reference length. Relative sizes are written with a decimal point ("0.5"),
// absolute sizes without ("512").
type Size struct {
	Value    float64
	Relative bool
}

// Abs returns an absolute size.
func Abs(v int) Size { return Size{Value: float64(v)} }

// Rel returns a size relative to a reference length.
func Rel(v float64) Size { return Size{Value: v, Relative: true} }

// ParseSize parses a query or path value. A value containing a decimal point
// or an exponent is relative.
func ParseSize(field, s string) (Size, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, ".eE") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return Size{}, problem.InvalidParameter(field, s, "a non-negative integer or ratio")
		}
		return Rel(v), nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return Size{}, problem.InvalidParameter(field, s, "a non-negative integer or ratio")
	}
	return Abs(v), nil
}

// Resolve returns the size in pixels for a given reference length.
func (s Size) Resolve(reference float64) float64 {
	if s.Relative {
		return s.Value * reference
	}
	return s.Value
}

func (s Size) String() string {
	if s.Relative {
		out := strconv.FormatFloat(s.Value, 'f', -1, 64)
		if !strings.ContainsAny(out, ".eE") {
			out += ".0"
		}
		return out
	}
	return strconv.FormatInt(int64(s.Value), 10)
}

// UnmarshalJSON keeps the int/float distinction of JSON numbers.
func (s *Size) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	parsed, err := ParseSize("size", n.String())
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

// RationedResizing applies size to the primary dimension of a source and
// derives the other dimension so the aspect ratio is preserved.
//
// Parameters:
//   - size: absolute target for the primary dimension, or ratio of it.
//   - primary: source length along the dimension the size applies to.
//   - other: source length along the other dimension.
//
// Returns:
//   - int: output primary length.
//   - int: output other length.
func RationedResizing(size Size, primary, other int) (int, int) {
	var ratio float64
	var p int
	if size.Relative {
		ratio = size.Value
		p = round(size.Value * float64(primary))
	} else {
		if primary > 0 {
			ratio = size.Value / float64(primary)
		}
		p = int(size.Value)
	}
	return p, round(ratio * float64(other))
}

// round rounds half to even.
func round(v float64) int {
	return int(math.RoundToEven(v))
}

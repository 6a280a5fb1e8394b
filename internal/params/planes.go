package params

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/problem"
)

// ParsePlanes turns plane indexes and ranges into a sorted set of valid plane
// indexes in [0, n).
//
// Items are integers or half-open ranges "a:b", "a:", ":b" and ":", where an
// implicit bound is 0 or n. Indexes outside [0, n) are dropped. An empty item
// list yields def.
//
// Returns a *problem.Problem if an item is neither an index nor a range, or if
// no valid index remains.
func ParsePlanes(items []string, n int, def []int, name string) ([]int, error) {
	if len(items) == 0 {
		return uniqueSorted(def), nil
	}

	var indexes []int
	for _, item := range items {
		item = strings.TrimSpace(item)
		if i, err := strconv.Atoi(item); err == nil {
			indexes = append(indexes, i)
			continue
		}
		low, high, ok := parseRange(item, 0, n)
		if !ok {
			return nil, problem.BadRequest("%s is not a valid index or range for %s.", item, name)
		}
		for i := low; i < high; i++ {
			indexes = append(indexes, i)
		}
	}

	valid := indexes[:0]
	for _, i := range indexes {
		if i >= 0 && i < n {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return nil, problem.BadRequest("No valid indexes for %s", name)
	}
	return uniqueSorted(valid), nil
}

func parseRange(s string, lo, hi int) (int, int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	bounds := [2]int{lo, hi}
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, false
		}
		bounds[i] = v
	}
	return min(bounds[0], bounds[1]), max(bounds[0], bounds[1]), true
}

func uniqueSorted(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// ChannelIndexes selects the channels used to render a response. All
// channels by default.
func ChannelIndexes(img Image, items []string) ([]int, error) {
	def := make([]int, img.NChannels())
	for i := range def {
		def[i] = i
	}
	return ParsePlanes(items, img.NChannels(), def, "channels")
}

// ZSliceIndexes selects the focal planes. The median plane by default.
func ZSliceIndexes(img Image, items []string) ([]int, error) {
	def := []int{int(math.RoundToEven(float64(img.Depth()) / 2))}
	if def[0] >= img.Depth() {
		def[0] = max(img.Depth()-1, 0)
	}
	return ParsePlanes(items, img.Depth(), def, "z_slices")
}

// TimepointIndexes selects the timepoints. The first one by default.
func TimepointIndexes(img Image, items []string) ([]int, error) {
	return ParsePlanes(items, img.Duration(), []int{0}, "timepoints")
}

// ParseChannelReduction parses a channel reduction. An empty string means no
// reduction.
func ParseChannelReduction(s string) (imaging.Reduction, error) {
	r := imaging.Reduction(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case "", imaging.ReduceAdd, imaging.ReduceMax, imaging.ReduceMin, imaging.ReduceAvg, imaging.ReduceMed:
		return r, nil
	}
	return "", problem.InvalidParameter("c_reduction", s, "ADD, MAX, MIN, AVG, MED")
}

// ParseGenericReduction parses a z-slice or timepoint reduction. Summing
// planes of the same channel is not allowed.
func ParseGenericReduction(field, s string) (imaging.Reduction, error) {
	r := imaging.Reduction(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case "", imaging.ReduceMax, imaging.ReduceMin, imaging.ReduceAvg, imaging.ReduceMed:
		return r, nil
	}
	return "", problem.InvalidParameter(field, s, "MAX, MIN, AVG, MED")
}

// CheckReductionValidity requires a reduction when more than one plane is
// selected along an axis.
func CheckReductionValidity(planes []int, reduction imaging.Reduction, name string) error {
	if len(planes) > 1 && reduction == "" {
		return problem.BadRequest("A reduction is required for %s", name)
	}
	return nil
}

// CheckArraySize verifies an array parameter has one of the allowed sizes.
// present is false when the parameter was not sent at all, which is accepted
// only if nullable.
func CheckArraySize(size int, present bool, allowed []int, nullable bool, name string) error {
	if !present {
		if nullable {
			return nil
		}
		if name == "" {
			name = "A parameter"
		}
		return problem.BadRequest("%s is unset while it is not allowed.", name)
	}
	for _, a := range allowed {
		if size == a {
			return nil
		}
	}
	return problem.InvalidArraySize(name, size, allowed)
}

package imaging

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrNoTwoMaxima is returned by MinimumThreshold for histograms that do not
// smooth down to a bimodal shape.
var ErrNoTwoMaxima = errors.New("unable to find two maxima in histogram")

// ErrEmptyHistogram is returned when a histogram has no count at all.
var ErrEmptyHistogram = errors.New("empty histogram")

// clampHistogram drops leading and trailing empty bins. It returns the
// remaining counts and their bin centers.
func clampHistogram(counts []float64) ([]float64, []float64, error) {
	lo, hi := -1, -1
	for i, v := range counts {
		if v > 0 {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return nil, nil, ErrEmptyHistogram
	}
	centers := make([]float64, hi-lo+1)
	for i := range centers {
		centers[i] = float64(lo + i)
	}
	return counts[lo : hi+1], centers, nil
}

func cumsum(s []float64) []float64 {
	return floats.CumSum(make([]float64, len(s)), s)
}

func reverseCumsum(s []float64) []float64 {
	out := make([]float64, len(s))
	var acc float64
	for i := len(s) - 1; i >= 0; i-- {
		acc += s[i]
		out[i] = acc
	}
	return out
}

// OtsuThreshold maximizes the between-class variance.
func OtsuThreshold(counts []float64) (float64, error) {
	c, x, err := clampHistogram(counts)
	if err != nil {
		return 0, err
	}
	if len(c) == 1 {
		return x[0], nil
	}

	cx := make([]float64, len(c))
	floats.MulTo(cx, c, x)
	w1, w2 := cumsum(c), reverseCumsum(c)
	m1, m2 := cumsum(cx), reverseCumsum(cx)
	floats.Div(m1, w1)
	floats.Div(m2, w2)

	best, idx := math.Inf(-1), 0
	for i := 0; i < len(c)-1; i++ {
		d := m1[i] - m2[i+1]
		v := w1[i] * w2[i+1] * d * d
		if v > best {
			best, idx = v, i
		}
	}
	return x[idx], nil
}

// IsodataThreshold returns the first bin center equal, within a bin, to the
// mean of the averages of the two classes it separates.
func IsodataThreshold(counts []float64) (float64, error) {
	c, x, err := clampHistogram(counts)
	if err != nil {
		return 0, err
	}
	if len(c) == 1 {
		return x[0], nil
	}

	cx := make([]float64, len(c))
	floats.MulTo(cx, c, x)
	csum := cumsum(c)
	csumInt := cumsum(cx)
	total, totalInt := csum[len(c)-1], csumInt[len(c)-1]
	width := x[1] - x[0]

	bestIdx, bestDist := 0, math.Inf(1)
	for i := 0; i < len(c)-1; i++ {
		lower := csumInt[i] / csum[i]
		higher := (totalInt - csumInt[i]) / (total - csum[i])
		d := (lower+higher)/2 - x[i]
		if d >= 0 && d < width {
			return x[i], nil
		}
		if math.Abs(d) < bestDist {
			bestIdx, bestDist = i, math.Abs(d)
		}
	}
	return x[bestIdx], nil
}

// YenThreshold maximizes Yen's entropic correlation criterion.
func YenThreshold(counts []float64) (float64, error) {
	c, x, err := clampHistogram(counts)
	if err != nil {
		return 0, err
	}
	if len(c) == 1 {
		return x[0], nil
	}

	pmf := append([]float64(nil), c...)
	floats.Scale(1/floats.Sum(c), pmf)
	sq := make([]float64, len(pmf))
	floats.MulTo(sq, pmf, pmf)

	p1 := cumsum(pmf)
	p1sq := cumsum(sq)
	p2sq := reverseCumsum(sq)

	best, idx := math.Inf(-1), 0
	for i := 0; i < len(c)-1; i++ {
		v := p1[i] * (1 - p1[i])
		crit := math.Log(v * v / (p1sq[i] * p2sq[i+1]))
		if crit > best {
			best, idx = crit, i
		}
	}
	return x[idx], nil
}

// MinimumThreshold smooths the histogram until it has two maxima and
// returns the minimum between them.
func MinimumThreshold(counts []float64) (float64, error) {
	c, x, err := clampHistogram(counts)
	if err != nil {
		return 0, err
	}
	if len(c) == 1 {
		return x[0], nil
	}

	const maxIter = 10000
	smooth := append([]float64(nil), c...)
	var maxima []int
	for iter := 0; ; iter++ {
		smooth = uniformFilter3(smooth)
		maxima = localMaxima(smooth)
		if len(maxima) < 3 {
			break
		}
		if iter == maxIter-1 {
			return 0, errors.New("maximum iteration reached for histogram smoothing")
		}
	}
	if len(maxima) != 2 {
		return 0, ErrNoTwoMaxima
	}

	between := smooth[maxima[0] : maxima[1]+1]
	return x[maxima[0]+floats.MinIdx(between)], nil
}

// uniformFilter3 averages every sample with its two neighbours, edge
// samples being mirrored.
func uniformFilter3(s []float64) []float64 {
	n := len(s)
	out := make([]float64, n)
	for i := range s {
		left, right := s[max(i-1, 0)], s[min(i+1, n-1)]
		out[i] = (left + s[i] + right) / 3
	}
	return out
}

// localMaxima returns the indexes where a rise turns into a fall. A plateau
// counts once, at its last sample.
func localMaxima(s []float64) []int {
	var idx []int
	rising := true
	for i := 0; i < len(s)-1; i++ {
		if rising {
			if s[i+1] < s[i] {
				rising = false
				idx = append(idx, i)
			}
		} else if s[i+1] > s[i] {
			rising = true
		}
	}
	return idx
}

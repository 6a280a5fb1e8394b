package pyramid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion_Derived(t *testing.T) {
	r := NewDownsampledRegion(10, 20, 30, 40, 2, 4)

	assert.Equal(t, 50.0, r.Right())
	assert.Equal(t, 50.0, r.Bottom())
	assert.Equal(t, 40.0, r.TrueLeft())
	assert.Equal(t, 40.0, r.TrueTop())
	assert.Equal(t, 60.0, r.TrueWidth())
	assert.Equal(t, 160.0, r.TrueHeight())
}

func TestRegion_Scale(t *testing.T) {
	r := NewRegion(100, 200, 300, 400)

	scaled := r.Scale(2, 4)

	assert.Equal(t, NewDownsampledRegion(25, 100, 150, 100, 2, 4), scaled)
	// receiver untouched
	assert.Equal(t, NewRegion(100, 200, 300, 400), r)
	// true extents are preserved
	assert.Equal(t, r.TrueWidth(), scaled.TrueWidth())
	assert.Equal(t, r.TrueHeight(), scaled.TrueHeight())
}

func TestRegion_ToInt(t *testing.T) {
	r := NewDownsampledRegion(1.7, 2.2, 3.1, 4.9, 2, 2)

	got := r.ToInt()

	assert.Equal(t, NewDownsampledRegion(1, 2, 4, 5, 2, 2), got)
	assert.LessOrEqual(t, got.Left, r.Left)
	assert.LessOrEqual(t, got.Top, r.Top)
}

func TestRegion_Clip(t *testing.T) {
	tests := []struct {
		name string
		in   Region
		want Region
	}{
		{"inside", NewRegion(10, 10, 20, 20), NewRegion(10, 10, 20, 20)},
		{"negative origin", NewRegion(-5, -10, 20, 20), NewRegion(0, 0, 20, 20)},
		{"overflows right", NewRegion(0, 90, 20, 20), NewRegion(0, 90, 10, 20)},
		{"overflows bottom", NewRegion(95, 0, 20, 20), NewRegion(95, 0, 20, 5)},
		{"fully outside", NewRegion(0, 200, 20, 20), NewRegion(0, 200, 0, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clip(100, 100))
		})
	}
}

func TestRegion_ClipIdempotentOnValidRegions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		w, h := 1+rng.Intn(1000), 1+rng.Intn(1000)
		left, top := rng.Intn(w), rng.Intn(h)
		r := NewRegion(float64(top), float64(left),
			float64(rng.Intn(w-left+1)), float64(rng.Intn(h-top+1)))

		assert.Equal(t, r, r.Clip(float64(w), float64(h)))
	}
}

func TestRegion_FullyOutsideIsEmpty(t *testing.T) {
	assert.True(t, NewRegion(0, 200, 20, 20).Clip(100, 100).IsEmpty())
	assert.False(t, NewRegion(0, 0, 20, 20).Clip(100, 100).IsEmpty())
}

func TestRegion_Equal(t *testing.T) {
	a := NewRegion(100, 200, 300, 400)
	b := NewDownsampledRegion(50, 100, 150, 200, 2, 2)
	c := NewDownsampledRegion(50, 100, 150, 201, 2, 2)

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
}

func TestRegion_ScaleToTier(t *testing.T) {
	p := createTestPyramid()
	r := NewRegion(101, 203, 500, 1900)

	got, err := r.ScaleToTier(p, 1)
	require.NoError(t, err)

	assert.Equal(t, NewDownsampledRegion(50, 101, 250, 950, 2, 2), got)

	_, err = r.ScaleToTier(p, 5)
	assert.Error(t, err)
}

func TestRegion_ScaleToTierClips(t *testing.T) {
	p := createTestPyramid()
	r := NewRegion(1900, 900, 200, 200)

	got, err := r.ScaleToTier(p, 2)
	require.NoError(t, err)

	tier, _ := p.TierAtLevel(2)
	assert.LessOrEqual(t, got.Right(), float64(tier.Width))
	assert.LessOrEqual(t, got.Bottom(), float64(tier.Height))
}

func TestRegion_ScaleComposition(t *testing.T) {
	p := createTestPyramid()
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 200; i++ {
		r := NewRegion(rng.Float64()*1500, rng.Float64()*800, rng.Float64()*500, rng.Float64()*500)
		for from := 0; from < p.Len(); from++ {
			for to := 0; to < p.Len(); to++ {
				viaFrom, err := r.ScaleToTier(p, from)
				require.NoError(t, err)
				tier, _ := p.TierAtLevel(to)
				wf, hf := p.Factor(to)
				composed := viaFrom.Scale(wf, hf).ToInt().Clip(float64(tier.Width), float64(tier.Height))

				direct, err := r.ScaleToTier(p, to)
				require.NoError(t, err)

				// each integer snap moves an edge by at most one pixel of the
				// tier it happens on
				fromF := mustFactor(p, from)
				tol := 2*math.Max(fromF/wf, wf/fromF) + 2
				assert.InDelta(t, direct.Left, composed.Left, tol)
				assert.InDelta(t, direct.Top, composed.Top, tol)
				assert.InDelta(t, direct.Width, composed.Width, tol)
				assert.InDelta(t, direct.Height, composed.Height, tol)
			}
		}
	}
}

func mustFactor(p *Pyramid, level int) float64 {
	wf, _ := p.Factor(level)
	return wf
}

func TestRegion_IsNormalized(t *testing.T) {
	assert.True(t, NewRegion(0, 0.5, 0.5, 1).IsNormalized())
	assert.False(t, NewRegion(0, 0.5, 2, 1).IsNormalized())
}

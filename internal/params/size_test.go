package params

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// fakeImage is an in-memory Image for parameter resolution tests.
type fakeImage struct {
	width, height int
	depth         int
	duration      int
	channels      int
	bits          int
	colors        []*imaging.RGBColor
	pyr           *pyramid.Pyramid

	channelMin, channelMax []int
	// planeBounds[c][z] gives the (min, max) bounds of plane (c, z, 0).
	planeBounds [][][2]int
}

func newFakeImage(width, height int) *fakeImage {
	return &fakeImage{
		width: width, height: height,
		depth: 1, duration: 1, channels: 1, bits: 8,
		pyr: pyramid.NewWithBase(width, height, 256, 256),
	}
}

func (f *fakeImage) Width() int                { return f.width }
func (f *fakeImage) Height() int               { return f.height }
func (f *fakeImage) Pyramid() *pyramid.Pyramid { return f.pyr }
func (f *fakeImage) Depth() int                { return f.depth }
func (f *fakeImage) Duration() int             { return f.duration }
func (f *fakeImage) NChannels() int            { return f.channels }
func (f *fakeImage) SignificantBits() int      { return f.bits }

func (f *fakeImage) ChannelColor(c int) *imaging.RGBColor {
	if c < len(f.colors) {
		return f.colors[c]
	}
	return nil
}

func (f *fakeImage) ChannelBounds(c int) (int, int) {
	if c < len(f.channelMin) {
		return f.channelMin[c], f.channelMax[c]
	}
	return 0, 1<<f.bits - 1
}

func (f *fakeImage) PlaneBounds(c, z, t int) (int, int) {
	if c < len(f.planeBounds) && z < len(f.planeBounds[c]) {
		b := f.planeBounds[c][z]
		return b[0], b[1]
	}
	return f.ChannelBounds(c)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    Size
		wantErr bool
	}{
		{"512", Abs(512), false},
		{" 0 ", Abs(0), false},
		{"0.5", Rel(0.5), false},
		{"1.0", Rel(1), false},
		{"1e-1", Rel(0.1), false},
		{"-1", Size{}, true},
		{"-0.5", Size{}, true},
		{"abc", Size{}, true},
		{"", Size{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize("height", tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSize_Resolve(t *testing.T) {
	assert.Equal(t, 512.0, Abs(512).Resolve(1000))
	assert.Equal(t, 250.0, Rel(0.25).Resolve(1000))
}

func TestSize_JSON(t *testing.T) {
	var req RegionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"top": 10, "left": 0.5, "width": 1.0, "height": 2e1}`), &req))

	assert.Equal(t, Abs(10), req.Top)
	assert.Equal(t, Rel(0.5), req.Left)
	assert.Equal(t, Rel(1), req.Width)
	assert.Equal(t, Rel(20), req.Height)

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"top": 10, "left": 0.5, "width": 1.0, "height": 20.0}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"top": -3}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"top": true}`), &req))
}

func TestRationedResizing(t *testing.T) {
	tests := []struct {
		name        string
		size        Size
		primary     int
		other       int
		wantPrimary int
		wantOther   int
	}{
		{"absolute height", Abs(200), 2000, 1000, 200, 100},
		{"absolute width", Abs(100), 1000, 2000, 100, 200},
		{"relative", Rel(0.5), 1000, 300, 500, 150},
		{"half to even", Abs(3), 2, 1, 3, 2},
		{"zero source", Abs(10), 0, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, o := RationedResizing(tt.size, tt.primary, tt.other)
			assert.Equal(t, tt.wantPrimary, p)
			assert.Equal(t, tt.wantOther, o)
		})
	}
}

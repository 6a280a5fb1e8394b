package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/slide-server/internal/pyramid"
)

func TestParseRegion(t *testing.T) {
	p := createTieredImage().Pyramid()

	tests := []struct {
		name string
		req  RegionRequest
		idx  int
		typ  pyramid.TierIndexType
		want pyramid.Region
	}{
		{
			name: "absolute at base",
			req:  RegionRequest{Top: Abs(10), Left: Abs(20), Width: Abs(30), Height: Abs(40)},
			idx:  0,
			typ:  pyramid.Level,
			want: pyramid.NewRegion(10, 20, 30, 40),
		},
		{
			name: "relative at level 1",
			req:  RegionRequest{Top: Rel(0.5), Left: Rel(0.5), Width: Rel(0.5), Height: Rel(0.25)},
			idx:  1,
			typ:  pyramid.Level,
			want: pyramid.NewDownsampledRegion(500, 250, 250, 250, 2, 2),
		},
		{
			name: "zoom",
			req:  RegionRequest{Top: Abs(0), Left: Abs(0), Width: Abs(250), Height: Abs(500)},
			idx:  0,
			typ:  pyramid.Zoom,
			want: pyramid.NewDownsampledRegion(0, 0, 250, 500, 4, 4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRegion(p, tt.req, tt.idx, tt.typ, false)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			assert.Equal(t, tt.want.WidthDownsample, got.WidthDownsample)
		})
	}
}

func TestParseRegion_OutOfBounds(t *testing.T) {
	p := createTieredImage().Pyramid()
	req := RegionRequest{Top: Abs(0), Left: Abs(400), Width: Abs(200), Height: Abs(100)}

	_, err := ParseRegion(p, req, 1, pyramid.Level, false)
	assert.Error(t, err)

	got, err := ParseRegion(p, req, 1, pyramid.Level, true)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Width)
	assert.Equal(t, 200.0, got.TrueWidth())

	_, err = ParseRegion(p, req, 5, pyramid.Level, true)
	assert.Error(t, err)

	empty := RegionRequest{Top: Abs(0), Left: Abs(0), Width: Abs(0), Height: Abs(10)}
	_, err = ParseRegion(p, empty, 0, pyramid.Level, false)
	assert.Error(t, err)
}

func TestDefaultReferenceTier(t *testing.T) {
	p := createTieredImage().Pyramid()
	assert.Equal(t, 0, DefaultReferenceTier(p, pyramid.Level))
	assert.Equal(t, 2, DefaultReferenceTier(p, pyramid.Zoom))
}

func TestCheckTierValidity(t *testing.T) {
	single := pyramid.NewWithBase(100, 100, 256, 256)
	deep := pyramid.New()
	for i := 0; i < 20; i++ {
		deep.InsertTier(1<<(20-i), 1<<(20-i), 256, 256)
	}

	tests := []struct {
		name    string
		p       *pyramid.Pyramid
		idx     *int
		wantErr bool
	}{
		{"unset", single, nil, false},
		{"single 0", single, intPtr(0), false},
		{"single 1", single, intPtr(1), true},
		{"deep 0", deep, intPtr(0), false},
		{"deep 10", deep, intPtr(10), false},
		{"deep 25", deep, intPtr(25), true},
		{"negative", deep, intPtr(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errLevel := CheckLevelValidity(tt.p, tt.idx)
			errZoom := CheckZoomValidity(tt.p, tt.idx)
			assert.Equal(t, tt.wantErr, errLevel != nil)
			assert.Equal(t, tt.wantErr, errZoom != nil)
		})
	}
}

func TestCheckTileValidity(t *testing.T) {
	p := pyramid.NewWithBase(1000, 2000, 256, 256)

	assert.NoError(t, CheckTileIndexValidity(p, 31, 0, pyramid.Level))
	assert.Error(t, CheckTileIndexValidity(p, 32, 0, pyramid.Level))
	assert.Error(t, CheckTileIndexValidity(p, -1, 0, pyramid.Level))
	assert.Error(t, CheckTileIndexValidity(p, 0, 1, pyramid.Level))

	assert.NoError(t, CheckTileCoordValidity(p, 3, 7, 0, pyramid.Zoom))
	assert.Error(t, CheckTileCoordValidity(p, 3, 8, 0, pyramid.Zoom))
	assert.Error(t, CheckTileCoordValidity(p, 4, 0, 0, pyramid.Zoom))
	assert.Error(t, CheckTileCoordValidity(p, -1, 0, 0, pyramid.Zoom))
}

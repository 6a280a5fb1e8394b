package slide

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/problem"
	"github.com/ironsheep/slide-server/internal/pyramid"
)

// createGradientImage returns a gray image whose intensity grows from 0 on
// the left column to 255 on the right one.
func createGradientImage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (width - 1))})
		}
	}
	return img
}

// writePNG encodes img in dir/name and returns the file path.
func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func openGradient(t *testing.T) *FileImage {
	t.Helper()
	path := writePNG(t, t.TempDir(), "gradient.png", createGradientImage(600, 300))
	img, err := OpenFile(path, 256)
	require.NoError(t, err)
	return img
}

func TestOpenFile(t *testing.T) {
	img := openGradient(t)

	assert.Equal(t, 600, img.Width())
	assert.Equal(t, 300, img.Height())
	assert.Equal(t, 1, img.NChannels())
	assert.Equal(t, 1, img.NChannelsPerRead())
	assert.Equal(t, 8, img.SignificantBits())
	assert.Equal(t, 1, img.Depth())
	assert.Equal(t, 1, img.Duration())
	assert.Nil(t, img.ChannelColor(0))

	tiers := img.Pyramid().Tiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, [2]int{300, 150}, [2]int{tiers[1].Width, tiers[1].Height})
	assert.Equal(t, [2]int{150, 75}, [2]int{tiers[2].Width, tiers[2].Height})

	lo, hi := img.ChannelBounds(0)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 255, hi)
	lo, hi = img.PlaneBounds(0, 0, 0)
	assert.Equal(t, [2]int{0, 255}, [2]int{lo, hi})

	hist, err := img.PlaneHistogram(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, hist.Channels())
	assert.Equal(t, 256, hist.Bins())
	_, err = img.PlaneHistogram(1, 0, 0)
	assert.Error(t, err)
}

func TestOpenFile_Errors(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.png"), 256)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, problem.StatusOf(err))

	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err = OpenFile(path, 256)
	assert.Error(t, err)
}

func TestOpenFile_Color(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	path := writePNG(t, t.TempDir(), "rgba.png", src)
	img, err := OpenFile(path, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, img.NChannels())
	assert.Equal(t, imaging.Red, *img.ChannelColor(0))
	assert.Equal(t, imaging.Blue, *img.ChannelColor(2))
	assert.Nil(t, img.ChannelColor(3))
	assert.Equal(t, 1, img.Pyramid().Len())

	r, err := img.ReadThumb(context.Background(), 20, 10, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Channels)
}

func TestFileImage_ReadThumb(t *testing.T) {
	img := openGradient(t)

	r, err := img.ReadThumb(context.Background(), 100, 50, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 150, r.Width)
	assert.Equal(t, 75, r.Height)

	r, err = img.ReadThumb(context.Background(), 600, 300, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 600, r.Width)

	_, err = img.ReadThumb(context.Background(), 100, 50, 1, 0, 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = img.ReadThumb(ctx, 100, 50, 0, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileImage_ReadWindow(t *testing.T) {
	img := openGradient(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		region pyramid.Region
		w, h   int
		wantW  int
		wantH  int
	}{
		{"full at half", pyramid.NewRegion(0, 0, 600, 300), 300, 150, 300, 150},
		{"full at quarter", pyramid.NewRegion(0, 0, 600, 300), 100, 50, 150, 75},
		{"base crop", pyramid.NewRegion(20, 10, 100, 50), 100, 50, 100, 50},
		{"upscaled crop", pyramid.NewRegion(20, 10, 100, 50), 400, 200, 100, 50},
		{"downsampled region", pyramid.NewDownsampledRegion(0, 0, 150, 75, 2, 2), 150, 75, 150, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := img.ReadWindow(ctx, tt.region, tt.w, tt.h, 0, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, r.Width)
			assert.Equal(t, tt.wantH, r.Height)
		})
	}

	// a base tier crop keeps the source samples
	r, err := img.ReadWindow(ctx, pyramid.NewRegion(0, 599, 1, 1), 1, 1, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(255), r.At(0, 0, 0))

	_, err = img.ReadWindow(ctx, pyramid.NewRegion(0, 700, 10, 10), 10, 10, 0, 0, 0)
	assert.Error(t, err)
}

func TestFileImage_ReadTile(t *testing.T) {
	img := openGradient(t)
	p := img.Pyramid()

	tile, err := p.TileAt(0, pyramid.Level, 0)
	require.NoError(t, err)
	r, err := img.ReadTile(context.Background(), tile, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 256, r.Width)
	assert.Equal(t, 256, r.Height)

	// last column of the base tier is narrower
	tile, err = p.TileAtTxTy(0, pyramid.Level, 2, 1)
	require.NoError(t, err)
	r, err = img.ReadTile(context.Background(), tile, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 600-512, r.Width)
	assert.Equal(t, 300-256, r.Height)

	tile, err = p.TileAt(0, pyramid.Zoom, 0)
	require.NoError(t, err)
	r, err = img.ReadTile(context.Background(), tile, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 150, r.Width)
	assert.Equal(t, 75, r.Height)
}

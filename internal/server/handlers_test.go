package server

import (
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/slide-server/internal/params"
	"github.com/ironsheep/slide-server/internal/slide"
)

func gray(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func nrgba(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestHandleInfo(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := get(t, ts.URL+"/image/gradient.png/info")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d slide.Description
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, "gradient.png", d.Path)
	assert.Equal(t, 600, d.Width)
	assert.Equal(t, 300, d.Height)
	assert.Equal(t, 1, d.NChannels)
	assert.Len(t, d.Pyramid, 3)

	resp, data = get(t, ts.URL+"/image/nested%2Fsplit.png/info")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, "nested/split.png", d.Path)
	assert.Equal(t, 3, d.NChannels)
	require.Len(t, d.Channels, 3)
	assert.Equal(t, "RED", d.Channels[0].Color)
}

func TestHandleThumb(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := get(t, ts.URL+"/image/gradient.png/thumb?length=100")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	img := decodeImage(t, data)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	resp, _ = get(t, ts.URL+"/image/gradient.png/thumb?length=100")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp, data = do(t, http.MethodGet, ts.URL+"/image/gradient.png/thumb?height=30", nil,
		map[string]string{"Accept": "image/png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, image.Rect(0, 0, 60, 30), decodeImage(t, data).Bounds())

	resp, _ = do(t, http.MethodGet, ts.URL+"/image/gradient.png/thumb?height=30", nil,
		map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)

	// No upscaling by default.
	resp, data = get(t, ts.URL+"/image/gradient.png/thumb?width=900&format=png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, image.Rect(0, 0, 600, 300), decodeImage(t, data).Bounds())

	resp, _ = get(t, ts.URL+"/image/gradient.png/thumb")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleResized(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, img image.Image)
	}{
		{
			name:  "gray",
			query: "width=60&format=png",
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, image.Rect(0, 0, 60, 30), img.Bounds())
				assert.Equal(t, uint8(0), gray(img, 0, 10))
				assert.InDelta(t, 255, gray(img, 59, 10), 3)
			},
		},
		{
			name:  "intensity window",
			query: "width=60&format=png&min_intensities=100&max_intensities=101",
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, uint8(0), gray(img, 0, 10))
				assert.Equal(t, uint8(255), gray(img, 59, 10))
			},
		},
		{
			name:  "forced color",
			query: "width=60&format=png&colorspace=COLOR&colormaps=RED",
			check: func(t *testing.T, img image.Image) {
				px := nrgba(img, 59, 10)
				assert.InDelta(t, 255, px.R, 3)
				assert.Equal(t, uint8(0), px.G)
				assert.Equal(t, uint8(0), px.B)
			},
		},
		{
			name:  "filter",
			query: "width=60&format=png&filters=otsu",
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, uint8(0), gray(img, 0, 10))
				assert.Equal(t, uint8(255), gray(img, 59, 10))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := get(t, ts.URL+"/image/gradient.png/resized?"+tt.query)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
			tt.check(t, decodeImage(t, data))
		})
	}
}

func TestHandleResized_InvalidParameters(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"no valid channel", "channels=7", http.StatusBadRequest},
		{"bad reduction", "c_reduction=SUM", http.StatusBadRequest},
		{"too many gammas", "gammas=1,2", http.StatusBadRequest},
		{"negative gamma", "gammas=-1", http.StatusBadRequest},
		{"bad intensity", "min_intensities=LOW", http.StatusBadRequest},
		{"unknown colormap", "colormaps=NOT_A_COLOR", http.StatusNotFound},
		{"unknown filter", "filters=BLUR", http.StatusNotFound},
		{"bad colorspace", "colorspace=CMYK", http.StatusBadRequest},
		{"bad bits", "bits=12", http.StatusBadRequest},
		{"bad quality", "quality=101", http.StatusBadRequest},
		{"bad size", "width=-3", http.StatusBadRequest},
		{"unknown level", "level=9", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := ts.URL + "/image/gradient.png/resized?length=50&" + tt.query
			resp, data := get(t, url)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
		})
	}
}

func TestHandleThumb_SizeSafety(t *testing.T) {
	_, ts := newTestServer(t, Options{OutputSizeLimit: 256})
	url := ts.URL + "/image/gradient.png/thumb?width=512&format=png"

	resp, data := get(t, url)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "size", decodeError(t, data)["field"])

	resp, data = do(t, http.MethodGet, url, nil, map[string]string{params.HeaderSizeSafety: "SAFE_RESIZE"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, image.Rect(0, 0, 256, 128), decodeImage(t, data).Bounds())
	assert.Equal(t, "request_width=512,request_height=256,safe_width=256,safe_height=128,ratio=0.5",
		resp.Header.Get(params.HeaderSizeLimit))

	resp, data = do(t, http.MethodGet, url, nil, map[string]string{params.HeaderSizeSafety: "UNSAFE"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, image.Rect(0, 0, 512, 256), decodeImage(t, data).Bounds())
	assert.Empty(t, resp.Header.Get(params.HeaderSizeLimit))
}

func TestHandleWindow(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	tests := []struct {
		name  string
		query string
		want  image.Rectangle
		check func(t *testing.T, img image.Image)
	}{
		{
			name:  "region",
			query: "region=0,0,100,50&level=0",
			want:  image.Rect(0, 0, 100, 50),
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, uint8(0), gray(img, 0, 0))
				assert.InDelta(t, 42, gray(img, 99, 0), 2)
			},
		},
		{
			name:  "relative region",
			query: "region=0.0,0.5,0.5,0.5&level=0",
			want:  image.Rect(0, 0, 300, 150),
			check: func(t *testing.T, img image.Image) {
				assert.InDelta(t, 127, gray(img, 0, 0), 2)
			},
		},
		{
			name:  "tile index",
			query: "ti=1&reference_tier_index=0&level=0",
			want:  image.Rect(0, 0, 256, 256),
		},
		{
			name:  "tile coordinates on a zoom",
			query: "tx=0&ty=0&tier_index_type=ZOOM&reference_tier_index=0&width=300",
			want:  image.Rect(0, 0, 300, 150),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := get(t, ts.URL+"/image/gradient.png/window?format=png&"+tt.query)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
			img := decodeImage(t, data)
			assert.Equal(t, tt.want, img.Bounds())
			if tt.check != nil {
				tt.check(t, img)
			}
		})
	}
}

func TestHandleWindow_Errors(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	tests := []struct {
		name  string
		query string
	}{
		{"no region", "level=0"},
		{"out of bounds", "region=0,0,700,10&level=0"},
		{"malformed region", "region=0,0,10&level=0"},
		{"no output size", "region=0,0,10,10"},
		{"bad tile index", "ti=99&level=0"},
		{"bad tier type", "ti=0&tier_index_type=DEPTH&level=0"},
		{"unknown reference tier", "ti=0&reference_tier_index=7&level=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := get(t, ts.URL+"/image/gradient.png/window?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
		})
	}
}

func TestHandleWindow_Annotations(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	square := map[string]any{"geometry": "POLYGON((10 10, 50 10, 50 50, 10 50, 10 10))"}
	window := func(style map[string]any) map[string]any {
		return map[string]any{
			"region":           map[string]any{"top": 0, "left": 0, "width": 100, "height": 100},
			"level":            0,
			"format":           "png",
			"annotations":      []any{square},
			"annotation_style": style,
		}
	}

	t.Run("crop", func(t *testing.T) {
		resp, data := do(t, http.MethodPost, ts.URL+"/image/gradient.png/window",
			window(map[string]any{"mode": "CROP"}), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		img := decodeImage(t, data)
		assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
		assert.Equal(t, uint8(255), nrgba(img, 30, 30).A)
		assert.Equal(t, uint8(0), nrgba(img, 80, 80).A)
	})

	t.Run("drawing forces color", func(t *testing.T) {
		resp, data := do(t, http.MethodPost, ts.URL+"/image/gradient.png/window",
			window(map[string]any{"mode": "DRAWING"}), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		img := decodeImage(t, data)

		inside := nrgba(img, 30, 30)
		assert.Equal(t, inside.R, inside.G)
		assert.Equal(t, inside.G, inside.B)

		red := false
		for x := 8; x <= 12; x++ {
			px := nrgba(img, x, 30)
			if px.R > 200 && px.G < 60 && px.B < 60 {
				red = true
			}
		}
		assert.True(t, red, "the left edge of the square is drawn in red")
	})

	t.Run("mask", func(t *testing.T) {
		resp, data := do(t, http.MethodPost, ts.URL+"/image/gradient.png/window",
			window(map[string]any{"mode": "MASK"}), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		img := decodeImage(t, data)
		assert.Equal(t, uint8(255), gray(img, 30, 30))
		assert.Equal(t, uint8(0), gray(img, 80, 80))
	})

	t.Run("invalid geometry", func(t *testing.T) {
		body := window(map[string]any{"mode": "CROP"})
		body["annotations"] = []any{map[string]any{"geometry": "POLYGON((0 0, 1 1"}}
		resp, data := do(t, http.MethodPost, ts.URL+"/image/gradient.png/window", body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "geometry", decodeError(t, data)["field"])
	})

	t.Run("bad mode", func(t *testing.T) {
		resp, data := do(t, http.MethodPost, ts.URL+"/image/gradient.png/window",
			window(map[string]any{"mode": "OUTLINE"}), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "annotation_style.mode", decodeError(t, data)["field"])
	})

	t.Run("bad transparency", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, ts.URL+"/image/gradient.png/window",
			window(map[string]any{"mode": "CROP", "background_transparency": 150}), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandleTile(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		path   string
		status int
		want   image.Rectangle
	}{
		{"level index", "/tile/level/0/ti/0", http.StatusOK, image.Rect(0, 0, 256, 256)},
		{"edge tile", "/tile/level/0/ti/5", http.StatusOK, image.Rect(0, 0, 88, 44)},
		{"zoom coordinates", "/tile/zoom/0/tx/0/ty/0", http.StatusOK, image.Rect(0, 0, 150, 75)},
		{"level coordinates", "/tile/level/1/tx/1/ty/0", http.StatusOK, image.Rect(0, 0, 44, 150)},
		{"tx out of range", "/tile/level/0/tx/3/ty/0", http.StatusBadRequest, image.Rectangle{}},
		{"ti out of range", "/tile/zoom/2/ti/6", http.StatusBadRequest, image.Rectangle{}},
		{"unknown level", "/tile/level/5/ti/0", http.StatusBadRequest, image.Rectangle{}},
		{"not an integer", "/tile/level/x/ti/0", http.StatusBadRequest, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := get(t, ts.URL+"/image/gradient.png"+tt.path+"?format=png")
			require.Equal(t, tt.status, resp.StatusCode, string(data))
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.want, decodeImage(t, data).Bounds())
			}
		})
	}
}

func TestHandleAnnotationMask(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	body := map[string]any{
		"annotations": []any{map[string]any{"geometry": "POLYGON((10 10, 60 10, 60 40, 10 40, 10 10))"}},
		"level":       0,
		"format":      "png",
	}

	resp, data := do(t, http.MethodPost, ts.URL+"/image/gradient.png/annotation/mask", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	img := decodeImage(t, data)
	assert.Equal(t, image.Rect(0, 0, 50, 30), img.Bounds())
	assert.Equal(t, uint8(255), gray(img, 25, 15))

	resp, _ = do(t, http.MethodPost, ts.URL+"/image/gradient.png/annotation/mask",
		map[string]any{"level": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleAnnotationCrop(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	body := map[string]any{
		"annotations": []any{map[string]any{"geometry": "POLYGON((4 4, 20 4, 20 20, 4 20, 4 4))"}},
		"level":       0,
		"format":      "png",
		"bits":        16,
	}

	resp, data := do(t, http.MethodPost, ts.URL+"/image/nested%2Fsplit.png/annotation/crop", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	img := decodeImage(t, data)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	px := nrgba(img, 8, 8)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, px)

	body["context_factor"] = 0.5
	resp, _ = do(t, http.MethodPost, ts.URL+"/image/nested%2Fsplit.png/annotation/crop", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleAnnotationDrawing(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	body := map[string]any{
		"annotations": []any{
			map[string]any{"geometry": "POLYGON((10 10, 60 10, 60 40, 10 40, 10 10))", "stroke_color": "lime"},
			map[string]any{"geometry": "POINT(30 20)"},
		},
		"context_factor": 2,
		"try_square":     true,
		"point_cross":    "CIRCLE",
		"level":          0,
		"format":         "png",
	}

	resp, data := do(t, http.MethodPost, ts.URL+"/image/gradient.png/annotation/drawing", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, image.Rect(0, 0, 100, 100), decodeImage(t, data).Bounds())

	body["point_cross"] = "STAR"
	resp, _ = do(t, http.MethodPost, ts.URL+"/image/gradient.png/annotation/drawing", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleColormaps(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := get(t, ts.URL+"/colormaps")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list collection[colormapInfo]
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, len(list.Items), list.Size)
	assert.Positive(t, list.Size)

	tests := []struct {
		id       string
		status   int
		wantID   string
		inverted bool
	}{
		{"red", http.StatusOK, "RED", false},
		{"!RED", http.StatusOK, "!RED", true},
		{"%23FF0080", http.StatusOK, "#FF0080", false},
		{"NOT_A_COLOR", http.StatusNotFound, "", false},
		{"NONE", http.StatusNotFound, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			resp, data := get(t, ts.URL+"/colormaps/"+tt.id)
			require.Equal(t, tt.status, resp.StatusCode, string(data))
			if tt.status != http.StatusOK {
				return
			}
			var info colormapInfo
			require.NoError(t, json.Unmarshal(data, &info))
			assert.Equal(t, tt.wantID, info.ID)
			assert.Equal(t, tt.inverted, info.Inverted)
		})
	}
}

func TestHandleColormapRepresentation(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := get(t, ts.URL+"/colormaps/BLUE/representation?width=50&height=5&format=png")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	img := decodeImage(t, data)
	assert.Equal(t, image.Rect(0, 0, 50, 5), img.Bounds())
	assert.Equal(t, uint8(0), nrgba(img, 0, 2).B)
	assert.InDelta(t, 255, nrgba(img, 49, 2).B, 6)

	resp, data = get(t, ts.URL+"/colormaps/BLUE/representation?format=png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, image.Rect(0, 0, defaultRepresentationWidth, defaultRepresentationHeight),
		decodeImage(t, data).Bounds())

	resp, _ = get(t, ts.URL+"/colormaps/BLUE/representation?width=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleFilters(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, data := get(t, ts.URL+"/filters")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list collection[filterInfo]
	require.NoError(t, json.Unmarshal(data, &list))

	ids := make([]string, 0, list.Size)
	for _, f := range list.Items {
		ids = append(ids, f.ID)
		assert.NotEmpty(t, f.Description)
	}
	assert.Contains(t, ids, "OTSU")
}

package server

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ironsheep/slide-server/internal/annotation"
	"github.com/ironsheep/slide-server/internal/cache"
	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/params"
	"github.com/ironsheep/slide-server/internal/problem"
	"github.com/ironsheep/slide-server/internal/pyramid"
	"github.com/ironsheep/slide-server/internal/response"
	"github.com/ironsheep/slide-server/internal/slide"
)

// HeaderAnnotationOrigin selects the corner annotation coordinates start at.
const HeaderAnnotationOrigin = "X-Annotation-Origin"

// Colormap representation size when the request sets none.
const (
	defaultRepresentationWidth  = 100
	defaultRepresentationHeight = 10
)

// imageRequest is a rendering request on an opened image.
type imageRequest struct {
	r        *http.Request
	path     string
	mtime    int64
	img      *slide.FileImage
	args     *renderArgs
	body     []byte
	format   imaging.Format
	safeMode params.SafeMode
}

// imagePath returns the image path of the request. Paths with several
// components are sent with escaped slashes.
func imagePath(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "path")
	path, err := url.PathUnescape(raw)
	if err != nil || path == "" {
		return "", problem.NotFound("image", raw)
	}
	return path, nil
}

// openRequest opens the image of r and decodes its parameters.
func (s *Server) openRequest(r *http.Request) (*imageRequest, error) {
	path, err := imagePath(r)
	if err != nil {
		return nil, err
	}
	_, mtime, err := s.lib.Stat(path)
	if err != nil {
		return nil, err
	}
	img, err := s.lib.Open(path)
	if err != nil {
		return nil, err
	}
	args, body, err := readArgs(r)
	if err != nil {
		return nil, err
	}
	format, err := outputFormat(r, args.Format)
	if err != nil {
		return nil, err
	}
	safeMode, err := params.ParseSafeMode(r.Header.Get(params.HeaderSizeSafety), s.opts.DefaultSafeMode)
	if err != nil {
		return nil, err
	}
	return &imageRequest{
		r:        r,
		path:     path,
		mtime:    mtime,
		img:      img,
		args:     args,
		body:     body,
		format:   format,
		safeMode: safeMode,
	}, nil
}

// outputFormat picks the output format from the format parameter, then the
// Accept header. JPEG is the default.
func outputFormat(r *http.Request, name string) (imaging.Format, error) {
	if name != "" {
		f, err := imaging.ParseFormat(name)
		if err != nil {
			return "", problem.InvalidParameter("format", name, "JPEG, PNG, WEBP")
		}
		return f, nil
	}
	accept := r.Header.Get("Accept")
	f, ok := imaging.FormatFromAccept(accept, imaging.FormatJPEG)
	if !ok {
		return "", problem.NotAcceptable(accept, "image/jpeg, image/png, image/webp")
	}
	return f, nil
}

// safeguard applies the size safety policy to a negotiated output size.
func (s *Server) safeguard(req *imageRequest, width, height int) (int, int, error) {
	if width <= 0 || height <= 0 {
		return 0, 0, problem.BadRequest("Output dimensions %dx%d are empty.", width, height)
	}
	return params.SafeguardOutputDimensions(req.safeMode, s.opts.OutputSizeLimit, width, height)
}

// processing resolves the plane selection and the operations of a request.
func (s *Server) processing(img *slide.FileImage, a *renderArgs) (response.Processing, error) {
	var proc response.Processing

	channels, err := params.ChannelIndexes(img, a.Channels)
	if err != nil {
		return proc, err
	}
	cReduction := a.CReduction
	if cReduction == "" {
		cReduction = string(imaging.ReduceAdd)
	}
	cr, err := params.ParseChannelReduction(cReduction)
	if err != nil {
		return proc, err
	}
	if err := params.CheckReductionValidity(channels, cr, "channels"); err != nil {
		return proc, err
	}

	zs, err := params.ZSliceIndexes(img, a.ZSlices)
	if err != nil {
		return proc, err
	}
	zr, err := params.ParseGenericReduction("z_reduction", a.ZReduction)
	if err != nil {
		return proc, err
	}
	if err := params.CheckReductionValidity(zs, zr, "z_slices"); err != nil {
		return proc, err
	}

	ts, err := params.TimepointIndexes(img, a.Timepoints)
	if err != nil {
		return proc, err
	}
	tr, err := params.ParseGenericReduction("t_reduction", a.TReduction)
	if err != nil {
		return proc, err
	}
	if err := params.CheckReductionValidity(ts, tr, "timepoints"); err != nil {
		return proc, err
	}

	mins, err := intensityBounds("min_intensities", a.MinIntensities)
	if err != nil {
		return proc, err
	}
	maxs, err := intensityBounds("max_intensities", a.MaxIntensities)
	if err != nil {
		return proc, err
	}
	minI, maxI, err := params.ParseIntensityBounds(img, channels, zs, ts, mins, maxs)
	if err != nil {
		return proc, err
	}

	if err := params.CheckArraySize(len(a.Gammas), true, []int{0, 1, len(channels)}, false, "gammas"); err != nil {
		return proc, err
	}
	gammas, err := parseGammas(a.Gammas, len(channels))
	if err != nil {
		return proc, err
	}
	colormaps, err := params.ParseColormapIDs(a.Colormaps, s.colormaps, img, channels)
	if err != nil {
		return proc, err
	}
	filters, err := params.ParseFilterIDs(a.Filters, s.filters)
	if err != nil {
		return proc, err
	}
	colorspace, err := params.ParseColorspace(a.Colorspace)
	if err != nil {
		return proc, err
	}

	return response.Processing{
		Channels:         channels,
		Z:                zs[0],
		T:                ts[0],
		ChannelReduction: cr,
		MinIntensities:   minI,
		MaxIntensities:   maxI,
		Gammas:           gammas,
		Log:              a.Log,
		Colormaps:        colormaps,
		Filters:          filters,
		Colorspace:       colorspace,
	}, nil
}

func intensityBounds(field string, items stringList) ([]params.IntensityBound, error) {
	out := make([]params.IntensityBound, 0, len(items))
	for _, item := range items {
		b, err := params.ParseIntensityBound(field, item)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// output returns the output of a request with the given size.
func (s *Server) output(req *imageRequest, width, height int) (response.Output, error) {
	bits, err := parseBits(req.args.Bits)
	if err != nil {
		return response.Output{}, err
	}
	if req.args.Quality < 0 || req.args.Quality > 100 {
		return response.Output{}, problem.InvalidParameter("quality", req.args.Quality, "0..100")
	}
	return response.Output{
		Format:   req.format,
		Width:    width,
		Height:   height,
		BitDepth: params.ParseBitdepth(req.img, bits),
		Quality:  req.args.Quality,
	}, nil
}

// render encodes resp, through the response cache. The cache key covers
// everything the encoded bytes depend on: the image version, the endpoint,
// the parameters and the negotiated format and safety mode.
func (s *Server) render(req *imageRequest, resp response.Response, reqW, reqH, outW, outH int) (*rendered, error) {
	ctx := req.r.Context()
	key := cache.Key(
		req.path,
		strconv.FormatInt(req.mtime, 10),
		req.r.URL.Path,
		req.r.URL.Query().Encode(),
		string(req.body),
		req.r.Header.Get(HeaderAnnotationOrigin),
		string(req.format),
		string(req.safeMode),
	)
	buf, hit, err := s.cache.GetOrRender(ctx, key, resp.Buffer)
	if err != nil {
		return nil, err
	}
	limit, _ := params.ImageSizeLimitHeader(reqW, reqH, outW, outH)
	return &rendered{format: req.format, body: buf, sizeLimit: limit, cacheHit: hit}, nil
}

func (s *Server) handleInfo(r *http.Request) (any, error) {
	path, err := imagePath(r)
	if err != nil {
		return nil, err
	}
	img, err := s.lib.Open(path)
	if err != nil {
		return nil, err
	}
	return slide.Describe(img, path), nil
}

func (s *Server) handleThumb(r *http.Request) (*rendered, error) {
	req, err := s.openRequest(r)
	if err != nil {
		return nil, err
	}
	w, h, err := params.ThumbOutputDimensions(req.img, req.args.output())
	if err != nil {
		return nil, err
	}
	ow, oh, err := s.safeguard(req, w, h)
	if err != nil {
		return nil, err
	}
	proc, err := s.processing(req.img, req.args)
	if err != nil {
		return nil, err
	}
	out, err := s.output(req, ow, oh)
	if err != nil {
		return nil, err
	}
	return s.render(req, response.NewThumbnail(req.img, out, proc), w, h, ow, oh)
}

func (s *Server) handleResized(r *http.Request) (*rendered, error) {
	req, err := s.openRequest(r)
	if err != nil {
		return nil, err
	}
	w, h, err := params.ThumbOutputDimensions(req.img, req.args.output())
	if err != nil {
		return nil, err
	}
	ow, oh, err := s.safeguard(req, w, h)
	if err != nil {
		return nil, err
	}
	proc, err := s.processing(req.img, req.args)
	if err != nil {
		return nil, err
	}
	out, err := s.output(req, ow, oh)
	if err != nil {
		return nil, err
	}
	return s.render(req, response.NewResized(req.img, out, proc), w, h, ow, oh)
}

// windowRegion resolves the region of a window request: an explicit region,
// or a tile of the reference tier.
func windowRegion(img *slide.FileImage, a *renderArgs) (pyramid.Region, error) {
	p := img.Pyramid()
	typ, err := pyramid.ParseTierIndexType(a.TierIndexType)
	if err != nil {
		return pyramid.Region{}, err
	}
	ref := params.DefaultReferenceTier(p, typ)
	if a.ReferenceTierIndex != nil {
		ref = *a.ReferenceTierIndex
	}

	switch {
	case a.Region != nil:
		return params.ParseRegion(p, *a.Region, ref, typ, false)
	case a.Ti != nil:
		if err := params.CheckTileIndexValidity(p, *a.Ti, ref, typ); err != nil {
			return pyramid.Region{}, err
		}
		tile, err := p.TileAt(ref, typ, *a.Ti)
		return tile.Region, err
	case a.Tx != nil && a.Ty != nil:
		if err := params.CheckTileCoordValidity(p, *a.Tx, *a.Ty, ref, typ); err != nil {
			return pyramid.Region{}, err
		}
		tile, err := p.TileAtTxTy(ref, typ, *a.Tx, *a.Ty)
		return tile.Region, err
	default:
		return pyramid.Region{}, problem.BadRequest("Impossible to determine the window region: " +
			"region, ti or tx and ty must be set.")
	}
}

// parseOptions returns the options used to read the annotations of a
// request rendered in mode.
func parseOptions(req *imageRequest, mode annotation.Mode, envelope *float64) (annotation.ParseOptions, error) {
	origin, err := annotation.ParseOrigin(req.r.Header.Get(HeaderAnnotationOrigin))
	if err != nil {
		return annotation.ParseOptions{}, err
	}
	opts := annotation.OptionsForMode(mode)
	opts.Origin = origin
	opts.ImageHeight = req.img.Height()
	if mode == annotation.ModeDrawing && envelope != nil {
		if *envelope < 0 {
			return opts, problem.InvalidParameter("point_envelope_length", *envelope, "a non-negative number")
		}
		opts.PointEnvelopeLength = *envelope
	}
	return opts, nil
}

func (s *Server) handleWindow(r *http.Request) (*rendered, error) {
	req, err := s.openRequest(r)
	if err != nil {
		return nil, err
	}
	a := req.args
	region, err := windowRegion(req.img, a)
	if err != nil {
		return nil, err
	}

	mode, err := annotation.ParseMode(a.AnnotationStyle.Mode)
	if err != nil {
		return nil, err
	}
	pointStyle, err := annotation.ParsePointStyle(a.AnnotationStyle.PointCross)
	if err != nil {
		return nil, err
	}
	style := response.AnnotationStyle{
		Mode:                   mode,
		BackgroundTransparency: a.AnnotationStyle.BackgroundTransparency,
		PointStyle:             pointStyle,
	}

	var list annotation.List
	if len(a.Annotations) > 0 {
		opts, err := parseOptions(req, mode, a.AnnotationStyle.PointEnvelopeLength)
		if err != nil {
			return nil, err
		}
		if list, err = annotation.Parse(a.Annotations, opts); err != nil {
			return nil, err
		}
	}
	return s.renderWindow(req, region, list, style, false)
}

// renderWindow renders region with annotations. Annotation endpoints render
// for display: 8 bits in AUTO colorspace.
func (s *Server) renderWindow(req *imageRequest, region pyramid.Region, list annotation.List,
	style response.AnnotationStyle, display bool) (*rendered, error) {
	a := req.args
	p := req.img.Pyramid()
	if style.BackgroundTransparency < 0 || style.BackgroundTransparency > 100 {
		return nil, problem.InvalidParameter("background_transparency", style.BackgroundTransparency, "0..100")
	}
	if err := params.CheckZoomValidity(p, a.Zoom); err != nil {
		return nil, err
	}
	if err := params.CheckLevelValidity(p, a.Level); err != nil {
		return nil, err
	}
	w, h, err := params.WindowOutputDimensions(req.img, region, a.output())
	if err != nil {
		return nil, err
	}
	ow, oh, err := s.safeguard(req, w, h)
	if err != nil {
		return nil, err
	}

	if display {
		a.Bits = "8"
		a.Colorspace = string(imaging.ColorspaceAuto)
	}
	proc, err := s.processing(req.img, a)
	if err != nil {
		return nil, err
	}
	out, err := s.output(req, ow, oh)
	if err != nil {
		return nil, err
	}

	// Annotations are in base tier coordinates.
	affine := annotation.Identity
	if len(list) > 0 {
		affine = annotation.CropAffineMatrix(list.Region(), region.Scale(1, 1), ow, oh)
	}

	var resp response.Response
	if len(list) > 0 && style.Mode == annotation.ModeMask {
		resp = response.NewMask(list, affine, out)
	} else {
		resp = response.NewWindow(req.img, region, out, proc, list, affine, style)
	}
	return s.render(req, resp, w, h, ow, oh)
}

// annotationRequest opens an annotation endpoint request and returns its
// annotations and the region surrounding them.
func (s *Server) annotationRequest(r *http.Request, mode annotation.Mode, trySquare bool) (*imageRequest, annotation.List, pyramid.Region, error) {
	req, err := s.openRequest(r)
	if err != nil {
		return nil, nil, pyramid.Region{}, err
	}
	a := req.args
	if len(a.Annotations) == 0 {
		return nil, nil, pyramid.Region{}, problem.BadRequest("At least one annotation is required.")
	}
	opts, err := parseOptions(req, mode, a.PointEnvelopeLength)
	if err != nil {
		return nil, nil, pyramid.Region{}, err
	}
	list, err := annotation.Parse(a.Annotations, opts)
	if err != nil {
		return nil, nil, pyramid.Region{}, err
	}

	contextFactor := 1.0
	if a.ContextFactor != nil {
		if *a.ContextFactor < 1 {
			return nil, nil, pyramid.Region{}, problem.InvalidParameter("context_factor", *a.ContextFactor, "a number >= 1")
		}
		contextFactor = *a.ContextFactor
	}
	region := annotation.AnnotationRegion(req.img.Width(), req.img.Height(), list, contextFactor, trySquare && a.TrySquare)
	if region.IsEmpty() {
		return nil, nil, pyramid.Region{}, problem.BadRequest("The annotations cover an empty region.")
	}
	return req, list, region, nil
}

func (s *Server) handleAnnotationMask(r *http.Request) (*rendered, error) {
	req, list, region, err := s.annotationRequest(r, annotation.ModeMask, false)
	if err != nil {
		return nil, err
	}
	p := req.img.Pyramid()
	if err := params.CheckZoomValidity(p, req.args.Zoom); err != nil {
		return nil, err
	}
	if err := params.CheckLevelValidity(p, req.args.Level); err != nil {
		return nil, err
	}
	w, h, err := params.WindowOutputDimensions(req.img, region, req.args.output())
	if err != nil {
		return nil, err
	}
	ow, oh, err := s.safeguard(req, w, h)
	if err != nil {
		return nil, err
	}
	out := response.Output{Format: req.format, Width: ow, Height: oh, BitDepth: 8, Quality: req.args.Quality}
	affine := annotation.CropAffineMatrix(list.Region(), region, ow, oh)
	return s.render(req, response.NewMask(list, affine, out), w, h, ow, oh)
}

func (s *Server) handleAnnotationCrop(r *http.Request) (*rendered, error) {
	req, list, region, err := s.annotationRequest(r, annotation.ModeCrop, false)
	if err != nil {
		return nil, err
	}
	style := response.AnnotationStyle{
		Mode:                   annotation.ModeCrop,
		BackgroundTransparency: req.args.BackgroundTransparency,
	}
	return s.renderWindow(req, region, list, style, true)
}

func (s *Server) handleAnnotationDrawing(r *http.Request) (*rendered, error) {
	req, list, region, err := s.annotationRequest(r, annotation.ModeDrawing, true)
	if err != nil {
		return nil, err
	}
	pointStyle, err := annotation.ParsePointStyle(req.args.PointCross)
	if err != nil {
		return nil, err
	}
	style := response.AnnotationStyle{Mode: annotation.ModeDrawing, PointStyle: pointStyle}
	return s.renderWindow(req, region, list, style, true)
}

// handleTile serves tiles addressed by index (byIndex) or by coordinates on
// a tier given as a level or a zoom.
func (s *Server) handleTile(typ pyramid.TierIndexType, byIndex bool) imageHandlerFunc {
	tierParam := "level"
	if typ == pyramid.Zoom {
		tierParam = "zoom"
	}
	return func(r *http.Request) (*rendered, error) {
		req, err := s.openRequest(r)
		if err != nil {
			return nil, err
		}
		p := req.img.Pyramid()
		idx, err := pathInt(r, tierParam)
		if err != nil {
			return nil, err
		}

		var tile pyramid.Tile
		if byIndex {
			ti, err := pathInt(r, "ti")
			if err != nil {
				return nil, err
			}
			if err := params.CheckTileIndexValidity(p, ti, idx, typ); err != nil {
				return nil, err
			}
			if tile, err = p.TileAt(idx, typ, ti); err != nil {
				return nil, err
			}
		} else {
			tx, err := pathInt(r, "tx")
			if err != nil {
				return nil, err
			}
			ty, err := pathInt(r, "ty")
			if err != nil {
				return nil, err
			}
			if err := params.CheckTileCoordValidity(p, tx, ty, idx, typ); err != nil {
				return nil, err
			}
			if tile, err = p.TileAtTxTy(idx, typ, tx, ty); err != nil {
				return nil, err
			}
		}

		w := int(math.Round(tile.Region.Width))
		h := int(math.Round(tile.Region.Height))
		ow, oh, err := s.safeguard(req, w, h)
		if err != nil {
			return nil, err
		}
		proc, err := s.processing(req.img, req.args)
		if err != nil {
			return nil, err
		}
		out, err := s.output(req, ow, oh)
		if err != nil {
			return nil, err
		}
		return s.render(req, response.NewTile(req.img, tile, out, proc), w, h, ow, oh)
	}
}

func pathInt(r *http.Request, name string) (int, error) {
	v := chi.URLParam(r, name)
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, problem.InvalidParameter(name, v, "an integer")
	}
	return i, nil
}

// colormapInfo is the JSON rendering of a colormap.
type colormapInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Inverted bool   `json:"inverted"`
}

func describeColormap(m imaging.Colormap) colormapInfo {
	return colormapInfo{ID: m.ID(), Name: m.Name(), Type: string(m.Type()), Inverted: m.Inverted()}
}

// collection is the JSON rendering of a list.
type collection[T any] struct {
	Items []T `json:"items"`
	Size  int `json:"size"`
}

func (s *Server) handleColormaps(r *http.Request) (any, error) {
	ids := s.colormaps.IDs()
	items := make([]colormapInfo, 0, len(ids))
	for _, id := range ids {
		m, _ := s.colormaps.Get(id)
		items = append(items, describeColormap(m))
	}
	return collection[colormapInfo]{Items: items, Size: len(items)}, nil
}

// colormap resolves the colormap of the request path: a registered
// identifier or any color, "!" prefixed for the inverted map.
func (s *Server) colormap(r *http.Request) (imaging.Colormap, error) {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	m, err := params.ParseColormapID(id, s.colormaps, nil)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, problem.NotFound("colormap", strings.ToUpper(id))
	}
	return m, nil
}

func (s *Server) handleColormap(r *http.Request) (any, error) {
	m, err := s.colormap(r)
	if err != nil {
		return nil, err
	}
	return describeColormap(m), nil
}

func (s *Server) handleColormapRepresentation(r *http.Request) (*rendered, error) {
	m, err := s.colormap(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	format, err := outputFormat(r, q.Get("format"))
	if err != nil {
		return nil, err
	}

	width, height := defaultRepresentationWidth, defaultRepresentationHeight
	if v, err := intParam(q, "width"); err != nil {
		return nil, err
	} else if v != nil {
		width = *v
	}
	if v, err := intParam(q, "height"); err != nil {
		return nil, err
	} else if v != nil {
		height = *v
	}
	if width <= 0 || height <= 0 || width > s.opts.OutputSizeLimit || height > s.opts.OutputSizeLimit {
		return nil, problem.InvalidParameter("size", strconv.Itoa(width)+"x"+strconv.Itoa(height),
			"1.."+strconv.Itoa(s.opts.OutputSizeLimit))
	}

	out := response.Output{Format: format, Width: width, Height: height, BitDepth: 8}
	key := cache.Key("colormap", m.ID(), strconv.Itoa(width), strconv.Itoa(height), string(format))
	buf, hit, err := s.cache.GetOrRender(r.Context(), key, response.NewColormapRepresentation(m, out).Buffer)
	if err != nil {
		return nil, err
	}
	return &rendered{format: format, body: buf, cacheHit: hit}, nil
}

// filterInfo is the JSON rendering of a filter.
type filterInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func (s *Server) handleFilters(r *http.Request) (any, error) {
	filters := s.filters.All()
	items := make([]filterInfo, 0, len(filters))
	for _, f := range filters {
		items = append(items, filterInfo{
			ID:          f.ID(),
			Name:        f.Name(),
			Description: f.Description(),
			Type:        string(f.Type()),
		})
	}
	return collection[filterInfo]{Items: items, Size: len(items)}, nil
}

// health reports the state of the server.
type health struct {
	Status     string      `json:"status"`
	Version    string      `json:"version,omitempty"`
	Uptime     string      `json:"uptime"`
	OpenImages int         `json:"open_images"`
	Cache      cache.Stats `json:"cache"`
}

func (s *Server) handleHealth(r *http.Request) (any, error) {
	return health{
		Status:     "ok",
		Version:    s.opts.Version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		OpenImages: s.lib.Len(),
		Cache:      s.cache.Stats(),
	}, nil
}

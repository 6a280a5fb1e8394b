package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ironsheep/slide-server/internal/cache"
	"github.com/ironsheep/slide-server/internal/imaging"
	"github.com/ironsheep/slide-server/internal/params"
	"github.com/ironsheep/slide-server/internal/problem"
	"github.com/ironsheep/slide-server/internal/pyramid"
	"github.com/ironsheep/slide-server/internal/slide"
)

// Options tunes a Server.
type Options struct {
	// OutputSizeLimit is the largest output side served without UNSAFE.
	OutputSizeLimit int
	// DefaultSafeMode applies when a request has no X-Image-Size-Safety
	// header.
	DefaultSafeMode params.SafeMode
	// AllowedOrigins lists the CORS origins; "*" allows any.
	AllowedOrigins []string
	// RequestTimeout cancels requests running longer. Zero disables it.
	RequestTimeout time.Duration
	Version        string
}

// Server serves images of a Library over HTTP.
type Server struct {
	lib       *slide.Library
	cache     *cache.Cache
	colormaps *imaging.ColormapRegistry
	filters   *imaging.FilterRegistry
	opts      Options
	log       *zap.Logger
	started   time.Time
}

// New creates a server. c may be nil to disable response caching.
func New(lib *slide.Library, c *cache.Cache, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.OutputSizeLimit <= 0 {
		opts.OutputSizeLimit = params.DefaultOutputSizeLimit
	}
	if opts.DefaultSafeMode == "" {
		opts.DefaultSafeMode = params.SafeReject
	}
	return &Server{
		lib:       lib,
		cache:     c,
		colormaps: imaging.DefaultColormaps(),
		filters:   imaging.DefaultFilters(),
		opts:      opts,
		log:       log,
		started:   time.Now(),
	}
}

// Handler returns the HTTP handler of every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}

	r.Get("/", s.serveJSON(s.handleCatalog))
	r.Get("/health", s.serveJSON(s.handleHealth))

	r.Route("/image/{path}", func(r chi.Router) {
		r.Get("/info", s.serveJSON(s.handleInfo))
		r.Get("/thumb", s.serveImage(s.handleThumb))
		r.Get("/resized", s.serveImage(s.handleResized))
		r.Get("/window", s.serveImage(s.handleWindow))
		r.Post("/window", s.serveImage(s.handleWindow))

		r.Get("/tile/level/{level}/ti/{ti}", s.serveImage(s.handleTile(pyramid.Level, true)))
		r.Get("/tile/zoom/{zoom}/ti/{ti}", s.serveImage(s.handleTile(pyramid.Zoom, true)))
		r.Get("/tile/level/{level}/tx/{tx}/ty/{ty}", s.serveImage(s.handleTile(pyramid.Level, false)))
		r.Get("/tile/zoom/{zoom}/tx/{tx}/ty/{ty}", s.serveImage(s.handleTile(pyramid.Zoom, false)))

		r.Post("/annotation/mask", s.serveImage(s.handleAnnotationMask))
		r.Post("/annotation/crop", s.serveImage(s.handleAnnotationCrop))
		r.Post("/annotation/drawing", s.serveImage(s.handleAnnotationDrawing))
	})

	r.Get("/colormaps", s.serveJSON(s.handleColormaps))
	r.Get("/colormaps/{id}", s.serveJSON(s.handleColormap))
	r.Get("/colormaps/{id}/representation", s.serveImage(s.handleColormapRepresentation))
	r.Get("/filters", s.serveJSON(s.handleFilters))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, problem.NotFound("endpoint", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, &problem.Problem{
			Status: http.StatusMethodNotAllowed,
			Title:  "Method not allowed",
			Detail: fmt.Sprintf("%s is not allowed on %s.", r.Method, r.URL.Path),
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{params.HeaderSizeLimit, "X-Cache", middleware.RequestIDHeader},
	})
	return c.Handler(gzhttp.GzipHandler(r))
}

// Run serves on addr until ctx is canceled, then shuts down gracefully,
// waiting up to shutdownTimeout for requests in flight.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("slide server listening",
			zap.String("addr", addr),
			zap.String("root", s.lib.Root()),
			zap.String("version", s.opts.Version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		w.Header().Set(middleware.RequestIDHeader, reqID)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", reqID))
		}()
		next.ServeHTTP(ww, r)
	})
}

// errorBody is the JSON rendering of an error.
type errorBody struct {
	*problem.Problem
	RequestID string `json:"request_id,omitempty"`
}

// writeError renders err as JSON. Errors that are not a *problem.Problem are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	p, ok := problem.As(err)
	if !ok {
		if errors.Is(err, context.Canceled) {
			s.log.Debug("request canceled", zap.String("request_id", reqID))
		} else {
			s.log.Error("request failed",
				zap.String("path", r.URL.Path),
				zap.String("request_id", reqID),
				zap.Error(err))
		}
		p = &problem.Problem{
			Status: http.StatusInternalServerError,
			Title:  "Internal server error",
			Detail: "The image could not be rendered.",
		}
		if errors.Is(err, context.DeadlineExceeded) {
			p.Status = http.StatusGatewayTimeout
			p.Title = "Request timeout"
			p.Detail = "The request took too long to render."
		}
	}
	writeJSON(w, p.Status, errorBody{Problem: p, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonHandlerFunc returns a value rendered as JSON.
type jsonHandlerFunc func(r *http.Request) (any, error)

func (s *Server) serveJSON(fn jsonHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// rendered is an encoded image ready to be sent.
type rendered struct {
	format imaging.Format
	body   []byte
	// sizeLimit is the X-Image-Size-Limit value, if any.
	sizeLimit string
	cacheHit  bool
}

// imageHandlerFunc renders an image.
type imageHandlerFunc func(r *http.Request) (*rendered, error)

func (s *Server) serveImage(fn imageHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h := w.Header()
		h.Set("Content-Type", out.format.MimeType())
		if out.sizeLimit != "" {
			h.Set(params.HeaderSizeLimit, out.sizeLimit)
		}
		if out.cacheHit {
			h.Set("X-Cache", "HIT")
		} else {
			h.Set("X-Cache", "MISS")
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(out.body); err != nil {
			s.log.Debug("failed to write response", zap.Error(err))
		}
	}
}

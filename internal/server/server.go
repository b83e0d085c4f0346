// Package server exposes the encoder over HTTP.
package server

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	// Registered input formats
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/flavioheleno/rle4"
	"github.com/flavioheleno/rle4/image4bit"
	"github.com/flavioheleno/rle4/internal/archive"
	"github.com/flavioheleno/rle4/internal/config"
	"github.com/flavioheleno/rle4/internal/logging"
	"github.com/flavioheleno/rle4/internal/transform"
)

// MaxUpload is the largest request body accepted.
const MaxUpload = 32 << 20

// Response headers carrying the out-of-band stream geometry.
const (
	HeaderWidth       = "X-Rle4-Width"
	HeaderHeight      = "X-Rle4-Height"
	HeaderChunkWidth  = "X-Rle4-Chunk-Width"
	HeaderCompression = "X-Rle4-Compression"
)

var errBadRequest = errors.New("bad request")

type server struct {
	cfg config.Config
	log *logging.Logger
}

// New returns the HTTP handler. cfg holds the defaults that query
// parameters override per request.
func New(cfg config.Config, l *logging.Logger) http.Handler {
	s := &server{cfg: cfg, log: l}

	h := mux.NewRouter()
	h.Use(s.logger)
	h.NotFoundHandler = s.logger(returncode(http.StatusNotFound))
	h.MethodNotAllowedHandler = s.logger(returncode(http.StatusMethodNotAllowed))

	h.Path("/encode").Methods("POST").HandlerFunc(s.encode)
	h.Path("/preview").Methods("POST").HandlerFunc(s.preview)
	h.Path("/healthz").Methods("GET").HandlerFunc(healthz)
	return h
}

func returncode(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	})
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

// encode answers with the raw stream, optionally compressed.
func (s *server) encode(w http.ResponseWriter, r *http.Request) {
	cfg, data, size, ok := s.convert(w, r)
	if !ok {
		return
	}

	kind := cfg.Archive()
	if kind != archive.None {
		var buf bytes.Buffer
		if err := archive.Write(&buf, kind, data); err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		data = buf.Bytes()
		w.Header().Set(HeaderCompression, string(kind))
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set(HeaderWidth, strconv.Itoa(size.X))
	w.Header().Set(HeaderHeight, strconv.Itoa(size.Y))
	w.Header().Set(HeaderChunkWidth, strconv.Itoa(cfg.ChunkWidth))
	w.Write(data)
}

// preview answers with the stream decoded back to a 16-gray PNG.
func (s *server) preview(w http.ResponseWriter, r *http.Request) {
	cfg, data, size, ok := s.convert(w, r)
	if !ok {
		return
	}

	frame, err := rle4.Decode(data, size.X, size.Y, cfg.ChunkWidth)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	img := image.NewPaletted(frame.Rect, image4bit.Palette)
	for y := 0; y < size.Y; y++ {
		copy(img.Pix[y*img.Stride:], frame.Row(y))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set(HeaderWidth, strconv.Itoa(size.X))
	w.Header().Set(HeaderHeight, strconv.Itoa(size.Y))
	w.Write(buf.Bytes())
}

// convert runs the shared request pipeline. It writes the error response
// itself and reports ok=false on failure.
func (s *server) convert(w http.ResponseWriter, r *http.Request) (cfg config.Config, data []byte, size image.Point, ok bool) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	src, format, err := image.Decode(http.MaxBytesReader(w, r.Body, MaxUpload))
	if err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "decode image"))
		return
	}
	s.log.Debug.Printf("decoded %s %v", format, src.Bounds())

	steps, err := cfg.Steps()
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	img, err := transform.Apply(src, steps)
	if err != nil {
		s.fail(w, http.StatusUnprocessableEntity, err)
		return
	}

	enc, err := rle4.NewEncoder(cfg.EncoderOpts())
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := enc.Validate(img.Bounds()); err != nil {
		s.fail(w, http.StatusUnprocessableEntity, err)
		return
	}
	data, err = enc.Encode(r.Context(), img)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	return cfg, data, img.Bounds().Size(), true
}

// requestConfig applies the query parameters over the server defaults.
func (s *server) requestConfig(r *http.Request) (config.Config, error) {
	cfg := s.cfg
	q := r.URL.Query()

	ints := map[string]*int{
		"levels": &cfg.Levels,
		"fit":    &cfg.Fit,
		"rotate": &cfg.Rotate,
	}
	for name, dst := range ints {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return cfg, errors.Wrapf(errBadRequest, "%s=%q", name, v)
			}
			*dst = n
		}
	}
	if v := q.Get("invert"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.Wrapf(errBadRequest, "invert=%q", v)
		}
		cfg.Invert = b
	}
	if q.Has("flip") {
		cfg.Flip = q.Get("flip")
	}
	if q.Has("crop") {
		cfg.Crop = q.Get("crop")
	}
	if q.Has("compress") {
		cfg.Compress = q.Get("compress")
	}
	return cfg, cfg.Validate()
}

func (s *server) fail(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error.Printf("%v", err)
	} else {
		s.log.Warn.Printf("%d: %v", code, err)
	}
	http.Error(w, err.Error(), code)
}

package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavioheleno/rle4"
	"github.com/flavioheleno/rle4/internal/archive"
	"github.com/flavioheleno/rle4/internal/config"
	"github.com/flavioheleno/rle4/internal/logging"
)

func newTestServer() http.Handler {
	return New(config.Default(), logging.Discard())
}

// pngBody returns a w x h PNG, white on the left half and black on the right.
func pngBody(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x < w/2 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func do(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(newTestServer(), "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestEncode(t *testing.T) {
	rec := do(newTestServer(), "POST", "/encode", pngBody(t, 640, 240))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "640", rec.Header().Get(HeaderWidth))
	assert.Equal(t, "240", rec.Header().Get(HeaderHeight))
	assert.Equal(t, "320", rec.Header().Get(HeaderChunkWidth))
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))

	// Each row is one white chunk then one black chunk
	want := bytes.Repeat(append(bytes.Repeat([]byte{0xFF}, 20), bytes.Repeat([]byte{0xF0}, 20)...), 240)
	assert.Equal(t, want, rec.Body.Bytes())
}

func TestEncodeQueryOptions(t *testing.T) {
	rec := do(newTestServer(), "POST", "/encode?invert=true&flip=h", pngBody(t, 320, 240))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Flipped then inverted: white pixels on the left again
	frame, err := rle4.Decode(rec.Body.Bytes(), 320, 240, 320)
	require.NoError(t, err)
	assert.Equal(t, uint8(15), frame.Gray4At(0, 0).Y)
	assert.Equal(t, uint8(0), frame.Gray4At(319, 0).Y)
}

func TestEncodeFit(t *testing.T) {
	rec := do(newTestServer(), "POST", "/encode?fit=1", pngBody(t, 100, 100))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "320", rec.Header().Get(HeaderWidth))
	assert.Equal(t, "240", rec.Header().Get(HeaderHeight))
}

func TestEncodeCompressed(t *testing.T) {
	rec := do(newTestServer(), "POST", "/encode?compress=zstd", pngBody(t, 320, 240))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "zstd", rec.Header().Get(HeaderCompression))

	r, err := archive.NewReader(rec.Body, archive.Zstd)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, data, 240*40)
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   func(*testing.T) io.Reader
		code   int
	}{
		{"bad geometry", "/encode", func(t *testing.T) io.Reader { return pngBody(t, 300, 240) }, http.StatusUnprocessableEntity},
		{"bad height", "/encode", func(t *testing.T) io.Reader { return pngBody(t, 640, 241) }, http.StatusUnprocessableEntity},
		{"not an image", "/encode", func(*testing.T) io.Reader { return bytes.NewReader([]byte("hello")) }, http.StatusBadRequest},
		{"bad levels", "/encode?levels=40", func(t *testing.T) io.Reader { return pngBody(t, 320, 240) }, http.StatusBadRequest},
		{"bad invert", "/encode?invert=maybe", func(t *testing.T) io.Reader { return pngBody(t, 320, 240) }, http.StatusBadRequest},
		{"crop outside", "/encode?crop=1000,1000,10,10", func(t *testing.T) io.Reader { return pngBody(t, 320, 240) }, http.StatusUnprocessableEntity},
		{"bad flip", "/encode?flip=diagonal", func(t *testing.T) io.Reader { return pngBody(t, 320, 240) }, http.StatusBadRequest},
		{"bad rotate", "/encode?rotate=45", func(t *testing.T) io.Reader { return pngBody(t, 320, 240) }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(), "POST", tt.target, tt.body(t))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestPreview(t *testing.T) {
	rec := do(newTestServer(), "POST", "/preview?levels=2", pngBody(t, 320, 240))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 240), img.Bounds())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	r, _, _, _ = img.At(319, 239).RGBA()
	assert.Equal(t, uint32(0), r)
}

func TestRouting(t *testing.T) {
	h := newTestServer()
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, "GET", "/encode", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(h, "GET", "/nope", nil).Code)
}

func TestRequestLogSize(t *testing.T) {
	var buf bytes.Buffer
	h := New(config.Default(), logging.New(&buf, false))

	rec := do(h, "POST", "/preview", pngBody(t, 320, 240))
	require.Equal(t, http.StatusOK, rec.Code)

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "[req] ")
	assert.True(t, strings.HasSuffix(line, " 200 "+strconv.Itoa(rec.Body.Len())), line)
}

func TestEncodeFitCustomChunkWidth(t *testing.T) {
	cfg := config.Default()
	cfg.ChunkWidth = 256
	rec := do(New(cfg, logging.Discard()), "POST", "/encode?fit=1", pngBody(t, 100, 100))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "256", rec.Header().Get(HeaderWidth))
	assert.Equal(t, "256", rec.Header().Get(HeaderChunkWidth))
}

package rle4

import (
	"bytes"
	"context"
	"image"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/flavioheleno/rle4/image4bit"
)

const (
	// ChunkWidth is the scan segment width of the target display.
	ChunkWidth = 320
	// FrameHeight is the frame height of the target display.
	FrameHeight = 240

	maxChunkWidth = 4096

	// Rows handed to workers before their output is flushed in order.
	rowsPerWorker = 16
)

var (
	// ErrGeometry is returned when the image size is not a multiple of the
	// chunk width and frame height.
	ErrGeometry = errors.New("rle4: image size must be a multiple of the frame size")
	// ErrShortStream is returned when a stream ends inside a chunk.
	ErrShortStream = errors.New("rle4: stream ends inside a chunk")
	// ErrTrailingData is returned when a stream holds more chunks than the image size allows.
	ErrTrailingData = errors.New("rle4: trailing data after last chunk")
)

// Opts is the configuration for an Encoder.
type Opts struct {
	ChunkWidth  int // Scan chunk width in pixels (default: 320)
	FrameHeight int // Height must be a multiple of this (default: 240)

	// Quantizer controls posterization and inversion. The zero value maps
	// straight to 16 levels.
	Quantizer image4bit.Quantizer

	// Workers is the number of rows encoded concurrently (default: 1).
	// Output is identical for any value.
	Workers int
}

// Stats describes a finished encode.
type Stats struct {
	Width  int
	Height int
	Chunks int
	Bytes  int64
}

// Encoder converts images to rle4 streams. It holds no per-call state and
// is safe for concurrent use.
type Encoder struct {
	opts Opts
}

// NewEncoder validates opts and returns an Encoder.
//
// opts can be nil to use defaults (320x240 frames, 16 levels, sequential).
func NewEncoder(opts *Opts) (*Encoder, error) {
	o := Opts{ChunkWidth: ChunkWidth, FrameHeight: FrameHeight, Workers: 1}
	if opts != nil {
		o = *opts
	}
	if o.ChunkWidth == 0 {
		o.ChunkWidth = ChunkWidth
	}
	if o.FrameHeight == 0 {
		o.FrameHeight = FrameHeight
	}
	if o.Workers == 0 {
		o.Workers = 1
	}

	if o.ChunkWidth < 1 || o.ChunkWidth > maxChunkWidth {
		return nil, errors.Errorf("rle4: chunk width must be between 1 and %d", maxChunkWidth)
	}
	if o.FrameHeight < 1 {
		return nil, errors.New("rle4: frame height must be positive")
	}
	if o.Workers < 1 {
		return nil, errors.New("rle4: workers must be positive")
	}
	if err := o.Quantizer.Validate(); err != nil {
		return nil, errors.Wrap(err, "rle4")
	}
	return &Encoder{opts: o}, nil
}

// Opts returns the effective options, defaults applied.
func (e *Encoder) Opts() Opts {
	return e.opts
}

// CheckGeometry reports whether a w x h image fits the display geometry:
// w must be a positive multiple of chunkWidth and h of frameHeight.
func CheckGeometry(w, h, chunkWidth, frameHeight int) error {
	if w <= 0 || h <= 0 || w%chunkWidth != 0 || h%frameHeight != 0 {
		return errors.Wrapf(ErrGeometry, "need multiples of %dx%d, got %dx%d", chunkWidth, frameHeight, w, h)
	}
	return nil
}

// Validate checks the geometry of r against the encoder options.
func (e *Encoder) Validate(r image.Rectangle) error {
	return CheckGeometry(r.Dx(), r.Dy(), e.opts.ChunkWidth, e.opts.FrameHeight)
}

// Encode returns the rle4 stream of img.
func (e *Encoder) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.EncodeTo(ctx, &buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the rle4 stream of img to w, rows top to bottom and
// chunks left to right. The geometry is checked before anything is written.
func (e *Encoder) EncodeTo(ctx context.Context, w io.Writer, img image.Image) (Stats, error) {
	b := img.Bounds()
	st := Stats{Width: b.Dx(), Height: b.Dy()}
	if err := e.Validate(b); err != nil {
		return st, err
	}

	window := e.opts.Workers * rowsPerWorker
	if e.opts.Workers == 1 {
		window = 1
	}
	rows := make([][]byte, window)
	for y0 := 0; y0 < st.Height; y0 += window {
		n := min(window, st.Height-y0)
		if err := e.encodeRows(ctx, img, y0, rows[:n]); err != nil {
			return st, err
		}
		// Merge in row order so the stream matches a sequential encode
		for _, row := range rows[:n] {
			m, err := w.Write(row)
			st.Bytes += int64(m)
			if err != nil {
				return st, errors.Wrap(err, "rle4: write")
			}
		}
	}
	st.Chunks = st.Height * ((st.Width + e.opts.ChunkWidth - 1) / e.opts.ChunkWidth)
	return st, nil
}

// encodeRows encodes len(dst) rows starting at y0, one row per slot.
func (e *Encoder) encodeRows(ctx context.Context, img image.Image, y0 int, dst [][]byte) error {
	if len(dst) == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst[0] = e.encodeRow(img, y0, dst[0][:0])
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range dst {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dst[i] = e.encodeRow(img, y0+i, dst[i][:0])
			return nil
		})
	}
	return g.Wait()
}

// encodeRow appends the encoded chunks of row y to dst.
func (e *Encoder) encodeRow(img image.Image, y int, dst []byte) []byte {
	buf := make([]byte, 0, e.opts.ChunkWidth)
	segmentRow(img, y, e.opts.ChunkWidth, e.opts.Quantizer, buf, func(c Chunk) {
		dst = AppendChunk(dst, c.Indices)
	})
	return dst
}

// Encode returns the rle4 stream of img with default options.
func Encode(img image.Image) ([]byte, error) {
	e, _ := NewEncoder(nil)
	return e.Encode(context.Background(), img)
}

package rle4

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavioheleno/rle4/image4bit"
)

func TestCheckGeometry(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		wantErr bool
	}{
		{"320x240", 320, 240, false},
		{"640x480", 640, 480, false},
		{"960x720", 960, 720, false},
		{"1280x240", 1280, 240, false},
		{"300x240", 300, 240, true},
		{"640x241", 640, 241, true},
		{"zero width", 0, 240, true},
		{"zero height", 320, 0, true},
		{"negative", -320, 240, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckGeometry(tt.w, tt.h, ChunkWidth, FrameHeight)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrGeometry))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewEncoderValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Opts
		wantErr bool
	}{
		{"nil options (uses defaults)", nil, false},
		{"zero value", &Opts{}, false},
		{"custom chunk", &Opts{ChunkWidth: 160, FrameHeight: 120}, false},
		{"chunk too wide", &Opts{ChunkWidth: 5000}, true},
		{"negative chunk", &Opts{ChunkWidth: -1}, true},
		{"negative height", &Opts{FrameHeight: -240}, true},
		{"negative workers", &Opts{Workers: -2}, true},
		{"bad levels", &Opts{Quantizer: image4bit.Quantizer{Levels: 1}}, true},
		{"posterized", &Opts{Quantizer: image4bit.Quantizer{Levels: 4, Invert: true}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncoder(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, enc)
				return
			}
			require.NoError(t, err)
			o := enc.Opts()
			assert.Positive(t, o.ChunkWidth)
			assert.Positive(t, o.FrameHeight)
			assert.Positive(t, o.Workers)
		})
	}
}

func TestEncodeBlackImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}

	data, err := Encode(img)
	require.NoError(t, err)

	// 480 rows x 2 chunks x 20 maximal runs
	require.Len(t, data, 480*2*20)
	assert.Equal(t, bytes.Repeat([]byte{0xF0}, len(data)), data)
}

func TestEncodeRejectsGeometryWithoutOutput(t *testing.T) {
	enc, err := NewEncoder(nil)
	require.NoError(t, err)

	for _, r := range []image.Rectangle{image.Rect(0, 0, 300, 240), image.Rect(0, 0, 640, 241)} {
		var buf bytes.Buffer
		st, err := enc.EncodeTo(context.Background(), &buf, image.NewRGBA(r))
		assert.True(t, errors.Is(err, ErrGeometry), "%v: %v", r, err)
		assert.Zero(t, buf.Len())
		assert.Zero(t, st.Bytes)
	}
}

func TestEncodeStats(t *testing.T) {
	enc, err := NewEncoder(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	st, err := enc.EncodeTo(context.Background(), &buf, image.NewGray(image.Rect(0, 0, 960, 240)))
	require.NoError(t, err)
	assert.Equal(t, Stats{Width: 960, Height: 240, Chunks: 720, Bytes: 720 * 20}, st)
	assert.EqualValues(t, buf.Len(), st.Bytes)
}

func TestEncodeRoundTrip(t *testing.T) {
	img := noiseImage(rand.New(rand.NewSource(7)), 640, 240)
	data, err := Encode(img)
	require.NoError(t, err)

	decoded, err := Decode(data, 640, 240, ChunkWidth)
	require.NoError(t, err)
	for y := 0; y < 240; y++ {
		for x := 0; x < 640; x++ {
			want := image4bit.Quantize(image4bit.RGB8(img.At(x, y)))
			if got := decoded.Gray4At(x, y).Y; got != want {
				t.Fatalf("pixel (%d, %d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestEncodeParallelMatchesSequential(t *testing.T) {
	img := noiseImage(rand.New(rand.NewSource(3)), 960, 480)

	seq, err := NewEncoder(nil)
	require.NoError(t, err)
	want, err := seq.Encode(context.Background(), img)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8} {
		par, err := NewEncoder(&Opts{Workers: workers})
		require.NoError(t, err)
		got, err := par.Encode(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestEncodeCustomGeometry(t *testing.T) {
	enc, err := NewEncoder(&Opts{ChunkWidth: 4, FrameHeight: 1})
	require.NoError(t, err)

	img := image4bit.NewHorizontalNibble(image.Rect(0, 0, 8, 1))
	img.SetRow(0, 0, []byte{1, 1, 2, 2, 2, 2, 2, 3})
	data, err := enc.Encode(context.Background(), img)
	require.NoError(t, err)
	// The run of 2s is split at the chunk boundary
	assert.Equal(t, []byte{0x11, 0x12, 0x22, 0x03}, data)
}

func TestEncodeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		enc, err := NewEncoder(&Opts{Workers: workers})
		require.NoError(t, err)
		_, err = enc.Encode(ctx, image.NewGray(image.Rect(0, 0, 320, 240)))
		assert.ErrorIs(t, err, context.Canceled)
	}
}

type failWriter struct{ err error }

func (w failWriter) Write([]byte) (int, error) { return 0, w.err }

func TestEncodeWriteError(t *testing.T) {
	enc, err := NewEncoder(nil)
	require.NoError(t, err)

	boom := errors.New("disk full")
	_, err = enc.EncodeTo(context.Background(), failWriter{boom}, image.NewGray(image.Rect(0, 0, 320, 240)))
	assert.ErrorIs(t, err, boom)
}

func noiseImage(rng *rand.Rand, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		v := uint8(rng.Intn(256))
		for x := 0; x < w; x++ {
			// Mostly flat stretches so runs of every length show up
			if rng.Intn(12) == 0 {
				v = uint8(rng.Intn(256))
			}
			img.Set(x, y, color.RGBA{v, uint8(rng.Intn(2)) + v/2, v, 0xFF})
		}
	}
	return img
}

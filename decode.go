package rle4

import (
	"image"

	"github.com/pkg/errors"

	"github.com/flavioheleno/rle4/image4bit"
)

// DecodeChunk expands stream bytes until n indices are produced and reports
// how many bytes were consumed. A run that overshoots n is cut at the chunk
// edge, the way the player stops drawing at the end of a segment.
func DecodeChunk(data []byte, n int) (indices []byte, consumed int, err error) {
	indices = make([]byte, 0, n)
	for len(indices) < n {
		if consumed >= len(data) {
			return indices, consumed, ErrShortStream
		}
		r := ParseRun(data[consumed])
		consumed++
		for i := 0; i < r.Length && len(indices) < n; i++ {
			indices = append(indices, r.Value)
		}
	}
	return indices, consumed, nil
}

// ChunkSize returns the number of bytes that encode the n-index chunk at the
// start of data, or 0 if data ends first.
func ChunkSize(data []byte, n int) int {
	pixels := 0
	for i, b := range data {
		pixels += int(b>>4) + 1
		if pixels >= n {
			return i + 1
		}
	}
	return 0
}

// Index returns the byte offset of every chunk in a stream whose rows are a
// whole number of chunkWidth chunks. A stream that ends inside a chunk
// returns ErrShortStream along with the offsets of the complete chunks.
func Index(data []byte, chunkWidth int) ([]int, error) {
	var offsets []int
	for off := 0; off < len(data); {
		n := ChunkSize(data[off:], chunkWidth)
		if n == 0 {
			return offsets, errors.Wrapf(ErrShortStream, "chunk %d at offset %d", len(offsets), off)
		}
		offsets = append(offsets, off)
		off += n
	}
	return offsets, nil
}

// Decode expands a full stream back into a w x h image of indices.
// chunkWidth must match the one used to encode.
func Decode(data []byte, w, h, chunkWidth int) (*image4bit.HorizontalNibble, error) {
	if w <= 0 || h <= 0 || chunkWidth <= 0 {
		return nil, errors.Errorf("rle4: invalid decode size %dx%d/%d", w, h, chunkWidth)
	}

	img := image4bit.NewHorizontalNibble(image.Rect(0, 0, w, h))
	off := 0
	for y := 0; y < h; y++ {
		for x0 := 0; x0 < w; x0 += chunkWidth {
			n := min(chunkWidth, w-x0)
			indices, used, err := DecodeChunk(data[off:], n)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d, column %d", y, x0)
			}
			img.SetRow(x0, y, indices)
			off += used
		}
	}
	if off != len(data) {
		return nil, errors.Wrapf(ErrTrailingData, "%d bytes", len(data)-off)
	}
	return img, nil
}

// DecodeWindow expands only the pixels of r from a stream of a w x h image.
// w must be a multiple of chunkWidth. Parts of r outside the image stay 0.
func DecodeWindow(data []byte, w, h, chunkWidth int, r image.Rectangle) (*image4bit.HorizontalNibble, error) {
	if w <= 0 || h <= 0 || chunkWidth <= 0 || w%chunkWidth != 0 {
		return nil, errors.Errorf("rle4: invalid decode size %dx%d/%d", w, h, chunkWidth)
	}
	offsets, err := Index(data, chunkWidth)
	if err != nil {
		return nil, err
	}
	cols := w / chunkWidth
	if len(offsets) < cols*h {
		return nil, errors.Wrapf(ErrShortStream, "have %d chunks, need %d", len(offsets), cols*h)
	}

	img := image4bit.NewHorizontalNibble(r)
	src := r.Intersect(image.Rect(0, 0, w, h))
	if src.Empty() {
		return img, nil
	}
	firstCol, lastCol := src.Min.X/chunkWidth, (src.Max.X-1)/chunkWidth
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for c := firstCol; c <= lastCol; c++ {
			indices, _, err := DecodeChunk(data[offsets[y*cols+c]:], chunkWidth)
			if err != nil {
				return nil, err
			}
			img.SetRow(c*chunkWidth, y, indices)
		}
	}
	return img, nil
}

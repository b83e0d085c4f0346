package rle4

import (
	"image"

	"github.com/flavioheleno/rle4/image4bit"
)

// Chunk is one horizontal segment of one image row.
type Chunk struct {
	Row     int    // Row within the image, 0-based
	Index   int    // Chunk number within the row
	X0      int    // First column, 0-based
	Indices []byte // Quantized pixels, left to right
}

// Segment walks img top to bottom and each row left to right in chunks of
// width pixels (the last chunk of a row may be shorter), calling fn with the
// quantized indices of every chunk.
//
// The Indices slice is reused between calls and must not be retained.
func Segment(img image.Image, width int, q image4bit.Quantizer, fn func(Chunk)) {
	b := img.Bounds()
	buf := make([]byte, 0, width)
	for y := 0; y < b.Dy(); y++ {
		segmentRow(img, y, width, q, buf, fn)
	}
}

// segmentRow emits the chunks of a single row.
func segmentRow(img image.Image, y, width int, q image4bit.Quantizer, buf []byte, fn func(Chunk)) {
	b := img.Bounds()
	w := b.Dx()
	for i, x0 := 0, 0; x0 < w; i, x0 = i+1, x0+width {
		x1 := min(x0+width, w)
		buf = buf[:0]
		for x := x0; x < x1; x++ {
			buf = append(buf, quantizeAt(img, b.Min.X+x, b.Min.Y+y, q))
		}
		fn(Chunk{Row: y, Index: i, X0: x0, Indices: buf})
	}
}

// quantizeAt reads one pixel, taking the fast paths for common image types.
// NRGBA channels are used as stored, so transparent pixels keep their color.
func quantizeAt(img image.Image, x, y int, q image4bit.Quantizer) byte {
	switch m := img.(type) {
	case *image.RGBA:
		i := m.PixOffset(x, y)
		return q.Index(m.Pix[i], m.Pix[i+1], m.Pix[i+2])
	case *image.NRGBA:
		i := m.PixOffset(x, y)
		return q.Index(m.Pix[i], m.Pix[i+1], m.Pix[i+2])
	}
	return q.Index(image4bit.RGB8(img.At(x, y)))
}

package image4bit

import (
	"image"
	"image/color"
)

// Gray4 represents a 4-bit grayscale color (0-15 intensity levels).
// Only the lower 4 bits of Y are used.
type Gray4 struct {
	Y uint8
}

// RGBA converts the Gray4 color to standard RGBA.
func (c Gray4) RGBA() (r, g, b, a uint32) {
	// 0xF * 0x1111 = 0xFFFF
	y := uint32(c.Y&0x0F) * 0x1111
	return y, y, y, 0xFFFF
}

// RGB8 reduces a color to 8-bit channels, ignoring alpha.
func RGB8(c color.Color) (r, g, b uint8) {
	cr, cg, cb, _ := c.RGBA()
	return uint8(cr >> 8), uint8(cg >> 8), uint8(cb >> 8)
}

// NewModel returns a color model that converts through q.
func NewModel(q Quantizer) color.Model {
	return color.ModelFunc(func(c color.Color) color.Color {
		if g, ok := c.(Gray4); ok {
			return g
		}
		return Gray4{Y: q.Index(RGB8(c))}
	})
}

// Gray4Model converts colors to Gray4 with Quantize.
var Gray4Model = NewModel(Quantizer{})

// Palette lists the 16 levels in index order.
var Palette = func() color.Palette {
	p := make(color.Palette, MaxLevels)
	for i := range p {
		p[i] = Gray4{Y: uint8(i)}
	}
	return p
}()

// HorizontalNibble is a 4-bit grayscale image where pixels are stored in horizontal nibble packing.
// Each byte contains 2 pixels: high nibble = left pixel, low nibble = right pixel.
// Rows with an odd width leave the last low nibble unused.
type HorizontalNibble struct {
	Pix    []byte          // Pixel data (2 pixels per byte)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewHorizontalNibble creates a new HorizontalNibble image with the specified bounds.
func NewHorizontalNibble(r image.Rectangle) *HorizontalNibble {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &HorizontalNibble{Rect: r}
	}
	stride := (w + 1) / 2
	return &HorizontalNibble{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *HorizontalNibble) ColorModel() color.Model {
	return Gray4Model
}

// Bounds returns the image bounds.
func (p *HorizontalNibble) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
func (p *HorizontalNibble) At(x, y int) color.Color {
	return p.Gray4At(x, y)
}

// Gray4At returns the Gray4 color of the pixel at (x, y).
func (p *HorizontalNibble) Gray4At(x, y int) Gray4 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Gray4{}
	}
	offset, shift := p.pixOffset(x, y)
	return Gray4{Y: (p.Pix[offset] >> shift) & 0x0F}
}

// Set sets the color of the pixel at (x, y).
func (p *HorizontalNibble) Set(x, y int, c color.Color) {
	p.SetGray4(x, y, Gray4Model.Convert(c).(Gray4))
}

// SetGray4 sets the Gray4 color of the pixel at (x, y).
func (p *HorizontalNibble) SetGray4(x, y int, c Gray4) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	offset, shift := p.pixOffset(x, y)
	p.Pix[offset] = (p.Pix[offset] &^ (0x0F << shift)) | ((c.Y & 0x0F) << shift)
}

// SetRow writes indices starting at (x, y), clipped to the image bounds.
func (p *HorizontalNibble) SetRow(x, y int, indices []byte) {
	for i, v := range indices {
		p.SetGray4(x+i, y, Gray4{Y: v})
	}
}

// Row returns the indices of row y as one byte per pixel.
func (p *HorizontalNibble) Row(y int) []byte {
	out := make([]byte, p.Rect.Dx())
	for i := range out {
		out[i] = p.Gray4At(p.Rect.Min.X+i, y).Y
	}
	return out
}

// pixOffset returns the byte offset and bit shift for the pixel at (x, y).
// Even columns (relative to Rect.Min) use the high nibble.
func (p *HorizontalNibble) pixOffset(x, y int) (offset int, shift uint) {
	dx := x - p.Rect.Min.X
	offset = (y-p.Rect.Min.Y)*p.Stride + dx/2
	shift = uint(4 * (1 - (dx & 1)))
	return
}

// Package image4bit provides the 4-bit grayscale pixel model used by rle4 streams.
//
// A pixel is a palette index from 0 (black) to 15 (white). RGB colors are
// mapped with Quantize, which averages the three channels and rounds the
// result onto 16 levels:
//
//	index = round((r+g+b) / 3 / 255 * 15)
//
// The rounding is done in integer arithmetic and never hits a half step, so
// every platform produces the same index for the same color.
//
// A Quantizer adds posterization (fewer than 16 levels, spread back over the
// nibble range) and inversion:
//
//	q := image4bit.Quantizer{Levels: 4, Invert: true}
//	idx := q.Index(200, 120, 40)
//
// HorizontalNibble is an image.Image holding indices two per byte:
//
//	Pixels: 0  1  2  3
//	Values: 5  10 3  12
//	Bytes:  0x5A     0x3C
//
// Pack and Unpack expose the same fixed 2-to-1 layout for flat index slices.
package image4bit

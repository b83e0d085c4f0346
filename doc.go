// Package rle4 encodes images into run-length streams of 4-bit grayscale
// palette indices for 320×240 displays with a 16-level intensity palette.
//
// # Pipeline
//
// Encoding is a straight data transform in three steps:
//
//   - Quantize: every RGB pixel becomes an index 0-15 (see image4bit.Quantize)
//   - Segment: every row is cut into chunks of 320 pixels, left to right
//   - Encode: every chunk is run-length encoded on its own
//
// Rows are processed top to bottom and chunks left to right. That order is
// the on-disk layout, so decoders replay chunks in the same order.
//
// # Stream Format
//
// A stream is a flat concatenation of chunk encodings. There is no header,
// magic number or size field. Each byte is one run:
//
//	bit  7 6 5 4   3 2 1 0
//	     length-1  value
//
// A run holds 1 to 16 copies of one index. Longer stretches are split, so 17
// black pixels become 0xF0 0x00. A run never crosses a chunk boundary, which
// lets a player decode any chunk once it knows where the chunk starts.
//
// The chunk [1 1 2 2 2] encodes to 0x11 0x22, and each 320-pixel chunk of a
// black image encodes to twenty 0xF0 bytes.
//
// The decoder needs the width, height and chunk width out of band.
//
// # Geometry
//
// The width must be a positive multiple of 320 and the height a positive
// multiple of 240. Other sizes are rejected with ErrGeometry before any
// output is produced:
//
//	enc, _ := rle4.NewEncoder(nil)
//	if err := enc.Validate(img.Bounds()); err != nil {
//		// errors.Is(err, rle4.ErrGeometry)
//	}
//
// # Basic Usage
//
//	f, _ := os.Open("image.png")
//	img, _, _ := image.Decode(f)
//
//	enc, err := rle4.NewEncoder(&rle4.Opts{
//		Quantizer: image4bit.Quantizer{Levels: 8},
//		Workers:   4,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	data, err := enc.Encode(context.Background(), img)
//
// With Workers above 1 rows are encoded concurrently and merged back in row
// order; the stream is byte-identical to a sequential encode.
//
// # Decoding
//
// Decode, DecodeChunk and DecodeWindow expand a stream back to indices.
// Index builds the chunk offset table a player scans before random access.
package rle4

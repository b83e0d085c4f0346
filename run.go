package rle4

import "fmt"

// MaxRun is the longest run one byte can describe; the high nibble stores Length-1.
const MaxRun = 16

// Run is a stretch of identical indices.
type Run struct {
	Value  byte // Palette index, 0-15
	Length int  // 1-16
}

// Byte serializes the run: high nibble = Length-1, low nibble = Value.
func (r Run) Byte() byte {
	return byte(r.Length-1)<<4 | r.Value&0x0F
}

// String returns a compact "value x length" representation.
func (r Run) String() string {
	return fmt.Sprintf("%dx%d", r.Value, r.Length)
}

// ParseRun decodes one stream byte.
func ParseRun(b byte) Run {
	return Run{Value: b & 0x0F, Length: int(b>>4) + 1}
}

// Runs splits a chunk into maximal runs of at most MaxRun indices.
func Runs(chunk []byte) []Run {
	var runs []Run
	forEachRun(chunk, func(r Run) {
		runs = append(runs, r)
	})
	return runs
}

// EncodeChunk run-length encodes one scan chunk. An empty chunk encodes to
// an empty slice.
func EncodeChunk(chunk []byte) []byte {
	return AppendChunk(make([]byte, 0, len(chunk)/MaxRun+1), chunk)
}

// AppendChunk appends the encoding of chunk to dst and returns the extended
// slice. Runs never continue across calls, so every chunk decodes on its own.
//
// It panics if an index is larger than 15.
func AppendChunk(dst, chunk []byte) []byte {
	forEachRun(chunk, func(r Run) {
		dst = append(dst, r.Byte())
	})
	return dst
}

// forEachRun walks chunk left to right and reports each run once it ends,
// either on a value change or when it reaches MaxRun. The last run is
// always flushed.
func forEachRun(chunk []byte, fn func(Run)) {
	if len(chunk) == 0 {
		return
	}

	cur := chunk[0]
	n := 1
	for _, v := range chunk[1:] {
		if v == cur && n < MaxRun {
			n++
			continue
		}
		fn(checked(cur, n))
		cur = v
		n = 1
	}
	fn(checked(cur, n))
}

func checked(v byte, n int) Run {
	if v > 0x0F {
		panic("rle4: index out of range")
	}
	return Run{Value: v, Length: n}
}

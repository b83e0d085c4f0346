package image4bit

// Pack stores two indices per byte, high nibble first, without any run
// compression. An odd trailing index is paired with 0.
//
// This is the fixed 2-to-1 layout of HorizontalNibble rows. The rle4 stream
// does not use it; it is kept as an alternative codec for targets that want
// constant-size frames.
func Pack(indices []byte) []byte {
	out := make([]byte, (len(indices)+1)/2)
	for i, v := range indices {
		if i&1 == 0 {
			out[i/2] = (v & 0x0F) << 4
		} else {
			out[i/2] |= v & 0x0F
		}
	}
	return out
}

// Unpack expands n indices from data produced by Pack.
// Missing bytes decode as 0.
func Unpack(data []byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		if i/2 >= len(data) {
			break
		}
		b := data[i/2]
		if i&1 == 0 {
			out[i] = b >> 4
		} else {
			out[i] = b & 0x0F
		}
	}
	return out
}

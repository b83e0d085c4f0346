package image4bit

import "errors"

// MaxLevels is the number of intensity levels a nibble can hold.
const MaxLevels = 16

// ErrLevels is returned by Quantizer.Validate for a level count outside [2, 16].
var ErrLevels = errors.New("image4bit: levels must be between 2 and 16")

// Quantize maps an 8-bit RGB triple to a 4-bit intensity index.
//
// The index is round(((r+g+b)/3) / 255 * 15), which reduces to round(sum/51).
// It is computed in integer fixed point as (2*sum*15 + 765) / 1530, i.e.
// round half up. Since 51 is odd and sum is an integer, sum/51 never falls
// exactly on a half step, so half-up, half-even and math.Round all agree on
// every input and the result is platform independent.
func Quantize(r, g, b uint8) uint8 {
	sum := uint32(r) + uint32(g) + uint32(b)
	idx := (sum*30 + 765) / 1530
	if idx > 15 {
		idx = 15
	}
	return uint8(idx)
}

// Quantizer maps RGB triples to 4-bit indices with optional posterization.
//
// Levels reduces the output to that many evenly spaced intensities before
// they are spread back over 0-15. The zero value uses all 16 levels and is
// equivalent to Quantize.
type Quantizer struct {
	Levels int  // 0 or 2-16
	Invert bool // Swap dark and light
}

// Validate reports whether the quantizer settings are usable.
func (q Quantizer) Validate() error {
	if q.Levels != 0 && (q.Levels < 2 || q.Levels > MaxLevels) {
		return ErrLevels
	}
	return nil
}

// Index returns the 4-bit index for an RGB triple.
// Both rounding steps are round half up.
func (q Quantizer) Index(r, g, b uint8) uint8 {
	n := q.Levels
	if n == 0 {
		n = MaxLevels
	}
	if n == MaxLevels && !q.Invert {
		return Quantize(r, g, b)
	}

	sum := uint32(r) + uint32(g) + uint32(b)
	top := uint32(n - 1)
	l := (2*sum*top + 765) / 1530
	if l > top {
		l = top
	}
	if q.Invert {
		l = top - l
	}
	// Spread the level back over the full nibble range
	return uint8((2*l*15 + top) / (2 * top))
}

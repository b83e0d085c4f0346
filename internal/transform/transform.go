// Package transform applies the pre-encode edits: crop, rotate, flip and a
// stretch to a whole number of tiles (320x240 unless configured otherwise).
package transform

import (
	"image"
	"image/draw"
	"strconv"
	"strings"

	"github.com/disintegration/gift"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/flavioheleno/rle4"
)

// MaxFit is the largest tile multiplier Fit accepts.
const MaxFit = 12

// Flip selects the mirror axes.
type Flip int

const (
	FlipNone Flip = iota
	FlipHorizontal
	FlipVertical
	FlipBoth
)

// ErrInvalid is returned for malformed transform settings.
var ErrInvalid = errors.New("transform: invalid setting")

// Steps lists the edits to apply. The zero value leaves images untouched.
type Steps struct {
	Crop   image.Rectangle // in source coordinates, empty for none
	Rotate int             // clockwise degrees: 0, 90, 180 or 270
	Flip   Flip
	Fit    int // tile multiplier, 0 to keep the size

	// Tile is the size Fit multiplies, normally the encoder's chunk width
	// and frame height. Zero means 320x240.
	Tile image.Point
}

// Validate checks the settings without touching an image.
func (s Steps) Validate() error {
	switch s.Rotate {
	case 0, 90, 180, 270:
	default:
		return errors.Wrapf(ErrInvalid, "rotate %d", s.Rotate)
	}
	if s.Flip < FlipNone || s.Flip > FlipBoth {
		return errors.Wrapf(ErrInvalid, "flip %d", s.Flip)
	}
	if s.Fit < 0 || s.Fit > MaxFit {
		return errors.Wrapf(ErrInvalid, "fit %d (want 0-%d)", s.Fit, MaxFit)
	}
	if s.Tile.X < 0 || s.Tile.Y < 0 {
		return errors.Wrapf(ErrInvalid, "tile %v", s.Tile)
	}
	if s.Crop.Min.X < 0 || s.Crop.Min.Y < 0 || s.Crop != s.Crop.Canon() {
		return errors.Wrapf(ErrInvalid, "crop %v", s.Crop)
	}
	return nil
}

// None reports whether Apply would return the image unchanged.
func (s Steps) None() bool {
	return s.Crop.Empty() && s.Rotate == 0 && s.Flip == FlipNone && s.Fit == 0
}

// Apply crops, rotates and flips img, in that order, then fits it to the
// tile grid. A crop that misses the image is an error.
func Apply(img image.Image, s Steps) (image.Image, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.None() {
		return img, nil
	}

	var filters []gift.Filter
	if !s.Crop.Empty() {
		b := img.Bounds()
		r := s.Crop.Add(b.Min).Intersect(b)
		if r.Empty() {
			return nil, errors.Wrapf(ErrInvalid, "crop %v outside %v", s.Crop, b)
		}
		filters = append(filters, gift.Crop(r))
	}
	switch s.Rotate {
	case 90:
		filters = append(filters, gift.Rotate270())
	case 180:
		filters = append(filters, gift.Rotate180())
	case 270:
		filters = append(filters, gift.Rotate90())
	}
	if s.Flip == FlipHorizontal || s.Flip == FlipBoth {
		filters = append(filters, gift.FlipHorizontal())
	}
	if s.Flip == FlipVertical || s.Flip == FlipBoth {
		filters = append(filters, gift.FlipVertical())
	}

	if len(filters) > 0 {
		g := gift.New(filters...)
		dst := image.NewRGBA(g.Bounds(img.Bounds()))
		g.Draw(dst, img)
		img = dst
	}
	if s.Fit > 0 {
		img = Fit(img, s.Fit, s.tile())
	}
	return img, nil
}

func (s Steps) tile() image.Point {
	t := s.Tile
	if t.X == 0 {
		t.X = rle4.ChunkWidth
	}
	if t.Y == 0 {
		t.Y = rle4.FrameHeight
	}
	return t
}

// Fit stretches img to mult x mult tiles of the given size with
// nearest-neighbour sampling. With the encoder's chunk width and frame
// height as tile the result passes its geometry check.
func Fit(img image.Image, mult int, tile image.Point) image.Image {
	w := uint(tile.X * mult)
	h := uint(tile.Y * mult)
	b := img.Bounds()
	if b.Dx() == int(w) && b.Dy() == int(h) {
		return img
	}
	out := resize.Resize(w, h, img, resize.NearestNeighbor)
	if out.Bounds().Min != (image.Point{}) {
		rgba := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		draw.Draw(rgba, rgba.Bounds(), out, out.Bounds().Min, draw.Src)
		out = rgba
	}
	return out
}

// ParseFlip reads "", "h", "v" or "hv".
func ParseFlip(s string) (Flip, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FlipNone, nil
	case "h":
		return FlipHorizontal, nil
	case "v":
		return FlipVertical, nil
	case "hv", "vh":
		return FlipBoth, nil
	}
	return FlipNone, errors.Wrapf(ErrInvalid, "flip %q", s)
}

// String returns the form ParseFlip reads.
func (f Flip) String() string {
	switch f {
	case FlipHorizontal:
		return "h"
	case FlipVertical:
		return "v"
	case FlipBoth:
		return "hv"
	}
	return ""
}

// ParseCrop reads "x,y,w,h". An empty string means no crop.
func ParseCrop(s string) (image.Rectangle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, errors.Wrapf(ErrInvalid, "crop %q (want x,y,w,h)", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return image.Rectangle{}, errors.Wrapf(ErrInvalid, "crop %q", s)
		}
		v[i] = n
	}
	if v[2] == 0 || v[3] == 0 {
		return image.Rectangle{}, errors.Wrapf(ErrInvalid, "crop %q has no area", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

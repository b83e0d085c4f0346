package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavioheleno/rle4"
)

var red = color.RGBA{R: 255, A: 255}

// marked returns a black w x h image with a red top-left pixel.
func marked(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.Set(0, 0, red)
	return img
}

func isRed(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return r == 0xffff && g == 0 && b == 0
}

func TestApplyNoneIsIdentity(t *testing.T) {
	img := marked(4, 2)
	out, err := Apply(img, Steps{})
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestApplyRotate(t *testing.T) {
	tests := []struct {
		rotate int
		size   image.Point
		red    image.Point
	}{
		{90, image.Pt(2, 4), image.Pt(1, 0)},
		{180, image.Pt(4, 2), image.Pt(3, 1)},
		{270, image.Pt(2, 4), image.Pt(0, 3)},
	}
	for _, tt := range tests {
		out, err := Apply(marked(4, 2), Steps{Rotate: tt.rotate})
		require.NoError(t, err)
		assert.Equal(t, tt.size, out.Bounds().Size(), "rotate %d", tt.rotate)
		assert.True(t, isRed(out, tt.red.X, tt.red.Y), "rotate %d", tt.rotate)
	}
}

func TestApplyFlip(t *testing.T) {
	tests := []struct {
		flip Flip
		red  image.Point
	}{
		{FlipHorizontal, image.Pt(3, 0)},
		{FlipVertical, image.Pt(0, 1)},
		{FlipBoth, image.Pt(3, 1)},
	}
	for _, tt := range tests {
		out, err := Apply(marked(4, 2), Steps{Flip: tt.flip})
		require.NoError(t, err)
		assert.True(t, isRed(out, tt.red.X, tt.red.Y), "flip %s", tt.flip)
	}
}

func TestApplyCrop(t *testing.T) {
	img := marked(8, 8)
	img.Set(2, 3, red)

	out, err := Apply(img, Steps{Crop: image.Rect(2, 3, 6, 5)})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 2), out.Bounds().Size())
	assert.True(t, isRed(out, out.Bounds().Min.X, out.Bounds().Min.Y))

	_, err = Apply(img, Steps{Crop: image.Rect(20, 20, 30, 30)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestApplyFit(t *testing.T) {
	out, err := Apply(marked(100, 50), Steps{Fit: 2})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), out.Bounds())
	assert.True(t, isRed(out, 0, 0))
	assert.NoError(t, rle4.CheckGeometry(640, 480, rle4.ChunkWidth, rle4.FrameHeight))
}

func TestFitKeepsMatchingSize(t *testing.T) {
	img := marked(320, 240)
	assert.Same(t, img, Fit(img, 1, image.Pt(320, 240)).(*image.RGBA))
}

func TestApplyFitCustomTile(t *testing.T) {
	out, err := Apply(marked(100, 100), Steps{Fit: 2, Tile: image.Pt(256, 200)})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 400), out.Bounds())
	assert.NoError(t, rle4.CheckGeometry(512, 400, 256, 200))
}

func TestNone(t *testing.T) {
	assert.True(t, Steps{}.None())
	assert.True(t, Steps{Tile: image.Pt(256, 240)}.None())
	assert.False(t, Steps{Fit: 1}.None())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Steps{Rotate: 270, Flip: FlipBoth, Fit: MaxFit}.Validate())
	assert.ErrorIs(t, Steps{Rotate: 45}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Steps{Flip: 7}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Steps{Fit: MaxFit + 1}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Steps{Fit: -1}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Steps{Crop: image.Rect(-1, 0, 5, 5)}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Steps{Tile: image.Pt(-1, 240)}.Validate(), ErrInvalid)
}

func TestParseFlip(t *testing.T) {
	for in, want := range map[string]Flip{"": FlipNone, "h": FlipHorizontal, "V": FlipVertical, "hv": FlipBoth, "vh": FlipBoth} {
		got, err := ParseFlip(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFlip("x")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "hv", FlipBoth.String())
}

func TestParseCrop(t *testing.T) {
	r, err := ParseCrop("10, 20, 320, 240")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 330, 260), r)

	r, err = ParseCrop("")
	require.NoError(t, err)
	assert.True(t, r.Empty())

	for _, bad := range []string{"1,2,3", "a,b,c,d", "0,0,0,10", "-1,0,5,5"} {
		_, err := ParseCrop(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

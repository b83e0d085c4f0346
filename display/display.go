// Package display plays rle4 streams on a 320x240 RGB565 SPI panel.
//
// The panel speaks the ST7789 command set. Frames are kept as 4-bit
// grayscale and expanded to RGB565 only for the pixels that changed.
package display

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/flavioheleno/rle4"
	"github.com/flavioheleno/rle4/image4bit"
)

// ErrHalted is returned by every operation after Halt.
var ErrHalted = errors.New("display: halted")

// Palette565 maps palette indices to RGB565 gray levels.
var Palette565 = [16]uint16{
	0x0000, 0x1082, 0x2104, 0x3186,
	0x4228, 0x52AA, 0x632C, 0x73AE,
	0x8C51, 0x9CD3, 0xAD55, 0xBDD7,
	0xCE79, 0xDE7B, 0xEF7D, 0xFFFF,
}

const (
	cmdSWRESET = 0x01
	cmdSLPIN   = 0x10
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVOFF  = 0x20
	cmdINVON   = 0x21
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A
	cmdWRDISBV = 0x51

	maxWidth  = rle4.ChunkWidth
	maxHeight = rle4.FrameHeight

	// Fallback transfer size when the port does not report one
	defaultMaxTx = 4096
)

// sleep is replaced in tests.
var sleep = time.Sleep

// Opts is the configuration for the panel.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 320, must be even and ≤320)
	H int // Height (default: 240, must be ≤240)

	Rotated bool // 180° rotation
	BGR     bool // Panel wired blue-green-red

	// Optional hardware reset pin
	RST gpio.PinIO // Reset pin (optional, nil if not used)
}

// Dev is the device handle for the panel.
type Dev struct {
	// Communication
	c   conn.Conn   // SPI connection
	dc  gpio.PinOut // Data/Command pin
	rst gpio.PinIO  // Reset pin (optional)

	rect image.Rectangle

	// Frames as palette indices; last is what the panel shows
	next *image4bit.HorizontalNibble
	last *image4bit.HorizontalNibble

	halted bool
}

// NewSPI creates a new panel device connected via SPI.
//
// The SPI port is configured for 10MHz, Mode0 (CPOL=0, CPHA=0), 8-bit transfers.
// The dc (Data/Command) GPIO pin must be provided and configured as an output.
//
// opts can be nil to use defaults (320x240 display).
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	c, err := p.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}
	return newDev(c, dc, opts)
}

func validate(opts *Opts) error {
	if opts == nil {
		return nil
	}
	if opts.W <= 0 || opts.W%2 != 0 || opts.W > maxWidth {
		return fmt.Errorf("display: width must be even and between 2 and %d", maxWidth)
	}
	if opts.H <= 0 || opts.H > maxHeight {
		return fmt.Errorf("display: height must be between 1 and %d", maxHeight)
	}
	return nil
}

// newDev initializes the panel over an established connection.
func newDev(c conn.Conn, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Opts{W: maxWidth, H: maxHeight}
	}

	d := &Dev{
		c:    c,
		dc:   dc,
		rst:  opts.RST,
		rect: image.Rect(0, 0, opts.W, opts.H),
	}
	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// init sends the initialization sequence to the display.
func (d *Dev) init(opts *Opts) error {
	if d.rst != nil {
		if err := d.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("display: failed to pull RST low: %w", err)
		}
		sleep(200 * time.Millisecond)

		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("display: failed to pull RST high: %w", err)
		}
		sleep(200 * time.Millisecond)
	}

	if err := d.sendCommand(cmdSWRESET); err != nil {
		return err
	}
	sleep(150 * time.Millisecond)
	if err := d.sendCommand(cmdSLPOUT); err != nil {
		return err
	}
	sleep(120 * time.Millisecond)

	// Row/column exchange for landscape, mirrored both ways when rotated
	madctl := byte(0x60)
	if opts.Rotated {
		madctl = 0xA0
	}
	if opts.BGR {
		madctl |= 0x08
	}

	for _, c := range [][]byte{
		{cmdCOLMOD, 0x55}, // 16 bits per pixel
		{cmdMADCTL, madctl},
		{cmdINVOFF},
		{cmdNORON},
	} {
		if err := d.sendCommand(c[0], c[1:]...); err != nil {
			return err
		}
	}

	if err := d.clearRAM(); err != nil {
		return err
	}
	return d.sendCommand(cmdDISPON)
}

// clearRAM fills the panel with black and resets the tracked frame.
func (d *Dev) clearRAM() error {
	frame := image4bit.NewHorizontalNibble(d.rect)
	if err := d.writeFullFrame(frame); err != nil {
		return err
	}
	d.last = frame
	return nil
}

// sendCommand sends one command byte followed by its parameters.
func (d *Dev) sendCommand(cmd byte, params ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(params) == 0 {
		return nil
	}
	return d.sendData(params)
}

// sendData sends data bytes, split to the port's transfer limit.
func (d *Dev) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	limit := defaultMaxTx
	if l, ok := d.c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		limit = l.MaxTxSize()
	}
	for len(data) > 0 {
		n := min(len(data), limit)
		if err := d.c.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// writeRect writes RGB565 pixel data to a rectangular region of the display.
func (d *Dev) writeRect(r image.Rectangle, pixels []byte) error {
	x0, x1 := r.Min.X, r.Max.X-1
	y0, y1 := r.Min.Y, r.Max.Y-1
	if err := d.sendCommand(cmdCASET, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.sendCommand(cmdRASET, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	if err := d.sendCommand(cmdRAMWR); err != nil {
		return err
	}
	return d.sendData(pixels)
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image4bit.Gray4Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Write writes a full frame of packed indices, two pixels per byte with the
// left pixel in the high nibble. The data must be exactly Stride*H bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, ErrHalted
	}
	frame := image4bit.NewHorizontalNibble(d.rect)
	if len(pixels) != len(frame.Pix) {
		return 0, fmt.Errorf("display: invalid buffer size %d, want %d", len(pixels), len(frame.Pix))
	}
	copy(frame.Pix, pixels)
	if err := d.writeFullFrame(frame); err != nil {
		return 0, err
	}
	d.remember(frame)
	return len(pixels), nil
}

// Draw draws an image onto the display with differential update optimization.
// The dst rectangle specifies the destination region on the display.
// The src image is positioned at src point sp within the destination.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return ErrHalted
	}

	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	// Fast path: a full frame of indices goes out as is
	if srcImg, ok := src.(*image4bit.HorizontalNibble); ok {
		if dst == d.rect && sp == (image.Point{}) && srcImg.Rect == d.rect {
			if err := d.writeFullFrame(srcImg); err != nil {
				return err
			}
			d.remember(srcImg)
			return nil
		}
	}

	if d.next == nil {
		d.next = image4bit.NewHorizontalNibble(d.rect)
	}
	if d.last == nil {
		d.last = image4bit.NewHorizontalNibble(d.rect)
	}
	copy(d.next.Pix, d.last.Pix)
	draw.Draw(d.next, dst, src, sp, draw.Src)

	changed := d.calculateDiff()
	if changed.Empty() {
		return nil
	}
	if err := d.writeRect(changed, expand565(d.next, changed)); err != nil {
		return err
	}
	d.remember(d.next)
	return nil
}

// Play shows the display-sized window at view of an encoded stream of a
// w x h image. Parts of the window outside the image are drawn black.
func (d *Dev) Play(stream []byte, w, h int, view image.Point) error {
	if d.halted {
		return ErrHalted
	}
	r := image.Rectangle{Min: view, Max: view.Add(d.rect.Size())}
	frame, err := rle4.DecodeWindow(stream, w, h, rle4.ChunkWidth, r)
	if err != nil {
		return err
	}
	return d.Draw(d.rect, frame, view)
}

// remember records frame as the panel content.
func (d *Dev) remember(frame *image4bit.HorizontalNibble) {
	if d.last == nil {
		d.last = image4bit.NewHorizontalNibble(d.rect)
	}
	copy(d.last.Pix, frame.Pix)
}

// calculateDiff compares the shown and next frames and returns the minimal
// changed rectangle, or an empty one if nothing changed. Columns are aligned
// to whole bytes (pixel pairs).
func (d *Dev) calculateDiff() image.Rectangle {
	stride := d.next.Stride
	minRow, maxRow := d.rect.Dy(), -1
	minByte, maxByte := stride, -1

	for y := 0; y < d.rect.Dy(); y++ {
		rowStart := y * stride
		rowEnd := rowStart + stride
		if bytes.Equal(d.last.Pix[rowStart:rowEnd], d.next.Pix[rowStart:rowEnd]) {
			continue
		}
		minRow = min(minRow, y)
		maxRow = max(maxRow, y)
		for x := 0; x < stride; x++ {
			if d.last.Pix[rowStart+x] != d.next.Pix[rowStart+x] {
				minByte = min(minByte, x)
				maxByte = max(maxByte, x)
			}
		}
	}

	if maxRow < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minByte*2, minRow, min((maxByte+1)*2, d.rect.Dx()), maxRow+1)
}

// writeFullFrame writes a whole frame of indices to the display.
func (d *Dev) writeFullFrame(frame *image4bit.HorizontalNibble) error {
	return d.writeRect(d.rect, expand565(frame, frame.Rect))
}

// expand565 converts the pixels of r to big-endian RGB565.
func expand565(frame *image4bit.HorizontalNibble, r image.Rectangle) []byte {
	out := make([]byte, 0, r.Dx()*r.Dy()*2)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := Palette565[frame.Gray4At(x, y).Y]
			out = append(out, byte(c>>8), byte(c))
		}
	}
	return out
}

// SetBrightness sets the panel brightness (0-255) where supported.
func (d *Dev) SetBrightness(level byte) error {
	if d.halted {
		return ErrHalted
	}
	return d.sendCommand(cmdWRDISBV, level)
}

// Invert inverts the display colors (black becomes white and vice versa).
func (d *Dev) Invert(invert bool) error {
	if d.halted {
		return ErrHalted
	}
	mode := byte(cmdINVOFF)
	if invert {
		mode = cmdINVON
	}
	return d.sendCommand(mode)
}

// Halt turns the display off and puts it to sleep.
// After calling Halt, the display will not respond to further commands
// until the device is re-initialized.
func (d *Dev) Halt() error {
	d.halted = true
	if err := d.sendCommand(cmdDISPOFF); err != nil {
		return err
	}
	return d.sendCommand(cmdSLPIN)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("display.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

// Package config holds the conversion settings shared by the CLI and the
// daemon. Values come from defaults, then an optional YAML profile, then any
// flags given explicitly on the command line.
package config

import (
	"flag"
	"image"
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/flavioheleno/rle4"
	"github.com/flavioheleno/rle4/image4bit"
	"github.com/flavioheleno/rle4/internal/archive"
	"github.com/flavioheleno/rle4/internal/transform"
)

// ErrInvalid is returned for settings that fail validation.
var ErrInvalid = errors.New("config: invalid value")

// Config is one conversion profile.
type Config struct {
	ChunkWidth  int    `yaml:"chunk_width"`
	FrameHeight int    `yaml:"frame_height"`
	Levels      int    `yaml:"levels"`
	Invert      bool   `yaml:"invert"`
	Workers     int    `yaml:"workers"`
	Fit         int    `yaml:"fit"`
	Rotate      int    `yaml:"rotate"`
	Flip        string `yaml:"flip"`
	Crop        string `yaml:"crop"`
	Compress    string `yaml:"compress"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		ChunkWidth:  rle4.ChunkWidth,
		FrameHeight: rle4.FrameHeight,
		Levels:      image4bit.MaxLevels,
		Workers:     1,
		Compress:    string(archive.None),
	}
}

// LoadYamlFile reads a profile from path over the current values.
func (c *Config) LoadYamlFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "config")
	}
	defer file.Close()
	return errors.Wrapf(c.LoadYaml(file), "config: %s", path)
}

// LoadYaml reads a profile over the current values. Keys the profile leaves
// out keep their value; unknown keys are an error.
func (c *Config) LoadYaml(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return errors.Wrapf(ErrInvalid, "yaml: %v", err)
	}
	return c.Validate()
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.ChunkWidth <= 0 {
		return errors.Wrapf(ErrInvalid, "chunk_width %d", c.ChunkWidth)
	}
	if c.FrameHeight <= 0 {
		return errors.Wrapf(ErrInvalid, "frame_height %d", c.FrameHeight)
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalid, "workers %d", c.Workers)
	}
	if err := c.Quantizer().Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "levels: %v", err)
	}
	if _, err := rle4.NewEncoder(c.EncoderOpts()); err != nil {
		return errors.Wrapf(ErrInvalid, "%v", err)
	}
	if _, err := c.Steps(); err != nil {
		return errors.Wrapf(ErrInvalid, "%v", err)
	}
	if _, err := archive.ParseKind(c.Compress); err != nil {
		return errors.Wrapf(ErrInvalid, "compress: %v", err)
	}
	return nil
}

// Quantizer returns the palette mapping of the profile.
func (c Config) Quantizer() image4bit.Quantizer {
	return image4bit.Quantizer{Levels: c.Levels, Invert: c.Invert}
}

// EncoderOpts returns the encoder settings of the profile. Zero workers
// means one per CPU.
func (c Config) EncoderOpts() *rle4.Opts {
	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return &rle4.Opts{
		ChunkWidth:  c.ChunkWidth,
		FrameHeight: c.FrameHeight,
		Quantizer:   c.Quantizer(),
		Workers:     workers,
	}
}

// Steps returns the pre-encode edits of the profile.
func (c Config) Steps() (transform.Steps, error) {
	flip, err := transform.ParseFlip(c.Flip)
	if err != nil {
		return transform.Steps{}, err
	}
	crop, err := transform.ParseCrop(c.Crop)
	if err != nil {
		return transform.Steps{}, err
	}
	s := transform.Steps{
		Crop:   crop,
		Rotate: c.Rotate,
		Flip:   flip,
		Fit:    c.Fit,
		Tile:   image.Pt(c.ChunkWidth, c.FrameHeight),
	}
	return s, s.Validate()
}

// Archive returns the compression for the archive copy.
func (c Config) Archive() archive.Kind {
	k, _ := archive.ParseKind(c.Compress)
	return k
}

// Parse registers the profile flags on fs, parses args and merges the
// result: defaults, then the file named by -profile, then explicit flags.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	set := Default()
	profile := fs.String("profile", "", "YAML conversion profile")
	fs.IntVar(&set.ChunkWidth, "chunk-width", set.ChunkWidth, "pixels per scan chunk")
	fs.IntVar(&set.FrameHeight, "frame-height", set.FrameHeight, "image height must be a multiple of this")
	fs.IntVar(&set.Levels, "levels", set.Levels, "gray levels (2-16)")
	fs.BoolVar(&set.Invert, "invert", set.Invert, "invert intensities")
	fs.IntVar(&set.Workers, "workers", set.Workers, "rows encoded in parallel (0 = one per CPU)")
	fs.IntVar(&set.Fit, "fit", set.Fit, "stretch to N x N tiles of chunk-width x frame-height (0 = off)")
	fs.IntVar(&set.Rotate, "rotate", set.Rotate, "rotate clockwise by 0, 90, 180 or 270 degrees")
	fs.StringVar(&set.Flip, "flip", set.Flip, "mirror: h, v or hv")
	fs.StringVar(&set.Crop, "crop", set.Crop, "crop x,y,w,h before other edits")
	fs.StringVar(&set.Compress, "compress", set.Compress, "archive copy: none, zstd or lz4")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *profile != "" {
		if err := cfg.LoadYamlFile(*profile); err != nil {
			return Config{}, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		cfg.override(f.Name, set)
	})
	return cfg, cfg.Validate()
}

// override copies the field bound to flag name from src.
func (c *Config) override(name string, src Config) {
	switch name {
	case "chunk-width":
		c.ChunkWidth = src.ChunkWidth
	case "frame-height":
		c.FrameHeight = src.FrameHeight
	case "levels":
		c.Levels = src.Levels
	case "invert":
		c.Invert = src.Invert
	case "workers":
		c.Workers = src.Workers
	case "fit":
		c.Fit = src.Fit
	case "rotate":
		c.Rotate = src.Rotate
	case "flip":
		c.Flip = src.Flip
	case "crop":
		c.Crop = src.Crop
	case "compress":
		c.Compress = src.Compress
	}
}

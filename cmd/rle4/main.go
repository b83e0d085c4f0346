// Command rle4 converts an image into an rle4 stream for 320x240 displays.
//
// Usage:
//
//	rle4 [options] [input [output]]
//
// The input defaults to image.png and the output to input.bin in the same
// directory as the input. Width and height must be multiples of 320 and 240
// after the optional edits; see -fit to stretch any image onto the grid.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"

	// Registered input formats
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/flavioheleno/rle4"
	"github.com/flavioheleno/rle4/internal/archive"
	"github.com/flavioheleno/rle4/internal/config"
	"github.com/flavioheleno/rle4/internal/logging"
	"github.com/flavioheleno/rle4/internal/transform"
)

const (
	defaultInput  = "image.png"
	defaultOutput = "input.bin"
)

// ErrNotFound is returned when the input file does not exist.
var ErrNotFound = errors.New("input not found")

const usageText = `Usage: rle4 [options] [input [output]]

Converts input (default image.png) to an rle4 stream written to output
(default input.bin next to the input).

Options:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := rle4Cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func rle4Cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("rle4", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usageText)
		flags.PrintDefaults()
	}
	verbose := flags.Bool("v", false, "log progress")

	cfg, err := config.Parse(flags, args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	log := logging.New(stderr, *verbose)

	in := flags.Arg(0)
	if in == "" {
		in = defaultInput
	}
	out := flags.Arg(1)
	if out == "" {
		out = filepath.Join(filepath.Dir(in), defaultOutput)
	}

	stats, err := convert(ctx, cfg, in, out, log)
	if err != nil {
		log.Error.Printf("%v", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s (%d bytes)\n", out, stats.Bytes)
	return 0
}

// convert runs the whole pipeline. Nothing is left at out unless it succeeds.
func convert(ctx context.Context, cfg config.Config, in, out string, log *logging.Logger) (rle4.Stats, error) {
	img, err := loadImage(in)
	if err != nil {
		return rle4.Stats{}, err
	}
	log.Debug.Printf("loaded %s %v", in, img.Bounds())

	steps, err := cfg.Steps()
	if err != nil {
		return rle4.Stats{}, err
	}
	if img, err = transform.Apply(img, steps); err != nil {
		return rle4.Stats{}, err
	}

	enc, err := rle4.NewEncoder(cfg.EncoderOpts())
	if err != nil {
		return rle4.Stats{}, err
	}
	if err := enc.Validate(img.Bounds()); err != nil {
		return rle4.Stats{}, err
	}

	raw, err := createAtomic(out)
	if err != nil {
		return rle4.Stats{}, err
	}
	defer raw.Abort()
	bw := bufio.NewWriter(raw)
	var dst io.Writer = bw

	var arc *atomicFile
	var zw io.WriteCloser
	if kind := cfg.Archive(); kind != archive.None {
		if arc, err = createAtomic(out + kind.Ext()); err != nil {
			return rle4.Stats{}, err
		}
		defer arc.Abort()
		if zw, err = archive.NewWriter(arc, kind); err != nil {
			return rle4.Stats{}, err
		}
		dst = io.MultiWriter(bw, zw)
	}

	stats, err := enc.EncodeTo(ctx, dst, img)
	if err != nil {
		return stats, err
	}
	if err := bw.Flush(); err != nil {
		return stats, errors.Wrapf(err, "write %s", out)
	}
	if arc != nil {
		if err := zw.Close(); err != nil {
			return stats, errors.Wrapf(err, "write %s", arc.path)
		}
	}

	// The raw stream goes into place last; a failed archive leaves neither file
	if arc != nil {
		if err := arc.Commit(); err != nil {
			return stats, err
		}
	}
	if err := raw.Commit(); err != nil {
		if arc != nil {
			os.Remove(arc.path)
		}
		return stats, err
	}
	log.Info.Printf("encoded %dx%d in %d chunks", stats.Width, stats.Height, stats.Chunks)
	if arc != nil {
		log.Info.Printf("archived to %s", arc.path)
	}
	return stats, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

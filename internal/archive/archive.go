// Package archive writes compressed copies of encoded streams.
//
// The raw stream stays headerless; an archive is a separate file wrapping
// the same bytes in a standard zstd or lz4 frame.
package archive

import (
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Kind is a compression format.
type Kind string

const (
	None Kind = "none"
	Zstd Kind = "zstd"
	LZ4  Kind = "lz4"
)

// ErrUnknownKind is returned for unsupported format names.
var ErrUnknownKind = errors.New("archive: unknown compression")

// ParseKind reads a format name. The empty string means None.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return None, nil
	case None, Zstd, LZ4:
		return k, nil
	}
	return None, errors.Wrapf(ErrUnknownKind, "%q", s)
}

// Ext returns the file suffix for archives of this kind.
func (k Kind) Ext() string {
	switch k {
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	}
	return ""
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// NewWriter wraps w in a compressor. Close flushes the frame but leaves w open.
func NewWriter(w io.Writer, k Kind) (io.WriteCloser, error) {
	switch k {
	case None, "":
		return nopCloser{w}, nil
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "archive: zstd")
		}
		return enc, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", k)
}

// NewReader undoes NewWriter.
func NewReader(r io.Reader, k Kind) (io.ReadCloser, error) {
	switch k {
	case None, "":
		return io.NopCloser(r), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "archive: zstd")
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", k)
}

// Write compresses data into w in one go.
func Write(w io.Writer, k Kind, data []byte) (err error) {
	zw, err := NewWriter(w, k)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := zw.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "archive: close")
		}
	}()
	if _, err := zw.Write(data); err != nil {
		return errors.Wrap(err, "archive: write")
	}
	return nil
}

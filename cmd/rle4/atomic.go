package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// atomicFile is a temporary file renamed onto path by Commit.
type atomicFile struct {
	*os.File
	path string
	done bool
}

func createAtomic(path string) (*atomicFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, errors.Wrap(err, "create output")
	}
	return &atomicFile{File: f, path: path}, nil
}

// Commit closes the file and moves it into place.
func (f *atomicFile) Commit() error {
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return errors.Wrapf(err, "write %s", f.path)
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		os.Remove(f.Name())
		return errors.Wrapf(err, "write %s", f.path)
	}
	if err := os.Rename(f.Name(), f.path); err != nil {
		os.Remove(f.Name())
		return errors.Wrapf(err, "write %s", f.path)
	}
	f.done = true
	return nil
}

// Abort discards the file unless it was committed.
func (f *atomicFile) Abort() {
	if f.done {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

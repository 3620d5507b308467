// Package archive opens uploaded deck archives as zip containers and
// exposes entry enumeration and lookup without eager extraction.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed reports that a byte stream is not a valid zip container.
var ErrMalformed = errors.New("malformed archive")

// Archive is an opened deck archive.
type Archive struct {
	reader *zip.ReadCloser
	byName map[string]*zip.File
	names  []string
}

// Open opens the archive at path. The archive must already be buffered
// to disk in full; zip parsing needs random access. Returns ErrMalformed
// (wrapped) when the file is not a valid zip container.
func Open(path string) (*Archive, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, path)
		}
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	a := &Archive{
		reader: r,
		byName: make(map[string]*zip.File, len(r.File)),
		names:  make([]string, 0, len(r.File)),
	}
	for _, f := range r.File {
		a.names = append(a.names, f.Name)
		a.byName[f.Name] = f
	}
	return a, nil
}

// Entries returns the entry names in archive order.
func (a *Archive) Entries() []string {
	return a.names
}

// Has reports whether an entry with the given name exists.
func (a *Archive) Has(name string) bool {
	_, ok := a.byName[name]
	return ok
}

// OpenEntry opens the named entry for reading.
func (a *Archive) OpenEntry(name string) (io.ReadCloser, error) {
	f, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("entry %s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", name, err)
	}
	return rc, nil
}

// Close releases the underlying file handle.
func (a *Archive) Close() error {
	return a.reader.Close()
}

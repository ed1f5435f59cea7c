package index

import (
	"fmt"
	"io/fs"
	"iter"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/classpath/internal/zipentry"
)

// Entry describes one archive entry.
type Entry = zipentry.Entry

// ErrArchive is returned when an archive cannot be indexed.
var ErrArchive = zipentry.ErrArchive

// Index is the entry table of one version of an archive.
//
// An Index is immutable and safe for concurrent use. It is valid only while
// the archive's modification time and length match those it recorded.
type Index struct {
	path    string
	modTime time.Time
	size    int64
	entries map[string]Entry
}

// Build opens the archive at path once, records every entry, and closes it.
//
// When the central directory lists a name more than once, the first record
// wins.
func Build(path string) (idx *Index, err error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the configured classpath
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			idx, err = nil, cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchive, path, err)
	}

	entries := make(map[string]Entry, len(zr.File))
	for _, zf := range zr.File {
		if _, dup := entries[zf.Name]; dup {
			continue
		}
		e, err := zipentry.FromFile(zf)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries[zf.Name] = e
	}

	return &Index{
		path:    path,
		modTime: info.ModTime(),
		size:    info.Size(),
		entries: entries,
	}, nil
}

// Path returns the archive path the index was built from.
func (idx *Index) Path() string {
	return idx.path
}

// ModTime returns the archive modification time observed at build time.
func (idx *Index) ModTime() time.Time {
	return idx.modTime
}

// Size returns the archive length observed at build time.
func (idx *Index) Size() int64 {
	return idx.size
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Lookup returns the entry with the exact name.
func (idx *Index) Lookup(name string) (Entry, bool) {
	e, ok := idx.entries[name]
	return e, ok
}

// Contains reports whether the archive has an entry with the exact name.
func (idx *Index) Contains(name string) bool {
	_, ok := idx.entries[name]
	return ok
}

// Names returns an iterator over entry names in sorted order.
func (idx *Index) Names() iter.Seq[string] {
	return slices.Values(slices.Sorted(maps.Keys(idx.entries)))
}

// Matches reports whether info describes the same archive version the index
// was built from.
func (idx *Index) Matches(info fs.FileInfo) bool {
	return info.Size() == idx.size && info.ModTime().Equal(idx.modTime)
}

// sameVersion reports whether two indexes were built from the same archive
// version.
func (idx *Index) sameVersion(other *Index) bool {
	return idx.size == other.size && idx.modTime.Equal(other.modTime)
}

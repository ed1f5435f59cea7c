package provider

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/meigma/classpath/internal/sizing"
	"github.com/meigma/classpath/internal/zipentry"
	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/resource"
)

// ErrSizeOverflow is returned when a resource exceeds the configured size limit.
var ErrSizeOverflow = zipentry.ErrSizeOverflow

// Directory serves resources from a filesystem directory.
//
// Directory holds no state beyond its configuration: every call consults the
// filesystem, so files added or changed under the directory are seen
// immediately.
type Directory struct {
	dir  string
	root location.Location
	cfg  config
}

// NewDirectory returns a provider for the directory at dir. The directory
// need not exist; lookups against a missing directory find nothing.
func NewDirectory(dir string, opts ...Option) *Directory {
	return &Directory{
		dir:  dir,
		root: location.File(dir),
		cfg:  newConfig(opts),
	}
}

// Root returns the directory location.
func (d *Directory) Root() location.Location {
	return d.root
}

// Locate reports the file location of name if it is a regular file beneath
// the directory.
func (d *Directory) Locate(name string) (location.Location, bool, error) {
	rel, ok := relative(name)
	if !ok {
		return location.Location{}, false, nil
	}
	path := d.path(rel)
	info, err := os.Stat(path)
	if err != nil {
		if isAbsent(err) {
			return location.Location{}, false, nil
		}
		return location.Location{}, false, err
	}
	if !info.Mode().IsRegular() {
		return location.Location{}, false, nil
	}
	return location.File(path), true, nil
}

// Fetch reads name from the directory. The file is opened, read fully and
// closed before Fetch returns.
func (d *Directory) Fetch(name string) (*resource.Resource, bool, error) {
	rel, ok := relative(name)
	if !ok {
		return nil, false, nil
	}
	path := d.path(rel)
	data, ok, err := d.read(path)
	if err != nil || !ok {
		return nil, false, err
	}
	res, err := resource.New(rel, d.root, location.File(path), data, d.cfg.compression)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// String describes the provider for logs.
func (d *Directory) String() string {
	return "directory(" + d.dir + ")"
}

func (d *Directory) path(rel string) string {
	return filepath.Join(d.dir, filepath.FromSlash(rel))
}

func (d *Directory) read(path string) (data []byte, ok bool, err error) {
	f, err := os.Open(path) //nolint:gosec // path is confined to the root by relative
	if err != nil {
		if isAbsent(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			data, ok, err = nil, false, cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}
	if info.Size() >= 0 && sizing.Exceeds(uint64(info.Size()), d.cfg.maxSize) {
		return nil, false, &fs.PathError{Op: "read", Path: path, Err: ErrSizeOverflow}
	}
	data, err = sizing.ReadAllWithLimit(f, info.Size(), d.cfg.maxSize, ErrSizeOverflow)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

// relative normalizes name and rejects names that could leave the root.
func relative(name string) (string, bool) {
	rel := Normalize(name)
	if rel == "" || !fs.ValidPath(rel) {
		return "", false
	}
	return rel, true
}

// isAbsent reports whether err means the file simply is not there.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

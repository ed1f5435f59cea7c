package classpath

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/provider"
)

// ReadLocation reads the resource named by a location string, as returned
// by Location.String for results of LocateFirst and LocateAll.
//
// ReadLocation shares no state with any ClassPath: it opens the file or
// archive, reads the one resource and closes it again. The bytes are the
// same as those of the Resource a ClassPath fetches for that location.
func ReadLocation(s string) ([]byte, error) {
	loc, err := location.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return Read(loc)
}

// Read reads the resource at loc. See ReadLocation.
func Read(loc Location) ([]byte, error) {
	switch loc.Scheme {
	case location.SchemeFile:
		return os.ReadFile(loc.Path)
	case location.SchemeArchive:
		name := provider.Normalize(loc.Entry)
		if loc.Path == "" || name == "" {
			return nil, fmt.Errorf("%w: %w: %s names no archive entry", ErrConfiguration, ErrMalformed, loc)
		}
		return readEntry(loc, name)
	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrUnsupportedScheme, loc.Scheme)
	}
}

func readEntry(loc Location, name string) (data []byte, err error) {
	zr, err := zip.OpenReader(loc.Path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
			return nil, fmt.Errorf("%w: %s: %w", ErrArchive, loc.Path, err)
		}
		return nil, err
	}
	defer func() {
		if cerr := zr.Close(); cerr != nil && err == nil {
			data, err = nil, cerr
		}
	}()

	// The first entry with a given name wins, as in the index.
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		return readZipFile(loc, f)
	}
	return nil, &fs.PathError{Op: "read", Path: loc.String(), Err: fs.ErrNotExist}
}

func readZipFile(loc Location, f *zip.File) (data []byte, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArchive, loc, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			data, err = nil, cerr
		}
	}()
	data, err = io.ReadAll(rc)
	if err != nil {
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %s: %w", ErrArchive, loc, err)
		}
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	return data, nil
}

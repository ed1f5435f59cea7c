// Package resource provides the immutable value returned by classpath
// lookups.
//
// A Resource stores its content compressed and decompresses on every call to
// Bytes, so holding many resolved resources costs roughly their compressed
// size. A Resource never aliases a caller-owned buffer.
package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/classpath/internal/codec"
	"github.com/meigma/classpath/location"
)

// Compression identifies the algorithm used to store resource content.
type Compression = codec.Compression

// Compression algorithms.
const (
	CompressionNone = codec.CompressionNone
	CompressionZstd = codec.CompressionZstd
	CompressionLZ4  = codec.CompressionLZ4
)

// ParseCompression parses "none", "zstd" or "lz4". The empty string selects zstd.
func ParseCompression(s string) (Compression, error) {
	return codec.ParseCompression(s)
}

// ErrDecode is returned by Bytes when stored content cannot be decompressed.
// It indicates internal corruption and affects only that call.
var ErrDecode = errors.New("resource: decode failed")

// Resource is one resolved resource: its logical name, the root that
// produced it, where it was resolved, and its content.
type Resource struct {
	name        string
	root        location.Location
	loc         location.Location
	compression Compression
	content     []byte
	length      int
}

// New creates a Resource holding a compressed copy of data.
// The caller keeps ownership of data and may modify it afterwards.
func New(name string, root, loc location.Location, data []byte, c Compression) (*Resource, error) {
	if name == "" {
		return nil, errors.New("resource: name must not be empty")
	}
	if loc.IsZero() {
		return nil, errors.New("resource: location must not be empty")
	}
	content, err := codec.Compress(c, data)
	if err != nil {
		return nil, fmt.Errorf("resource: compress %s: %w", name, err)
	}
	return &Resource{
		name:        name,
		root:        root,
		loc:         loc,
		compression: c,
		content:     content,
		length:      len(data),
	}, nil
}

// Name returns the logical path of the resource within its root,
// e.g. "com/foo/Bar.class".
func (r *Resource) Name() string {
	return r.name
}

// RootLocation identifies the classpath root that produced the resource.
func (r *Resource) RootLocation() location.Location {
	return r.root
}

// Location returns the fully resolved location of the resource.
func (r *Resource) Location() location.Location {
	return r.loc
}

// Len returns the uncompressed content length in bytes.
func (r *Resource) Len() int {
	return r.length
}

// CompressedLen returns the number of bytes held in memory for the content.
func (r *Resource) CompressedLen() int {
	return len(r.content)
}

// Compression returns the algorithm used to store the content.
func (r *Resource) Compression() Compression {
	return r.compression
}

// Bytes decompresses and returns the content. Each call returns a new slice
// that the caller owns.
func (r *Resource) Bytes() ([]byte, error) {
	data, err := codec.Decompress(r.compression, r.content, r.length)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, r.loc, err)
	}
	return data, nil
}

// Open returns a reader over a fresh copy of the content.
func (r *Resource) Open() (io.Reader, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// String returns the resolved location.
func (r *Resource) String() string {
	return r.loc.String()
}

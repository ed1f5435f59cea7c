// Package zipentry extracts single entries from zip archives using metadata
// captured when the archive was indexed.
//
// Every read opens the archive, reads one entry and closes the archive
// before returning. No file handle outlives a call.
package zipentry

import (
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrArchive is returned when an archive is unreadable, truncated,
	// uses an unsupported compression method, or fails its checksum.
	ErrArchive = errors.New("classpath: bad archive")

	// ErrSizeOverflow is returned when an entry exceeds the configured
	// size limit or its sizes do not fit the platform.
	ErrSizeOverflow = errors.New("classpath: size overflow")
)

// Entry describes where an archive entry's bytes live and how to decode them.
type Entry struct {
	// Name is the entry path as stored in the central directory.
	Name string

	// Offset is the byte offset of the entry data, past its local header.
	Offset int64

	// CompressedSize is the number of stored bytes at Offset.
	CompressedSize uint64

	// Size is the uncompressed size.
	Size uint64

	// Method is the zip compression method (zip.Store or zip.Deflate).
	Method uint16

	// CRC32 is the IEEE checksum of the uncompressed content.
	CRC32 uint32

	// Modified is the entry modification time.
	Modified time.Time
}

// IsDir reports whether the entry is a directory marker.
func (e *Entry) IsDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

// FromFile captures the extraction metadata of a central directory record.
// It reads the entry's local header to locate the data.
func FromFile(f *zip.File) (Entry, error) {
	off, err := f.DataOffset()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: entry %s: %v", ErrArchive, f.Name, err)
	}
	return Entry{
		Name:           f.Name,
		Offset:         off,
		CompressedSize: f.CompressedSize64,
		Size:           f.UncompressedSize64,
		Method:         f.Method,
		CRC32:          f.CRC32,
		Modified:       f.Modified,
	}, nil
}

package zipentry

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/meigma/classpath/internal/sizing"
)

// DefaultMaxEntrySize is the default maximum entry size (256MB).
const DefaultMaxEntrySize = 256 << 20

// Reader extracts entries from archives on disk.
// A Reader is safe for concurrent use.
type Reader struct {
	maxEntrySize uint64
	inflaters    sync.Pool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxEntrySize sets the maximum entry size, compressed or not.
// Set to 0 to disable the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(r *Reader) {
		r.maxEntrySize = limit
	}
}

// NewReader creates a Reader.
func NewReader(opts ...Option) *Reader {
	r := &Reader{maxEntrySize: DefaultMaxEntrySize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile reads the entry e from the archive at path and verifies its
// checksum. The archive is closed before ReadFile returns.
func (r *Reader) ReadFile(path string, e *Entry) (content []byte, err error) {
	if sizing.Exceeds(e.Size, r.maxEntrySize) || sizing.Exceeds(e.CompressedSize, r.maxEntrySize) {
		return nil, fmt.Errorf("read %s: %w", e.Name, ErrSizeOverflow)
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the configured classpath
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !sizing.Within(e.Offset, e.CompressedSize, info.Size()) {
		return nil, fmt.Errorf("%w: %s: entry %s extends past end of archive", ErrArchive, path, e.Name)
	}

	section := io.NewSectionReader(f, e.Offset, int64(e.CompressedSize)) //nolint:gosec // bounded by Within
	reader, release, err := r.entryReader(e, section)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchive, path, err)
	}
	defer release()

	return readContent(path, e, reader)
}

// entryReader returns a decoder for the entry's compression method.
func (r *Reader) entryReader(e *Entry, section *io.SectionReader) (io.Reader, func(), error) {
	switch e.Method {
	case zip.Store:
		if e.CompressedSize != e.Size {
			return nil, func() {}, fmt.Errorf("entry %s: stored size mismatch", e.Name)
		}
		return section, func() {}, nil
	case zip.Deflate:
		return r.inflater(section)
	default:
		return nil, func() {}, fmt.Errorf("entry %s: unsupported compression method %d", e.Name, e.Method)
	}
}

// inflater returns a pooled flate reader positioned on src.
func (r *Reader) inflater(src io.Reader) (io.Reader, func(), error) {
	if fr, ok := r.inflaters.Get().(io.ReadCloser); ok {
		if rs, ok := fr.(flate.Resetter); ok && rs.Reset(src, nil) == nil {
			return fr, func() { r.inflaters.Put(fr) }, nil
		}
	}
	fr := flate.NewReader(src)
	return fr, func() { r.inflaters.Put(fr) }, nil
}

// readContent reads exactly e.Size bytes and verifies the CRC32.
func readContent(path string, e *Entry, reader io.Reader) ([]byte, error) {
	size, err := sizing.ToInt(e.Size, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Name, err)
	}
	content := make([]byte, size)

	hasher := crc32.NewIEEE()
	n, err := io.ReadFull(io.TeeReader(reader, hasher), content)
	if err != nil {
		return nil, mapReadError(path, e, n, size, err)
	}
	if err := ensureNoExtra(reader); err != nil {
		return nil, fmt.Errorf("%w: %s: entry %s: %v", ErrArchive, path, e.Name, err)
	}
	if hasher.Sum32() != e.CRC32 {
		return nil, fmt.Errorf("%w: %s: entry %s: checksum mismatch", ErrArchive, path, e.Name)
	}
	return content, nil
}

// ensureNoExtra verifies the decoder has no data past the declared size.
func ensureNoExtra(r io.Reader) error {
	var probe [1]byte
	n, err := r.Read(probe[:])
	if n > 0 {
		return fmt.Errorf("content exceeds declared size")
	}
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

// mapReadError converts short reads into archive corruption errors.
func mapReadError(path string, e *Entry, n, expected int, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %s: entry %s: short read (%d of %d bytes)", ErrArchive, path, e.Name, n, expected)
	}
	if e.Method == zip.Deflate {
		return fmt.Errorf("%w: %s: entry %s: %v", ErrArchive, path, e.Name, err)
	}
	return fmt.Errorf("read %s: %w", e.Name, err)
}

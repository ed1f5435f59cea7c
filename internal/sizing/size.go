// Package sizing provides overflow-safe size arithmetic for archive entries
// and bounded reads of resource content.
package sizing

import (
	"io"
	"math"
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// Within reports whether the range [off, off+n) lies inside a file of the
// given total size without overflowing.
func Within(off int64, n uint64, total int64) bool {
	if off < 0 || total < 0 {
		return false
	}
	end := uint64(off) + n //nolint:gosec // off is non-negative
	if end < n {
		return false
	}
	return end <= uint64(total) //nolint:gosec // total is non-negative
}

// Exceeds reports whether size is over limit. A zero limit disables the check.
func Exceeds(size, limit uint64) bool {
	return limit > 0 && size > limit
}

// ReadAllWithLimit reads r to EOF, returning overflowErr if more than
// maxSize bytes are available. A zero maxSize disables the limit.
// sizeHint preallocates the result buffer when known.
func ReadAllWithLimit(r io.Reader, sizeHint int64, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize == 0 {
		return readAll(r, sizeHint)
	}
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	data, err := readAll(&io.LimitedReader{R: r, N: limit}, min(sizeHint, limit))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}

func readAll(r io.Reader, sizeHint int64) ([]byte, error) {
	if sizeHint <= 0 || sizeHint > math.MaxInt32 {
		return io.ReadAll(r)
	}
	// One extra byte so a file of exactly sizeHint bytes hits EOF without a regrow.
	buf := make([]byte, 0, sizeHint+1)
	for {
		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
	}
}

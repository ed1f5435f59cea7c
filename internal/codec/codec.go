// Package codec compresses resource content held in memory.
//
// Resources keep their bytes compressed between reads. The default
// algorithm is zstd; lz4 trades ratio for speed and none stores a private
// copy of the input.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm used for stored resource content.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseCompression maps a name produced by String back to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return CompressionNone, nil
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// ErrCorrupt is returned when stored content cannot be decompressed to the
// recorded length.
var ErrCorrupt = errors.New("corrupt compressed content")

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll,
// so a single pair serves the whole process.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
			zstd.WithLowerEncoderMem(true),
		)
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderLowmem(true),
		)
	})
)

// Compress returns a newly allocated compressed copy of src.
// The returned slice never aliases src.
func Compress(c Compression, src []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return bytes.Clone(src), nil
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(src, make([]byte, 0, len(src)/2+64)), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm: %d", c)
	}
}

// Decompress expands src, which must decode to exactly size bytes.
// The result is always a fresh slice owned by the caller.
func Decompress(c Compression, src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrCorrupt, size)
	}
	// zstd encodes empty input as an empty buffer.
	if size == 0 && len(src) == 0 && c != CompressionLZ4 {
		return []byte{}, nil
	}
	var (
		out []byte
		err error
	)
	switch c {
	case CompressionNone:
		out = bytes.Clone(src)
	case CompressionZstd:
		out, err = decompressZstd(src, size)
	case CompressionLZ4:
		out, err = decompressLZ4(src, size)
	default:
		return nil, fmt.Errorf("%w: unknown compression algorithm: %d", ErrCorrupt, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: size mismatch (%d of %d bytes)", ErrCorrupt, len(out), size)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func decompressZstd(src []byte, size int) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(src, make([]byte, 0, size))
}

func decompressLZ4(src []byte, size int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.New("unexpected EOF")
		}
		return nil, err
	}
	var probe [1]byte
	if n, err := r.Read(probe[:]); n > 0 || (err != nil && err != io.EOF) {
		if err == nil {
			return nil, errors.New("trailing data")
		}
		return nil, err
	}
	return out, nil
}

package classpath

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/meigma/classpath/index"
)

// DefaultConcurrency is the number of roots AddRoots prepares at once.
const DefaultConcurrency = 4

// Option configures a ClassPath.
type Option func(*ClassPath) error

// WithLogger sets the logger for resolver, provider and index cache events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(cp *ClassPath) error {
		cp.logger = logger
		return nil
	}
}

// WithIndexCache shares an archive index cache with the resolver.
// If not set, the resolver creates its own cache with default settings.
func WithIndexCache(c *index.Cache) Option {
	return func(cp *ClassPath) error {
		if c == nil {
			return errors.New("classpath: nil index cache")
		}
		cp.cache = c
		return nil
	}
}

// WithCompression sets how fetched resources hold their content in memory.
// Defaults to CompressionZstd.
func WithCompression(c Compression) Option {
	return func(cp *ClassPath) error {
		switch c {
		case CompressionNone, CompressionZstd, CompressionLZ4:
			cp.compression = c
			return nil
		default:
			return fmt.Errorf("classpath: unknown compression %d", c)
		}
	}
}

// WithMaxResourceSize limits the size of fetched resources.
// Set limit to 0 to disable the limit.
func WithMaxResourceSize(limit uint64) Option {
	return func(cp *ClassPath) error {
		cp.maxSize = limit
		return nil
	}
}

// WithConcurrency sets how many roots AddRoots prepares in parallel.
func WithConcurrency(n int) Option {
	return func(cp *ClassPath) error {
		if n < 1 {
			return fmt.Errorf("classpath: concurrency must be positive, got %d", n)
		}
		cp.concurrency = n
		return nil
	}
}

package provider

import (
	"log/slog"

	"github.com/meigma/classpath/internal/zipentry"
	"github.com/meigma/classpath/resource"
)

// DefaultMaxResourceSize is the default maximum size of a fetched resource (256MB).
const DefaultMaxResourceSize = zipentry.DefaultMaxEntrySize

type config struct {
	compression resource.Compression
	maxSize     uint64
	logger      *slog.Logger
}

// Option configures a Directory or Archive provider.
type Option func(*config)

// WithCompression sets how fetched resources store their content in memory.
// Defaults to resource.CompressionZstd.
func WithCompression(c resource.Compression) Option {
	return func(cfg *config) {
		cfg.compression = c
	}
}

// WithMaxResourceSize limits the size of fetched resources.
// Set limit to 0 to disable the limit.
func WithMaxResourceSize(limit uint64) Option {
	return func(cfg *config) {
		cfg.maxSize = limit
	}
}

// WithLogger sets the logger for provider events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		compression: resource.CompressionZstd,
		maxSize:     DefaultMaxResourceSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

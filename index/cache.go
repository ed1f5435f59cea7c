package index

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/meigma/classpath/location"
)

// DefaultCapacity is the default number of indexes held strongly.
const DefaultCapacity = 256

// Cache shares archive indexes across a process.
//
// Entries are keyed by canonical archive path, so differently spelled paths
// to the same file share one index. Entries are held softly: the most
// recently used indexes are kept alive by a bounded LRU, and any index that
// is still referenced elsewhere (typically by an archive provider) stays
// reachable through a weak pointer after it leaves the LRU. An index that is
// neither is reclaimed by the garbage collector and rebuilt on next access.
//
// GetOrCreate never waits on another caller's build. Concurrent builds of
// the same archive are redundant but harmless because two builds of an
// unchanged file are equivalent.
//
// A Cache is safe for concurrent use.
type Cache struct {
	capacity  int
	recent    *lru.Cache[string, *Index]
	refs      sync.Map // canonical path -> weak.Pointer[Index]
	logger    *slog.Logger
	meterProv metric.MeterProvider
	metrics   *cacheMetrics
	build     func(path string) (*Index, error)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity sets how many indexes are held strongly. Must be > 0.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		c.capacity = n
	}
}

// WithLogger sets the logger for cache events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMeterProvider records cache lookups and index builds with the given
// OpenTelemetry meter provider. If not set, metrics are discarded.
func WithMeterProvider(mp metric.MeterProvider) CacheOption {
	return func(c *Cache) {
		c.meterProv = mp
	}
}

// NewCache creates an empty Cache.
func NewCache(opts ...CacheOption) (*Cache, error) {
	c := &Cache{
		capacity:  DefaultCapacity,
		meterProv: noop.NewMeterProvider(),
		build:     Build,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.capacity <= 0 {
		return nil, errors.New("index: cache capacity must be > 0")
	}
	recent, err := lru.New[string, *Index](c.capacity)
	if err != nil {
		return nil, err
	}
	c.recent = recent
	metrics, err := newCacheMetrics(c.meterProv)
	if err != nil {
		return nil, err
	}
	c.metrics = metrics
	return c, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// GetOrCreate returns a current index for the archive at path, building one
// if none is cached or the cached one is stale.
//
// It returns nil and no error if path is not a regular file; missing
// archives are routine on a classpath. Archives that cannot be read or
// parsed return an error.
func (c *Cache) GetOrCreate(path string) (*Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}
	key, err := location.CanonicalPath(path)
	if err != nil {
		return nil, err
	}

	cached := c.load(key)
	if cached == nil {
		c.log().Debug("archive index cache miss", "path", key)
		c.metrics.lookup(resultMiss)
		created, err := c.create(key)
		if err != nil {
			return nil, err
		}
		return c.install(key, created), nil
	}

	if cached.Matches(info) {
		c.metrics.lookup(resultHit)
		return cached, nil
	}

	c.log().Debug("archive index stale",
		"path", key,
		"cached_size", cached.Size(),
		"size", info.Size(),
		"cached_mtime", cached.ModTime(),
		"mtime", info.ModTime())
	c.metrics.lookup(resultStale)
	created, err := c.create(key)
	if err != nil {
		return nil, err
	}
	c.replace(key, created)
	return created, nil
}

// Remove drops any cached index for the archive at path.
func (c *Cache) Remove(path string) {
	key, err := location.CanonicalPath(path)
	if err != nil {
		return
	}
	c.recent.Remove(key)
	c.refs.Delete(key)
}

// Purge drops every cached index. Indexes still referenced by providers
// remain valid for them.
func (c *Cache) Purge() {
	c.recent.Purge()
	c.refs.Clear()
}

// Len returns the number of indexes held strongly.
func (c *Cache) Len() int {
	return c.recent.Len()
}

// load returns the cached index for key, or nil if it was never built or
// has been reclaimed.
func (c *Cache) load(key string) *Index {
	if idx, ok := c.recent.Get(key); ok {
		return idx
	}
	v, ok := c.refs.Load(key)
	if !ok {
		return nil
	}
	idx := v.(weak.Pointer[Index]).Value() //nolint:forcetypeassert // refs only holds weak pointers
	if idx != nil {
		c.recent.Add(key, idx)
	}
	return idx
}

func (c *Cache) create(key string) (*Index, error) {
	idx, err := c.build(key)
	if err != nil {
		c.log().Debug("archive index build failed", "path", key, "error", err)
		return nil, err
	}
	c.metrics.built()
	c.log().Debug("archive index built", "path", key, "entries", idx.Len())
	return idx, nil
}

// install publishes a freshly built index after a miss. If another caller
// installed an index of the same archive version that is still reachable,
// that one is kept and returned instead.
func (c *Cache) install(key string, created *Index) *Index {
	wp := c.track(key, created)
	if prev, loaded := c.refs.LoadOrStore(key, wp); loaded {
		existing := prev.(weak.Pointer[Index]).Value() //nolint:forcetypeassert // refs only holds weak pointers
		if existing != nil && existing.sameVersion(created) {
			c.recent.Add(key, existing)
			return existing
		}
		c.refs.Store(key, wp)
	}
	c.recent.Add(key, created)
	return created
}

// replace overwrites the entry for key unconditionally. Two callers racing
// to replace a stale index both observed the new file, so losing either
// rebuild is harmless.
func (c *Cache) replace(key string, created *Index) {
	c.refs.Store(key, c.track(key, created))
	c.recent.Add(key, created)
}

// track returns a weak pointer to idx and arranges for the map entry to be
// dropped once idx is reclaimed.
func (c *Cache) track(key string, idx *Index) weak.Pointer[Index] {
	wp := weak.Make(idx)
	runtime.AddCleanup(idx, func(k trackedKey) {
		c.refs.CompareAndDelete(k.key, k.ptr)
	}, trackedKey{key: key, ptr: wp})
	return wp
}

type trackedKey struct {
	key string
	ptr weak.Pointer[Index]
}

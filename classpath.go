package classpath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/provider"
)

// ClassPath resolves resource names against an ordered list of roots.
//
// Roots are only ever appended. Lookups iterate a snapshot of the list taken
// when they start, so roots added concurrently are seen by later lookups
// without blocking earlier ones. After Close, AddRoot does nothing and every
// lookup reports absence.
//
// A ClassPath is safe for concurrent use.
type ClassPath struct {
	cache       *index.Cache
	logger      *slog.Logger
	compression Compression
	maxSize     uint64
	concurrency int

	bindings atomic.Pointer[[]binding]
	closed   atomic.Bool
}

// binding pairs a canonical root with the provider serving it.
type binding struct {
	root     Location
	key      string
	provider provider.Provider
}

// New creates an empty ClassPath.
func New(opts ...Option) (*ClassPath, error) {
	cp := &ClassPath{
		compression: CompressionZstd,
		maxSize:     provider.DefaultMaxResourceSize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		if err := opt(cp); err != nil {
			return nil, err
		}
	}
	if cp.cache == nil {
		c, err := index.NewCache(index.WithLogger(cp.log()))
		if err != nil {
			return nil, err
		}
		cp.cache = c
	}
	cp.bindings.Store(&[]binding{})
	return cp, nil
}

func (cp *ClassPath) log() *slog.Logger {
	if cp.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return cp.logger
}

// AddRoot appends root to the search path.
//
// Roots equal to one already present after canonicalization are ignored, as
// are archive roots whose file does not exist; such an archive may be added
// again once it does. Locations that cannot be classified return an error
// wrapping ErrConfiguration. Archives that cannot be indexed return an error
// wrapping ErrArchive or the underlying I/O error.
func (cp *ClassPath) AddRoot(root Location) error {
	if cp.closed.Load() {
		return nil
	}
	b, ok, err := cp.bind(root)
	if err != nil || !ok {
		return err
	}
	cp.install(b)
	return nil
}

// AddRoots prepares roots concurrently and appends them in argument order.
//
// If any root fails, none of them are added and the first error is returned.
func (cp *ClassPath) AddRoots(ctx context.Context, roots ...Location) error {
	if cp.closed.Load() {
		return nil
	}
	prepared := make([]binding, len(roots))
	found := make([]bool, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cp.concurrency)
	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, ok, err := cp.bind(root)
			if err != nil {
				return err
			}
			prepared[i], found[i] = b, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, b := range prepared {
		if found[i] {
			cp.install(b)
		}
	}
	return nil
}

// bind canonicalizes root and builds its provider. It reports false when the
// root is already present or names a missing archive.
func (cp *ClassPath) bind(root Location) (binding, bool, error) {
	canon, err := canonicalRoot(root)
	if err != nil {
		return binding{}, false, err
	}
	key := canon.Key()
	if cp.contains(key) {
		cp.log().Debug("duplicate root ignored", "root", key)
		return binding{}, false, nil
	}

	opts := []provider.Option{
		provider.WithCompression(cp.compression),
		provider.WithMaxResourceSize(cp.maxSize),
		provider.WithLogger(cp.log()),
	}
	if canon.Scheme != location.SchemeArchive {
		return binding{root: canon, key: key, provider: provider.NewDirectory(canon.Path, opts...)}, true, nil
	}

	idx, err := cp.cache.GetOrCreate(canon.Path)
	if err != nil {
		return binding{}, false, fmt.Errorf("classpath: add root %s: %w", key, err)
	}
	if idx == nil {
		cp.log().Debug("missing archive root skipped", "root", key)
		return binding{}, false, nil
	}
	var p provider.Provider = provider.NewArchive(idx, opts...)
	if canon.Entry != "" {
		p = provider.NewRestricted(p, canon.Entry)
	}
	return binding{root: canon, key: key, provider: p}, true, nil
}

// canonicalRoot validates root and returns its canonical form. File roots
// with an archive suffix become archive roots so both spellings compare
// equal.
func canonicalRoot(root Location) (Location, error) {
	switch root.Scheme {
	case location.SchemeFile, location.SchemeArchive:
	default:
		return Location{}, fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrUnsupportedScheme, root.Scheme)
	}
	canon, err := root.Canonical()
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			return Location{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return Location{}, fmt.Errorf("classpath: canonicalize %s: %w", root.Path, err)
	}
	if canon.Scheme == location.SchemeFile && location.HasArchiveSuffix(canon.Path) {
		canon = location.Archive(canon.Path, "")
	}
	return canon, nil
}

func (cp *ClassPath) snapshot() []binding {
	return *cp.bindings.Load()
}

func (cp *ClassPath) contains(key string) bool {
	return slices.ContainsFunc(cp.snapshot(), func(b binding) bool { return b.key == key })
}

// install adds b unless a binding with the same key won a race to get there
// first.
func (cp *ClassPath) install(b binding) {
	for {
		if cp.closed.Load() {
			return
		}
		cur := cp.bindings.Load()
		if slices.ContainsFunc(*cur, func(x binding) bool { return x.key == b.key }) {
			return
		}
		next := make([]binding, len(*cur), len(*cur)+1)
		copy(next, *cur)
		next = append(next, b)
		if cp.bindings.CompareAndSwap(cur, &next) {
			cp.log().Debug("root added", "root", b.key, "position", len(next)-1)
			return
		}
	}
}

// LocateFirst returns the location of name under the first root that has it.
func (cp *ClassPath) LocateFirst(name string) (Location, bool, error) {
	if cp.closed.Load() {
		return Location{}, false, nil
	}
	for _, b := range cp.snapshot() {
		loc, ok, err := b.provider.Locate(name)
		if err != nil {
			return Location{}, false, lookupError("locate", name, b, err)
		}
		if ok {
			return loc, true, nil
		}
	}
	cp.log().Debug("resource missed", "op", "locate", "name", name)
	return Location{}, false, nil
}

// FetchFirst reads name from the first root that has it.
func (cp *ClassPath) FetchFirst(name string) (*Resource, bool, error) {
	if cp.closed.Load() {
		return nil, false, nil
	}
	for _, b := range cp.snapshot() {
		res, ok, err := b.provider.Fetch(name)
		if err != nil {
			return nil, false, lookupError("fetch", name, b, err)
		}
		if ok {
			return res, true, nil
		}
	}
	cp.log().Debug("resource missed", "op", "fetch", "name", name)
	return nil, false, nil
}

// LocateAll returns the location of name under every root that has it, in
// root order. Locations are reported once even if several roots resolve to
// the same place.
func (cp *ClassPath) LocateAll(name string) ([]Location, error) {
	if cp.closed.Load() {
		return nil, nil
	}
	var locs []Location
	seen := make(map[string]struct{})
	for _, b := range cp.snapshot() {
		loc, ok, err := b.provider.Locate(name)
		if err != nil {
			return nil, lookupError("locate", name, b, err)
		}
		if !ok {
			continue
		}
		if _, dup := seen[loc.String()]; dup {
			continue
		}
		seen[loc.String()] = struct{}{}
		locs = append(locs, loc)
	}
	return locs, nil
}

// FetchAll reads name from every root that has it, in root order, skipping
// copies resolved at a location already returned.
func (cp *ClassPath) FetchAll(name string) ([]*Resource, error) {
	if cp.closed.Load() {
		return nil, nil
	}
	var out []*Resource
	seen := make(map[string]struct{})
	for _, b := range cp.snapshot() {
		res, ok, err := b.provider.Fetch(name)
		if err != nil {
			return nil, lookupError("fetch", name, b, err)
		}
		if !ok {
			continue
		}
		key := res.Location().String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, res)
	}
	return out, nil
}

// Roots returns the canonical roots in search order.
func (cp *ClassPath) Roots() []Location {
	bs := cp.snapshot()
	roots := make([]Location, len(bs))
	for i, b := range bs {
		roots[i] = b.root
	}
	return roots
}

// Len returns the number of roots.
func (cp *ClassPath) Len() int {
	return len(cp.snapshot())
}

// Close stops the ClassPath from adding roots or answering lookups.
// It holds no files, so there is nothing to release; Close always returns nil.
func (cp *ClassPath) Close() error {
	if cp.closed.CompareAndSwap(false, true) {
		cp.log().Debug("classpath closed", "roots", cp.Len())
	}
	return nil
}

// Closed reports whether Close has been called.
func (cp *ClassPath) Closed() bool {
	return cp.closed.Load()
}

func lookupError(op, name string, b binding, err error) error {
	return fmt.Errorf("classpath: %s %s in %s: %w", op, name, b.key, err)
}

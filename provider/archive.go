package provider

import (
	"sync"

	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/internal/zipentry"
	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/resource"
)

// Archive serves resources from a zip archive through a prebuilt index.
//
// Entry names come from the index and are answered without touching the
// archive. Entry content is read on first fetch by opening the archive just
// long enough to extract that entry, then kept for the life of the provider.
// The archive is assumed not to change while the provider is in use; the
// index cache revalidates that assumption when a new provider is built.
type Archive struct {
	idx     *index.Index
	root    location.Location
	reader  *zipentry.Reader
	cfg     config
	fetched sync.Map // entry name -> *resource.Resource
}

// NewArchive returns a provider backed by idx.
func NewArchive(idx *index.Index, opts ...Option) *Archive {
	cfg := newConfig(opts)
	return &Archive{
		idx:    idx,
		root:   location.Archive(idx.Path(), ""),
		reader: zipentry.NewReader(zipentry.WithMaxEntrySize(cfg.maxSize)),
		cfg:    cfg,
	}
}

// Root returns the archive root location.
func (a *Archive) Root() location.Location {
	return a.root
}

// Index returns the index backing the provider.
func (a *Archive) Index() *index.Index {
	return a.idx
}

// Locate reports the archive entry location of name if the archive has an
// entry with exactly that name.
func (a *Archive) Locate(name string) (location.Location, bool, error) {
	name = Normalize(name)
	if !a.idx.Contains(name) {
		return location.Location{}, false, nil
	}
	return location.Archive(a.idx.Path(), name), true, nil
}

// Fetch returns the entry called name. Concurrent first fetches of the same
// name may each read the archive, but all of them return the same Resource.
func (a *Archive) Fetch(name string) (*resource.Resource, bool, error) {
	name = Normalize(name)
	e, ok := a.idx.Lookup(name)
	if !ok {
		return nil, false, nil
	}
	if v, ok := a.fetched.Load(name); ok {
		return v.(*resource.Resource), true, nil //nolint:forcetypeassert // fetched only holds resources
	}

	data, err := a.reader.ReadFile(a.idx.Path(), &e)
	if err != nil {
		return nil, false, err
	}
	a.cfg.logger.Debug("archive entry read", "archive", a.idx.Path(), "entry", name, "bytes", len(data))

	res, err := resource.New(name, a.root, location.Archive(a.idx.Path(), name), data, a.cfg.compression)
	if err != nil {
		return nil, false, err
	}
	v, _ := a.fetched.LoadOrStore(name, res)
	return v.(*resource.Resource), true, nil //nolint:forcetypeassert // fetched only holds resources
}

// String describes the provider for logs.
func (a *Archive) String() string {
	return "archive(" + a.idx.Path() + ")"
}

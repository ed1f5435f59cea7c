package provider

import (
	"strings"

	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/resource"
)

// Restricted narrows another provider to names beginning with a prefix.
//
// It is used when a root designates a subtree of an archive, such as
// "archive:file:///app.jar!/lib/". Names are not rewritten: callers query
// with the full entry name, and names outside the prefix are absent.
type Restricted struct {
	delegate Provider
	prefix   string
	root     location.Location
}

// NewRestricted wraps delegate so that only names starting with prefix are
// resolved. Leading slashes are stripped from prefix.
func NewRestricted(delegate Provider, prefix string) *Restricted {
	prefix = Normalize(prefix)
	root := delegate.Root()
	if root.Scheme == location.SchemeArchive {
		root = location.Archive(root.Path, prefix)
	}
	return &Restricted{delegate: delegate, prefix: prefix, root: root}
}

// Root returns the restricted root location.
func (r *Restricted) Root() location.Location {
	return r.root
}

// Prefix returns the name prefix the provider is restricted to.
func (r *Restricted) Prefix() string {
	return r.prefix
}

// Locate delegates name if it lies under the prefix.
func (r *Restricted) Locate(name string) (location.Location, bool, error) {
	name, ok := r.allow(name)
	if !ok {
		return location.Location{}, false, nil
	}
	return r.delegate.Locate(name)
}

// Fetch delegates name if it lies under the prefix.
func (r *Restricted) Fetch(name string) (*resource.Resource, bool, error) {
	name, ok := r.allow(name)
	if !ok {
		return nil, false, nil
	}
	return r.delegate.Fetch(name)
}

// String describes the provider for logs.
func (r *Restricted) String() string {
	return "restricted(" + r.root.String() + ")"
}

func (r *Restricted) allow(name string) (string, bool) {
	name = Normalize(name)
	return name, strings.HasPrefix(name, r.prefix)
}

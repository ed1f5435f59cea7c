package classpath

import (
	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/resource"
)

// Location identifies a root or a resolved resource.
type Location = location.Location

// Resource is a fetched resource.
type Resource = resource.Resource

// Compression identifies how fetched resources hold their content in memory.
type Compression = resource.Compression

// Compression constants.
const (
	CompressionNone = resource.CompressionNone
	CompressionZstd = resource.CompressionZstd
	CompressionLZ4  = resource.CompressionLZ4
)

// Loader is the set of operations a host uses to load resources through a
// classpath. *ClassPath implements it; hosts that install their own
// resolution strategy depend on this interface instead.
type Loader interface {
	AddRoot(root Location) error
	LocateFirst(name string) (Location, bool, error)
	FetchFirst(name string) (*Resource, bool, error)
	LocateAll(name string) ([]Location, error)
	FetchAll(name string) ([]*Resource, error)
	Close() error
}

var _ Loader = (*ClassPath)(nil)

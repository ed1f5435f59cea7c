// Package provider resolves resource names beneath a single classpath root.
//
// Three implementations share the [Provider] contract: [Directory] for
// filesystem directories, [Archive] for zip archives, and [Restricted],
// which narrows another provider to a name prefix. All of them strip
// leading slashes from names before matching, report absence as ok == false
// with a nil error, and never keep a file open between calls.
package provider

import (
	"strings"

	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/resource"
)

// Provider resolves names beneath one classpath root.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Locate returns the resolved location of name, or ok == false if the
	// root has no such resource.
	Locate(name string) (loc location.Location, ok bool, err error)

	// Fetch reads the resource called name, or returns ok == false if the
	// root has no such resource.
	Fetch(name string) (res *resource.Resource, ok bool, err error)

	// Root returns the location of the root this provider serves.
	Root() location.Location
}

// Interface compliance.
var (
	_ Provider = (*Directory)(nil)
	_ Provider = (*Archive)(nil)
	_ Provider = (*Restricted)(nil)
)

// Normalize strips every leading "/" from a resource name.
func Normalize(name string) string {
	return strings.TrimLeft(name, "/")
}

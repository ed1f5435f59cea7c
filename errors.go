package classpath

import (
	"errors"

	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/location"
	"github.com/meigma/classpath/provider"
	"github.com/meigma/classpath/resource"
)

// ErrConfiguration is returned when a root cannot be classified. Errors for
// unsupported schemes and malformed locations wrap it.
var ErrConfiguration = errors.New("classpath: invalid root")

// Errors re-exported from location.
var (
	// ErrUnsupportedScheme is returned for roots with a scheme other than file or archive.
	ErrUnsupportedScheme = location.ErrUnsupportedScheme

	// ErrMalformed is returned for locations with no extractable file path.
	ErrMalformed = location.ErrMalformed
)

// Errors re-exported from the archive and resource layers.
var (
	// ErrArchive is returned when an archive is corrupt, uses an unsupported
	// entry method, or an entry fails its checksum.
	ErrArchive = index.ErrArchive

	// ErrSizeOverflow is returned when a resource exceeds the configured size limit.
	ErrSizeOverflow = provider.ErrSizeOverflow

	// ErrDecode is returned by Resource.Bytes when stored content cannot be decompressed.
	ErrDecode = resource.ErrDecode
)

// Package location identifies classpath roots and the resources resolved
// beneath them.
//
// A Location is either a filesystem path (scheme "file") or an entry inside
// a zip archive (scheme "archive"). Locations have a canonical string form
// that round-trips through Parse:
//
//	file:///opt/app/classes/com/foo/Bar.class
//	archive:file:///opt/app/lib/dep.jar!/com/foo/Bar.class
//	archive:file:///opt/app/lib/dep.jar!/lib/
//
// The last form is an archive root restricted to the "lib/" subtree.
// The "jar" scheme is accepted as an alias for "archive" on input.
package location

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Scheme identifies how a Location is resolved.
type Scheme string

const (
	// SchemeFile is a filesystem path: a directory, a plain file, or an
	// archive file identified by its suffix.
	SchemeFile Scheme = "file"

	// SchemeArchive is a zip archive, optionally narrowed to an entry path.
	SchemeArchive Scheme = "archive"

	// schemeJar is accepted by Parse and normalized to SchemeArchive.
	schemeJar Scheme = "jar"
)

// entrySeparator splits the archive file URL from the entry path.
const entrySeparator = "!/"

var (
	// ErrUnsupportedScheme is returned for schemes other than file and archive,
	// including file URLs naming a remote host.
	ErrUnsupportedScheme = errors.New("location: unsupported scheme")

	// ErrMalformed is returned when a location has no extractable path.
	ErrMalformed = errors.New("location: malformed")
)

// Location identifies a classpath root or a resolved resource.
type Location struct {
	// Scheme is SchemeFile or SchemeArchive.
	Scheme Scheme

	// Path is the filesystem path in OS-native form. For SchemeArchive it
	// names the archive file.
	Path string

	// Entry is the slash-separated path inside the archive. It is empty for
	// SchemeFile and for archive roots without a restriction.
	Entry string
}

// File returns a SchemeFile location for path.
func File(path string) Location {
	return Location{Scheme: SchemeFile, Path: path}
}

// Archive returns a SchemeArchive location for the entry inside the archive
// at path. An empty entry designates the archive root.
func Archive(path, entry string) Location {
	return Location{Scheme: SchemeArchive, Path: path, Entry: entry}
}

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool {
	return l == Location{}
}

// IsArchive reports whether l designates a zip archive: either an archive
// scheme location, or a file location ending in .jar or .zip.
func (l Location) IsArchive() bool {
	switch l.Scheme {
	case SchemeArchive:
		return true
	case SchemeFile:
		return HasArchiveSuffix(l.Path)
	default:
		return false
	}
}

// HasArchiveSuffix reports whether path names a .jar or .zip file.
func HasArchiveSuffix(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip":
		return true
	default:
		return false
	}
}

// String returns the URL form of l. Parse(l.String()) returns l.
func (l Location) String() string {
	switch l.Scheme {
	case SchemeFile:
		return fileURL(l.Path)
	case SchemeArchive:
		return string(SchemeArchive) + ":" + fileURL(l.Path) + entrySeparator + escape(l.Entry)
	default:
		return string(l.Scheme) + ":" + l.Path
	}
}

// Parse parses a location URL or a bare filesystem path.
//
// Errors wrap ErrUnsupportedScheme or ErrMalformed.
func Parse(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrMalformed)
	}
	scheme, rest, ok := splitScheme(s)
	if !ok {
		return File(s), nil
	}

	switch Scheme(strings.ToLower(scheme)) {
	case SchemeFile:
		path, err := parseFileURL(rest)
		if err != nil {
			return Location{}, fmt.Errorf("%q: %w", s, err)
		}
		return File(path), nil
	case SchemeArchive, schemeJar:
		return parseArchive(s, rest)
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, s)
	}
}

// MustParse is like Parse but panics on error. It is intended for tests
// and static configuration.
func MustParse(s string) Location {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// SplitList parses an OS-specific list of locations, such as the value of a
// CLASSPATH environment variable. Empty elements are skipped.
func SplitList(list string) ([]Location, error) {
	var locs []Location
	for _, elem := range filepath.SplitList(list) {
		if elem == "" {
			continue
		}
		l, err := Parse(elem)
		if err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, nil
}

// Canonical returns l with an absolute, cleaned path. Symlinks are resolved
// when the path exists, so differently spelled locations of the same file
// canonicalize identically. Leading slashes are stripped from Entry.
func (l Location) Canonical() (Location, error) {
	if l.Path == "" {
		return Location{}, fmt.Errorf("%w: no path in %q", ErrMalformed, l.String())
	}
	abs, err := CanonicalPath(l.Path)
	if err != nil {
		return Location{}, err
	}
	l.Path = abs
	l.Entry = strings.TrimLeft(l.Entry, "/")
	return l, nil
}

// CanonicalPath returns the absolute, cleaned form of path with symlinks
// resolved. A path that does not exist is returned absolute and cleaned.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// Key returns a string that is equal for locations naming the same root.
// Both locations must already be canonical.
func (l Location) Key() string {
	return l.String()
}

func splitScheme(s string) (scheme, rest string, ok bool) {
	i := strings.IndexByte(s, ':')
	// A single letter before the colon is a Windows drive, not a scheme.
	if i < 2 {
		return "", "", false
	}
	for j := 0; j < i; j++ {
		c := s[j]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return "", "", false
		}
	}
	return s[:i], s[i+1:], true
}

func parseArchive(s, rest string) (Location, error) {
	filepart, entry := rest, ""
	if i := strings.Index(rest, entrySeparator); i >= 0 {
		filepart, entry = rest[:i], rest[i+len(entrySeparator):]
	}
	if filepart == "" {
		return Location{}, fmt.Errorf("%w: no archive path in %q", ErrMalformed, s)
	}

	inner, innerRest, ok := splitScheme(filepart)
	if !ok {
		// archive:/path/app.jar!/ without an embedded file URL.
		path, err := unescape(filepart)
		if err != nil {
			return Location{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
		}
		return finishArchive(s, filepath.FromSlash(path), entry)
	}
	if Scheme(strings.ToLower(inner)) != SchemeFile {
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, s)
	}
	path, err := parseFileURL(innerRest)
	if err != nil {
		return Location{}, fmt.Errorf("%q: %w", s, err)
	}
	return finishArchive(s, path, entry)
}

func finishArchive(s, path, entry string) (Location, error) {
	e, err := unescape(entry)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return Archive(path, e), nil
}

// parseFileURL extracts the filesystem path from the part of a file URL
// after "file:".
func parseFileURL(rest string) (string, error) {
	if after, ok := strings.CutPrefix(rest, "//"); ok {
		i := strings.IndexByte(after, '/')
		if i < 0 {
			return "", fmt.Errorf("%w: no path", ErrMalformed)
		}
		host := after[:i]
		if host != "" && !strings.EqualFold(host, "localhost") {
			return "", fmt.Errorf("%w: remote host %q", ErrUnsupportedScheme, host)
		}
		rest = after[i:]
	}
	if rest == "" {
		return "", fmt.Errorf("%w: no path", ErrMalformed)
	}
	path, err := unescape(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if filepath.IsAbs(path) {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		return string(SchemeFile) + "://" + escape(p)
	}
	return string(SchemeFile) + ":" + escape(p)
}

// escape percent-encodes p as a URL path. "!" is also encoded so that a
// path can never be confused with the archive entry separator.
func escape(p string) string {
	if p == "" {
		return ""
	}
	escaped := (&url.URL{Path: p}).EscapedPath()
	return strings.ReplaceAll(escaped, "!", "%21")
}

func unescape(p string) (string, error) {
	return url.PathUnescape(p)
}

package classpath

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/internal/testutil"
	"github.com/meigma/classpath/location"
)

func newClassPath(t *testing.T, opts ...Option) *ClassPath {
	t.Helper()

	cp, err := New(opts...)
	require.NoError(t, err)
	return cp
}

// tempDir returns a symlink-free temporary directory, so canonical roots
// compare equal to the paths tests build.
func tempDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func fetchString(t *testing.T, res *Resource) string {
	t.Helper()

	data, err := res.Bytes()
	require.NoError(t, err)
	return string(data)
}

func TestNewRejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := New(WithIndexCache(nil))
	require.Error(t, err)

	_, err = New(WithConcurrency(0))
	require.Error(t, err)

	_, err = New(WithCompression(Compression(99)))
	require.Error(t, err)
}

func TestShadowing(t *testing.T) {
	t.Parallel()

	base := tempDir(t)
	first := filepath.Join(base, "first")
	second := filepath.Join(base, "second.jar")
	testutil.WriteFiles(t, first, map[string]string{"a.txt": "from first"})
	testutil.WriteZipFiles(t, second, map[string]string{"a.txt": "from second", "b.txt": "only second"})

	cp := newClassPath(t)
	require.NoError(t, cp.AddRoot(location.File(first)))
	require.NoError(t, cp.AddRoot(location.File(second)))

	res, ok, err := cp.FetchFirst("a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from first", fetchString(t, res))
	assert.Equal(t, location.File(first), res.RootLocation())

	loc, ok, err := cp.LocateFirst("/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, location.File(filepath.Join(first, "a.txt")), loc)

	all, err := cp.FetchAll("a.txt")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "from first", fetchString(t, all[0]))
	assert.Equal(t, "from second", fetchString(t, all[1]))

	locs, err := cp.LocateAll("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []Location{
		location.File(filepath.Join(first, "a.txt")),
		location.Archive(second, "a.txt"),
	}, locs)

	res, ok, err = cp.FetchFirst("b.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "only second", fetchString(t, res))
}

func TestLookupMiss(t *testing.T) {
	t.Parallel()

	dir := tempDir(t)
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha"})
	cp := newClassPath(t)
	require.NoError(t, cp.AddRoot(location.File(dir)))

	_, ok, err := cp.LocateFirst("missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	res, ok, err := cp.FetchFirst("missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)

	locs, err := cp.LocateAll("missing.txt")
	require.NoError(t, err)
	assert.Empty(t, locs)

	all, err := cp.FetchAll("missing.txt")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddRootIdempotent(t *testing.T) {
	t.Parallel()

	base := tempDir(t)
	dir := filepath.Join(base, "classes")
	jar := filepath.Join(base, "app.jar")
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha"})
	testutil.WriteZipFiles(t, jar, map[string]string{"b.txt": "beta"})
	require.NoError(t, os.Symlink(dir, filepath.Join(base, "link")))

	cp := newClassPath(t)
	for _, root := range []Location{
		location.File(dir),
		location.File(dir + string(filepath.Separator) + "."),
		location.File(filepath.Join(base, "link")),
		location.File(jar),
		location.Archive(jar, ""),
		location.Archive(jar, "/"),
		location.MustParse("jar:file://" + filepath.ToSlash(jar) + "!/"),
	} {
		require.NoError(t, cp.AddRoot(root), root.String())
	}

	assert.Equal(t, []Location{location.File(dir), location.Archive(jar, "")}, cp.Roots())
	assert.Equal(t, 2, cp.Len())

	locs, err := cp.LocateAll("a.txt")
	require.NoError(t, err)
	assert.Len(t, locs, 1)
}

func TestAddRootErrors(t *testing.T) {
	t.Parallel()

	dir := tempDir(t)
	corrupt := filepath.Join(dir, "corrupt.jar")
	testutil.WriteFile(t, corrupt, []byte("this is not a zip archive"))

	tests := []struct {
		name string
		root Location
		want []error
	}{
		{name: "unsupported scheme", root: Location{Scheme: "http", Path: "example.com/a.jar"}, want: []error{ErrConfiguration, ErrUnsupportedScheme}},
		{name: "archive without path", root: location.Archive("", "lib/"), want: []error{ErrConfiguration, ErrMalformed}},
		{name: "empty", root: Location{}, want: []error{ErrConfiguration, ErrUnsupportedScheme}},
		{name: "corrupt archive", root: location.File(corrupt), want: []error{ErrArchive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cp := newClassPath(t)
			err := cp.AddRoot(tt.root)
			require.Error(t, err)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
			assert.Zero(t, cp.Len())
		})
	}
}

func TestMissingArchiveIsSkippedUntilItExists(t *testing.T) {
	t.Parallel()

	jar := filepath.Join(tempDir(t), "late.jar")
	cp := newClassPath(t)

	require.NoError(t, cp.AddRoot(location.File(jar)))
	assert.Zero(t, cp.Len())

	testutil.WriteZipFiles(t, jar, map[string]string{"a.txt": "alpha"})
	require.NoError(t, cp.AddRoot(location.File(jar)))
	assert.Equal(t, 1, cp.Len())

	res, ok, err := cp.FetchFirst("a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alpha", fetchString(t, res))
}

func TestMissingDirectoryIsRecorded(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(tempDir(t), "later")
	cp := newClassPath(t)
	require.NoError(t, cp.AddRoot(location.File(dir)))
	assert.Equal(t, 1, cp.Len())

	_, ok, err := cp.FetchFirst("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha"})
	_, ok, err = cp.FetchFirst("a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRestrictedArchiveRoot(t *testing.T) {
	t.Parallel()

	jar := filepath.Join(tempDir(t), "app.jar")
	testutil.WriteZipFiles(t, jar, map[string]string{"lib/a.txt": "alpha", "other/b.txt": "beta"})

	cp := newClassPath(t)
	require.NoError(t, cp.AddRoot(location.MustParse(location.Archive(jar, "lib/").String())))
	assert.Equal(t, []Location{location.Archive(jar, "lib/")}, cp.Roots())

	_, ok, err := cp.LocateFirst("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	loc, ok, err := cp.LocateFirst("lib/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, location.Archive(jar, "lib/a.txt"), loc)

	_, ok, err = cp.LocateFirst("other/b.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	// The unrestricted archive is a different root.
	require.NoError(t, cp.AddRoot(location.Archive(jar, "")))
	assert.Equal(t, 2, cp.Len())
	_, ok, err = cp.LocateFirst("other/b.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCloseIsTerminal(t *testing.T) {
	t.Parallel()

	base := tempDir(t)
	dir := filepath.Join(base, "classes")
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha"})
	other := filepath.Join(base, "other")
	testutil.WriteFiles(t, other, map[string]string{"b.txt": "beta"})

	cp := newClassPath(t)
	require.NoError(t, cp.AddRoot(location.File(dir)))
	require.NoError(t, cp.Close())
	require.NoError(t, cp.Close())
	assert.True(t, cp.Closed())

	require.NoError(t, cp.AddRoot(location.File(other)))
	require.NoError(t, cp.AddRoots(context.Background(), location.File(other)))
	require.NoError(t, cp.AddRoot(Location{Scheme: "http"}))
	assert.Equal(t, 1, cp.Len())

	loc, ok, err := cp.LocateFirst("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, loc.IsZero())

	res, ok, err := cp.FetchFirst("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)

	locs, err := cp.LocateAll("a.txt")
	require.NoError(t, err)
	assert.Empty(t, locs)

	all, err := cp.FetchAll("a.txt")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHelloWorldRoundTrip(t *testing.T) {
	t.Parallel()

	dir := tempDir(t)
	testutil.WriteFile(t, filepath.Join(dir, "hello.txt"), []byte("hello world"))

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		cp := newClassPath(t, WithCompression(c))
		require.NoError(t, cp.AddRoot(location.File(dir)))

		res, ok, err := cp.FetchFirst("hello.txt")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "hello world", fetchString(t, res))
		assert.Equal(t, len("hello world"), res.Len())
	}
}

func TestArchiveFetchHoldsNoHandle(t *testing.T) {
	t.Parallel()

	jar := filepath.Join(tempDir(t), "app.jar")
	testutil.WriteZipFiles(t, jar, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	cp := newClassPath(t)
	require.NoError(t, cp.AddRoot(location.File(jar)))
	for _, name := range []string{"a.txt", "b.txt", "a.txt", "missing"} {
		_, _, err := cp.FetchFirst(name)
		require.NoError(t, err)
	}
	_, err := cp.FetchAll("b.txt")
	require.NoError(t, err)

	assert.Zero(t, testutil.OpenHandles(t, jar))
	testutil.ReplaceZipFiles(t, jar, map[string]string{"a.txt": "replaced"})
	require.NoError(t, os.Remove(jar))
}

func TestStaleArchiveIsReindexed(t *testing.T) {
	t.Parallel()

	jar := filepath.Join(tempDir(t), "app.jar")
	testutil.WriteZipFiles(t, jar, map[string]string{"a.txt": "alpha"})

	cache, err := index.NewCache()
	require.NoError(t, err)

	before := newClassPath(t, WithIndexCache(cache))
	require.NoError(t, before.AddRoot(location.File(jar)))

	testutil.ReplaceZipFiles(t, jar, map[string]string{"a.txt": "alpha, longer now", "new.txt": "new"})

	idx, err := cache.GetOrCreate(jar)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.True(t, idx.Contains("new.txt"))

	after := newClassPath(t, WithIndexCache(cache))
	require.NoError(t, after.AddRoot(location.File(jar)))
	res, ok, err := after.FetchFirst("a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alpha, longer now", fetchString(t, res))

	// The earlier resolver keeps the index it was built with.
	_, ok, err = before.LocateFirst("new.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSharedCacheReusesIndex(t *testing.T) {
	t.Parallel()

	jar := filepath.Join(tempDir(t), "app.jar")
	testutil.WriteZipFiles(t, jar, map[string]string{"a.txt": "alpha"})

	cache, err := index.NewCache()
	require.NoError(t, err)
	for range 3 {
		cp := newClassPath(t, WithIndexCache(cache))
		require.NoError(t, cp.AddRoot(location.File(jar)))
	}
	assert.Equal(t, 1, cache.Len())
}

func TestAddRoots(t *testing.T) {
	t.Parallel()

	base := tempDir(t)
	var roots []Location
	for _, name := range []string{"d0", "d1", "d2", "d3", "d4", "d5"} {
		dir := filepath.Join(base, name)
		testutil.WriteFiles(t, dir, map[string]string{"a.txt": name})
		roots = append(roots, location.File(dir))
	}
	jar := filepath.Join(base, "app.jar")
	testutil.WriteZipFiles(t, jar, map[string]string{"a.txt": "jar"})
	roots = append(roots, location.File(jar), location.File(filepath.Join(base, "missing.jar")), roots[0])

	cp := newClassPath(t, WithConcurrency(2))
	require.NoError(t, cp.AddRoots(context.Background(), roots...))
	assert.Equal(t, roots[:6], cp.Roots()[:6])
	assert.Equal(t, location.Archive(jar, ""), cp.Roots()[6])
	assert.Equal(t, 7, cp.Len())

	all, err := cp.FetchAll("a.txt")
	require.NoError(t, err)
	require.Len(t, all, 7)
	for i, name := range []string{"d0", "d1", "d2", "d3", "d4", "d5", "jar"} {
		assert.Equal(t, name, fetchString(t, all[i]))
	}
}

func TestAddRootsFailsAtomically(t *testing.T) {
	t.Parallel()

	dir := tempDir(t)
	testutil.WriteFiles(t, filepath.Join(dir, "ok"), map[string]string{"a.txt": "alpha"})

	cp := newClassPath(t)
	err := cp.AddRoots(context.Background(),
		location.File(filepath.Join(dir, "ok")),
		Location{Scheme: "ftp", Path: "x"},
	)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, cp.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = cp.AddRoots(ctx, location.File(filepath.Join(dir, "ok")))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, cp.Len())
}

func TestConcurrentAddAndLookup(t *testing.T) {
	t.Parallel()

	base := tempDir(t)
	var roots []Location
	for _, name := range []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"} {
		dir := filepath.Join(base, name)
		testutil.WriteFiles(t, dir, map[string]string{"shared.txt": name})
		roots = append(roots, location.File(dir))
	}

	cp := newClassPath(t)
	var wg sync.WaitGroup
	for _, root := range roots {
		for range 4 {
			wg.Go(func() {
				assert.NoError(t, cp.AddRoot(root))
			})
		}
		wg.Go(func() {
			_, err := cp.FetchAll("shared.txt")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, len(roots), cp.Len())
	assert.ElementsMatch(t, roots, cp.Roots())

	all, err := cp.FetchAll("shared.txt")
	require.NoError(t, err)
	assert.Len(t, all, len(roots))
}

func TestLookupSurfacesIOErrors(t *testing.T) {
	t.Parallel()

	jar := filepath.Join(tempDir(t), "app.jar")
	testutil.WriteZipFiles(t, jar, map[string]string{"a.txt": "alpha"})

	cp := newClassPath(t)
	require.NoError(t, cp.AddRoot(location.File(jar)))
	testutil.WriteFile(t, jar, []byte("truncated"))

	_, ok, err := cp.FetchFirst("a.txt")
	require.Error(t, err)
	assert.False(t, ok)
	assert.False(t, errors.Is(err, ErrConfiguration))
}

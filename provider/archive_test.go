package provider

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/internal/testutil"
	"github.com/meigma/classpath/location"
)

func buildArchive(t *testing.T, entries []testutil.ZipEntry, opts ...Option) (*Archive, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.jar")
	testutil.WriteZip(t, path, entries)
	idx, err := index.Build(path)
	require.NoError(t, err)
	return NewArchive(idx, opts...), path
}

func TestArchiveFetch(t *testing.T) {
	t.Parallel()

	p, path := buildArchive(t, []testutil.ZipEntry{
		{Name: "a.txt", Content: []byte("alpha"), Method: zip.Deflate},
		{Name: "com/foo/Bar.class", Content: []byte("cafebabe"), Method: zip.Store},
		{Name: "com/foo/", Method: zip.Store},
	})
	assert.Equal(t, location.Archive(path, ""), p.Root())

	tests := []struct {
		query   string
		name    string
		content string
	}{
		{query: "a.txt", name: "a.txt", content: "alpha"},
		{query: "/a.txt", name: "a.txt", content: "alpha"},
		{query: "com/foo/Bar.class", name: "com/foo/Bar.class", content: "cafebabe"},
		{query: "//com/foo/Bar.class", name: "com/foo/Bar.class", content: "cafebabe"},
	}
	for _, tt := range tests {
		loc, ok, err := p.Locate(tt.query)
		require.NoError(t, err, tt.query)
		require.True(t, ok, tt.query)
		assert.Equal(t, location.Archive(path, tt.name), loc)

		res, ok, err := p.Fetch(tt.query)
		require.NoError(t, err, tt.query)
		require.True(t, ok, tt.query)
		assert.Equal(t, tt.name, res.Name())
		assert.Equal(t, loc, res.Location())
		assert.Equal(t, p.Root(), res.RootLocation())

		data, err := res.Bytes()
		require.NoError(t, err)
		assert.Equal(t, tt.content, string(data))
	}
}

func TestArchiveAbsent(t *testing.T) {
	t.Parallel()

	p, _ := buildArchive(t, []testutil.ZipEntry{{Name: "com/foo/Bar.class", Content: []byte("x")}})

	for _, name := range []string{"missing", "com/foo", "com/foo/bar.class", ""} {
		_, ok, err := p.Locate(name)
		require.NoError(t, err)
		assert.False(t, ok, name)

		res, ok, err := p.Fetch(name)
		require.NoError(t, err)
		assert.False(t, ok, name)
		assert.Nil(t, res)
	}
}

func TestArchiveFetchMemoizes(t *testing.T) {
	t.Parallel()

	p, path := buildArchive(t, []testutil.ZipEntry{{Name: "a.txt", Content: []byte("alpha"), Method: zip.Deflate}})

	first, ok, err := p.Fetch("a.txt")
	require.NoError(t, err)
	require.True(t, ok)

	// Replacing the archive does not affect an existing provider's fetched entries.
	testutil.ReplaceZipFiles(t, path, map[string]string{"a.txt": "changed"})

	second, ok, err := p.Fetch("/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, first, second)
}

func TestArchiveConcurrentFetchSharesResult(t *testing.T) {
	t.Parallel()

	p, _ := buildArchive(t, []testutil.ZipEntry{{Name: "a.txt", Content: []byte("alpha"), Method: zip.Deflate}})

	const workers = 16
	got := make([]any, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Go(func() {
			res, ok, err := p.Fetch("a.txt")
			assert.NoError(t, err)
			assert.True(t, ok)
			got[i] = res
		})
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, got[0], got[i])
	}
}

func TestArchiveSizeLimit(t *testing.T) {
	t.Parallel()

	p, _ := buildArchive(t,
		[]testutil.ZipEntry{{Name: "big.txt", Content: []byte("0123456789"), Method: zip.Deflate}},
		WithMaxResourceSize(4),
	)

	_, ok, err := p.Locate("big.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = p.Fetch("big.txt")
	require.ErrorIs(t, err, ErrSizeOverflow)
	assert.False(t, ok)
}

func TestArchiveFetchAfterArchiveRemoved(t *testing.T) {
	t.Parallel()

	p, path := buildArchive(t, []testutil.ZipEntry{{Name: "a.txt", Content: []byte("alpha")}})
	testutil.WriteFile(t, path, []byte("not a zip any more"))

	// The index still lists the entry, but its bytes are gone.
	_, ok, err := p.Locate("a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = p.Fetch("a.txt")
	require.Error(t, err)
	assert.False(t, ok)
}

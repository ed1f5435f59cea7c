//go:build integration

package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/classpath"
	"github.com/meigma/classpath/index"
	"github.com/meigma/classpath/internal/testutil"
	"github.com/meigma/classpath/location"
)

// generation builds the file set of one version of a fixture archive. Every
// entry carries the version, so readers can tell which archive they saw.
func generation(version, entries int) map[string]string {
	files := make(map[string]string, entries)
	for i := range entries {
		files[fmt.Sprintf("pkg%02d/res%04d.txt", i%8, i)] = fmt.Sprintf("v%d:%04d", version, i)
	}
	return files
}

func writeGeneration(tb testing.TB, path string, version, entries int) {
	tb.Helper()
	testutil.WriteZipFiles(tb, path, generation(version, entries))
}

// openResolver is safe to call from any goroutine.
func openResolver(ctx context.Context, cache *index.Cache, roots ...string) (*classpath.ClassPath, error) {
	cp, err := classpath.New(classpath.WithIndexCache(cache))
	if err != nil {
		return nil, err
	}
	locs := make([]location.Location, 0, len(roots))
	for _, root := range roots {
		locs = append(locs, location.File(root))
	}
	if err := cp.AddRoots(ctx, locs...); err != nil {
		return nil, err
	}
	return cp, nil
}

func newResolver(tb testing.TB, cache *index.Cache, roots ...string) *classpath.ClassPath {
	tb.Helper()

	cp, err := openResolver(tb.Context(), cache, roots...)
	require.NoError(tb, err)
	return cp
}

func tempDir(tb testing.TB) string {
	tb.Helper()

	dir, err := filepath.EvalSymlinks(tb.TempDir())
	require.NoError(tb, err)
	return dir
}

// Package classpath resolves named resources against an ordered search path
// of directories and zip archives.
//
// A [ClassPath] holds an append-only list of roots. Each root is bound to a
// provider: directories are read straight from the filesystem, archives
// (.jar and .zip files) are answered from an in-memory index of their
// entries. Lookups walk the roots in the order they were added, so a
// resource under an earlier root shadows any copy under a later one.
//
// No file handle is held between calls. Archives are opened only long
// enough to build their index or to extract a single entry, and indexes are
// shared through an [index.Cache] that rebuilds them when the archive changes
// on disk.
//
// # Quick Start
//
//	cp, err := classpath.New()
//	if err != nil {
//	    return err
//	}
//	roots, err := location.SplitList("build/classes:lib/app.jar")
//	if err != nil {
//	    return err
//	}
//	if err := cp.AddRoots(ctx, roots...); err != nil {
//	    return err
//	}
//	res, ok, err := cp.FetchFirst("com/example/config.properties")
//
// # Sharing indexes
//
// Each ClassPath builds its own index cache unless one is supplied. Pass the
// same cache to several resolvers to share archive scans between them:
//
//	cache, _ := index.NewCache(index.WithCapacity(512))
//	a, _ := classpath.New(classpath.WithIndexCache(cache))
//	b, _ := classpath.New(classpath.WithIndexCache(cache))
//
// # Locations
//
// Roots and resolved resources are identified by [Location] values whose
// string forms are URLs such as "file:///srv/classes/a.txt" and
// "archive:file:///srv/lib/app.jar!/com/Foo.class". [ReadLocation] reads such
// a string back without any caching.
package classpath

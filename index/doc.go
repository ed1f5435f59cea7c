// Package index builds and caches the entry tables of zip archives.
//
// An [Index] maps entry names to the metadata needed to extract them later,
// and records the archive's modification time and length at build time.
// A [Cache] shares indexes between every classpath root that names the same
// archive, revalidating them against the file on each access.
package index

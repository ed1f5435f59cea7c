//go:build integration

// Package integration exercises the classpath library end to end against
// real directories and archives on disk, under concurrent mutation.
//
// These tests are slower than the unit tests and build large fixtures.
// Run with: go test -tags=integration ./integration/...
package integration

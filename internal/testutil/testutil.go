// Package testutil builds directory and archive fixtures for tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

// ZipEntry describes one entry of a fixture archive.
type ZipEntry struct {
	Name    string
	Content []byte
	// Method is zip.Deflate or zip.Store. Zero means zip.Store.
	Method uint16
}

// FixedTime is the modification time stamped on fixture archive entries.
var FixedTime = time.Date(2016, 1, 2, 3, 4, 6, 0, time.UTC)

// ZipBytes encodes entries as a zip archive, in the given order.
func ZipBytes(tb testing.TB, entries []ZipEntry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   e.Method,
			Modified: FixedTime,
		})
		if err != nil {
			tb.Fatalf("create zip entry %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Content); err != nil {
			tb.Fatalf("write zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive containing entries to path.
func WriteZip(tb testing.TB, path string, entries []ZipEntry) {
	tb.Helper()
	WriteFile(tb, path, ZipBytes(tb, entries))
}

// WriteZipFiles writes a deflated zip archive with one entry per map key,
// sorted by name.
func WriteZipFiles(tb testing.TB, path string, files map[string]string) {
	tb.Helper()
	WriteZip(tb, path, deflated(files))
}

// WriteFiles creates files beneath dir, one per map key. Keys are
// slash-separated relative paths.
func WriteFiles(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		WriteFile(tb, filepath.Join(dir, filepath.FromSlash(name)), []byte(content))
	}
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(tb testing.TB, path string, content []byte) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

// ReplaceFile atomically replaces path with content and moves its
// modification time forward, so size and mtime checks both observe the
// change.
func ReplaceFile(tb testing.TB, path string, content []byte) {
	tb.Helper()

	info, err := os.Stat(path)
	if err != nil {
		tb.Fatalf("stat %s: %v", path, err)
	}
	tmp := path + ".tmp"
	WriteFile(tb, tmp, content)
	next := info.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(tmp, next, next); err != nil {
		tb.Fatalf("chtimes %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		tb.Fatalf("rename %s: %v", tmp, err)
	}
}

// ReplaceZipFiles atomically replaces the archive at path with a new one.
func ReplaceZipFiles(tb testing.TB, path string, files map[string]string) {
	tb.Helper()
	ReplaceFile(tb, path, ZipBytes(tb, deflated(files)))
}

func deflated(files map[string]string) []ZipEntry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	entries := make([]ZipEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, ZipEntry{Name: name, Content: []byte(files[name]), Method: zip.Deflate})
	}
	return entries
}

// OpenHandles returns how many of this process's file descriptors refer to
// path. The test is skipped where descriptors cannot be listed.
func OpenHandles(tb testing.TB, path string) int {
	tb.Helper()

	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		tb.Skipf("cannot list open files: %v", err)
	}
	n := 0
	for _, fd := range fds {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", fd.Name()))
		if err != nil {
			continue
		}
		if target == path {
			n++
		}
	}
	return n
}

package logship

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCursorReportsAbsentOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := loadCursor(dir, "kernel")
	if err != nil {
		t.Fatalf("loadCursor() error = %v", err)
	}
	if ok {
		t.Fatal("expected ok = false for a source with no persisted cursor")
	}
}

func TestSaveCursorThenLoadCursorRoundTrips(t *testing.T) {
	dir := t.TempDir()

	if err := saveCursor(dir, "kernel", "12345"); err != nil {
		t.Fatalf("saveCursor() error = %v", err)
	}

	got, ok, err := loadCursor(dir, "kernel")
	if err != nil {
		t.Fatalf("loadCursor() error = %v", err)
	}
	if !ok {
		t.Fatal("expected ok = true after a saved cursor")
	}
	if got != "12345" {
		t.Fatalf("cursor = %q, want 12345", got)
	}

	info, err := os.Stat(filepath.Join(dir, "log-cursors.kernel"))
	if err != nil {
		t.Fatalf("stat cursor file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("cursor file permissions = %o, want 0600", perm)
	}
}

type fakeSource struct {
	name       string
	entries    []Entry
	newCursor  string
	collectErr error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Collect(authDir string, backfillLimit int) ([]Entry, string, error) {
	return f.entries, f.newCursor, f.collectErr
}

func TestShipReturnsEntriesAndDeferredCommit(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{
		name:      "fake",
		entries:   []Entry{{Source: "fake", Message: "hello"}},
		newCursor: "cursor-1",
	}

	entries, commit, err := Ship(src, dir, 10)
	if err != nil {
		t.Fatalf("Ship() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "hello" {
		t.Fatalf("entries = %+v", entries)
	}

	// Before commit, nothing should be persisted yet.
	if _, ok, _ := loadCursor(dir, "fake"); ok {
		t.Fatal("cursor persisted before commit was called")
	}

	if err := commit(); err != nil {
		t.Fatalf("commit() error = %v", err)
	}
	got, ok, err := loadCursor(dir, "fake")
	if err != nil || !ok {
		t.Fatalf("loadCursor() after commit = %q, %v, %v", got, ok, err)
	}
	if got != "cursor-1" {
		t.Fatalf("cursor = %q, want cursor-1", got)
	}
}

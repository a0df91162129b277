package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateAdminTokenGeneratesOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	token, err := loadOrCreateAdminToken(dir)
	if err != nil {
		t.Fatalf("loadOrCreateAdminToken() error = %v", err)
	}
	if len(token) != 64 { // 32 bytes hex-encoded
		t.Fatalf("token length = %d, want 64", len(token))
	}

	info, err := os.Stat(filepath.Join(dir, "admin_token"))
	if err != nil {
		t.Fatalf("stat admin_token: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("admin_token permissions = %o, want 0600", perm)
	}
}

func TestLoadOrCreateAdminTokenPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first, err := loadOrCreateAdminToken(dir)
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := loadOrCreateAdminToken(dir)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}

	if first != second {
		t.Fatalf("token changed across calls: %q != %q", first, second)
	}
}

package resource

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
	return path
}

func TestCleanupTempRemovesFilesNotCache(t *testing.T) {
	dir := t.TempDir()
	temp := touch(t, dir, "temp.bin")
	cache := touch(t, dir, "cache.bin")

	m := New()
	m.RegisterTemp(temp)
	m.RegisterCache(cache)

	m.CleanupTemp()

	if _, err := os.Stat(temp); !os.IsNotExist(err) {
		t.Fatalf("expected temp file removed")
	}
	if _, err := os.Stat(cache); err != nil {
		t.Fatalf("expected cache file to remain, got %v", err)
	}
}

func TestCleanupAllIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cache := touch(t, dir, "cache.bin")

	m := New()
	m.RegisterCache(cache)

	m.CleanupAll()
	statsAfterFirst := m.Stats()
	m.CleanupAll()
	statsAfterSecond := m.Stats()

	if statsAfterFirst != statsAfterSecond {
		t.Fatalf("cleanup not idempotent: %+v vs %+v", statsAfterFirst, statsAfterSecond)
	}
	if _, err := os.Stat(cache); !os.IsNotExist(err) {
		t.Fatalf("expected cache file removed")
	}
}

func TestCleanupMissingFileIsSilent(t *testing.T) {
	m := New()
	m.RegisterTemp(filepath.Join(t.TempDir(), "never-existed.bin"))
	m.CleanupTemp()
}

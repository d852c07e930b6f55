package swupd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGCAllRemovesEverything(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cache.StagedPath("abcd"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := GC(cache, "", GCAll, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Removed) == 0 {
		t.Error("expected entries to be removed")
	}
	entries, err := os.ReadDir(cache.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty cache dir, got %v", entries)
	}
}

func TestGCIncrementalKeepsReferencedVersions(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(cache.Dir, "10"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(cache.Dir, "20"), 0700); err != nil {
		t.Fatal(err)
	}
	momPath := filepath.Join(t.TempDir(), "Manifest.MoM")
	if err := os.WriteFile(momPath, []byte("version: 20\n"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := GC(cache, momPath, GCIncremental, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cache.Dir, "20")); err != nil {
		t.Error("expected version 20 to survive")
	}
	if _, err := os.Stat(filepath.Join(cache.Dir, "10")); !os.IsNotExist(err) {
		t.Error("expected version 10 to be removed")
	}
	_ = result
}

func TestGCDryRunRemovesNothing(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	result, err := GC(cache, "", GCAll, true)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(cache.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Error("expected dry run to leave directories in place")
	}
	_ = result
}

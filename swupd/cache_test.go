package swupd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCacheCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{stagedSubdir, downloadSubdir, deltaSubdir, bundlesSubdir, TelemetryDir} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err != nil || !fi.IsDir() {
			t.Errorf("expected directory %s to exist", sub)
		}
	}
	_ = c
}

func TestCacheTrackUntrack(t *testing.T) {
	c, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if c.IsTracked("os-core") {
		t.Fatal("expected os-core not tracked yet")
	}
	if err := c.Track("os-core"); err != nil {
		t.Fatal(err)
	}
	if !c.IsTracked("os-core") {
		t.Error("expected os-core to be tracked")
	}
	names, err := c.TrackedBundles()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "os-core" {
		t.Errorf("got %v, want [os-core]", names)
	}
	if err := c.Untrack("os-core"); err != nil {
		t.Fatal(err)
	}
	if c.IsTracked("os-core") {
		t.Error("expected os-core to be untracked")
	}
}

func TestCacheResolvePathSecondaryFallback(t *testing.T) {
	primaryDir := t.TempDir()
	secondaryDir := t.TempDir()
	c, err := NewCache(primaryDir)
	if err != nil {
		t.Fatal(err)
	}
	c.SecondaryDir = secondaryDir

	if err := os.MkdirAll(filepath.Join(secondaryDir, "10"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(secondaryDir, "10", "Manifest.os-core"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := c.ResolvePath(filepath.Join("10", "Manifest.os-core"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(filepath.Dir(path)) != primaryDir {
		t.Errorf("expected resolved path to be copied into primary cache, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected copied file to exist at %s", path)
	}
}

func TestCacheManifestAndStagedPaths(t *testing.T) {
	c := &Cache{Dir: "/var/lib/swupd"}
	if got := c.ManifestPath(10, "os-core", ""); got != "/var/lib/swupd/10/Manifest.os-core" {
		t.Errorf("got %s", got)
	}
	if got := c.ManifestPath(10, "os-core", "abcd"); got != "/var/lib/swupd/10/Manifest.os-core.abcd" {
		t.Errorf("got %s", got)
	}
	if got := c.StagedPath("abcd"); got != "/var/lib/swupd/staged/abcd" {
		t.Errorf("got %s", got)
	}
	if got := c.DownloadPath("abcd", true); got != "/var/lib/swupd/download/abcd.tar.in-progress" {
		t.Errorf("got %s", got)
	}
}

package swupd

import (
	"path/filepath"
	"testing"
)

func TestThirdPartyRepoPaths(t *testing.T) {
	repo := ThirdPartyRepo{Name: "acme", ContentURL: "https://acme.example/content", VersionURL: "https://acme.example/version"}
	stateDir := "/var/lib/swupd"

	wantRoot := filepath.Join(stateDir, "3rd_party", "acme", "rootfs")
	if got := repo.Root(stateDir); got != wantRoot {
		t.Errorf("Root() = %q, want %q", got, wantRoot)
	}

	wantState := filepath.Join(stateDir, "3rd_party", "acme", "state")
	if got := repo.StateDir(stateDir); got != wantState {
		t.Errorf("StateDir() = %q, want %q", got, wantState)
	}

	wantWhitelist := filepath.Join(wantState, "bin-whitelist")
	if got := repo.WhitelistPath(stateDir); got != wantWhitelist {
		t.Errorf("WhitelistPath() = %q, want %q", got, wantWhitelist)
	}
}

func TestNewThirdPartyDriverRejectsEmptyName(t *testing.T) {
	cfg := &Config{StateDir: t.TempDir(), ContentURL: "https://example.com"}
	_, err := NewThirdPartyDriver(cfg, ThirdPartyRepo{}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error for an unnamed repo")
	}
}

func TestNewThirdPartyDriverIsolatesRootAndCache(t *testing.T) {
	stateDir := t.TempDir()
	cfg := &Config{StateDir: stateDir, ContentURL: "https://primary.example", MaxParallelDownloads: 1}
	repo := ThirdPartyRepo{Name: "acme", ContentURL: "https://acme.example/content", VersionURL: "https://acme.example/version"}

	driver, err := NewThirdPartyDriver(cfg, repo, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if driver.Installer.Root == cfg.Path {
		t.Error("expected the repo driver to install under its own root, not the primary Config.Path")
	}
	if driver.Cache.Dir == stateDir {
		t.Error("expected the repo driver to cache under its own subtree, not the primary statedir")
	}
	if driver.Acquirer.ContentURL != repo.ContentURL {
		t.Errorf("ContentURL = %q, want %q", driver.Acquirer.ContentURL, repo.ContentURL)
	}
}

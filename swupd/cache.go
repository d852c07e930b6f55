// Copyright 2018 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package swupd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Cache owns the statedir layout described by §4.4: a root directory with
// staged/, download/, delta/, <version>/Manifest.*, bundles/, telemetry/ and
// swupd_lock. An optional secondary read-only cache is consulted when the
// primary has no copy, and hits are copied into the primary cache so later
// lookups are local.
type Cache struct {
	// Dir is the primary, writable cache root.
	Dir string
	// SecondaryDir is an optional read-only cache consulted before the
	// primary is asked to fetch content remotely. Empty disables it.
	SecondaryDir string
}

// The statedir subdirectory names.
const (
	stagedSubdir   = "staged"
	downloadSubdir = "download"
	deltaSubdir    = "delta"
	bundlesSubdir  = "bundles"
)

// NewCache prepares dir as a Cache root, creating the subdirectories §4.4
// requires if they don't already exist. All directories are created mode
// 0700, matching the state directory's root-owned layout.
func NewCache(dir string) (*Cache, error) {
	c := &Cache{Dir: dir}
	for _, sub := range []string{stagedSubdir, downloadSubdir, deltaSubdir, bundlesSubdir, TelemetryDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0700); err != nil {
			return nil, errors.Wrapf(err, "couldn't create state directory %s", sub)
		}
	}
	return c, nil
}

// StagedPath returns the path a fullfile with the given fingerprint is
// staged at once extracted and verified.
func (c *Cache) StagedPath(fingerprint string) string {
	return filepath.Join(c.Dir, stagedSubdir, fingerprint)
}

// DownloadPath returns the path a fetched fullfile archive is written to.
// inProgress selects the ".in-progress" suffix used while the transfer is
// still running, so a half-written download is never mistaken for a
// complete one after a crash.
func (c *Cache) DownloadPath(fingerprint string, inProgress bool) string {
	name := fingerprint + ".tar"
	if inProgress {
		name += ".in-progress"
	}
	return filepath.Join(c.Dir, downloadSubdir, name)
}

// DeltaPath returns the path a delta for component from version from to
// version to is stored at.
func (c *Cache) DeltaPath(component, from, to string) string {
	name := fmt.Sprintf("%s-delta-from-%s-to-%s", component, from, to)
	return filepath.Join(c.Dir, deltaSubdir, name)
}

// ManifestDir returns the directory holding cached manifests for version.
func (c *Cache) ManifestDir(version uint32) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%d", version))
}

// ManifestPath returns the path a manifest named name at version is cached
// at, optionally suffixed with a fingerprint. The acquirer removes such a
// fingerprint-pinned copy when it purges a candidate; it does not read from
// it.
func (c *Cache) ManifestPath(version uint32, name, fingerprint string) string {
	filename := "Manifest." + name
	if fingerprint != "" {
		filename += "." + fingerprint
	}
	return filepath.Join(c.ManifestDir(version), filename)
}

// TrackingSentinelPath returns the zero-byte file whose presence records
// that bundle is explicitly installed (as opposed to pulled in only as a
// dependency of another bundle).
func (c *Cache) TrackingSentinelPath(bundle string) string {
	return filepath.Join(c.Dir, bundlesSubdir, bundle)
}

// IsTracked reports whether bundle has a tracking sentinel.
func (c *Cache) IsTracked(bundle string) bool {
	_, err := os.Stat(c.TrackingSentinelPath(bundle))
	return err == nil
}

// Track creates bundle's tracking sentinel.
func (c *Cache) Track(bundle string) error {
	f, err := os.OpenFile(c.TrackingSentinelPath(bundle), os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return f.Close()
}

// Untrack removes bundle's tracking sentinel.
func (c *Cache) Untrack(bundle string) error {
	err := os.Remove(c.TrackingSentinelPath(bundle))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TrackedBundles lists every bundle with a tracking sentinel.
func (c *Cache) TrackedBundles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.Dir, bundlesSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ResolvePath looks a relative cache path up first in Dir, then in
// SecondaryDir (if configured), returning the first path that exists. A hit in
// SecondaryDir is copied into Dir before being returned, so the primary
// cache becomes self-sufficient after the first lookup.
func (c *Cache) ResolvePath(rel string) (string, error) {
	primary := filepath.Join(c.Dir, rel)
	if _, err := os.Stat(primary); err == nil {
		return primary, nil
	}

	if c.SecondaryDir == "" {
		return "", os.ErrNotExist
	}
	secondary := filepath.Join(c.SecondaryDir, rel)
	if _, err := os.Stat(secondary); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(primary), 0700); err != nil {
		return "", errors.Wrap(err, "couldn't prepare primary cache directory")
	}
	if err := copyFile(primary, secondary); err != nil {
		return "", errors.Wrap(err, "couldn't copy from secondary cache")
	}
	return primary, nil
}

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
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// GCMode selects between a full cache wipe and the incremental sweep that
// protects versions still referenced by the current MoM.
type GCMode int

// The two GC modes §4.12 defines.
const (
	GCIncremental GCMode = iota
	GCAll
)

// GCResult lists what was (or, in a dry run, would be) removed and the
// total bytes reclaimed.
type GCResult struct {
	Removed    []string
	BytesFreed int64
}

var referencedVersionRE = regexp.MustCompile(`\b\d+\b`)

// GC purges cache according to mode. When dryRun is true nothing is
// removed; GCResult still reports what would have been.
func GC(cache *Cache, momPath string, mode GCMode, dryRun bool) (*GCResult, error) {
	if mode == GCAll {
		return sweepAll(cache.Dir, dryRun)
	}
	return sweepIncremental(cache, momPath, dryRun)
}

func sweepAll(dir string, dryRun bool) (*GCResult, error) {
	result := &GCResult{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		size, err := dirSize(path)
		if err != nil {
			continue
		}
		result.Removed = append(result.Removed, path)
		result.BytesFreed += size
		if !dryRun {
			if err := os.RemoveAll(path); err != nil {
				return result, errors.Wrapf(err, "couldn't remove %s", path)
			}
		}
	}
	return result, nil
}

// sweepIncremental removes pack tarballs, manifest deltas, staged/, delta/,
// download/ and temp/, plus every numbered manifest directory not
// referenced by momPath's text (scanned for version numbers so recently
// referenced versions survive).
func sweepIncremental(cache *Cache, momPath string, dryRun bool) (*GCResult, error) {
	result := &GCResult{}

	referenced, err := referencedVersions(momPath)
	if err != nil {
		return nil, err
	}

	alwaysPurge := []string{stagedSubdir, deltaSubdir, downloadSubdir, "temp"}
	for _, sub := range alwaysPurge {
		path := filepath.Join(cache.Dir, sub)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		size, _ := dirSize(path)
		result.Removed = append(result.Removed, path)
		result.BytesFreed += size
		if !dryRun {
			if err := os.RemoveAll(path); err != nil {
				return result, errors.Wrapf(err, "couldn't remove %s", path)
			}
			if err := os.MkdirAll(path, 0700); err != nil {
				return result, err
			}
		}
	}

	entries, err := os.ReadDir(cache.Dir)
	if err != nil {
		return result, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.ParseUint(e.Name(), 10, 32); err != nil {
			continue
		}
		if referenced[e.Name()] {
			continue
		}
		path := filepath.Join(cache.Dir, e.Name())
		size, _ := dirSize(path)
		result.Removed = append(result.Removed, path)
		result.BytesFreed += size
		if !dryRun {
			if err := os.RemoveAll(path); err != nil {
				return result, errors.Wrapf(err, "couldn't remove %s", path)
			}
		}
	}

	return result, nil
}

func referencedVersions(momPath string) (map[string]bool, error) {
	data, err := os.ReadFile(momPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	set := make(map[string]bool)
	for _, m := range referencedVersionRE.FindAllString(string(data), -1) {
		set[m] = true
	}
	return set, nil
}

func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

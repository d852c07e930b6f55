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

	"github.com/dgraph-io/ristretto"
)

// ManifestCache keeps parsed manifests in memory, keyed by version and
// bundle name. ResolveBundles, ConsolidateFiles and the driver do not
// consult it. It is purely an in-process speed-up; nothing depends on an entry surviving
// process exit, unlike Cache's on-disk statedir.
type ManifestCache struct {
	c *ristretto.Cache
}

// NewManifestCache builds a cache sized for maxEntries manifests.
func NewManifestCache(maxEntries int64) (*ManifestCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ManifestCache{c: c}, nil
}

func manifestCacheKey(version uint32, name string) string {
	return fmt.Sprintf("%d/%s", version, name)
}

// Get returns the cached manifest for (version, name), if present.
func (mc *ManifestCache) Get(version uint32, name string) (*Manifest, bool) {
	v, ok := mc.c.Get(manifestCacheKey(version, name))
	if !ok {
		return nil, false
	}
	m, ok := v.(*Manifest)
	return m, ok
}

// Put stores m under (version, name), with cost 1 per entry.
func (mc *ManifestCache) Put(version uint32, name string, m *Manifest) {
	mc.c.Set(manifestCacheKey(version, name), m, 1)
}

// Wait blocks until all pending Put calls have been applied, useful in
// tests that write then immediately read back.
func (mc *ManifestCache) Wait() {
	mc.c.Wait()
}

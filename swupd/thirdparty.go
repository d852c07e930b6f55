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
	"path/filepath"

	"github.com/pkg/errors"
)

// ThirdPartyRepo names an additional, independently-signed content source
// layered on top of the primary update stream (§12). Each repo gets its own
// statedir subtree and its own target root under <statedir>/3rd_party/<name>,
// so a repo's content never collides with the primary OS's path namespace.
type ThirdPartyRepo struct {
	Name       string
	ContentURL string
	VersionURL string
}

// thirdPartyRootSubdir is where a repo's installed content and cache live,
// relative to the primary statedir.
const thirdPartyRootSubdir = "3rd_party"

// Root returns the target root a repo's files are staged/installed under.
func (r ThirdPartyRepo) Root(stateDir string) string {
	return filepath.Join(stateDir, thirdPartyRootSubdir, r.Name, "rootfs")
}

// StateDir returns the cache root a repo's own Cache should be built
// against, kept separate from both the primary cache and the repo's Root so
// a diagnose walk over Root never mistakes cache bookkeeping for installed
// content.
func (r ThirdPartyRepo) StateDir(stateDir string) string {
	return filepath.Join(stateDir, thirdPartyRootSubdir, r.Name, "state")
}

// binaryWhitelistSubdir holds the do-not-update whitelist a 3rd-party repo
// uses to mark binaries/scripts it is allowed to overwrite even though they
// live outside the primary bundle set's ownership.
const binaryWhitelistSubdir = "bin-whitelist"

// WhitelistPath returns the do-not-update whitelist file for repo name.
func (r ThirdPartyRepo) WhitelistPath(stateDir string) string {
	return filepath.Join(r.StateDir(stateDir), binaryWhitelistSubdir)
}

// NewThirdPartyDriver builds a Driver wired against repo's own root and
// cache instead of the primary Config's, reusing the same acquirer,
// fetcher, and installer machinery §4.3/§4.5/§4.10 already implement.
func NewThirdPartyDriver(cfg *Config, repo ThirdPartyRepo, source ManifestSource, artifacts ArtifactSource, verify func(data, sig []byte) error) (*Driver, error) {
	if repo.Name == "" {
		return nil, errors.New("third-party repo must have a name")
	}

	cache, err := NewCache(repo.StateDir(cfg.StateDir))
	if err != nil {
		return nil, err
	}

	repoCfg := *cfg
	repoCfg.ContentURL = repo.ContentURL
	repoCfg.VersionURL = repo.VersionURL
	repoCfg.Path = repo.Root(cfg.StateDir)

	return &Driver{
		Cfg:       &repoCfg,
		Cache:     cache,
		Acquirer:  &Acquirer{Cache: cache, Source: source, ContentURL: repo.ContentURL},
		Fetcher:   NewFetcher(cache, artifacts),
		Installer: &Installer{Cache: cache, Root: repoCfg.Path},
		Versions:  NewVersionFetcher(&repoCfg, verify),
	}, nil
}

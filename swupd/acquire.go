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
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-go/internal/swudlog"
)

// ManifestSource is the HTTP/file collaborator an Acquirer downloads
// manifest content through; it is the same transport §6 describes as an
// external collaborator, kept as an interface here so acquirer tests can
// substitute an in-memory fake instead of an HTTP server.
type ManifestSource interface {
	// FetchFile downloads the resource at url into destPath.
	FetchFile(ctx context.Context, url, destPath string) error
	// VerifySignature checks data against a detached signature sig.
	VerifySignature(data, sig []byte) error
}

// Acquirer resolves a verified Manifest for a bundle at a target version,
// implementing §4.3's resolution order: primary cache hit, secondary cache
// hit, delta-from-current, full fetch-and-extract — retried once after a
// fingerprint mismatch purges the candidate.
type Acquirer struct {
	Cache      *Cache
	Source     ManifestSource
	ContentURL string
}

// AcquireBundleManifest returns the verified Manifest for name at target,
// given the current installed version (0 if there is none, e.g. a first
// install) and the fingerprint the MoM at target expects.
func (a *Acquirer) AcquireBundleManifest(ctx context.Context, current uint32, target uint32, name string, expectedFingerprint string) (*Manifest, error) {
	m, err := a.acquireOnce(ctx, current, target, name, expectedFingerprint)
	if err == nil {
		return m, nil
	}

	swudlog.Warning(swudlog.Manifest, "retrying acquisition of %s after: %v", name, err)
	a.purgeCandidate(target, name, expectedFingerprint)

	m, err = a.acquireOnce(ctx, current, target, name, expectedFingerprint)
	if err != nil {
		return nil, NewError(ExitManifestMissing, errors.Wrapf(err, "couldn't acquire manifest %s@%d", name, target))
	}
	return m, nil
}

func (a *Acquirer) acquireOnce(ctx context.Context, current, target uint32, name, expectedFingerprint string) (*Manifest, error) {
	// (1) already present in the primary cache.
	primaryPath := a.Cache.ManifestPath(target, name, "")
	if m, err := ParseManifestFile(primaryPath); err == nil {
		if err := a.verifyFingerprint(primaryPath, expectedFingerprint); err == nil {
			return m, nil
		}
	}

	// (2) present in the secondary cache.
	rel := fmt.Sprintf("%d/Manifest.%s", target, name)
	if resolved, err := a.Cache.ResolvePath(rel); err == nil {
		if err := a.verifyFingerprint(resolved, expectedFingerprint); err == nil {
			return ParseManifestFile(resolved)
		}
	}

	// (3) delta from the current version's cached manifest.
	if current != 0 && name != "MoM" {
		if m, err := a.acquireViaDelta(ctx, current, target, name, expectedFingerprint); err == nil {
			return m, nil
		}
	}

	// (4) full fetch-and-extract.
	return a.acquireViaFullFetch(ctx, target, name, expectedFingerprint)
}

func (a *Acquirer) acquireViaDelta(ctx context.Context, current, target uint32, name, expectedFingerprint string) (*Manifest, error) {
	fromPath := a.Cache.ManifestPath(current, name, "")
	if _, err := os.Stat(fromPath); err != nil {
		return nil, err
	}

	deltaURL := fmt.Sprintf("%s/%d/Manifest-%s-delta-from-%d-to-%d", a.ContentURL, target, name, current, target)
	deltaPath := a.Cache.DeltaPath(name, fmt.Sprintf("%d", current), fmt.Sprintf("%d", target))
	if err := a.Source.FetchFile(ctx, deltaURL, deltaPath); err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(deltaPath) }()

	destPath := a.Cache.ManifestPath(target, name, "")
	if err := os.MkdirAll(a.Cache.ManifestDir(target), 0700); err != nil {
		return nil, err
	}
	if err := ApplyDelta(fromPath, deltaPath, destPath); err != nil {
		return nil, err
	}
	if err := copyXattrs(destPath, fromPath); err != nil {
		swudlog.Warning(swudlog.Manifest, "couldn't copy xattrs onto delta-applied manifest %s: %v", name, err)
	}

	if err := a.verifyFingerprint(destPath, expectedFingerprint); err != nil {
		_ = os.Remove(destPath)
		return nil, err
	}
	return ParseManifestFile(destPath)
}

func (a *Acquirer) acquireViaFullFetch(ctx context.Context, target uint32, name, expectedFingerprint string) (*Manifest, error) {
	url := fmt.Sprintf("%s/%d/Manifest.%s.tar", a.ContentURL, target, name)
	tarPath := a.Cache.ManifestPath(target, name, "") + ".tar"

	if err := os.MkdirAll(a.Cache.ManifestDir(target), 0700); err != nil {
		return nil, err
	}
	if err := a.Source.FetchFile(ctx, url, tarPath); err != nil {
		return nil, err
	}

	destPath := a.Cache.ManifestPath(target, name, "")
	if err := extractSingleEntry(tarPath, destPath); err != nil {
		_ = os.Remove(tarPath)
		return nil, err
	}
	_ = os.Remove(tarPath)

	if name == "MoM" {
		sigURL := url + ".sig"
		sigPath := destPath + ".sig"
		if err := a.Source.FetchFile(ctx, sigURL, sigPath); err != nil {
			return nil, NewError(ExitSignatureInvalid, err)
		}
		data, err := os.ReadFile(destPath)
		if err != nil {
			return nil, err
		}
		sig, err := os.ReadFile(sigPath)
		if err != nil {
			return nil, err
		}
		if err := a.Source.VerifySignature(data, sig); err != nil {
			return nil, NewError(ExitSignatureInvalid, err)
		}
	} else if err := a.verifyFingerprint(destPath, expectedFingerprint); err != nil {
		_ = os.Remove(destPath)
		return nil, err
	}

	return ParseManifestFile(destPath)
}

func (a *Acquirer) verifyFingerprint(path, expected string) error {
	if expected == "" {
		return nil
	}
	got, err := GetFingerprintForFile(path)
	if err != nil {
		return err
	}
	if got != expected {
		return errors.Errorf("manifest %s: fingerprint mismatch, got %s want %s", path, got, expected)
	}
	return nil
}

func (a *Acquirer) purgeCandidate(target uint32, name, fingerprint string) {
	for _, path := range []string{
		a.Cache.ManifestPath(target, name, "") + ".tar",
		a.Cache.ManifestPath(target, name, ""),
		a.Cache.ManifestPath(target, name, "") + ".sig",
		a.Cache.ManifestPath(target, name, fingerprint),
	} {
		_ = os.Remove(path)
	}
}

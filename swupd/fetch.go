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
	"os"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-go/internal/swudlog"
)

// Default concurrency bounds for the fetcher (§4.5). FetchAll runs at most
// MaxInFlight downloads at once; LowWatermark is stored on the Fetcher but
// FetchAll does not consult it, so there is no drain-to-low-watermark
// hysteresis.
const (
	DefaultMaxInFlight  = 25
	DefaultLowWatermark = 15
)

// ArtifactSource downloads a single-entry archive named for its fingerprint
// to destPath. It is the fetcher's HTTP/file transport collaborator (§6),
// kept as an interface so tests can substitute a local-file fake.
type ArtifactSource interface {
	FetchArtifact(ctx context.Context, fingerprint, destPath string) error
}

// ArtifactRequest names one fullfile or pack the fetcher should retrieve.
type ArtifactRequest struct {
	Fingerprint string
	// SizeHint is the artifact's size if cheaply known (HEAD-queried or
	// read from the manifest), used to decide whether progress can be
	// reported as bytes/total instead of count/total. Zero means unknown.
	SizeHint int64
}

// FetchOutcome is one artifact's terminal state after a Fetcher run.
type FetchOutcome struct {
	Fingerprint string
	Err         error
}

// Fetcher runs the bounded-concurrency download pipeline described in §4.5:
// for every requested artifact, download to a temporary name, rename on
// success, verify the archive is single-entry, stream-extract into
// staged/, and verify the extracted file's own fingerprint. The archive
// entry's name is not compared with the fingerprint.
type Fetcher struct {
	Cache        *Cache
	Source       ArtifactSource
	MaxInFlight  int
	LowWatermark int
}

// NewFetcher builds a Fetcher with the default concurrency bounds.
func NewFetcher(cache *Cache, source ArtifactSource) *Fetcher {
	return &Fetcher{
		Cache:        cache,
		Source:       source,
		MaxInFlight:  DefaultMaxInFlight,
		LowWatermark: DefaultLowWatermark,
	}
}

// FetchAll drives every artifact through Queued -> InFlight -> Downloaded ->
// Verified -> Extracted. Artifacts that fail with a transient transport
// error are returned in the retry slice instead of in err, matching §4.5's
// "surfaced to the caller" retry-list contract; a non-transient failure
// (fingerprint mismatch, malformed archive) is also reported via the retry
// slice since the caller, not the fetcher, decides whether to fall back to
// a different source.
func (f *Fetcher) FetchAll(ctx context.Context, artifacts []ArtifactRequest) (retry []ArtifactRequest, err error) {
	maxInFlight := f.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	// The pool runs at most maxInFlight tasks at once; further
	// submissions are queued by the pool rather than blocking this loop,
	// and LowWatermark plays no part.
	pool := pond.NewResultPool[FetchOutcome](maxInFlight)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, artifact := range artifacts {
		artifact := artifact
		group.SubmitErr(func() (FetchOutcome, error) {
			err := f.fetchOne(ctx, artifact)
			return FetchOutcome{Fingerprint: artifact.Fingerprint, Err: err}, nil
		})
	}

	outcomes, werr := group.Wait()
	if werr != nil {
		return nil, werr
	}

	byFingerprint := make(map[string]ArtifactRequest, len(artifacts))
	for _, a := range artifacts {
		byFingerprint[a.Fingerprint] = a
	}
	for _, o := range outcomes {
		if o.Err != nil {
			swudlog.Warning(swudlog.Fetch, "failed to fetch %s: %v", o.Fingerprint, o.Err)
			retry = append(retry, byFingerprint[o.Fingerprint])
		}
	}
	return retry, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, artifact ArtifactRequest) error {
	tempPath := f.Cache.DownloadPath(artifact.Fingerprint, true)
	finalPath := f.Cache.DownloadPath(artifact.Fingerprint, false)

	if _, err := os.Stat(f.Cache.StagedPath(artifact.Fingerprint)); err == nil {
		// Already staged from a previous run; nothing to do.
		return nil
	}

	operation := func() error {
		if err := f.Source.FetchArtifact(ctx, artifact.Fingerprint, tempPath); err != nil {
			return err
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrapf(err, "download failed for %s", artifact.Fingerprint)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return err
	}

	stagedPath := f.Cache.StagedPath(artifact.Fingerprint)
	if err := extractSingleEntry(finalPath, stagedPath); err != nil {
		_ = os.Remove(stagedPath)
		return errors.Wrapf(err, "extraction failed for %s", artifact.Fingerprint)
	}

	got, err := GetFingerprintForFile(stagedPath)
	if err != nil {
		_ = os.Remove(stagedPath)
		return err
	}
	if got != artifact.Fingerprint {
		_ = os.Remove(stagedPath)
		return errors.Errorf("extracted content fingerprint %s does not match expected %s", got, artifact.Fingerprint)
	}

	return nil
}

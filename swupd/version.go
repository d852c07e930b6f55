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
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-go/internal/procutil"
)

// osReleasePaths are tried in order for the locally-installed VERSION_ID,
// matching the primary/fallback pair the original reads.
var osReleasePaths = []string{"/usr/lib/os-release", "/etc/os-release"}

// CurrentVersion reads VERSION_ID out of the target root's os-release file.
func CurrentVersion(targetRoot string) (uint32, error) {
	var lastErr error
	for _, rel := range osReleasePaths {
		path := targetRoot + rel
		f, err := os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		v, err := parseVersionID(f)
		_ = f.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return v, nil
	}
	return 0, errors.Wrap(lastErr, "couldn't determine current version from os-release")
}

func parseVersionID(f *os.File) (uint32, error) {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VERSION_ID=") {
			continue
		}
		value := strings.Trim(strings.TrimPrefix(line, "VERSION_ID="), `"`)
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid VERSION_ID %q", value)
		}
		return uint32(n), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("VERSION_ID not found")
}

// VersionFetcher retrieves the remote version pointer, verifying its
// detached signature unless disabled. It is a thin wrapper over
// retryablehttp.Client, which the rest of §4.5's fetcher also uses, so a
// transient mirror outage is retried with the same backoff policy as
// fullfile downloads.
type VersionFetcher struct {
	Client             *retryablehttp.Client
	VersionURL         string
	AllowUnsignedVersion bool
	VerifySignature    func(data, sig []byte) error
}

// NewVersionFetcher builds a VersionFetcher against cfg.
func NewVersionFetcher(cfg *Config, verify func(data, sig []byte) error) *VersionFetcher {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &VersionFetcher{
		Client:               client,
		VersionURL:           cfg.VersionURL,
		AllowUnsignedVersion: cfg.AllowInsecureHTTP,
		VerifySignature:      verify,
	}
}

// LatestForFormat returns the latest version pointer for a specific format,
// GET <version-url>/version/format<format>/latest.
func (vf *VersionFetcher) LatestForFormat(ctx context.Context, format uint) (uint32, error) {
	url := fmt.Sprintf("%s/version/format%d/latest", vf.VersionURL, format)
	return vf.fetchPointer(ctx, url)
}

// LatestOverall returns the absolute latest version across all formats, GET
// <version-url>/version/latest_version.
func (vf *VersionFetcher) LatestOverall(ctx context.Context) (uint32, error) {
	url := vf.VersionURL + "/version/latest_version"
	return vf.fetchPointer(ctx, url)
}

func (vf *VersionFetcher) fetchPointer(ctx context.Context, url string) (uint32, error) {
	data, err := vf.get(ctx, url)
	if err != nil {
		return 0, err
	}

	if !vf.AllowUnsignedVersion {
		sig, err := vf.get(ctx, url+".sig")
		if err != nil {
			return 0, NewError(ExitSignatureInvalid, errors.Wrap(err, "couldn't fetch version signature"))
		}
		if vf.VerifySignature != nil {
			if err := vf.VerifySignature(data, sig); err != nil {
				return 0, NewError(ExitSignatureInvalid, errors.Wrap(err, "version pointer signature verification failed"))
			}
		}
	}

	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, NewError(ExitNetwork, errors.Wrapf(err, "invalid version pointer contents from %s", url))
	}
	return uint32(n), nil
}

func (vf *VersionFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := vf.Client.Do(req)
	if err != nil {
		return nil, NewError(ExitNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		return nil, NewError(ExitNetwork, errors.Errorf("GET %s: status %s", url, resp.Status))
	}
	buf := make([]byte, 0, 64)
	for {
		var chunk [64]byte
		n, rerr := resp.Body.Read(chunk[:])
		buf = append(buf, chunk[:n]...)
		if rerr != nil {
			break
		}
	}
	return buf, nil
}

// MirrorPolicy decides whether a configured mirror should be kept, warned
// about, or auto-unset, by comparing its reported version against the
// upstream pointer. lag is upstream-mirror; a mirror that cannot be reached
// at all should be reported as reachable=false regardless of lag.
type MirrorPolicy struct {
	// StalenessThreshold is the maximum version lag, in versions, a
	// mirror is allowed to trail upstream by before being unset.
	StalenessThreshold uint32
}

// MirrorDecision is MirrorPolicy.Evaluate's verdict.
type MirrorDecision int

// The decisions MirrorPolicy.Evaluate can return.
const (
	MirrorKeep MirrorDecision = iota
	MirrorWarn
	MirrorUnset
)

// Evaluate applies the staleness policy. A mirror that can't be reached is
// always unset; otherwise a lag beyond StalenessThreshold unsets it, and
// any smaller nonzero lag only warns.
func (p MirrorPolicy) Evaluate(reachable bool, upstream, mirror uint32) MirrorDecision {
	if !reachable {
		return MirrorUnset
	}
	if upstream <= mirror {
		return MirrorKeep
	}
	lag := upstream - mirror
	if lag > p.StalenessThreshold {
		return MirrorUnset
	}
	if lag > 0 {
		return MirrorWarn
	}
	return MirrorKeep
}

// VerifyWithOpenSSL shells out to openssl to verify a detached signature,
// the external collaborator the spec describes signature verification as.
// It is provided as the default VerifySignature implementation; callers
// needing a different trust store can supply their own.
func VerifyWithOpenSSL(ctx context.Context, certPath string, data, sig []byte) error {
	dataFile, err := os.CreateTemp("", "swupd-verify-data-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(dataFile.Name()) }()
	if _, err := dataFile.Write(data); err != nil {
		_ = dataFile.Close()
		return err
	}
	_ = dataFile.Close()

	sigFile, err := os.CreateTemp("", "swupd-verify-sig-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(sigFile.Name()) }()
	if _, err := sigFile.Write(sig); err != nil {
		_ = sigFile.Close()
		return err
	}
	_ = sigFile.Close()

	return procutil.RunSilent("openssl", "smime", "-verify",
		"-in", sigFile.Name(), "-inform", "DER",
		"-content", dataFile.Name(),
		"-CAfile", certPath, "-noout")
}

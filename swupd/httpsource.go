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
	"io"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// HTTPSource is the concrete ManifestSource/ArtifactSource the CLI wires the
// Acquirer and Fetcher to: it fetches manifest and artifact content over
// HTTP(S) from ContentURL, retrying transient failures with the same
// exponential backoff VersionFetcher uses for the version pointer.
type HTTPSource struct {
	Client     *retryablehttp.Client
	ContentURL string
	CertPath   string
}

// NewHTTPSource builds an HTTPSource against cfg.
func NewHTTPSource(cfg *Config) *HTTPSource {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &HTTPSource{
		Client:     client,
		ContentURL: cfg.ContentURL,
		CertPath:   cfg.CertPath,
	}
}

// FetchFile implements ManifestSource by streaming url into destPath.
func (s *HTTPSource) FetchFile(ctx context.Context, url, destPath string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return NewError(ExitNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		return NewError(ExitNetwork, errors.Errorf("GET %s: status %s", url, resp.Status))
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// VerifySignature implements ManifestSource using the openssl-backed default
// verifier, against the configured CertPath.
func (s *HTTPSource) VerifySignature(data, sig []byte) error {
	return VerifyWithOpenSSL(context.Background(), s.CertPath, data, sig)
}

// FetchArtifact implements ArtifactSource by downloading
// <ContentURL>/<fingerprint>.tar into destPath.
func (s *HTTPSource) FetchArtifact(ctx context.Context, fingerprint, destPath string) error {
	url := fmt.Sprintf("%s/%s.tar", s.ContentURL, fingerprint)
	return s.FetchFile(ctx, url, destPath)
}

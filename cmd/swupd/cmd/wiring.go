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

package cmd

import (
	"context"

	"github.com/clearlinux/swupd-go/swupd"
)

// newDriver wires a Driver's collaborators against cfg, the same set of
// concrete types every subcommand that touches the network or the target
// root needs: a statedir Cache, an HTTPSource shared between manifest and
// artifact fetches, and an Installer rooted at cfg.Path.
func newDriver(cfg *swupd.Config) (*swupd.Driver, error) {
	cache, err := swupd.NewCache(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	source := swupd.NewHTTPSource(cfg)

	verify := func(data, sig []byte) error {
		if cfg.AllowInsecureHTTP {
			return nil
		}
		return swupd.VerifyWithOpenSSL(context.Background(), cfg.CertPath, data, sig)
	}

	acquirer := &swupd.Acquirer{Cache: cache, Source: source, ContentURL: cfg.ContentURL}
	fetcher := swupd.NewFetcher(cache, source)
	fetcher.MaxInFlight = cfg.MaxParallelDownloads

	installer := &swupd.Installer{Cache: cache, Root: cfg.Path}

	return &swupd.Driver{
		Cfg:       cfg,
		Cache:     cache,
		Acquirer:  acquirer,
		Fetcher:   fetcher,
		Installer: installer,
		Versions:  swupd.NewVersionFetcher(cfg, verify),
	}, nil
}

// Copyright 2017 Intel Corporation
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

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// DefaultConfigPath is where Config is read from if no override is given,
// mirroring the teacher's config.DefaultFormatPath default-file pattern.
const DefaultConfigPath = "/usr/share/defaults/swupd/swupd.conf"

// swupdConf is the on-disk TOML shape, directly modeled on the mixer
// configuration's swupdConf sub-struct (ContentURL/VersionURL/Format/Bundle).
type swupdConf struct {
	ContentURL string `toml:"ContentURL"`
	VersionURL string `toml:"VersionURL"`
	Format     string `toml:"Format"`
	Bundle     string `toml:"Bundle"`
}

// Config is the immutable, transaction-scoped value built once per
// invocation from a TOML file plus command-line overrides. Nothing in the
// engine mutates a Config after it is constructed; a new transaction gets a
// new Config.
type Config struct {
	// ContentURL/VersionURL mirror swupdConf.
	ContentURL string
	VersionURL string
	Format     string
	Bundle     string

	// Path is the target root the update is applied to (normally "/").
	Path string
	// StateDir is the cache root (normally "/var/lib/swupd").
	StateDir string

	AllowInsecureHTTP  bool
	SkipOptional       bool
	SkipDiskSpaceCheck bool

	MaxParallelDownloads int

	CertPath  string
	MirrorURL string

	// FormatOverride is the format number used for the version-pointer
	// lookup. It is used as-is, zero unless set; nothing reads
	// StateDir/format or the remote version pointer to fill it in.
	FormatOverride uint
}

// LoadConfig reads a TOML file at path and applies opts over it, returning
// the finished transaction Config. A zero-value path falls back to
// DefaultConfigPath.
func LoadConfig(path string, opts ...Option) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	var raw swupdConf
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "couldn't read config %s", path)
		}
		// Missing config file is not fatal; callers can supply everything
		// through Option overrides (e.g. in tests, or with --url flags).
	}

	c := &Config{
		ContentURL:           raw.ContentURL,
		VersionURL:           raw.VersionURL,
		Format:               raw.Format,
		Bundle:               raw.Bundle,
		Path:                 "/",
		StateDir:             "/var/lib/swupd",
		MaxParallelDownloads: 25,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, c.validate()
}

func (c *Config) validate() error {
	if c.ContentURL == "" {
		return NewError(ExitBadConfig, errors.New("config has no ContentURL"))
	}
	if c.MaxParallelDownloads <= 0 {
		return NewError(ExitBadConfig, errors.New("config MaxParallelDownloads must be positive"))
	}
	return nil
}

// Option mutates a Config during LoadConfig, the same override pattern the
// CLI uses to let flags win over the config file.
type Option func(*Config)

// WithPath overrides the target root.
func WithPath(path string) Option {
	return func(c *Config) { c.Path = path }
}

// WithStateDir overrides the cache root.
func WithStateDir(dir string) Option {
	return func(c *Config) { c.StateDir = dir }
}

// WithContentURL overrides the content mirror URL.
func WithContentURL(url string) Option {
	return func(c *Config) { c.ContentURL = url }
}

// WithVersionURL overrides the version-pointer URL.
func WithVersionURL(url string) Option {
	return func(c *Config) { c.VersionURL = url }
}

// WithMaxParallelDownloads overrides the fetcher's upper concurrency bound
// (MAX_XFER in the concurrency model).
func WithMaxParallelDownloads(n int) Option {
	return func(c *Config) { c.MaxParallelDownloads = n }
}

// WithAllowInsecureHTTP disables TLS and signature verification, matching
// the C implementation's build-variant signature-check bypass.
func WithAllowInsecureHTTP(allow bool) Option {
	return func(c *Config) { c.AllowInsecureHTTP = allow }
}

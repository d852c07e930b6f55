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
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"

	"github.com/pkg/errors"
)

// CompressedTarReader is a tar.Reader that also owns the decompression
// Reader underneath it, since some compression algorithms (xz, zstd) are
// shelled out to an external process that must be waited on.
type CompressedTarReader struct {
	*tar.Reader
	CompressionCloser io.Closer
}

// Close releases the resources held by the decompression layer. Unlike a
// plain tar.Reader, this may need to wait for an external process to exit.
func (ctr *CompressedTarReader) Close() error {
	if ctr.CompressionCloser != nil {
		return ctr.CompressionCloser.Close()
	}
	return nil
}

// Compression algorithms are identified by the leading "magic" bytes of
// their container format.
var (
	gzipMagic  = []byte{0x1F, 0x8B}
	xzMagic    = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	bzip2Magic = []byte{'B', 'Z', 'h'}
	// https://github.com/facebook/zstd/blob/dev/lib/zstd.h#L385
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// NewCompressedTarReader detects the compression used by rs from its magic
// bytes (fullfiles and packs are xz; gzip/bzip2/zstd are also accepted for
// third-party content producers that compress differently) and returns a
// tar.Reader layered over the right decompressor.
func NewCompressedTarReader(rs io.ReadSeeker) (*CompressedTarReader, error) {
	var magic [6]byte
	if _, err := rs.Read(magic[:]); err != nil {
		return nil, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	result := &CompressedTarReader{}
	switch {
	case bytes.HasPrefix(magic[:], gzipMagic):
		gr, err := gzip.NewReader(rs)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't decompress using gzip")
		}
		result.CompressionCloser = gr
		result.Reader = tar.NewReader(gr)
	case bytes.HasPrefix(magic[:], xzMagic):
		xr, err := NewExternalReader(rs, "unxz")
		if err != nil {
			return nil, errors.Wrap(err, "couldn't decompress using xz")
		}
		result.CompressionCloser = xr
		result.Reader = tar.NewReader(xr)
	case bytes.HasPrefix(magic[:], bzip2Magic):
		result.Reader = tar.NewReader(bzip2.NewReader(rs))
	case bytes.HasPrefix(magic[:], zstdMagic):
		zr, err := NewExternalReader(rs, "zstd", "-d")
		if err != nil {
			return nil, errors.Wrap(err, "couldn't decompress using zstd")
		}
		result.CompressionCloser = zr
		result.Reader = tar.NewReader(zr)
	default:
		// Assume an uncompressed tar and let tar.Reader complain if it
		// turns out not to be valid.
		result.Reader = tar.NewReader(rs)
	}
	return result, nil
}

// extractSingleEntry opens tarPath, verifies it contains exactly one entry,
// and extracts that entry's content to destPath. Used by the acquirer's
// full-fetch path (§4.3 step 4) and the fetcher's fullfile extraction
// (§4.5). The entry's name is not checked against the content it carries.
func extractSingleEntry(tarPath, destPath string) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	tr, err := NewCompressedTarReader(f)
	if err != nil {
		return errors.Wrap(err, "couldn't open archive")
	}
	defer func() { _ = tr.Close() }()

	hdr, err := tr.Next()
	if err != nil {
		return errors.Wrap(err, "couldn't read archive entry")
	}

	out, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, tr); err != nil {
		_ = out.Close()
		return errors.Wrap(err, "couldn't extract archive entry")
	}
	if err := out.Close(); err != nil {
		return err
	}

	if _, err := tr.Next(); err == nil {
		return errors.Errorf("archive %s has more than one entry", tarPath)
	}
	return nil
}

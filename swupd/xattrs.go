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
	"bytes"
	"errors"
	"sort"
	"syscall"

	"github.com/pkg/xattr"
)

// getXattrBlob reads every extended attribute on filename and returns them
// canonicalized as sorted "name\x00value\x00" pairs, suitable for folding
// into a fingerprint's HMAC key. A file with no extended attributes (or on
// a filesystem that doesn't support them) returns a nil blob and no error.
func getXattrBlob(filename string) ([]byte, error) {
	names, err := xattr.LList(filename)
	if err != nil {
		if xattr.IsNotExist(err) || isUnsupported(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		value, err := xattr.LGet(filename, name)
		if err != nil {
			if xattr.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		buf.WriteString(name)
		buf.WriteByte(0)
		buf.Write(value)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// isUnsupported reports whether err indicates the filesystem has no xattr
// support at all (as opposed to the file simply having none set), which
// the engine treats the same as "no attributes" rather than a hard error.
func isUnsupported(err error) bool {
	if err == nil {
		return false
	}
	// ENOTSUP surfaces as a plain syscall errno wrapped by the xattr
	// package; IsNotExist already covers ENODATA/ENOATTR.
	return errors.Is(err, syscall.ENOTSUP)
}

// copyXattrs copies every extended attribute from src to dst, used by the
// staging engine's hardlink-fails-fall-back-to-copy path (§9 Open Question:
// preserve xattrs across the fallback copy so the destination's fingerprint
// still matches).
func copyXattrs(dst, src string) error {
	names, err := xattr.LList(src)
	if err != nil {
		if xattr.IsNotExist(err) || isUnsupported(err) {
			return nil
		}
		return err
	}
	for _, name := range names {
		value, err := xattr.LGet(src, name)
		if err != nil {
			if xattr.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := xattr.LSet(dst, name, value); err != nil {
			return err
		}
	}
	return nil
}

// xattrsEqual reports whether a and b carry identical extended attributes,
// comparing their canonicalized blobs. The diagnose walker does not call it.
func xattrsEqual(a, b string) (bool, error) {
	blobA, err := getXattrBlob(a)
	if err != nil {
		return false, err
	}
	blobB, err := getXattrBlob(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(blobA, blobB), nil
}

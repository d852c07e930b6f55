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
	"path/filepath"
	"syscall"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	info := &FingerprintInfo{Mode: syscall.S_IFREG, UID: 0, GID: 0, Size: 5}
	a, err := GetFingerprintForBytes(info, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := GetFingerprintForBytes(info, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("same input produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	info := &FingerprintInfo{Mode: syscall.S_IFREG, Size: 5}
	a, _ := GetFingerprintForBytes(info, []byte("hello"))
	b, _ := GetFingerprintForBytes(&FingerprintInfo{Mode: syscall.S_IFREG, Size: 5}, []byte("world"))
	if a == b {
		t.Error("different content produced the same fingerprint")
	}
}

func TestFingerprintChangesWithXattrBlob(t *testing.T) {
	base := &FingerprintInfo{Mode: syscall.S_IFREG, Size: 5}
	withXattr := &FingerprintInfo{Mode: syscall.S_IFREG, Size: 5, XattrBlob: []byte("user.foo\x00bar\x00")}

	a, err := GetFingerprintForBytes(base, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := GetFingerprintForBytes(withXattr, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("an xattr-only change should change the fingerprint")
	}
}

func TestFingerprintDirectory(t *testing.T) {
	fp, err := NewFingerprint(&FingerprintInfo{Mode: syscall.S_IFDIR})
	if err != nil {
		t.Fatal(err)
	}
	if fp.Sum() == "" {
		t.Error("expected non-empty fingerprint for directory")
	}
}

func TestFingerprintSymlink(t *testing.T) {
	fp, err := NewFingerprint(&FingerprintInfo{Mode: syscall.S_IFLNK, Linkname: "/target"})
	if err != nil {
		t.Fatal(err)
	}
	if fp.Sum() == "" {
		t.Error("expected non-empty fingerprint for symlink")
	}
}

func TestInternHashDeduplicates(t *testing.T) {
	h1 := internHash("abc123")
	h2 := internHash("abc123")
	if h1 != h2 {
		t.Errorf("interning the same string twice produced different handles: %v vs %v", h1, h2)
	}
	if h1.String() != "abc123" {
		t.Errorf("got %q, want abc123", h1.String())
	}
}

func TestGetFingerprintForFileRegular(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	sum, err := GetFingerprintForFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum) != 64 {
		t.Errorf("expected 64-char fingerprint, got %d chars", len(sum))
	}

	sum2, err := GetFingerprintForFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if sum != sum2 {
		t.Error("fingerprint not stable across repeated calls on unchanged file")
	}
}

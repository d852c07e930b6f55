package swupd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/xattr"
)

func TestGetXattrBlobNoAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	blob, err := getXattrBlob(path)
	if err != nil {
		t.Fatal(err)
	}
	if blob != nil {
		t.Errorf("expected a nil blob for a file with no xattrs, got %q", blob)
	}
}

func TestCopyXattrsAndXattrsEqual(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	for _, p := range []string{src, dst} {
		if err := os.WriteFile(p, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := xattr.Set(src, "user.swupd.test", []byte("v1")); err != nil {
		t.Skipf("filesystem doesn't support xattrs: %v", err)
	}

	if err := copyXattrs(dst, src); err != nil {
		t.Fatal(err)
	}

	equal, err := xattrsEqual(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("expected src and dst to carry identical xattrs after copyXattrs")
	}
}

func TestXattrsEqualDiffer(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := xattr.Set(a, "user.swupd.test", []byte("v1")); err != nil {
		t.Skipf("filesystem doesn't support xattrs: %v", err)
	}
	if err := xattr.Set(b, "user.swupd.test", []byte("v2")); err != nil {
		t.Fatal(err)
	}

	equal, err := xattrsEqual(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if equal {
		t.Error("expected differing xattr values to compare unequal")
	}
}

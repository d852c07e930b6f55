package swupd

import (
	"testing"
)

func manifestWithIncludes(name string, includes ...string) *Manifest {
	return &Manifest{Name: name, Header: ManifestHeader{Includes: includes}}
}

func TestResolveBundlesTransitive(t *testing.T) {
	fixtures := map[string]*Manifest{
		"editors":  manifestWithIncludes("editors", "os-core"),
		"os-core":  manifestWithIncludes("os-core"),
	}
	set, err := ResolveBundles([]string{"editors"}, false, func(name string) (*Manifest, error) {
		return fixtures[name], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 2 {
		t.Fatalf("got %d bundles, want 2: %v", len(set), set.Names())
	}
}

func TestResolveBundlesDetectsCycle(t *testing.T) {
	fixtures := map[string]*Manifest{
		"a": manifestWithIncludes("a", "b"),
		"b": manifestWithIncludes("b", "a"),
	}
	_, err := ResolveBundles([]string{"a"}, false, func(name string) (*Manifest, error) {
		return fixtures[name], nil
	})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestResolveBundlesSkipsAlsoAddWithoutOptional(t *testing.T) {
	fixtures := map[string]*Manifest{
		"editors": {Name: "editors", Header: ManifestHeader{AlsoAdd: []string{"spell-check"}}},
		"spell-check": manifestWithIncludes("spell-check"),
	}
	set, err := ResolveBundles([]string{"editors"}, false, func(name string) (*Manifest, error) {
		return fixtures[name], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Fatalf("got %d bundles, want 1 (AlsoAdd should be skipped): %v", len(set), set.Names())
	}

	set, err = ResolveBundles([]string{"editors"}, true, func(name string) (*Manifest, error) {
		return fixtures[name], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 2 {
		t.Fatalf("got %d bundles, want 2 with withOptional=true: %v", len(set), set.Names())
	}
}

func TestReverseDependents(t *testing.T) {
	resolved := BundleSet{
		"editors": manifestWithIncludes("editors", "os-core"),
		"os-core": manifestWithIncludes("os-core"),
	}
	rev := ReverseDependents("os-core", resolved)
	if len(rev) != 1 || rev[0] != "editors" {
		t.Errorf("got %v, want [editors]", rev)
	}
}

func TestBundleSetSubtract(t *testing.T) {
	a := BundleSet{"x": manifestWithIncludes("x"), "y": manifestWithIncludes("y")}
	b := BundleSet{"y": manifestWithIncludes("y")}
	diff := a.Subtract(b)
	if len(diff) != 1 || diff[0] != "x" {
		t.Errorf("got %v, want [x]", diff)
	}
}

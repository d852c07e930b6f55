package swupd

import "testing"

func TestManifestCachePutGet(t *testing.T) {
	mc, err := NewManifestCache(16)
	if err != nil {
		t.Fatal(err)
	}
	m := &Manifest{Name: "os-core"}
	mc.Put(10, "os-core", m)
	mc.Wait()

	got, ok := mc.Get(10, "os-core")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.Name != "os-core" {
		t.Errorf("got %q, want os-core", got.Name)
	}

	if _, ok := mc.Get(11, "os-core"); ok {
		t.Error("expected a miss for a different version")
	}
}

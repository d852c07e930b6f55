package swupd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeAliasFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAliasTableUserOverridesSystem(t *testing.T) {
	root := t.TempDir()
	writeAliasFile(t, filepath.Join(root, SystemAliasDir), "10-defaults",
		"editors\tvim\temacs\n")
	writeAliasFile(t, filepath.Join(root, UserAliasDir), "10-defaults",
		"editors\tnano\n")

	table, err := LoadAliasTable(root)
	if err != nil {
		t.Fatal(err)
	}
	got := ResolveAlias(table, "editors")
	if len(got) != 1 || got[0] != "nano" {
		t.Errorf("got %v, want [nano] (user file should win)", got)
	}
}

func TestResolveAliasPassthrough(t *testing.T) {
	table := AliasTable{}
	got := ResolveAlias(table, "os-core")
	if len(got) != 1 || got[0] != "os-core" {
		t.Errorf("got %v, want [os-core]", got)
	}
}

func TestResolveAliasesDedupes(t *testing.T) {
	table := AliasTable{"editors": {"vim", "os-core"}}
	got := ResolveAliases(table, []string{"editors", "os-core"})
	want := []string{"vim", "os-core"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseAliasFileSkipsComments(t *testing.T) {
	dir := t.TempDir()
	writeAliasFile(t, dir, "aliases", "# a comment\nfoo\tbar\tbaz\n")
	table := make(AliasTable)
	if err := parseAliasFile(filepath.Join(dir, "aliases"), table); err != nil {
		t.Fatal(err)
	}
	if len(table["foo"]) != 2 {
		t.Errorf("got %v, want 2 bundles for foo", table["foo"])
	}
}

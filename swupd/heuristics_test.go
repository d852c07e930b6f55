package swupd

import "testing"

func TestSetConfigFromPathname(t *testing.T) {
	cases := []struct {
		file     File
		expected Modifier
	}{
		{File{Name: "/etc/something"}, ModifierConfig},
		{File{Name: "/etc/a"}, ModifierConfig},
		{File{Name: "/not/etc"}, ModifierUnset},
		{File{Name: "/etc"}, ModifierUnset},
		{File{Name: "/something/else/entirely"}, ModifierUnset},
	}

	for _, tc := range cases {
		t.Run(tc.file.Name, func(t *testing.T) {
			tc.file.setConfigFromPathname()
			if tc.file.Modifier != tc.expected {
				t.Errorf("file %v modifier %v did not match expected %v",
					tc.file.Name, tc.file.Modifier, tc.expected)
			}
		})
	}
}

func TestSetStateFromPathname(t *testing.T) {
	dirCases := []File{
		{Name: "/usr/src/debug"},
		{Name: "/dev"},
		{Name: "/home"},
		{Name: "/proc"},
		{Name: "/root"},
		{Name: "/run"},
		{Name: "/sys"},
		{Name: "/tmp"},
		{Name: "/var"},
	}

	for _, tc := range dirCases {
		t.Run(tc.Name, func(t *testing.T) {
			tc.setStateFromPathname()
			if tc.Modifier != ModifierUnset {
				t.Errorf("file %v modifier %v did not match expected %v", tc.Name, tc.Modifier, ModifierUnset)
			}

			tc.Name += "/a"
			tc.setStateFromPathname()
			if tc.Modifier != ModifierState {
				t.Errorf("file %v modifier %v did not match expected %v", tc.Name, tc.Modifier, ModifierState)
			}
		})
	}

	allCases := []struct {
		file     File
		expected Modifier
	}{
		{File{Name: "/lost+found/a"}, ModifierState},
		{File{Name: "/a"}, ModifierUnset},
		{File{Name: "/other"}, ModifierUnset},
		{File{Name: "/usr/src/foo"}, ModifierState},
	}

	for _, tc := range allCases {
		t.Run(tc.file.Name, func(t *testing.T) {
			tc.file.setStateFromPathname()
			if tc.file.Modifier != tc.expected {
				t.Errorf("file %v modifier %v did not match expected %v",
					tc.file.Name, tc.file.Modifier, tc.expected)
			}
		})
	}
}

func TestSetBootFromPathname(t *testing.T) {
	cases := []struct {
		file     File
		expected Modifier
	}{
		{File{Name: "/boot/EFI"}, ModifierBoot},
		{File{Name: "/usr/lib/modules/module"}, ModifierBoot},
		{File{Name: "/usr/lib/kernel/file"}, ModifierBoot},
		{File{Name: "/usr/kernel/bar"}, ModifierUnset},
	}

	for _, tc := range cases {
		t.Run(tc.file.Name, func(t *testing.T) {
			tc.file.setBootFromPathname()
			if tc.file.Modifier != tc.expected {
				t.Errorf("file %v modifier %v did not match expected %v",
					tc.file.Name, tc.file.Modifier, tc.expected)
			}
		})
	}
}

func TestBootDeletionIsGhosted(t *testing.T) {
	f := File{Name: "/boot/EFI", Status: StatusDeleted}
	f.setBootFromPathname()
	if f.Status != StatusGhosted {
		t.Errorf("expected deleted boot file to be ghosted, got status %v", f.Status)
	}
}

func TestSetModifierFromPathname(t *testing.T) {
	cases := []struct {
		file     File
		expected Modifier
	}{
		{File{Name: "/etc/file"}, ModifierConfig},
		{File{Name: "/usr/src/debug"}, ModifierUnset},
		{File{Name: "/dev/foo"}, ModifierState},
		{File{Name: "/usr/src/file"}, ModifierState},
		{File{Name: "/boot/EFI"}, ModifierBoot},
		{File{Name: "/randomfile"}, ModifierUnset},
	}

	for _, tc := range cases {
		t.Run(tc.file.Name, func(t *testing.T) {
			tc.file.setModifierFromPathname(nil)
			if tc.file.Modifier != tc.expected {
				t.Errorf("file %v modifier %v did not match expected %v",
					tc.file.Name, tc.file.Modifier, tc.expected)
			}
			if tc.expected != ModifierUnset && !tc.file.HasAttr(AttrDoNotUpdate) {
				t.Errorf("file %v with modifier %v should carry AttrDoNotUpdate", tc.file.Name, tc.expected)
			}
		})
	}
}

func TestApplyHeuristics(t *testing.T) {
	expected := map[string]Modifier{
		"/etc/file":      ModifierConfig,
		"/usr/src/debug": ModifierUnset,
		"/dev/foo":       ModifierState,
		"/usr/src/file":  ModifierState,
		"/boot/EFI":      ModifierBoot,
		"/randomfile":    ModifierUnset,
	}

	m := Manifest{}
	for key := range expected {
		m.Files = append(m.Files, &File{Name: key})
	}

	m.applyHeuristics()
	for _, f := range m.Files {
		if f.Modifier != expected[f.Name] {
			t.Errorf("file %v modifier %v did not match expected %v",
				f.Name, f.Modifier, expected[f.Name])
		}
	}
}

func TestMountTableAware(t *testing.T) {
	mounts := []string{"/", "/boot", "/var"}
	if !mountTableAware("/boot/vmlinuz", mounts) {
		t.Error("expected /boot/vmlinuz to be under a mount point")
	}
	if mountTableAware("/usr/bin/foo", mounts) {
		t.Error("did not expect /usr/bin/foo to be under a non-root mount point")
	}
}

func TestSetModifierFromPathnameMountAware(t *testing.T) {
	mounts := []string{"/", "/mnt/external"}

	mounted := File{Name: "/mnt/external/data"}
	mounted.setModifierFromPathname(mounts)
	if mounted.Modifier != ModifierState {
		t.Errorf("expected mounted path to get ModifierState, got %v", mounted.Modifier)
	}
	if !mounted.HasAttr(AttrDoNotUpdate) {
		t.Error("expected mounted path to carry AttrDoNotUpdate")
	}

	config := File{Name: "/etc/file"}
	config.setModifierFromPathname(mounts)
	if config.Modifier != ModifierConfig {
		t.Errorf("expected config path heuristic to take precedence over mount table, got %v", config.Modifier)
	}
}

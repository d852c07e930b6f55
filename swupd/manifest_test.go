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
	"strings"
	"testing"
)

const sampleManifest = `MANIFEST	10
version:	10
filecount:	2
contentsize:	100
includes:	os-core

F...	0000000000000000000000000000000000000000000000000000000000000001	10	/usr/bin/foo
D...	0000000000000000000000000000000000000000000000000000000000000002	9	/usr/bin
`

func TestParseManifestRoundTrip(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	if m.Header.Version != 10 {
		t.Errorf("unexpected header: %+v", m.Header)
	}
	if len(m.Header.Includes) != 1 || m.Header.Includes[0] != "os-core" {
		t.Errorf("expected includes [os-core], got %v", m.Header.Includes)
	}
	if len(m.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(m.Files))
	}

	var buf bytes.Buffer
	if err := m.WriteManifest(&buf); err != nil {
		t.Fatal(err)
	}

	m2, err := ParseManifest(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("re-parsing written manifest failed: %v\n%s", err, buf.String())
	}
	if m2.Header.Version != m.Header.Version || len(m2.Files) != len(m.Files) {
		t.Errorf("round trip changed manifest: %+v vs %+v", m.Header, m2.Header)
	}
}

func TestParseManifestMissingHeaderField(t *testing.T) {
	broken := strings.Replace(sampleManifest, "contentsize:\t100\n", "", 1)
	if _, err := ParseManifest(strings.NewReader(broken)); err == nil {
		t.Error("expected error for manifest missing contentsize: header field")
	}
}

func TestParseManifestFilecountMismatch(t *testing.T) {
	broken := strings.Replace(sampleManifest, "filecount:\t2\n", "filecount:\t5\n", 1)
	if _, err := ParseManifest(strings.NewReader(broken)); err == nil {
		t.Error("expected error when declared filecount does not match entry count")
	}
}

func TestParseManifestNoEntries(t *testing.T) {
	header := strings.SplitN(sampleManifest, "\n\n", 2)[0] + "\n\n"
	header = strings.Replace(header, "filecount:\t2", "filecount:\t0", 1)
	if _, err := ParseManifest(strings.NewReader(header)); err == nil {
		t.Error("expected error for manifest with zero entries")
	}
}

func TestParseManifestDuplicateHeaderEntry(t *testing.T) {
	broken := "MANIFEST\t10\nversion:\t10\nversion:\t11\nfilecount:\t1\ncontentsize:\t1\n\n" +
		"F...\t0000000000000000000000000000000000000000000000000000000000000001\t10\t/a\n"
	if _, err := ParseManifest(strings.NewReader(broken)); err == nil {
		t.Error("expected error for duplicate non-repeatable header entry")
	}
}

func TestParseManifestRejectsOversizedFileCount(t *testing.T) {
	broken := strings.Replace(sampleManifest, "filecount:\t2\n", "filecount:\t4000001\n", 1)
	if _, err := ParseManifest(strings.NewReader(broken)); err == nil {
		t.Error("expected error for filecount exceeding sanity limit")
	}
}

func TestCheckHeaderIsValid(t *testing.T) {
	cases := []struct {
		name    string
		header  ManifestHeader
		wantErr bool
	}{
		{"valid", ManifestHeader{Format: 1, Version: 10, FileCount: 1}, false},
		{"zero format", ManifestHeader{Version: 10, FileCount: 1}, true},
		{"zero version", ManifestHeader{Format: 1, FileCount: 1}, true},
		{"zero filecount", ManifestHeader{Format: 1, Version: 10}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &Manifest{Header: tc.header}
			err := m.CheckHeaderIsValid()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFileByName(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}
	if f := m.FileByName("/usr/bin/foo"); f == nil {
		t.Error("expected to find /usr/bin/foo")
	}
	if f := m.FileByName("/does/not/exist"); f != nil {
		t.Error("expected no match for /does/not/exist")
	}
}

func TestBundleManifestsSkipsDeleted(t *testing.T) {
	mom := &MoM{}
	alive := &File{Name: "os-core"}
	_ = alive.setFlags("M...")
	deleted := &File{Name: "old-bundle"}
	_ = deleted.setFlags("Md..")
	mom.Files = []*File{alive, deleted}

	names := mom.BundleManifests()
	if len(names) != 1 || names[0] != "os-core" {
		t.Errorf("expected only [os-core], got %v", names)
	}
}

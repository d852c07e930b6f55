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

import "testing"

func TestSetFlagsValid(t *testing.T) {
	cases := []string{
		"F...",
		"F.C.",
		"F..r",
		"D.b.",
		".d..",
		".gb.",
		".gsr",
	}

	for _, flags := range cases {
		t.Run(flags, func(t *testing.T) {
			f := File{}
			if err := f.setFlags(flags); err != nil {
				t.Errorf("failed to set flags %v on file: %v", flags, err)
			}
		})
	}
}

func TestSetFlagsInvalid(t *testing.T) {
	cases := []string{
		" ...",
		". ..",
		".. .",
		"... ",
		"...",
	}

	for _, flags := range cases {
		t.Run(flags, func(t *testing.T) {
			f := File{}
			if err := f.setFlags(flags); err == nil {
				t.Error("setFlags did not fail with invalid input")
			}
		})
	}
}

func TestFlagsRoundTrip(t *testing.T) {
	f := File{}
	if err := f.setFlags("F.Cr"); err != nil {
		t.Fatal(err)
	}
	got, err := f.GetFlagString()
	if err != nil {
		t.Fatal(err)
	}
	if got != "F.Cr" {
		t.Errorf("got %q, want F.Cr", got)
	}
}

func TestGetFlagStringNoKind(t *testing.T) {
	f := File{}
	if _, err := f.GetFlagString(); err == nil {
		t.Error("GetFlagString did not fail with no kind set")
	}
}

func TestFindFileNameInSlice(t *testing.T) {
	fs := []*File{
		{Name: "1"},
		{Name: "2"},
		{Name: "3"},
	}

	cases := []struct {
		name        string
		hasMatch    bool
		expectedIdx int
	}{
		{"1", true, 0},
		{"2", true, 1},
		{"3", true, 2},
		{"4", false, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := File{Name: tc.name}
			found := f.findFileNameInSlice(fs)
			if tc.hasMatch && (found == nil || found.Name != fs[tc.expectedIdx].Name) {
				t.Errorf("expected match for %v", tc.name)
			}
			if !tc.hasMatch && found != nil {
				t.Errorf("expected no match for %v, got %v", tc.name, found.Name)
			}
		})
	}
}

func TestIsUnsupportedTypeChange(t *testing.T) {
	cases := []struct {
		name     string
		file     File
		expected bool
	}{
		{
			"no peer",
			File{Kind: KindRegular},
			false,
		},
		{
			"deleted file ignored",
			File{Status: StatusDeleted, Kind: KindRegular, DeltaPeer: &File{Kind: KindDirectory}},
			false,
		},
		{
			"same kind",
			File{Kind: KindDirectory, DeltaPeer: &File{Kind: KindDirectory}},
			false,
		},
		{
			"link to file ok",
			File{Kind: KindLink, DeltaPeer: &File{Kind: KindRegular}},
			false,
		},
		{
			"directory to file unsupported",
			File{Kind: KindRegular, DeltaPeer: &File{Kind: KindDirectory}},
			true,
		},
		{
			"directory to link unsupported",
			File{Kind: KindLink, DeltaPeer: &File{Kind: KindDirectory}},
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.file.isUnsupportedTypeChange(); got != tc.expected {
				t.Errorf("isUnsupportedTypeChange() = %v, want %v", got, tc.expected)
			}
		})
	}
}

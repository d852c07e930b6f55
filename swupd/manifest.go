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
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

const manifestFieldDelim = "\t"

// Sanity limits a parsed manifest must respect before the engine will
// trust it, guarding against a corrupt or hostile manifest causing
// unbounded memory use.
const (
	maxManifestFileCount   = 4000000
	maxManifestContentSize = 2 << 40 // 2 TiB
)

// ManifestHeader carries the metadata fields of a manifest.
type ManifestHeader struct {
	Format      uint
	Version     uint32
	FileCount   uint32
	ContentSize uint64

	// Includes lists the bundle names this manifest's bundle directly
	// depends on (required edges).
	Includes []string
	// AlsoAdd lists bundle names pulled in as optional/experimental
	// edges — installed by default but not hard dependencies (§4.8).
	AlsoAdd []string
}

// Manifest represents a bundle manifest or the Manifest-of-Manifests.
type Manifest struct {
	Name         string
	Header       ManifestHeader
	Files        []*File
	DeletedFiles []*File
}

// MoM is the Manifest-of-Manifests: a Manifest whose Files are KindManifest
// entries, one per bundle, each carrying the bundle manifest's own version
// and fingerprint.
type MoM struct {
	Manifest
}

// BundleManifests returns the names of the bundles listed in a MoM.
func (m *MoM) BundleManifests() []string {
	names := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		if f.Status != StatusDeleted {
			names = append(names, f.Name)
		}
	}
	return names
}

func readManifestHeaderLine(fields []string, m *Manifest) error {
	if len(fields) < 2 {
		return errors.Errorf("invalid manifest header line %q", strings.Join(fields, manifestFieldDelim))
	}

	switch fields[0] {
	case "MANIFEST":
		v, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return errors.Wrap(err, "invalid MANIFEST format")
		}
		m.Header.Format = uint(v)
	case "version:":
		v, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return errors.Wrap(err, "invalid version")
		}
		m.Header.Version = uint32(v)
	case "filecount:":
		v, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return errors.Wrap(err, "invalid filecount")
		}
		if v > maxManifestFileCount {
			return errors.Errorf("filecount %d exceeds sanity limit %d", v, maxManifestFileCount)
		}
		m.Header.FileCount = uint32(v)
	case "contentsize:":
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid contentsize")
		}
		if v > maxManifestContentSize {
			return errors.Errorf("contentsize %d exceeds sanity limit %d", v, maxManifestContentSize)
		}
		m.Header.ContentSize = v
	case "includes:":
		m.Header.Includes = append(m.Header.Includes, fields[1])
	case "also-add:":
		m.Header.AlsoAdd = append(m.Header.AlsoAdd, fields[1])
	}
	return nil
}

// fields: "<fflags, 4 chars>", "<hash, 64 chars>", "<version>", "<filename>"
func readManifestFileEntry(fields []string, m *Manifest) error {
	if len(fields) != 4 {
		return errors.Errorf("invalid manifest entry, expected 4 fields, got %d", len(fields))
	}
	fflags, fhash, fver, fname := fields[0], fields[1], fields[2], fields[3]

	if len(fflags) != 4 {
		return errors.Errorf("invalid number of flags: %v", fflags)
	}
	if len(fhash) != 64 {
		return errors.Errorf("invalid hash: %v", fhash)
	}

	v, err := strconv.ParseUint(fver, 10, 32)
	if err != nil {
		return errors.Wrap(err, "invalid version")
	}

	file := &File{Name: fname, Version: uint32(v), LastChange: uint32(v)}
	file.Hash = internHash(fhash)
	if err := file.setFlags(fflags); err != nil {
		return errors.Wrap(err, "invalid flags")
	}
	if file.Kind != KindManifest {
		file.setAttr(AttrTracked, true)
	}

	m.Files = append(m.Files, file)
	if file.Status == StatusDeleted {
		m.DeletedFiles = append(m.DeletedFiles, file)
	}
	return nil
}

// CheckHeaderIsValid verifies every required header field is present and
// internally consistent.
func (m *Manifest) CheckHeaderIsValid() error {
	if m.Header.Format == 0 {
		return errors.New("manifest format not set")
	}
	if m.Header.Version == 0 {
		return errors.New("manifest has version zero, version must be positive")
	}
	if m.Header.FileCount == 0 {
		return errors.New("manifest has a zero file count")
	}
	return nil
}

var requiredManifestHeaderEntries = []string{
	"MANIFEST",
	"version:",
	"filecount:",
	"contentsize:",
}

// ParseManifestFile reads and parses the manifest at path, naming it from
// the "Manifest.<name>" filename convention.
func ParseManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't parse manifest file %s", path)
	}
	m.Name = nameFromManifestPath(path)
	return m, nil
}

func nameFromManifestPath(path string) string {
	const prefix = "Manifest."
	base := filepath.Base(path)
	if idx := strings.Index(base, prefix); idx != -1 {
		return base[idx+len(prefix):]
	}
	return ""
}

// ParseManifest parses a manifest from r: a header block terminated by a
// blank line, followed by one file entry per line.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	input := bufio.NewScanner(r)
	// Manifest lines for large bundles can exceed the default 64KiB
	// scanner buffer once paths get long; grow it generously.
	input.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seen := make(map[string]int)
	for input.Scan() {
		text := input.Text()
		if text == "" {
			break
		}
		fields := strings.Split(text, manifestFieldDelim)
		entry := fields[0]
		if entry != "includes:" && entry != "also-add:" && seen[entry] > 0 {
			return nil, errors.Errorf("invalid manifest, duplicate entry %q in header", entry)
		}
		seen[entry]++
		if err := readManifestHeaderLine(fields, m); err != nil {
			return nil, err
		}
	}

	for _, e := range requiredManifestHeaderEntries {
		if seen[e] == 0 {
			return nil, errors.Errorf("invalid manifest, missing entry %q in header", e)
		}
	}
	if err := m.CheckHeaderIsValid(); err != nil {
		return nil, err
	}

	for input.Scan() {
		text := input.Text()
		if text == "" {
			return nil, errors.New("invalid manifest, extra blank line in body")
		}
		fields := strings.Split(text, manifestFieldDelim)
		if err := readManifestFileEntry(fields, m); err != nil {
			return nil, err
		}
	}
	if err := input.Err(); err != nil {
		return nil, err
	}

	if len(m.Files) == 0 {
		return nil, errors.New("invalid manifest, does not have any file entries")
	}
	if uint32(len(m.Files)) != m.Header.FileCount {
		return nil, errors.Errorf("manifest declares filecount %d but has %d entries",
			m.Header.FileCount, len(m.Files))
	}

	m.SortFilesByName()
	return m, nil
}

var manifestTemplate = template.Must(template.New("manifest").Parse(`
{{- with .Header -}}
MANIFEST	{{.Format}}
version:	{{.Version}}
filecount:	{{.FileCount}}
contentsize:	{{.ContentSize -}}
{{range .Includes}}
includes:	{{.}}
{{- end}}
{{- range .AlsoAdd}}
also-add:	{{.}}
{{- end}}
{{- end}}
{{ range .Files}}
{{.GetFlagString}}	{{.Hash}}	{{.Version}}	{{.Name}}
{{- end}}
`))

// WriteManifest renders m to w in the tab-delimited wire format.
func (m *Manifest) WriteManifest(w io.Writer) error {
	if err := m.CheckHeaderIsValid(); err != nil {
		return err
	}
	if err := manifestTemplate.Execute(w, m); err != nil {
		return errors.Wrapf(err, "couldn't write Manifest.%s", m.Name)
	}
	return nil
}

// WriteManifestFile renders m to a new file at path, replacing any
// existing content.
func (m *Manifest) WriteManifestFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := m.WriteManifest(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// SortFilesByName sorts Files in place by path, the order manifests are
// always stored and compared in.
func (m *Manifest) SortFilesByName() {
	sort.Slice(m.Files, func(i, j int) bool {
		return m.Files[i].Name < m.Files[j].Name
	})
}

// FileByName returns the File entry matching name, or nil.
func (m *Manifest) FileByName(name string) *File {
	// Files are kept sorted by name after parsing; binary search keeps
	// lookups fast on bundles with hundreds of thousands of entries.
	i := sort.Search(len(m.Files), func(i int) bool { return m.Files[i].Name >= name })
	if i < len(m.Files) && m.Files[i].Name == name {
		return m.Files[i]
	}
	return nil
}

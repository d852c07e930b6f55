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
	"fmt"
)

// Kind is the type of filesystem entry a File describes.
type Kind int

// The kinds a manifest entry can be.
const (
	KindUnset Kind = iota
	KindRegular
	KindDirectory
	KindLink
	KindManifest
)

var kindBytes = map[Kind]byte{
	KindUnset:     '.',
	KindRegular:   'F',
	KindDirectory: 'D',
	KindLink:      'L',
	KindManifest:  'M',
}

var byteKind = inverseByteMap(kindBytes)

// Status is the lifecycle state of a manifest entry between versions.
type Status int

// The statuses a manifest entry can carry.
const (
	StatusUnset Status = iota
	StatusDeleted
	StatusGhosted
	// StatusExperimental is the wire 'e' status flag; refreshExperimental
	// mirrors it into AttrExperimental.
	StatusExperimental
)

var statusBytes = map[Status]byte{
	StatusUnset:        '.',
	StatusDeleted:      'd',
	StatusGhosted:      'g',
	StatusExperimental: 'e',
}

var byteStatus = inverseByteMap(statusBytes)

// Modifier classifies a file's treatment during staging, install and
// diagnose: plain files are replaced outright, config/state/boot files get
// special handling (never clobbered, ghosted instead of deleted, etc).
type Modifier int

// The modifiers a manifest entry can carry.
const (
	ModifierUnset Modifier = iota
	ModifierConfig
	ModifierState
	ModifierBoot
)

var modifierBytes = map[Modifier]byte{
	ModifierUnset:  '.',
	ModifierConfig: 'C',
	ModifierState:  's',
	ModifierBoot:   'b',
}

var byteModifier = inverseByteMap(modifierBytes)

// Misc carries flags that don't fit Kind/Status/Modifier. Only Rename is
// defined today; it is parsed and round-tripped but never interpreted by
// the client install path (see DESIGN.md Open Question decisions).
type Misc int

// The misc flags a manifest entry can carry.
const (
	MiscUnset Misc = iota
	MiscRename
)

var miscBytes = map[Misc]byte{
	MiscUnset:  '.',
	MiscRename: 'r',
}

var byteMisc = inverseByteMap(miscBytes)

func inverseByteMap[K comparable](m map[K]byte) map[byte]K {
	inv := make(map[byte]K, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}

// Attr is a derived bitset computed by heuristics and resolution, not part
// of the four-character wire flags. It records facts the engine needs
// during staging/diagnose that the wire format doesn't carry directly.
type Attr uint16

// Derived attributes a File can carry.
const (
	// AttrExperimental marks a file pulled in only by an experimental
	// also-add edge (dependency resolver).
	AttrExperimental Attr = 1 << iota
	// AttrExported marks a file whose content lives under a path that
	// user configuration may legitimately have modified (set by the
	// path heuristics). It is informational: neither diagnose nor the
	// staging engine reads it.
	AttrExported
	// AttrTracked is set by the manifest parser on every entry that is not
	// a KindManifest entry, and is read by the consolidator's
	// tracked-over-untracked tie-break rule.
	AttrTracked
	// AttrDoNotUpdate composites Modifier (config/state/boot) into a
	// single "never silently clobber" predicate for the stage engine.
	AttrDoNotUpdate
	// AttrRequestsBootUpdate marks a file whose presence in the change set
	// requires the post-commit bootloader-update trigger to run, distinct
	// from ModifierBoot/is_boot: some paths request the trigger without
	// being is_boot, and vice versa (heuristics.go).
	AttrRequestsBootUpdate
)

// File is one entry in a manifest: a path, its fingerprint, the version it
// last changed in, and the flags controlling how it is staged and
// installed.
type File struct {
	Name    string
	Hash    Hashval
	Version uint32

	Kind     Kind
	Status   Status
	Modifier Modifier
	Misc     Misc
	Attrs    Attr

	// Peer links a file to its counterpart in an adjacent manifest
	// version during diffing; DeltaPeer links it to the candidate the
	// delta applier should diff against.
	Peer      *File
	DeltaPeer *File

	// LastChange is the manifest version this entry's content last
	// changed in; for unchanged files it differs from the manifest's own
	// Version.
	LastChange uint32
}

// HasAttr reports whether attr is set.
func (f *File) HasAttr(attr Attr) bool {
	return f.Attrs&attr != 0
}

// setAttr sets or clears attr.
func (f *File) setAttr(attr Attr, on bool) {
	if on {
		f.Attrs |= attr
	} else {
		f.Attrs &^= attr
	}
}

// refreshDoNotUpdate recomputes AttrDoNotUpdate from Modifier, called
// whenever heuristics change Modifier.
func (f *File) refreshDoNotUpdate() {
	f.setAttr(AttrDoNotUpdate, f.Modifier != ModifierUnset)
}

// refreshExperimental recomputes AttrExperimental from Status, called
// whenever a file's wire flags are parsed or its Status is otherwise set.
func (f *File) refreshExperimental() {
	f.setAttr(AttrExperimental, f.Status == StatusExperimental)
}

// setFlags parses the four-character wire flags field
// ("<kind><status><modifier><misc>") into the File's typed fields.
func (f *File) setFlags(flags string) error {
	if len(flags) != 4 {
		return fmt.Errorf("invalid flags %q: must be exactly 4 characters", flags)
	}

	kind, ok := byteKind[flags[0]]
	if !ok {
		return fmt.Errorf("invalid kind flag %q", flags[0])
	}
	status, ok := byteStatus[flags[1]]
	if !ok {
		return fmt.Errorf("invalid status flag %q", flags[1])
	}
	modifier, ok := byteModifier[flags[2]]
	if !ok {
		return fmt.Errorf("invalid modifier flag %q", flags[2])
	}
	misc, ok := byteMisc[flags[3]]
	if !ok {
		return fmt.Errorf("invalid misc flag %q", flags[3])
	}

	f.Kind, f.Status, f.Modifier, f.Misc = kind, status, modifier, misc
	f.refreshDoNotUpdate()
	f.refreshExperimental()
	return nil
}

// GetFlagString renders the File's typed fields back to the four-character
// wire flags field.
func (f *File) GetFlagString() (string, error) {
	if f.Kind == KindUnset {
		return "", fmt.Errorf("file %q has no kind set", f.Name)
	}
	return string([]byte{
		kindBytes[f.Kind],
		statusBytes[f.Status],
		modifierBytes[f.Modifier],
		miscBytes[f.Misc],
	}), nil
}

// findFileNameInSlice returns the File in fs whose Name matches f.Name, or
// nil if there is no match. It is a linear scan and does not rely on fs
// being sorted.
func (f *File) findFileNameInSlice(fs []*File) *File {
	for _, candidate := range fs {
		if candidate.Name == f.Name {
			return candidate
		}
	}
	return nil
}

// sameFile reports whether f and other describe the same content: same
// kind, same fingerprint.
func sameFile(f, other *File) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Kind == other.Kind && HashEquals(f.Hash, other.Hash)
}

// isUnsupportedTypeChange reports whether f changed Kind against its
// DeltaPeer in a way the delta applier cannot express as a binary patch:
// a directory changing to or from any other kind must fall back to a
// fullfile, everything else can be diffed.
func (f *File) isUnsupportedTypeChange() bool {
	if f.DeltaPeer == nil {
		return false
	}
	if f.Status == StatusDeleted || f.DeltaPeer.Status == StatusDeleted {
		return false
	}
	if f.Kind == f.DeltaPeer.Kind {
		return false
	}
	return f.DeltaPeer.Kind == KindDirectory || f.Kind == KindDirectory
}

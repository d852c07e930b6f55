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
	"sort"

	"github.com/clearlinux/swupd-go/internal/swudlog"
)

// TelemetryRecord is a single diagnostic event emitted by the engine for
// conditions that are survivable but worth surfacing, such as a file-list
// consolidation conflict. Severity is "critical" for integrity faults such
// as a cross-bundle hash conflict (which the consolidator records and then
// continues past), "info" for everything else.
type TelemetryRecord struct {
	Class    string
	Severity string
	Path     string
	Detail   string
}

// ConsolidateFiles merges File entries from possibly multiple bundle
// manifests into a single path-sorted, duplicate-free installation set. The
// decision table for equal-path neighbors is:
//
//	both present          -> keep one; prefer tracked over untracked, then older LastChange
//	both deleted           -> keep the newer deletion
//	one present, one gone  -> keep the present entry
//	both present, hashes differ -> drop both, emit inconsistent-file-hash telemetry
func ConsolidateFiles(all []*File) ([]*File, []TelemetryRecord) {
	sorted := make([]*File, len(all))
	copy(sorted, all)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var result []*File
	var telemetry []TelemetryRecord

	i := 0
	for i < len(sorted) {
		j := i + 1
		for j < len(sorted) && sorted[j].Name == sorted[i].Name {
			j++
		}
		group := sorted[i:j]
		if winner, rec := resolveGroup(group); winner != nil {
			result = append(result, winner)
			if rec != nil {
				telemetry = append(telemetry, *rec)
			}
		} else if rec != nil {
			telemetry = append(telemetry, *rec)
		}
		i = j
	}
	return result, telemetry
}

func resolveGroup(group []*File) (*File, *TelemetryRecord) {
	winner := group[0]
	for _, f := range group[1:] {
		w, rec := resolvePair(winner, f)
		if rec != nil {
			return nil, rec
		}
		winner = w
	}
	return winner, nil
}

func resolvePair(a, b *File) (*File, *TelemetryRecord) {
	aDeleted := a.Status == StatusDeleted || a.Status == StatusGhosted
	bDeleted := b.Status == StatusDeleted || b.Status == StatusGhosted

	switch {
	case aDeleted && bDeleted:
		if b.LastChange > a.LastChange {
			return b, nil
		}
		return a, nil
	case aDeleted && !bDeleted:
		return b, nil
	case !aDeleted && bDeleted:
		return a, nil
	default:
		if a.Hash != b.Hash {
			swudlog.Warning(swudlog.Manifest, "inconsistent-file-hash for %s, dropping both candidates", a.Name)
			return nil, &TelemetryRecord{
				Class:    "inconsistent-file-hash",
				Severity: SeverityCritical,
				Path:     a.Name,
				Detail:   "two bundles disagree on the content hash for this path",
			}
		}
		aTracked := a.HasAttr(AttrTracked)
		bTracked := b.HasAttr(AttrTracked)
		if aTracked != bTracked {
			if aTracked {
				return a, nil
			}
			return b, nil
		}
		if a.LastChange <= b.LastChange {
			return a, nil
		}
		return b, nil
	}
}

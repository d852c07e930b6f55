// Copyright 2016 Intel Corporation
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
	"regexp"
	"sort"
	"strings"
)

// SearchScope controls how many hits SearchFile returns: ScopeBundle stops
// at the first match per bundle, ScopeOS stops at the very first match
// across every bundle searched.
type SearchScope int

// The scopes SearchFile supports, matching -s b|o on the original CLI.
const (
	ScopeBundle SearchScope = iota
	ScopeOS
)

// SearchKind restricts which paths are considered, matching -l/-b on the
// original CLI.
type SearchKind int

// The path restrictions SearchFile supports.
const (
	SearchAny SearchKind = iota
	SearchLibrary
	SearchBinary
)

var (
	libraryPathPrefixes = []string{"/usr/lib/", "/usr/lib64/"}
	binaryPathPrefixes  = []string{"/usr/bin/", "/usr/sbin/", "/bin/", "/sbin/"}
)

// SearchResult pairs a matched path with the bundle it comes from.
type SearchResult struct {
	Bundle string
	Path   string
}

// SearchFile reports, for every bundle in set, which files match term
// (a substring, or a regular expression if term fails to compile as a plain
// substring match — matching the original's "search_term" semantics) and
// which kind/scope restriction applies, without downloading anything: it
// only ever looks at the bundle manifests already resolved in set.
func SearchFile(set BundleSet, term string, kind SearchKind, scope SearchScope) ([]SearchResult, error) {
	re, err := regexp.Compile(term)
	useRegexp := err == nil

	var results []SearchResult
	for _, name := range set.Names() {
		m := set[name]
		matchedInBundle := false
		for _, f := range m.Files {
			if f.Status == StatusDeleted || f.Status == StatusGhosted {
				continue
			}
			if !kindMatches(f.Name, kind) {
				continue
			}
			matched := strings.Contains(f.Name, term)
			if !matched && useRegexp {
				matched = re.MatchString(f.Name)
			}
			if !matched {
				continue
			}
			results = append(results, SearchResult{Bundle: name, Path: f.Name})
			matchedInBundle = true
			break
		}
		if scope == ScopeOS && matchedInBundle {
			break
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Bundle != results[j].Bundle {
			return results[i].Bundle < results[j].Bundle
		}
		return results[i].Path < results[j].Path
	})
	return results, nil
}

func kindMatches(path string, kind SearchKind) bool {
	switch kind {
	case SearchLibrary:
		return hasAnyPrefix(path, libraryPathPrefixes)
	case SearchBinary:
		return hasAnyPrefix(path, binaryPathPrefixes)
	default:
		return true
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

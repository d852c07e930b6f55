// Copyright 2018 Intel Corporation
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
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AliasTable maps an alias name to the bundle names it expands to, loaded
// from flat tab-separated definition files: "alias1\tb1\tb2".
type AliasTable map[string][]string

// SystemAliasDir and UserAliasDir are the two directories searched for
// alias definitions. A file present in both is read only from UserAliasDir;
// files are otherwise read in lexicographic filename order, first
// definition of a given alias wins.
const (
	SystemAliasDir = "/usr/share/defaults/swupd/alias-defs.d"
	UserAliasDir   = "/etc/swupd/alias-defs.d"
)

// LoadAliasTable reads alias definitions from root+UserAliasDir then
// root+SystemAliasDir (skipping filenames already seen from the user
// directory), returning the combined table.
func LoadAliasTable(root string) (AliasTable, error) {
	table := make(AliasTable)
	seen := make(map[string]bool)

	for _, dir := range []string{UserAliasDir, SystemAliasDir} {
		files, err := sortedFileNames(filepath.Join(root, dir))
		if err != nil {
			continue
		}
		for _, name := range files {
			if seen[name] {
				continue
			}
			seen[name] = true
			if err := parseAliasFile(filepath.Join(root, dir, name), table); err != nil {
				return nil, err
			}
		}
	}
	return table, nil
}

func sortedFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// parseAliasFile parses one definition file into table, a definition for an
// alias already present in table is skipped (first file read wins).
func parseAliasFile(path string, table AliasTable) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		alias := fields[0]
		if alias == "" {
			continue
		}
		var bundles []string
		for _, b := range fields[1:] {
			if b != "" {
				bundles = append(bundles, b)
			}
		}
		if len(bundles) == 0 {
			continue
		}
		if _, exists := table[alias]; !exists {
			table[alias] = bundles
		}
	}
	return scanner.Err()
}

// ResolveAlias expands name using table, returning []string{name} unchanged
// when it isn't a known alias.
func ResolveAlias(table AliasTable, name string) []string {
	if bundles, ok := table[name]; ok {
		result := make([]string, len(bundles))
		copy(result, bundles)
		return result
	}
	return []string{name}
}

// ResolveAliases expands every name in names through table, preserving
// order and without introducing duplicates.
func ResolveAliases(table AliasTable, names []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, name := range names {
		for _, bundle := range ResolveAlias(table, name) {
			if !seen[bundle] {
				seen[bundle] = true
				result = append(result, bundle)
			}
		}
	}
	return result
}

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
	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-go/internal/stringset"
)

// BundleSet maps a bundle name to its parsed manifest, the working set that
// ResolveBundles and the staging engine operate over.
type BundleSet map[string]*Manifest

// ResolveBundles computes the transitive closure of names over includes, the
// required dependency edges every MoM entry also carries, plus AlsoAdd, the
// optional/experimental edges that a conservative client may choose to skip.
// withOptional controls whether AlsoAdd edges are followed.
//
// fetch is called once per bundle name that needs to be loaded and must
// return its parsed Manifest; ResolveBundles caches each result so a bundle
// reachable through multiple paths is only fetched once.
func ResolveBundles(names []string, withOptional bool, fetch func(name string) (*Manifest, error)) (BundleSet, error) {
	set := make(BundleSet)
	visiting := stringset.New()

	var visit func(name string, viaAlsoAdd bool) error
	visit = func(name string, viaAlsoAdd bool) error {
		if _, ok := set[name]; ok {
			return nil
		}
		if visiting.Contains(name) {
			return errors.Errorf("dependency cycle detected at bundle %q", name)
		}
		visiting.Add(name)
		defer visiting.Delete(name)

		m, err := fetch(name)
		if err != nil {
			return errors.Wrapf(err, "couldn't resolve bundle %q", name)
		}
		if viaAlsoAdd {
			for _, f := range m.Files {
				f.setAttr(AttrExperimental, true)
			}
		}
		set[name] = m

		for _, dep := range m.Header.Includes {
			if err := visit(dep, false); err != nil {
				return err
			}
		}
		if withOptional {
			for _, dep := range m.Header.AlsoAdd {
				if err := visit(dep, true); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, name := range names {
		if err := visit(name, false); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Names returns the bundle names in the set, sorted.
func (s BundleSet) Names() []string {
	set := stringset.New()
	for name := range s {
		set.Add(name)
	}
	return set.Sort()
}

// Subtract returns the bundle names present in s but not in other, useful
// for computing the bundle-remove candidate set once reverse dependencies
// of the target have been excluded.
func (s BundleSet) Subtract(other BundleSet) []string {
	set := stringset.New()
	for name := range s {
		if _, ok := other[name]; !ok {
			set.Add(name)
		}
	}
	return set.Sort()
}

// ReverseDependents returns the names, among the bundles in resolved, of
// bundles that include target (directly or transitively). Used by
// bundle-remove to refuse removing a bundle something else still depends on.
func ReverseDependents(target string, resolved BundleSet) []string {
	set := stringset.New()
	pending := []string{target}
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]
		for name, m := range resolved {
			if name == target || set.Contains(name) {
				continue
			}
			for _, dep := range m.Header.Includes {
				if dep == cur {
					set.Add(name)
					pending = append(pending, name)
					break
				}
			}
		}
	}
	return set.Sort()
}

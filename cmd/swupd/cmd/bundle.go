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

package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/clearlinux/swupd-go/swupd"
)

var bundleAddCmd = &cobra.Command{
	Use:   "bundle-add BUNDLE...",
	Short: "Install one or more bundles, pulling in their dependencies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withLock(cfg.StateDir, func() error {
			return runBundleAdd(cfg, args)
		})
	},
}

func runBundleAdd(cfg *swupd.Config, names []string) error {
	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}
	current, err := swupd.CurrentVersion(cfg.Path)
	if err != nil {
		return err
	}

	ctx := backgroundContext()
	var aliasNames []string
	if table, err := swupd.LoadAliasTable(cfg.Path); err == nil {
		aliasNames = swupd.ResolveAliases(table, names)
	} else {
		aliasNames = names
	}

	resolved, err := swupd.ResolveBundles(aliasNames, !cfg.SkipOptional, func(name string) (*swupd.Manifest, error) {
		return driver.Acquirer.AcquireBundleManifest(ctx, current, current, name, "")
	})
	if err != nil {
		return err
	}

	var all []*swupd.File
	for _, m := range resolved {
		all = append(all, m.Files...)
	}
	consolidated, _ := swupd.ConsolidateFiles(all)
	swupd.ApplyHeuristics(consolidated)

	var toFetch []swupd.ArtifactRequest
	for _, f := range consolidated {
		if f.Status == swupd.StatusDeleted || f.Status == swupd.StatusGhosted || f.HasAttr(swupd.AttrDoNotUpdate) {
			continue
		}
		toFetch = append(toFetch, swupd.ArtifactRequest{Fingerprint: f.Hash.String()})
	}
	if _, err := driver.Fetcher.FetchAll(ctx, toFetch); err != nil {
		return errors.Wrap(err, "fetch phase failed")
	}
	if err := driver.Installer.InstallFiles(consolidated); err != nil {
		return errors.Wrap(err, "install phase failed")
	}

	for _, name := range aliasNames {
		if err := driver.Cache.Track(name); err != nil {
			return err
		}
	}
	fmt.Printf("Installed bundles: %v\n", aliasNames)
	return nil
}

var bundleRemoveCmd = &cobra.Command{
	Use:   "bundle-remove BUNDLE...",
	Short: "Remove one or more bundles not required by anything else installed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withLock(cfg.StateDir, func() error {
			return runBundleRemove(cfg, args)
		})
	},
}

func runBundleRemove(cfg *swupd.Config, names []string) error {
	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}
	current, err := swupd.CurrentVersion(cfg.Path)
	if err != nil {
		return err
	}

	subscribed, err := driver.Cache.TrackedBundles()
	if err != nil {
		return err
	}

	ctx := backgroundContext()
	fetch := func(name string) (*swupd.Manifest, error) {
		return driver.Acquirer.AcquireBundleManifest(ctx, current, current, name, "")
	}
	resolved, err := swupd.ResolveBundles(subscribed, !cfg.SkipOptional, fetch)
	if err != nil {
		return err
	}

	for _, name := range names {
		if deps := swupd.ReverseDependents(name, resolved); len(deps) > 0 {
			return errors.Errorf("cannot remove %s: required by %v", name, deps)
		}
	}

	remaining := make([]string, 0, len(subscribed))
	for _, s := range subscribed {
		keep := true
		for _, n := range names {
			if s == n {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, s)
		}
	}

	keptResolved, err := swupd.ResolveBundles(remaining, !cfg.SkipOptional, fetch)
	if err != nil {
		return err
	}
	orphaned := resolved.Subtract(keptResolved)

	var toRemove []*swupd.File
	for _, bundleName := range orphaned {
		if m, ok := resolved[bundleName]; ok {
			toRemove = append(toRemove, m.Files...)
		}
	}
	for _, f := range toRemove {
		if err := driver.Installer.StageFile(&swupd.File{Name: f.Name, Status: swupd.StatusDeleted}); err != nil {
			return errors.Wrapf(err, "couldn't remove %s", f.Name)
		}
	}

	for _, name := range names {
		if err := driver.Cache.Untrack(name); err != nil {
			return err
		}
	}
	fmt.Printf("Removed bundles: %v (orphaned content from: %v)\n", names, orphaned)
	return nil
}

func init() {
	RootCmd.AddCommand(bundleAddCmd)
	RootCmd.AddCommand(bundleRemoveCmd)
}

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

	"github.com/spf13/cobra"

	"github.com/clearlinux/swupd-go/swupd"
)

var hashdumpCmd = &cobra.Command{
	Use:   "hashdump PATH",
	Short: "Print the content fingerprint of a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := swupd.HashDump(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

var searchFlags = struct {
	library bool
	binary  bool
	scope   string
}{}

var searchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Search installed (or all) bundles for a file path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSearch(cfg, args[0])
	},
}

func runSearch(cfg *swupd.Config, term string) error {
	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}
	current, err := swupd.CurrentVersion(cfg.Path)
	if err != nil {
		return err
	}

	scope := swupd.ScopeBundle
	if searchFlags.scope == "o" {
		scope = swupd.ScopeOS
	}
	kind := swupd.SearchAny
	switch {
	case searchFlags.library:
		kind = swupd.SearchLibrary
	case searchFlags.binary:
		kind = swupd.SearchBinary
	}

	subscribed, err := driver.Cache.TrackedBundles()
	if err != nil {
		return err
	}
	ctx := backgroundContext()
	resolved, err := swupd.ResolveBundles(subscribed, !cfg.SkipOptional, func(name string) (*swupd.Manifest, error) {
		return driver.Acquirer.AcquireBundleManifest(ctx, current, current, name, "")
	})
	if err != nil {
		return err
	}

	results, err := swupd.SearchFile(resolved, term, kind, scope)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s\t%s\n", r.Bundle, r.Path)
	}
	return nil
}

var cleanFlags = struct {
	all    bool
	dryRun bool
}{}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Reclaim cache space no longer referenced by the installed version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withLock(cfg.StateDir, func() error {
			return runClean(cfg)
		})
	},
}

func runClean(cfg *swupd.Config) error {
	cache, err := swupd.NewCache(cfg.StateDir)
	if err != nil {
		return err
	}

	mode := swupd.GCIncremental
	if cleanFlags.all {
		mode = swupd.GCAll
	}
	momPath := cache.ManifestPath(mustCurrentVersion(cfg), "MoM", "")

	result, err := swupd.GC(cache, momPath, mode, cleanFlags.dryRun)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d entries, %d bytes reclaimed\n", len(result.Removed), result.BytesFreed)
	return nil
}

func mustCurrentVersion(cfg *swupd.Config) uint32 {
	v, err := swupd.CurrentVersion(cfg.Path)
	if err != nil {
		return 0
	}
	return v
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the current installed version and configured URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		current, err := swupd.CurrentVersion(cfg.Path)
		if err != nil {
			return err
		}
		fmt.Printf("Installed version: %d\n", current)
		fmt.Printf("Content URL:       %s\n", cfg.ContentURL)
		fmt.Printf("Version URL:       %s\n", cfg.VersionURL)
		if cfg.MirrorURL != "" {
			fmt.Printf("Mirror URL:        %s\n", cfg.MirrorURL)
		}
		return nil
	},
}

var autoupdateCmd = &cobra.Command{
	Use:   "autoupdate [enable|disable]",
	Short: "Enable or disable (or show the status of) the autoupdate timer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			if swupd.AutoupdateEnabled(cfg.StateDir) {
				fmt.Println("Autoupdate is enabled")
			} else {
				fmt.Println("Autoupdate is disabled")
			}
			return nil
		}
		switch args[0] {
		case "enable":
			return swupd.SetAutoupdate(cfg.StateDir, true)
		case "disable":
			return swupd.SetAutoupdate(cfg.StateDir, false)
		default:
			return fmt.Errorf("unknown autoupdate argument %q, expected enable or disable", args[0])
		}
	},
}

func init() {
	searchCmd.Flags().BoolVarP(&searchFlags.library, "library", "l", false, "only match library paths")
	searchCmd.Flags().BoolVarP(&searchFlags.binary, "binary", "b", false, "only match binary paths")
	searchCmd.Flags().StringVarP(&searchFlags.scope, "scope", "s", "b", "search scope: b(undles) or o(s)")

	cleanCmd.Flags().BoolVar(&cleanFlags.all, "all", false, "wipe the entire cache instead of the incremental sweep")
	cleanCmd.Flags().BoolVar(&cleanFlags.dryRun, "dry-run", false, "report what would be removed without removing it")

	RootCmd.AddCommand(hashdumpCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(cleanCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(autoupdateCmd)
}

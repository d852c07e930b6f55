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

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the target root to the latest available version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withLock(cfg.StateDir, func() error {
			return runUpdate(cfg)
		})
	},
}

func runUpdate(cfg *swupd.Config) error {
	driver, err := newDriver(cfg)
	if err != nil {
		return err
	}

	cache := driver.Cache
	subscribed, err := cache.TrackedBundles()
	if err != nil {
		return err
	}
	if len(subscribed) == 0 {
		subscribed = []string{"os-core"}
	}

	result, err := driver.Update(backgroundContext(), subscribed)
	if err != nil {
		return err
	}
	if result.NoUpdateAvailable {
		fmt.Printf("Version %d is already the latest version\n", result.FromVersion)
		return nil
	}
	fmt.Printf("Updating from version %d to version %d\n", result.FromVersion, result.ToVersion)
	for _, t := range result.Triggers {
		switch t {
		case swupd.TriggerBootloaderUpdate:
			fmt.Println("Bootloader update scheduled")
		case swupd.TriggerSystemdReexec:
			fmt.Println("systemd re-exec scheduled")
		}
	}
	fmt.Println("Update complete")
	return nil
}

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "Report whether a newer version is available without installing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		current, err := swupd.CurrentVersion(cfg.Path)
		if err != nil {
			return err
		}
		vf := swupd.NewVersionFetcher(cfg, nil)
		latest, err := vf.LatestForFormat(backgroundContext(), cfg.FormatOverride)
		if err != nil {
			return err
		}
		if latest <= current {
			fmt.Printf("Version %d is already the latest version\n", current)
			return nil
		}
		fmt.Printf("There is a new version available: %d (current: %d)\n", latest, current)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(checkUpdateCmd)
}

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
	"os"
	"path/filepath"
)

// autoupdateSentinel is the state-dir file whose mere presence/absence
// toggles automatic updates, mirroring the sentinel-file approach of the
// original `swupd autoupdate` subcommand instead of a config-file setting,
// so a systemd timer unit can test for the file directly with
// ConditionPathExists.
const autoupdateSentinel = ".autoupdate-disabled"

// SetAutoupdate enables or disables automatic updates for stateDir by
// creating or removing the sentinel file.
func SetAutoupdate(stateDir string, enabled bool) error {
	path := filepath.Join(stateDir, autoupdateSentinel)
	if enabled {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// AutoupdateEnabled reports whether automatic updates are currently enabled
// for stateDir; absence of the sentinel file means enabled, matching the
// original's fail-open default.
func AutoupdateEnabled(stateDir string) bool {
	_, err := os.Stat(filepath.Join(stateDir, autoupdateSentinel))
	return os.IsNotExist(err)
}

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
	"os"
	"strings"
)

// configPaths are paths whose content is user-owned configuration: never
// silently overwritten, flagged ModifierConfig.
var configPaths = []string{
	"/etc/",
}

// statePaths are shipped directories whose content is runtime state and
// must never be diffed/compared, only ensured to exist.
var statePaths = []string{
	"/usr/src/debug",
	"/dev",
	"/home",
	"/proc",
	"/root",
	"/run",
	"/sys",
	"/tmp",
	"/var",
}

// extraStatePaths are non-shipped directories that still hold runtime
// state when present.
var extraStatePaths = []string{
	"/usr/src/",
	"/acct",
	"/cache",
	"/data",
	"/lost+found",
	"/mnt/asec",
	"/mnt/obb",
	"/mnt/shell/emulated",
	"/mnt/swupd",
	"/oem",
}

// bootOnlyPaths mark is_boot but do not by themselves request a
// bootloader-update trigger: the kernel tree changes on every update and
// re-running the boot manager for every kernel file would be wasteful.
var bootOnlyPaths = []string{
	"/boot/",
	"/usr/lib/modules/",
}

// bootTriggerPaths are the exact boot-manager binaries/assets whose change
// requests a post-commit bootloader-update trigger without themselves
// being is_boot content.
var bootTriggerPaths = []string{
	"/usr/bin/bootctl",
	"/usr/bin/clr-boot-manager",
	"/usr/bin/gummiboot",
	"/usr/lib/gummiboot",
	"/usr/share/syslinux/ldlinux.c32",
}

// bootAndTriggerPaths are both is_boot and request the bootloader-update
// trigger.
var bootAndTriggerPaths = []string{
	"/usr/lib/kernel/",
	"/usr/lib/systemd/boot",
}

// exportedPaths mark content that packaging conventions expect the
// administrator to have possibly customized even though it ships from a
// bundle (as opposed to /etc, which is always assumed customized).
var exportedPaths = []string{
	"/usr/share/defaults/",
}

func (f *File) setConfigFromPathname() {
	for _, path := range configPaths {
		if strings.HasPrefix(f.Name, path) {
			f.Modifier = ModifierConfig
			return
		}
	}
}

func (f *File) setStateFromPathname() {
	for _, path := range statePaths {
		if f.Name == path {
			return
		}
		if strings.HasPrefix(f.Name, path+"/") {
			f.Modifier = ModifierState
			return
		}
	}
	for _, path := range extraStatePaths {
		if strings.HasPrefix(f.Name, path) {
			f.Modifier = ModifierState
			return
		}
	}
}

func (f *File) setBootFromPathname() {
	markBoot := func() {
		f.Modifier = ModifierBoot
		if f.Status == StatusDeleted {
			f.Status = StatusGhosted
		}
	}

	for _, path := range bootOnlyPaths {
		if strings.HasPrefix(f.Name, path) {
			markBoot()
			break
		}
	}
	for _, path := range bootAndTriggerPaths {
		if strings.HasPrefix(f.Name, path) {
			markBoot()
			f.setAttr(AttrRequestsBootUpdate, true)
			break
		}
	}
	for _, path := range bootTriggerPaths {
		if f.Name == path {
			f.setAttr(AttrRequestsBootUpdate, true)
			break
		}
	}
}

func (f *File) setExportedFromPathname() {
	for _, path := range exportedPaths {
		if strings.HasPrefix(f.Name, path) {
			f.setAttr(AttrExported, true)
			return
		}
	}
}

// setModifierFromPathname applies the full heuristic table to f. Order
// matters: later checks override earlier ones, so boot (the strongest
// signal) is applied last. mounts is the set of currently mounted
// directories (readMountTable); a file under one of them that the static
// path tables left unclassified additionally gets ModifierState.
func (f *File) setModifierFromPathname(mounts []string) {
	f.setConfigFromPathname()
	f.setStateFromPathname()
	f.setBootFromPathname()
	f.setExportedFromPathname()
	if f.Modifier == ModifierUnset && mountTableAware(f.Name, mounts) {
		f.Modifier = ModifierState
	}
	f.refreshDoNotUpdate()
}

// applyHeuristics runs the full path-based classification over every file
// in the manifest, the step a freshly-parsed manifest goes through before
// the resolver/consolidator see it.
func (m *Manifest) applyHeuristics() {
	mounts := readMountTable()
	for _, f := range m.Files {
		f.setModifierFromPathname(mounts)
	}
}

// ApplyHeuristics runs the full path-based classification over an arbitrary
// file slice, the form the driver needs after ConsolidateFiles has already
// merged several bundles' entries into one list.
func ApplyHeuristics(files []*File) {
	mounts := readMountTable()
	for _, f := range files {
		f.setModifierFromPathname(mounts)
	}
}

// needsBootloaderUpdate reports whether any file in changed requires the
// post-commit bootloader-update trigger to run (driver.go).
func needsBootloaderUpdate(changed []*File) bool {
	for _, f := range changed {
		if f.HasAttr(AttrRequestsBootUpdate) {
			return true
		}
	}
	return false
}

// mountTableAware reports whether name falls under one of mounts, the
// runtime mount points read off the running system: a path the static
// config/state tables don't already know about still needs is_state
// treatment if something is mounted there (§4.11).
func mountTableAware(name string, mounts []string) bool {
	for _, mnt := range mounts {
		if mnt != "/" && (name == mnt || strings.HasPrefix(name, mnt+"/")) {
			return true
		}
	}
	return false
}

// readMountTable returns the current mount points reported by
// /proc/self/mountinfo, skipping the root filesystem itself. Each line is
// whitespace-delimited with the mount point as its fifth field:
//
//	36 35 98:0 /mnt1 /mnt2 rw,noatime master:1 - ext3 /dev/root rw,errors=continue
//
// A missing or unreadable mountinfo (non-Linux, containers without /proc)
// just means no extra mount points are known; callers get an empty table.
func readMountTable() []string {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var mounts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		mnt := fields[4]
		if mnt == "/" {
			continue
		}
		mounts = append(mounts, mnt)
	}
	return mounts
}

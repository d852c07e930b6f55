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
	"regexp"

	"github.com/clearlinux/swupd-go/internal/swudlog"
)

// DiagnosePolicy is the `(fix, picky, quick, extra-files-only, whitelist-regex,
// picky-root)` tuple §4.9 drives the walker with.
type DiagnosePolicy struct {
	Fix             bool
	Picky           bool
	Quick           bool
	ExtraFilesOnly  bool
	WhitelistRegex  *regexp.Regexp
	PickyRoot       string
}

// DefaultPickyRoot and DefaultWhitelistRegex match §4.9's defaults for the
// extra-files pass.
var (
	DefaultPickyRoot      = "/usr"
	DefaultWhitelistRegex = regexp.MustCompile(`^/usr/(lib/modules|lib/kernel|local|src)(/|$)`)
)

// DiagnoseReport is the per-file totals §4.9 requires, one counter per
// phase outcome.
type DiagnoseReport struct {
	Checked, Missing, Mismatch, Extraneous   int
	Replaced, NotReplaced                    int
	Fixed, NotFixed                          int
	Deleted, NotDeleted                      int
}

// Diagnoser walks a verified MoM's consolidated file set against a target
// root and reports (and optionally fixes) drift, the engine behind §4.9.
type Diagnoser struct {
	Root      string
	Installer *Installer
}

// Run executes the phases in order, skipping orphaned/extra-files whenever
// a prior phase produced any not-replaced/not-fixed count, to avoid
// irreversible deletions on a partially-repaired tree.
func (d *Diagnoser) Run(files []*File, policy DiagnosePolicy) (*DiagnoseReport, error) {
	report := &DiagnoseReport{}

	if !policy.ExtraFilesOnly {
		if err := d.phaseMissing(files, policy, report); err != nil {
			return report, err
		}
		if !policy.Quick {
			if err := d.phaseMismatch(files, policy, report); err != nil {
				return report, err
			}
		}
		partial := report.NotReplaced > 0 || report.NotFixed > 0
		if !partial {
			if err := d.phaseOrphaned(files, policy, report); err != nil {
				return report, err
			}
			partial = report.NotReplaced > 0 || report.NotFixed > 0
		}
		if (policy.Picky) && !partial {
			if err := d.phaseExtraFiles(files, policy, report); err != nil {
				return report, err
			}
		}
	} else {
		if err := d.phaseExtraFiles(files, policy, report); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (d *Diagnoser) phaseMissing(files []*File, policy DiagnosePolicy, report *DiagnoseReport) error {
	for _, f := range files {
		if f.Status == StatusDeleted || f.Status == StatusGhosted || f.HasAttr(AttrDoNotUpdate) {
			continue
		}
		report.Checked++
		path := filepath.Join(d.Root, f.Name)
		if _, err := os.Lstat(path); err == nil {
			continue
		}
		report.Missing++
		if !policy.Fix {
			continue
		}
		if err := d.Installer.StageFile(f); err != nil {
			swudlog.Warning(swudlog.Diagnose, "couldn't fix missing %s: %v", f.Name, err)
			report.NotFixed++
			continue
		}
		report.Fixed++
	}
	return nil
}

func (d *Diagnoser) phaseMismatch(files []*File, policy DiagnosePolicy, report *DiagnoseReport) error {
	for _, f := range files {
		if f.Status == StatusDeleted || f.Status == StatusGhosted || f.HasAttr(AttrDoNotUpdate) {
			continue
		}
		path := filepath.Join(d.Root, f.Name)
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		got, err := FingerprintFile(path)
		if err != nil {
			continue
		}
		if HashEquals(got, f.Hash) {
			continue
		}
		report.Mismatch++
		if !policy.Fix {
			continue
		}
		if err := d.Installer.StageFile(f); err != nil {
			swudlog.Warning(swudlog.Diagnose, "couldn't fix mismatched %s: %v", f.Name, err)
			report.NotFixed++
			continue
		}
		report.Fixed++
	}
	return nil
}

func (d *Diagnoser) phaseOrphaned(files []*File, policy DiagnosePolicy, report *DiagnoseReport) error {
	for _, f := range files {
		if f.Status != StatusDeleted || f.HasAttr(AttrDoNotUpdate) {
			continue
		}
		path := filepath.Join(d.Root, f.Name)
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		report.Extraneous++
		if !policy.Fix {
			continue
		}
		if err := d.Installer.removeFile(path); err != nil {
			swudlog.Warning(swudlog.Diagnose, "couldn't remove orphaned %s: %v", f.Name, err)
			report.NotDeleted++
			continue
		}
		report.Deleted++
	}
	return nil
}

func (d *Diagnoser) phaseExtraFiles(files []*File, policy DiagnosePolicy, report *DiagnoseReport) error {
	pickyRoot := policy.PickyRoot
	if pickyRoot == "" {
		pickyRoot = DefaultPickyRoot
	}
	whitelist := policy.WhitelistRegex
	if whitelist == nil {
		whitelist = DefaultWhitelistRegex
	}

	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[f.Name] = true
	}

	walkRoot := filepath.Join(d.Root, pickyRoot)
	return filepath.Walk(walkRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(d.Root, path)
		if rerr != nil {
			return nil
		}
		name := "/" + filepath.ToSlash(rel)
		if whitelist.MatchString(name) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if known[name] {
			return nil
		}
		report.Extraneous++
		if policy.Fix {
			if err := d.Installer.removeFile(path); err != nil {
				report.NotDeleted++
			} else {
				report.Deleted++
			}
		}
		return nil
	})
}

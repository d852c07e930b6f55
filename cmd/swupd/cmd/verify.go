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
	"os"
	"regexp"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/clearlinux/swupd-go/swupd"
)

var verifyFlags = struct {
	fix            bool
	picky          bool
	quick          bool
	extraFilesOnly bool
	pickyRoot      string
	whitelist      string
}{}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Diagnose (and optionally repair) drift against the installed manifest set",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withLock(cfg.StateDir, func() error {
			return runVerify(cfg)
		})
	},
}

func runVerify(cfg *swupd.Config) error {
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
	if len(subscribed) == 0 {
		subscribed = []string{"os-core"}
	}

	ctx := backgroundContext()
	resolved, err := swupd.ResolveBundles(subscribed, !cfg.SkipOptional, func(name string) (*swupd.Manifest, error) {
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

	policy := swupd.DiagnosePolicy{
		Fix:            verifyFlags.fix,
		Picky:          verifyFlags.picky,
		Quick:          verifyFlags.quick,
		ExtraFilesOnly: verifyFlags.extraFilesOnly,
		PickyRoot:      verifyFlags.pickyRoot,
	}
	if verifyFlags.whitelist != "" {
		re, err := regexp.Compile(verifyFlags.whitelist)
		if err != nil {
			return err
		}
		policy.WhitelistRegex = re
	}

	result, err := driver.Verify(consolidated, policy)
	if err != nil {
		return err
	}

	printDiagnoseReport(result.Report, verifyFlags.fix)
	return nil
}

// printDiagnoseReport renders a DiagnoseReport as a two-column table, the
// same tablewriter style the teacher's build-validate report uses for its
// per-bundle change summary.
func printDiagnoseReport(report *swupd.DiagnoseReport, fix bool) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetRowLine(true)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"METRIC", "COUNT"})

	rows := [][2]string{
		{"checked", strconv.Itoa(report.Checked)},
		{"missing", strconv.Itoa(report.Missing)},
		{"mismatched", strconv.Itoa(report.Mismatch)},
		{"extraneous", strconv.Itoa(report.Extraneous)},
	}
	if fix {
		rows = append(rows,
			[2]string{"fixed", strconv.Itoa(report.Fixed)},
			[2]string{"not fixed", strconv.Itoa(report.NotFixed)},
			[2]string{"deleted", strconv.Itoa(report.Deleted)},
			[2]string{"not deleted", strconv.Itoa(report.NotDeleted)},
		)
	}
	for _, row := range rows {
		table.Append([]string{row[0], row[1]})
	}
	table.Render()
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyFlags.fix, "fix", false, "repair any drift found")
	verifyCmd.Flags().BoolVar(&verifyFlags.picky, "picky", false, "also report/remove files under picky-root not owned by any bundle")
	verifyCmd.Flags().BoolVar(&verifyFlags.quick, "quick", false, "skip the content-hash mismatch phase")
	verifyCmd.Flags().BoolVar(&verifyFlags.extraFilesOnly, "extra-files-only", false, "run only the extra-files phase")
	verifyCmd.Flags().StringVar(&verifyFlags.pickyRoot, "picky-root", swupd.DefaultPickyRoot, "root the extra-files phase walks")
	verifyCmd.Flags().StringVar(&verifyFlags.whitelist, "picky-whitelist", "", "regex of paths the extra-files phase should skip")
	RootCmd.AddCommand(verifyCmd)
}
